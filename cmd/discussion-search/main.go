package main

// @title           Discussion Search API
// @version         1.0
// @description     Permission-filtered search over discussion posts, comments, profiles and learning resources.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/discussion-search/internal/config"
	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

var (
	// Version is injected at build time
	Version = "dev"
	// ProgramName is injected at build time
	ProgramName = "discussion-search"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Discussion search service",
		Long:          "Search indexing and permission-filtered querying for the discussion platform",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	config.RegisterFlags(rootCmd.PersistentFlags())

	var withWorker bool
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Flags(), true, version, func(ctx context.Context, a *app) error {
				return a.serve(ctx, withWorker)
			})
		},
	}
	serveCmd.Flags().BoolVar(&withWorker, "with-worker", false, "Also process index tasks in this process")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Process queued index tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Flags(), false, version, func(ctx context.Context, a *app) error {
				return a.runWorker(ctx)
			})
		},
	}

	var objectTypes string
	recreateCmd := &cobra.Command{
		Use:   "recreate-index",
		Short: "Rebuild indices into new backing indices and swap the aliases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			types, err := domain.ParseObjectTypes(objectTypes)
			if err != nil {
				return err
			}
			return withApp(cmd.Flags(), false, version, func(ctx context.Context, a *app) error {
				return a.tasks.StartRecreateIndex(ctx, types)
			})
		},
	}
	recreateCmd.Flags().StringVar(&objectTypes, "object-types", "", "Comma-separated object types (default all)")

	var platform string
	updateCmd := &cobra.Command{
		Use:   "update-index",
		Short: "Re-index existing entities into the current indices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			types, err := domain.ParseObjectTypes(objectTypes)
			if err != nil {
				return err
			}
			return withApp(cmd.Flags(), false, version, func(ctx context.Context, a *app) error {
				return a.tasks.StartUpdateIndex(ctx, types, strings.TrimSpace(platform))
			})
		},
	}
	updateCmd.Flags().StringVar(&objectTypes, "object-types", "", "Comma-separated object types (default all)")
	updateCmd.Flags().StringVar(&platform, "platform", "", "Only update resources of this platform")

	rootCmd.AddCommand(serveCmd, workerCmd, recreateCmd, updateCmd)
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// withApp loads settings, wires the adapters and runs fn until it returns
// or the process is signalled.
func withApp(flags *pflag.FlagSet, requireSecret bool, version string, fn func(ctx context.Context, a *app) error) error {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := config.ValidateSettings(settings, requireSecret); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	logger := settings.Log.NewLogger(os.Stderr)
	config.LogWithLogger(settings, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, settings, version, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := fn(ctx, a); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "error", err)
		return err
	}
	return nil
}
