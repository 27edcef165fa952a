package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSettings_Defaults(t *testing.T) {
	settings, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", settings.HTTP.Host)
	assert.Equal(t, 8080, settings.HTTP.Port)
	assert.Equal(t, "http://localhost:9200", settings.Elasticsearch.URL)
	assert.Equal(t, "discussions", settings.Elasticsearch.IndexPrefix)
	assert.Equal(t, 2, settings.Elasticsearch.Shards)
	assert.Equal(t, 2, settings.Elasticsearch.Replicas)
	assert.Equal(t, 100, settings.Elasticsearch.ChunkSize)
	assert.Equal(t, 10*1024*1024, settings.Elasticsearch.MaxRequestSize)
	assert.Equal(t, 60*time.Second, settings.Elasticsearch.Timeout)
	assert.Equal(t, 4, settings.Elasticsearch.RelatedPostsCount)
	assert.Equal(t, 5*time.Minute, settings.Database.ConnMaxLifetime)
	assert.Equal(t, 2, settings.Worker.Concurrency)
	assert.Equal(t, 3, settings.Worker.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Hour, settings.Worker.ReindexLockTTL)
	assert.Equal(t, "info", settings.Log.Level)
	assert.Equal(t, "text", settings.Log.Format)
}

func TestLoadSettings_EnvVars(t *testing.T) {
	t.Setenv("DISCUSSION_SEARCH_HTTP_PORT", "9090")
	t.Setenv("DISCUSSION_SEARCH_ELASTICSEARCH_URL", "http://es:9200")
	t.Setenv("DISCUSSION_SEARCH_ELASTICSEARCH_INDEX_PREFIX", "testindex")
	t.Setenv("DISCUSSION_SEARCH_WORKER_RETRY_BASE_DELAY", "500ms")
	t.Setenv("DISCUSSION_SEARCH_LOG_LEVEL", " DEBUG ")

	settings, err := LoadSettings()
	require.NoError(t, err)

	assert.Equal(t, 9090, settings.HTTP.Port)
	assert.Equal(t, "http://es:9200", settings.Elasticsearch.URL)
	assert.Equal(t, "testindex", settings.Elasticsearch.IndexPrefix)
	assert.Equal(t, 500*time.Millisecond, settings.Worker.Retry.BaseDelay)
	assert.Equal(t, "debug", settings.Log.Level)
}

func TestLoadSettings_InvalidConfig(t *testing.T) {
	t.Setenv("DISCUSSION_SEARCH_HTTP_PORT", "not-a-number")

	_, err := LoadSettings()
	assert.Error(t, err)
}

func TestLoadSettings_EnvFile(t *testing.T) {
	tests := []struct {
		name    string
		content *string
		wantErr bool
	}{
		{"missing", nil, false},
		{"comments only", ptr("# local overrides\n"), false},
		{"malformed", ptr("this line has no separator\n"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.content != nil {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(*tt.content), 0o600))
			}
			t.Chdir(dir)

			settings, err := LoadSettings()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "read .env")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 8080, settings.HTTP.Port)
		})
	}
}

func ptr(s string) *string { return &s }

func TestLoadSettingsWithFlags_CLIOverridesEnv(t *testing.T) {
	t.Setenv("DISCUSSION_SEARCH_HTTP_PORT", "9090")
	t.Setenv("DISCUSSION_SEARCH_REDIS_URL", "redis://env:6379/0")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--port", "7777", "--index-prefix", "cli"}))

	settings, err := LoadSettingsWithFlags(flags)
	require.NoError(t, err)

	assert.Equal(t, 7777, settings.HTTP.Port)
	assert.Equal(t, "cli", settings.Elasticsearch.IndexPrefix)
	// unset flags don't clobber env or defaults
	assert.Equal(t, "redis://env:6379/0", settings.Redis.URL)
	assert.Equal(t, 100, settings.Elasticsearch.ChunkSize)
}

func validSettings(t *testing.T) *Settings {
	t.Helper()
	s, err := LoadSettings()
	require.NoError(t, err)
	s.HTTP.JWTSecret = "secret"
	return s
}

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(s *Settings)
		requireSecret bool
		wantErr       string
	}{
		{"valid", func(s *Settings) {}, true, ""},
		{"missing secret allowed", func(s *Settings) { s.HTTP.JWTSecret = "" }, false, ""},
		{"missing secret", func(s *Settings) { s.HTTP.JWTSecret = "" }, true, "jwt secret is required"},
		{"missing es url", func(s *Settings) { s.Elasticsearch.URL = "" }, false, "elasticsearch url is required"},
		{"missing database", func(s *Settings) { s.Database.URL = "" }, false, "database url is required"},
		{"missing redis", func(s *Settings) { s.Redis.URL = "" }, false, "redis url is required"},
		{"bad port", func(s *Settings) { s.HTTP.Port = 70000 }, false, "port must be between"},
		{"zero shards", func(s *Settings) { s.Elasticsearch.Shards = 0 }, false, "shards must be positive"},
		{"zero replicas allowed", func(s *Settings) { s.Elasticsearch.Replicas = 0 }, false, ""},
		{"negative replicas", func(s *Settings) { s.Elasticsearch.Replicas = -1 }, false, "replicas cannot be negative"},
		{"zero chunk size", func(s *Settings) { s.Elasticsearch.ChunkSize = 0 }, false, "chunk size must be positive"},
		{"zero concurrency", func(s *Settings) { s.Worker.Concurrency = 0 }, false, "worker concurrency"},
		{"bad log level", func(s *Settings) { s.Log.Level = "loud" }, false, "unknown log level"},
		{"bad log format", func(s *Settings) { s.Log.Format = "xml" }, false, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings(t)
			tt.mutate(s)
			err := ValidateSettings(s, tt.requireSecret)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLogSettings_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogSettings{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}

func TestLogWithLogger_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := validSettings(t)
	s.HTTP.JWTSecret = "jwt-top-secret"
	s.Elasticsearch.Password = "es-top-secret"
	s.Elasticsearch.APIKey = "key-top-secret"
	s.Database.URL = "postgres://user:db-top-secret@db:5432/discussions"

	LogWithLogger(s, logger)

	out := buf.String()
	assert.NotContains(t, out, "top-secret")
	assert.Contains(t, out, "settings.http.jwt_secret=****")
	assert.Contains(t, out, "user:%2A%2A%2A%2A@db:5432")
	assert.Contains(t, out, "settings.elasticsearch.index_prefix=discussions")
}

func TestMaskURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"redis://localhost:6379/0", "redis://localhost:6379/0"},
		{"redis://:pw@localhost:6379/0", "redis://:%2A%2A%2A%2A@localhost:6379/0"},
		{"http://elastic@es:9200", "http://elastic@es:9200"},
	}
	for _, tt := range tests {
		got := maskURL(tt.in)
		assert.Equal(t, tt.want, got)
		assert.False(t, strings.Contains(got, "pw@"))
	}
}
