package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/discussion-search/internal/adapters/driven/auth"
	"github.com/custodia-labs/discussion-search/internal/adapters/driven/elasticsearch"
	"github.com/custodia-labs/discussion-search/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/discussion-search/internal/adapters/driven/redis"
	"github.com/custodia-labs/discussion-search/internal/adapters/driving/http"
	"github.com/custodia-labs/discussion-search/internal/config"
	"github.com/custodia-labs/discussion-search/internal/core/services"
	"github.com/custodia-labs/discussion-search/internal/serializers"
	"github.com/custodia-labs/discussion-search/internal/worker"
)

// app holds the wired adapters and services shared by every command
type app struct {
	settings *config.Settings
	version  string
	logger   *slog.Logger

	db          *postgres.DB
	redisClient *redis.Client
	engine      *elasticsearch.SearchEngine
	queue       *redisadapter.Queue
	lock        *redisadapter.Lock

	indices *services.IndexManager
	tasks   *services.IndexTasks
}

func newApp(ctx context.Context, s *config.Settings, version string, logger *slog.Logger) (*app, error) {
	a := &app{settings: s, version: version, logger: logger}

	// ===== Elasticsearch =====
	esCfg := elasticsearch.DefaultConfig(s.Elasticsearch.URL)
	esCfg.Username = s.Elasticsearch.Username
	esCfg.Password = s.Elasticsearch.Password
	esCfg.APIKey = s.Elasticsearch.APIKey
	if s.Elasticsearch.Timeout > 0 {
		esCfg.Timeout = s.Elasticsearch.Timeout
	}
	engine, err := elasticsearch.NewSearchEngine(esCfg)
	if err != nil {
		return nil, err
	}
	if err := engine.HealthCheck(ctx); err != nil {
		logger.Warn("elasticsearch health check failed, search may not work", "error", err)
	}
	a.engine = engine

	// ===== PostgreSQL =====
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             s.Database.URL,
		MaxOpenConns:    s.Database.MaxOpenConns,
		MaxIdleConns:    s.Database.MaxIdleConns,
		ConnMaxLifetime: s.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	a.db = db

	// ===== Redis =====
	opts, err := redis.ParseURL(s.Redis.URL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	a.redisClient = redis.NewClient(opts)
	if err := a.redisClient.Ping(ctx).Err(); err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.queue, err = redisadapter.NewQueue(ctx, a.redisClient, consumerName())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.lock = redisadapter.NewLock(a.redisClient)

	// ===== Services =====
	a.indices = services.NewIndexManager(services.IndexManagerConfig{
		Engine:   engine,
		Prefix:   s.Elasticsearch.IndexPrefix,
		Shards:   s.Elasticsearch.Shards,
		Replicas: s.Elasticsearch.Replicas,
		Logger:   logger,
	})
	indexer := services.NewIndexer(services.IndexerConfig{
		Engine:         engine,
		Indices:        a.indices,
		ChunkSize:      s.Elasticsearch.ChunkSize,
		MaxRequestSize: s.Elasticsearch.MaxRequestSize,
		Logger:         logger,
	})
	a.tasks = services.NewIndexTasks(services.IndexTasksConfig{
		Store:              postgres.NewContentStore(db),
		Serializers:        serializers.NewRegistry(serializers.Config{Logger: logger}),
		Indexer:            indexer,
		Indices:            a.indices,
		Lock:               a.lock,
		ReindexConcurrency: s.Worker.ReindexConcurrency,
		ReindexLockTTL:     s.Worker.ReindexLockTTL,
		Logger:             logger,
	})

	return a, nil
}

// serve runs the HTTP API, optionally with an in-process worker
func (a *app) serve(ctx context.Context, withWorker bool) error {
	searchService := services.NewSearchService(services.SearchServiceConfig{
		Engine:                a.engine,
		Permissions:           postgres.NewPermissionStore(a.db),
		Indices:               a.indices,
		RelatedPostsCount:     a.settings.Elasticsearch.RelatedPostsCount,
		SimilarResourcesCount: a.settings.Elasticsearch.SimilarResourcesCount,
		MaxSuggestHits:        a.settings.Elasticsearch.MaxSuggestHits,
		MaxSuggestResults:     a.settings.Elasticsearch.MaxSuggestResults,
		Logger:                a.logger,
	})
	indexService := services.NewIndexService(a.queue, a.logger)
	tokens := services.NewTokenValidator(auth.NewAdapter(a.settings.HTTP.JWTSecret))

	httpCfg := http.DefaultConfig()
	httpCfg.Host = a.settings.HTTP.Host
	httpCfg.Port = a.settings.HTTP.Port
	httpCfg.Version = a.version
	httpCfg.Logger = a.logger

	server := http.NewServer(httpCfg, searchService, indexService, tokens, map[string]http.Pinger{
		"elasticsearch": http.PingFunc(a.engine.HealthCheck),
		"database":      a.db,
		"redis":         a.queue,
	})

	if withWorker {
		w := a.newWorker()
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}
	return server.Start(ctx)
}

// runWorker processes index tasks until ctx is cancelled
func (a *app) runWorker(ctx context.Context) error {
	w := a.newWorker()
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (a *app) newWorker() *worker.Worker {
	retry := a.settings.Worker.Retry
	return worker.NewWorker(worker.WorkerConfig{
		TaskQueue: a.queue,
		Runner:    a.tasks,
		Retry: worker.RetryPolicy{
			MaxAttempts:   retry.MaxAttempts,
			BaseDelay:     retry.BaseDelay,
			MaxDelay:      retry.MaxDelay,
			NotFoundGrace: retry.NotFoundGrace,
		},
		Logger:         a.logger,
		Concurrency:    a.settings.Worker.Concurrency,
		DequeueTimeout: a.settings.Worker.DequeueTimeout,
	})
}

// Close releases the connections newApp opened
func (a *app) Close() {
	if a.redisClient != nil {
		_ = a.redisClient.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func consumerName() string {
	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
