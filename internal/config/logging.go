package config

import (
	"context"
	"log/slog"
	"net/url"
)

const masked = "****"

// Log logs the resolved settings with secrets masked
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	logger.LogAttrs(context.Background(), slog.LevelInfo, "Config", slog.Any("settings", SettingsLogValue(*s)))
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.Group("http",
			slog.String("host", s.HTTP.Host),
			slog.Int("port", s.HTTP.Port),
			slog.String("jwt_secret", maskSecret(s.HTTP.JWTSecret)),
		),
		slog.Any("elasticsearch", ElasticsearchSettingsLogValue(s.Elasticsearch)),
		slog.Group("database",
			slog.String("url", maskURL(s.Database.URL)),
			slog.Int("max_open_conns", s.Database.MaxOpenConns),
			slog.Int("max_idle_conns", s.Database.MaxIdleConns),
			slog.Duration("conn_max_lifetime", s.Database.ConnMaxLifetime),
		),
		slog.Group("redis", slog.String("url", maskURL(s.Redis.URL))),
		slog.Group("worker",
			slog.Int("concurrency", s.Worker.Concurrency),
			slog.Duration("dequeue_timeout", s.Worker.DequeueTimeout),
			slog.Int("reindex_concurrency", s.Worker.ReindexConcurrency),
			slog.Duration("reindex_lock_ttl", s.Worker.ReindexLockTTL),
			slog.Int("retry_max_attempts", s.Worker.Retry.MaxAttempts),
			slog.Duration("retry_base_delay", s.Worker.Retry.BaseDelay),
			slog.Duration("retry_max_delay", s.Worker.Retry.MaxDelay),
			slog.Duration("retry_not_found_grace", s.Worker.Retry.NotFoundGrace),
		),
		slog.Group("log",
			slog.String("level", s.Log.Level),
			slog.String("format", s.Log.Format),
		),
	)
}

// ElasticsearchSettingsLogValue returns a slog.Value for ElasticsearchSettings with masked data
func ElasticsearchSettingsLogValue(s ElasticsearchSettings) slog.Value {
	return slog.GroupValue(
		slog.String("url", maskURL(s.URL)),
		slog.String("username", s.Username),
		slog.String("password", maskSecret(s.Password)),
		slog.String("api_key", maskSecret(s.APIKey)),
		slog.Duration("timeout", s.Timeout),
		slog.String("index_prefix", s.IndexPrefix),
		slog.Int("shards", s.Shards),
		slog.Int("replicas", s.Replicas),
		slog.Int("chunk_size", s.ChunkSize),
		slog.Int("max_request_size", s.MaxRequestSize),
	)
}

// maskSecret hides a secret but still shows whether one is set
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	return masked
}

// maskURL hides the password in a connection URL
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), masked)
	}
	return u.String()
}
