package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// Defaults for IndexManagerConfig
const (
	DefaultIndexPrefix = "discussions"
	DefaultShards      = 2
	DefaultReplicas    = 2
)

// IndexManagerConfig holds dependencies for IndexManager.
type IndexManagerConfig struct {
	Engine   driven.SearchEngine
	Prefix   string
	Shards   int
	Replicas int
	Logger   *slog.Logger
}

// IndexManager creates backing indices and maintains the default, reindexing
// and global aliases that point at them. Alias bindings are read from the
// store on every call.
type IndexManager struct {
	engine   driven.SearchEngine
	prefix   string
	shards   int
	replicas int
	logger   *slog.Logger
}

// NewIndexManager creates a new index manager.
func NewIndexManager(cfg IndexManagerConfig) *IndexManager {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultIndexPrefix
	}
	if cfg.Shards <= 0 {
		cfg.Shards = DefaultShards
	}
	if cfg.Replicas < 0 {
		cfg.Replicas = DefaultReplicas
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IndexManager{
		engine:   cfg.Engine,
		prefix:   cfg.Prefix,
		shards:   cfg.Shards,
		replicas: cfg.Replicas,
		logger:   logger,
	}
}

// DefaultAlias is the alias live traffic reads and writes through.
func (m *IndexManager) DefaultAlias(objectType domain.ObjectType) string {
	return fmt.Sprintf("%s_%s_default", m.prefix, objectType.IndexType())
}

// ReindexingAlias points at a backing index while it is being populated.
func (m *IndexManager) ReindexingAlias(objectType domain.ObjectType) string {
	return fmt.Sprintf("%s_%s_reindexing", m.prefix, objectType.IndexType())
}

// GlobalAlias spans the default backing indices of every object type.
func (m *IndexManager) GlobalAlias() string {
	return fmt.Sprintf("%s_%s_default", m.prefix, domain.AliasAllIndices)
}

// BackingIndexName generates a unique backing index name for an object type.
func (m *IndexManager) BackingIndexName(objectType domain.ObjectType) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s_%s_%s", m.prefix, objectType.IndexType(), id)
}

// ClearAndCreateIndex deletes indexName if it exists and creates it with the
// settings and mappings of objectType.
func (m *IndexManager) ClearAndCreateIndex(ctx context.Context, indexName string, objectType domain.ObjectType) error {
	if !objectType.IsValid() {
		return fmt.Errorf("%w: %s", domain.ErrUnknownObjectType, objectType)
	}

	exists, err := m.engine.IndexExists(ctx, indexName)
	if err != nil {
		return fmt.Errorf("check index %s: %w", indexName, err)
	}
	if exists {
		if err := m.engine.DeleteIndex(ctx, indexName); err != nil {
			return fmt.Errorf("delete index %s: %w", indexName, err)
		}
	}

	if err := m.engine.CreateIndex(ctx, indexName, IndexBody(objectType, m.shards, m.replicas)); err != nil {
		return fmt.Errorf("create index %s: %w", indexName, err)
	}
	return nil
}

// CreateBackingIndex creates a fresh backing index for objectType and points
// the reindexing alias at it, and only at it. It returns the index name.
func (m *IndexManager) CreateBackingIndex(ctx context.Context, objectType domain.ObjectType) (string, error) {
	indexName := m.BackingIndexName(objectType)
	if err := m.ClearAndCreateIndex(ctx, indexName, objectType); err != nil {
		return "", err
	}

	alias := m.ReindexingAlias(objectType)
	stale, err := m.aliasIndices(ctx, alias)
	if err != nil {
		return "", err
	}
	for _, index := range stale {
		if err := m.engine.DeleteAlias(ctx, index, alias); err != nil {
			return "", fmt.Errorf("remove stale alias %s from %s: %w", alias, index, err)
		}
	}

	if err := m.engine.PutAlias(ctx, indexName, alias); err != nil {
		return "", fmt.Errorf("put alias %s: %w", alias, err)
	}

	m.logger.Info("created backing index", "object_type", objectType, "index", indexName, "alias", alias)
	return indexName, nil
}

// SwitchIndices promotes backingIndex to be the default index of objectType.
// The default and global aliases move in a single atomic alias update, so the
// default alias is never left unbound. The previous backing indices are then
// deleted and the reindexing alias dropped.
func (m *IndexManager) SwitchIndices(ctx context.Context, backingIndex string, objectType domain.ObjectType) error {
	defaultAlias := m.DefaultAlias(objectType)
	globalAlias := m.GlobalAlias()

	old, err := m.aliasIndices(ctx, defaultAlias)
	if err != nil {
		return err
	}
	global, err := m.aliasIndices(ctx, globalAlias)
	if err != nil {
		return err
	}
	inGlobal := make(map[string]bool, len(global))
	for _, index := range global {
		inGlobal[index] = true
	}

	var actions []domain.AliasAction
	var retired []string
	for _, index := range old {
		if index == backingIndex {
			continue
		}
		retired = append(retired, index)
		actions = append(actions, domain.RemoveAlias(index, defaultAlias))
		if inGlobal[index] {
			actions = append(actions, domain.RemoveAlias(index, globalAlias))
		}
	}
	actions = append(actions,
		domain.AddAlias(backingIndex, defaultAlias),
		domain.AddAlias(backingIndex, globalAlias),
	)

	if err := m.engine.UpdateAliases(ctx, actions); err != nil {
		return fmt.Errorf("switch aliases to %s: %w", backingIndex, err)
	}

	if err := m.engine.Refresh(ctx, backingIndex); err != nil {
		return fmt.Errorf("refresh %s: %w", backingIndex, err)
	}

	if len(retired) > 0 {
		if err := m.engine.DeleteIndex(ctx, retired...); err != nil {
			return fmt.Errorf("delete old indices %v: %w", retired, err)
		}
	}

	reindexing := m.ReindexingAlias(objectType)
	bound, err := m.aliasIndices(ctx, reindexing)
	if err != nil {
		return err
	}
	for _, index := range bound {
		if index != backingIndex {
			continue
		}
		if err := m.engine.DeleteAlias(ctx, backingIndex, reindexing); err != nil {
			return fmt.Errorf("remove alias %s: %w", reindexing, err)
		}
	}

	m.logger.Info("switched indices",
		"object_type", objectType, "index", backingIndex, "retired", retired)
	return nil
}

// GetActiveAliases returns the aliases of objectTypes that exist right now,
// selected by target. Content files resolve to the course aliases.
func (m *IndexManager) GetActiveAliases(ctx context.Context, objectTypes []domain.ObjectType, target domain.IndexTarget) ([]string, error) {
	var candidates []string
	seen := make(map[string]bool)
	for _, t := range objectTypes {
		var names []string
		switch target {
		case domain.IndexTargetCurrent:
			names = []string{m.DefaultAlias(t)}
		case domain.IndexTargetReindexing:
			names = []string{m.ReindexingAlias(t)}
		default:
			names = []string{m.DefaultAlias(t), m.ReindexingAlias(t)}
		}
		for _, name := range names {
			if !seen[name] {
				seen[name] = true
				candidates = append(candidates, name)
			}
		}
	}

	active := make([]string, 0, len(candidates))
	for _, alias := range candidates {
		exists, err := m.engine.AliasExists(ctx, alias)
		if err != nil {
			return nil, fmt.Errorf("check alias %s: %w", alias, err)
		}
		if exists {
			active = append(active, alias)
		}
	}
	return active, nil
}

// DeleteOrphanedIndices cleans up after a failed recreate: reindexing aliases
// are removed and any backing index left without an alias is deleted.
func (m *IndexManager) DeleteOrphanedIndices(ctx context.Context) error {
	indices, err := m.engine.ListIndices(ctx, m.prefix+"_*")
	if err != nil {
		return fmt.Errorf("list indices: %w", err)
	}

	names := make([]string, 0, len(indices))
	for name := range indices {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, index := range names {
		remaining := 0
		for _, alias := range indices[index] {
			if !strings.HasSuffix(alias, "_reindexing") {
				remaining++
				continue
			}
			m.logger.Info("removing reindexing alias", "index", index, "alias", alias)
			if err := m.engine.DeleteAlias(ctx, index, alias); err != nil {
				return fmt.Errorf("remove alias %s from %s: %w", alias, index, err)
			}
		}
		if remaining == 0 {
			m.logger.Info("deleting orphaned index", "index", index)
			if err := m.engine.DeleteIndex(ctx, index); err != nil {
				return fmt.Errorf("delete index %s: %w", index, err)
			}
		}
	}
	return nil
}

// aliasIndices returns the indices behind alias, or nil if it is unbound.
func (m *IndexManager) aliasIndices(ctx context.Context, alias string) ([]string, error) {
	exists, err := m.engine.AliasExists(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("check alias %s: %w", alias, err)
	}
	if !exists {
		return nil, nil
	}
	indices, err := m.engine.GetAliasIndices(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("get alias %s: %w", alias, err)
	}
	return indices, nil
}
