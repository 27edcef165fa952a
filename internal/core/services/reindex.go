package services

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// ReindexLockName is the distributed lock held while indices are recreated
const ReindexLockName = "search:recreate_index"

// chunkJob is one chunk of natural ids of an object type
type chunkJob struct {
	objectType domain.ObjectType
	ids        []string
}

// StartRecreateIndex rebuilds the indices of objectTypes from the content
// store. Each type gets a new backing index behind its reindexing alias, every
// entity is indexed into it chunk by chunk, and FinishRecreateIndex swaps the
// new indices in. Writes made meanwhile land in both old and new indices.
func (t *IndexTasks) StartRecreateIndex(ctx context.Context, objectTypes []domain.ObjectType) error {
	types := indexTypes(objectTypes)
	if len(types) == 0 {
		return fmt.Errorf("%w: no object types to recreate", domain.ErrInvalidInput)
	}

	acquired, err := t.lock.Acquire(ctx, ReindexLockName, t.lockTTL)
	if err != nil {
		return domain.Retryable(fmt.Errorf("acquire reindex lock: %w", err))
	}
	if !acquired {
		return domain.ErrReindexInProgress
	}
	defer func() {
		if err := t.lock.Release(context.WithoutCancel(ctx), ReindexLockName); err != nil {
			t.logger.Error("failed to release reindex lock", "error", err)
		}
	}()

	t.logger.Info("recreating indices", "object_types", types)

	backing := make(map[domain.ObjectType]string, len(types))
	for _, objectType := range types {
		name, err := t.indices.CreateBackingIndex(ctx, objectType)
		if err != nil {
			t.cleanup(ctx)
			return err
		}
		backing[objectType] = name
	}

	results, err := t.indexAll(ctx, sourceTypes(types), "", domain.IndexTargetReindexing)
	if err != nil {
		t.cleanup(ctx)
		return err
	}
	return t.FinishRecreateIndex(ctx, results, backing)
}

// FinishRecreateIndex completes a recreate. results holds one entry per
// indexed chunk, "" on success or an error description. On any error the new
// indices are discarded and a *domain.ReindexError returned; otherwise each
// backing index becomes the default index of its type.
func (t *IndexTasks) FinishRecreateIndex(ctx context.Context, results []string, backingIndices map[domain.ObjectType]string) error {
	var failures []string
	for _, r := range results {
		if r != "" {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		t.cleanup(ctx)
		return &domain.ReindexError{
			Op:      "recreate_index",
			Message: "errors occurred during recreate_index: " + strings.Join(failures, ", "),
		}
	}

	for _, objectType := range domain.IndexedObjectTypes {
		index, ok := backingIndices[objectType]
		if !ok {
			continue
		}
		if err := t.indices.SwitchIndices(ctx, index, objectType); err != nil {
			return err
		}
	}

	t.logger.Info("recreate index complete", "indices", len(backingIndices), "chunks", len(results))
	return nil
}

// StartUpdateIndex re-indexes the existing entities of objectTypes into the
// current indices, optionally only those of one platform.
func (t *IndexTasks) StartUpdateIndex(ctx context.Context, objectTypes []domain.ObjectType, platform string) error {
	types := indexTypes(objectTypes)
	if len(types) == 0 {
		return fmt.Errorf("%w: no object types to update", domain.ErrInvalidInput)
	}

	t.logger.Info("updating indices", "object_types", types, "platform", platform)

	results, err := t.indexAll(ctx, sourceTypes(types), platform, domain.IndexTargetCurrent)
	if err != nil {
		return err
	}

	var failures []string
	for _, r := range results {
		if r != "" {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		return &domain.ReindexError{
			Op:      "update_index",
			Message: "errors occurred during update_index: " + strings.Join(failures, ", "),
		}
	}
	return nil
}

// indexAll indexes every entity of objectTypes in chunks, at most
// t.concurrency chunks at a time, and returns one result per chunk.
func (t *IndexTasks) indexAll(ctx context.Context, objectTypes []domain.ObjectType, platform string, target domain.IndexTarget) ([]string, error) {
	var jobs []chunkJob
	for _, objectType := range objectTypes {
		ids, err := t.store.ListIDs(ctx, objectType, platform)
		if err != nil {
			return nil, domain.Retryable(fmt.Errorf("list %s ids: %w", objectType, err))
		}
		for _, chunk := range chunked(ids, t.indexer.ChunkSize()) {
			jobs = append(jobs, chunkJob{objectType: objectType, ids: chunk})
		}
	}

	results := make([]string, len(jobs))
	var g errgroup.Group
	g.SetLimit(t.concurrency)
	for i, job := range jobs {
		g.Go(func() error {
			err := ctx.Err()
			if err == nil {
				err = t.indexTo(ctx, job.objectType, job.ids, target)
			}
			if err != nil {
				t.logger.Error("index chunk failed",
					"object_type", job.objectType, "first_id", job.ids[0], "count", len(job.ids), "error", err)
				results[i] = fmt.Sprintf("index %s %s (+%d): %v", job.objectType, job.ids[0], len(job.ids)-1, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (t *IndexTasks) cleanup(ctx context.Context) {
	if err := t.indices.DeleteOrphanedIndices(context.WithoutCancel(ctx)); err != nil {
		t.logger.Error("failed to delete orphaned indices", "error", err)
	}
}

// indexTypes maps object types to the types owning their index, deduplicated.
func indexTypes(objectTypes []domain.ObjectType) []domain.ObjectType {
	seen := make(map[domain.ObjectType]bool)
	var out []domain.ObjectType
	for _, t := range objectTypes {
		it := t.IndexType()
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

// sourceTypes lists the entity types stored in the indices of objectTypes.
func sourceTypes(objectTypes []domain.ObjectType) []domain.ObjectType {
	out := make([]domain.ObjectType, 0, len(objectTypes)+1)
	for _, t := range objectTypes {
		out = append(out, t)
		if t == domain.ObjectTypeCourse {
			out = append(out, domain.ObjectTypeResourceFile)
		}
	}
	return out
}
