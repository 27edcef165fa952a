package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
	"github.com/custodia-labs/discussion-search/internal/serializers"
)

// Defaults for IndexTasksConfig
const (
	DefaultReindexConcurrency = 4
	DefaultReindexLockTTL     = 2 * time.Hour
)

// IndexTasksConfig holds dependencies for IndexTasks.
type IndexTasksConfig struct {
	Store       driven.ContentStore
	Serializers *serializers.Registry
	Indexer     *Indexer
	Indices     *IndexManager
	Lock        driven.DistributedLock

	// ReindexConcurrency bounds how many chunks a recreate indexes at once
	ReindexConcurrency int

	// ReindexLockTTL is how long a recreate may hold the reindex lock
	ReindexLockTTL time.Duration

	Logger *slog.Logger
}

// IndexTasks are the units of indexing work the worker runs: chunked
// (de)indexing, single upserts and full index recreation.
type IndexTasks struct {
	store       driven.ContentStore
	serializers *serializers.Registry
	indexer     *Indexer
	indices     *IndexManager
	lock        driven.DistributedLock
	concurrency int
	lockTTL     time.Duration
	logger      *slog.Logger
}

// NewIndexTasks creates the index task set.
func NewIndexTasks(cfg IndexTasksConfig) *IndexTasks {
	if cfg.Serializers == nil {
		cfg.Serializers = serializers.Default()
	}
	if cfg.ReindexConcurrency <= 0 {
		cfg.ReindexConcurrency = DefaultReindexConcurrency
	}
	if cfg.ReindexLockTTL <= 0 {
		cfg.ReindexLockTTL = DefaultReindexLockTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &IndexTasks{
		store:       cfg.Store,
		serializers: cfg.Serializers,
		indexer:     cfg.Indexer,
		indices:     cfg.Indices,
		lock:        cfg.Lock,
		concurrency: cfg.ReindexConcurrency,
		lockTTL:     cfg.ReindexLockTTL,
		logger:      logger,
	}
}

// IndexDocuments serializes the entities with natural ids and indexes them.
func (t *IndexTasks) IndexDocuments(ctx context.Context, objectType domain.ObjectType, ids []string, updateOnly bool) error {
	target := domain.IndexTargetAll
	if updateOnly {
		target = domain.IndexTargetCurrent
	}
	return t.indexTo(ctx, objectType, ids, target)
}

func (t *IndexTasks) indexTo(ctx context.Context, objectType domain.ObjectType, ids []string, target domain.IndexTarget) error {
	docs, err := t.load(ctx, objectType, ids)
	if err != nil {
		return err
	}
	return t.indexer.IndexItemsTo(ctx, docs, objectType, target)
}

// load serializes entities for bulk submission. Store failures are retryable.
func (t *IndexTasks) load(ctx context.Context, objectType domain.ObjectType, ids []string) ([]domain.Document, error) {
	if !objectType.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownObjectType, objectType)
	}
	docs, err := t.serializers.SerializeBulk(ctx, t.store, objectType, ids)
	if err != nil {
		return nil, domain.Retryable(err)
	}
	return docs, nil
}

func (t *IndexTasks) IndexPosts(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypePost, ids, updateOnly)
}

func (t *IndexTasks) IndexComments(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypeComment, ids, updateOnly)
}

func (t *IndexTasks) IndexProfiles(ctx context.Context, usernames []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypeProfile, usernames, updateOnly)
}

func (t *IndexTasks) IndexCourses(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypeCourse, ids, updateOnly)
}

func (t *IndexTasks) IndexPrograms(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypeProgram, ids, updateOnly)
}

func (t *IndexTasks) IndexVideos(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypeVideo, ids, updateOnly)
}

func (t *IndexTasks) IndexPodcasts(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypePodcast, ids, updateOnly)
}

func (t *IndexTasks) IndexPodcastEpisodes(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypePodcastEpisode, ids, updateOnly)
}

// IndexUserLists indexes user lists and learning paths, each into its own index.
func (t *IndexTasks) IndexUserLists(ctx context.Context, ids []string, updateOnly bool) error {
	if err := t.IndexDocuments(ctx, domain.ObjectTypeUserList, ids, updateOnly); err != nil {
		return err
	}
	return t.IndexDocuments(ctx, domain.ObjectTypeLearningPath, ids, updateOnly)
}

func (t *IndexTasks) IndexStaffLists(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypeStaffList, ids, updateOnly)
}

// IndexContentFiles indexes course content files into the course index.
func (t *IndexTasks) IndexContentFiles(ctx context.Context, ids []string, updateOnly bool) error {
	return t.IndexDocuments(ctx, domain.ObjectTypeResourceFile, ids, updateOnly)
}

// UpsertDocument creates or updates the document of a single entity. An
// entity missing from the store yields domain.ErrNotFound: the write that
// scheduled the upsert may not be visible yet.
func (t *IndexTasks) UpsertDocument(ctx context.Context, objectType domain.ObjectType, id string) error {
	if objectType == domain.ObjectTypeResourceFile {
		// routed documents go through the bulk path, which carries routing
		return t.IndexContentFiles(ctx, []string{id}, false)
	}

	docs, err := t.load(ctx, objectType, []string{id})
	if err != nil {
		return err
	}
	for _, doc := range docs {
		if err := t.indexer.UpsertDocument(ctx, doc, objectType, DefaultRetryOnConflict); err != nil {
			return err
		}
	}
	if len(docs) == 0 {
		return fmt.Errorf("upsert %s %s: %w", objectType, id, domain.ErrNotFound)
	}
	return nil
}

func (t *IndexTasks) UpsertPost(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypePost, id)
}

func (t *IndexTasks) UpsertComment(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypeComment, id)
}

func (t *IndexTasks) UpsertProfile(ctx context.Context, username string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypeProfile, username)
}

func (t *IndexTasks) UpsertCourse(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypeCourse, id)
}

func (t *IndexTasks) UpsertProgram(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypeProgram, id)
}

func (t *IndexTasks) UpsertVideo(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypeVideo, id)
}

func (t *IndexTasks) UpsertPodcast(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypePodcast, id)
}

func (t *IndexTasks) UpsertPodcastEpisode(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypePodcastEpisode, id)
}

// UpsertUserList upserts a user list or learning path, whichever it is.
func (t *IndexTasks) UpsertUserList(ctx context.Context, id string) error {
	listErr := t.UpsertDocument(ctx, domain.ObjectTypeUserList, id)
	if listErr != nil && !errors.Is(listErr, domain.ErrNotFound) {
		return listErr
	}
	pathErr := t.UpsertDocument(ctx, domain.ObjectTypeLearningPath, id)
	if pathErr != nil && !errors.Is(pathErr, domain.ErrNotFound) {
		return pathErr
	}
	if listErr != nil && pathErr != nil {
		return listErr
	}
	return nil
}

func (t *IndexTasks) UpsertStaffList(ctx context.Context, id string) error {
	return t.UpsertDocument(ctx, domain.ObjectTypeStaffList, id)
}

// DeindexDocuments removes documents by document id.
func (t *IndexTasks) DeindexDocuments(ctx context.Context, objectType domain.ObjectType, docIDs []string) error {
	return t.indexer.DeindexItems(ctx, serializers.SerializeBulkDeletes(docIDs), objectType, false)
}

// DeindexDocument removes a single document by document id.
func (t *IndexTasks) DeindexDocument(ctx context.Context, docID string, objectType domain.ObjectType) error {
	return t.indexer.DeindexDocument(ctx, docID, objectType)
}

// DeindexContentFiles removes content files by natural id. Their deletions
// need the parent course routing, so the files are loaded from the store.
func (t *IndexTasks) DeindexContentFiles(ctx context.Context, ids []string) error {
	docs, err := t.load(ctx, domain.ObjectTypeResourceFile, ids)
	if err != nil {
		return err
	}
	deletes := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		d := domain.DeleteDocument(doc.ID())
		d[domain.DocKeyRouting] = doc.Routing()
		deletes = append(deletes, d)
	}
	return t.indexer.DeindexItems(ctx, deletes, domain.ObjectTypeResourceFile, false)
}

// RunTask executes a queued task.
func (t *IndexTasks) RunTask(ctx context.Context, task *domain.Task) error {
	switch task.Type {
	case domain.TaskTypeIndexDocuments:
		objectType, err := taskObjectType(task)
		if err != nil {
			return err
		}
		return t.IndexDocuments(ctx, objectType, task.IDs(), task.UpdateOnly())

	case domain.TaskTypeDeindexDocuments:
		objectType, err := taskObjectType(task)
		if err != nil {
			return err
		}
		if objectType == domain.ObjectTypeResourceFile {
			return t.DeindexContentFiles(ctx, task.IDs())
		}
		return t.DeindexDocuments(ctx, objectType, task.IDs())

	case domain.TaskTypeUpsertDocument:
		objectType, err := taskObjectType(task)
		if err != nil {
			return err
		}
		upsert := func(id string) error { return t.UpsertDocument(ctx, objectType, id) }
		if objectType == domain.ObjectTypeUserList || objectType == domain.ObjectTypeLearningPath {
			upsert = func(id string) error { return t.UpsertUserList(ctx, id) }
		}
		for _, id := range task.IDs() {
			if err := upsert(id); err != nil {
				return err
			}
		}
		return nil

	case domain.TaskTypeRecreateIndex:
		types, err := task.ObjectTypes()
		if err != nil {
			return err
		}
		return t.StartRecreateIndex(ctx, types)

	case domain.TaskTypeUpdateIndex:
		types, err := task.ObjectTypes()
		if err != nil {
			return err
		}
		return t.StartUpdateIndex(ctx, types, task.Platform())

	case domain.TaskTypeUpdateDocuments:
		objectType, err := taskObjectType(task)
		if err != nil {
			return err
		}
		fields, err := task.Fields()
		if err != nil {
			return err
		}
		for _, docID := range task.IDs() {
			if err := t.indexer.UpdateDocumentWithPartial(ctx, docID, fields, objectType, DefaultRetryOnConflict); err != nil {
				return err
			}
		}
		return nil

	case domain.TaskTypeIncrementField:
		objectType, err := taskObjectType(task)
		if err != nil {
			return err
		}
		amount, err := task.Amount()
		if err != nil {
			return err
		}
		if task.Field() == "" {
			return fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, domain.PayloadField)
		}
		for _, docID := range task.IDs() {
			if err := t.indexer.IncrementDocumentIntegerField(ctx, docID, task.Field(), amount, objectType); err != nil {
				return err
			}
		}
		return nil

	case domain.TaskTypeUpdateByQuery:
		types, err := task.ObjectTypes()
		if err != nil {
			return err
		}
		query, err := task.Query()
		if err != nil {
			return err
		}
		fields, err := task.Fields()
		if err != nil {
			return err
		}
		return t.indexer.UpdateFieldValuesByQuery(ctx, query, fields, types)

	default:
		return fmt.Errorf("%w: unknown task type %q", domain.ErrInvalidInput, task.Type)
	}
}

func taskObjectType(task *domain.Task) (domain.ObjectType, error) {
	objectType := task.ObjectType()
	if !objectType.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownObjectType, objectType)
	}
	return objectType, nil
}
