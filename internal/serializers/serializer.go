// Package serializers converts content store entities into search documents,
// one serializer per object type.
package serializers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
	"github.com/custodia-labs/discussion-search/internal/normalisers"
)

// ErrUnexpectedEntity is returned when a serializer receives an entity of the wrong type
var ErrUnexpectedEntity = errors.New("unexpected entity type")

// DefaultMaxDocumentSize bounds the encoded size of a content file document
const DefaultMaxDocumentSize = 10 * 1024 * 1024

// Serializer converts one entity into a search document.
type Serializer interface {
	ObjectType() domain.ObjectType

	// DocumentID returns the stable document id of entity
	DocumentID(entity any) (string, error)

	// Serialize returns the document fields of entity
	Serialize(entity any) (domain.Document, error)
}

// Router is implemented by serializers whose documents are routed to the
// shard of a parent document.
type Router interface {
	Routing(entity any) (string, error)
}

// loader fetches entities of one object type by natural id.
type loader func(ctx context.Context, store driven.ContentStore, ids []string) ([]any, error)

// Config configures the serializer registry
type Config struct {
	Normalisers driven.NormaliserRegistry

	// MaxDocumentSize is the maximum encoded size of a content file document.
	// Longer content is truncated to fit.
	MaxDocumentSize int

	Logger *slog.Logger
}

// Registry dispatches serialization by object type.
type Registry struct {
	serializers map[domain.ObjectType]Serializer
	loaders     map[domain.ObjectType]loader
	logger      *slog.Logger
}

// NewRegistry creates a registry with a serializer for every object type.
func NewRegistry(cfg Config) *Registry {
	if cfg.Normalisers == nil {
		cfg.Normalisers = normalisers.DefaultRegistry()
	}
	if cfg.MaxDocumentSize <= 0 {
		cfg.MaxDocumentSize = DefaultMaxDocumentSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	text := plainTexter{registry: cfg.Normalisers}
	r := &Registry{
		serializers: make(map[domain.ObjectType]Serializer),
		loaders:     make(map[domain.ObjectType]loader),
		logger:      cfg.Logger,
	}

	r.register(&PostSerializer{text: text}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetPosts(ctx, ids)
		return asAny(items, err)
	})
	r.register(&CommentSerializer{text: text}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetComments(ctx, ids)
		return asAny(items, err)
	})
	r.register(&ProfileSerializer{}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetProfiles(ctx, ids)
		return asAny(items, err)
	})
	r.register(&CourseSerializer{}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetCourses(ctx, ids)
		return asAny(items, err)
	})
	r.register(&ProgramSerializer{}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetPrograms(ctx, ids)
		return asAny(items, err)
	})
	r.register(&VideoSerializer{}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetVideos(ctx, ids)
		return asAny(items, err)
	})
	r.register(&PodcastSerializer{}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetPodcasts(ctx, ids)
		return asAny(items, err)
	})
	r.register(&PodcastEpisodeSerializer{}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetPodcastEpisodes(ctx, ids)
		return asAny(items, err)
	})
	userLists := func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetUserLists(ctx, ids)
		return asAny(items, err)
	}
	r.register(&UserListSerializer{objectType: domain.ObjectTypeUserList}, userLists)
	r.register(&UserListSerializer{objectType: domain.ObjectTypeLearningPath}, userLists)
	r.register(&UserListSerializer{objectType: domain.ObjectTypeStaffList}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetStaffLists(ctx, ids)
		return asAny(items, err)
	})
	r.register(&ContentFileSerializer{maxSize: cfg.MaxDocumentSize}, func(ctx context.Context, s driven.ContentStore, ids []string) ([]any, error) {
		items, err := s.GetContentFiles(ctx, ids)
		return asAny(items, err)
	})

	return r
}

// Default creates a registry with the default normalisers and size limit.
func Default() *Registry {
	return NewRegistry(Config{})
}

func (r *Registry) register(s Serializer, load loader) {
	r.serializers[s.ObjectType()] = s
	r.loaders[s.ObjectType()] = load
}

// Get returns the serializer for an object type.
func (r *Registry) Get(objectType domain.ObjectType) (Serializer, error) {
	s, ok := r.serializers[objectType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownObjectType, objectType)
	}
	return s, nil
}

// Serialize serializes a single entity.
func (r *Registry) Serialize(objectType domain.ObjectType, entity any) (domain.Document, error) {
	s, err := r.Get(objectType)
	if err != nil {
		return nil, err
	}
	return s.Serialize(entity)
}

// DocumentID returns the document id of a single entity.
func (r *Registry) DocumentID(objectType domain.ObjectType, entity any) (string, error) {
	s, err := r.Get(objectType)
	if err != nil {
		return "", err
	}
	return s.DocumentID(entity)
}

// SerializeForBulk serializes entity into a bulk document carrying "_id"
// and, for routed types, "_routing".
func (r *Registry) SerializeForBulk(objectType domain.ObjectType, entity any) (domain.Document, error) {
	s, err := r.Get(objectType)
	if err != nil {
		return nil, err
	}
	id, err := s.DocumentID(entity)
	if err != nil {
		return nil, err
	}
	doc, err := s.Serialize(entity)
	if err != nil {
		return nil, err
	}
	doc = doc.WithID(id)
	if router, ok := s.(Router); ok {
		routing, err := router.Routing(entity)
		if err != nil {
			return nil, err
		}
		doc[domain.DocKeyRouting] = routing
	}
	return doc, nil
}

// SerializeBulk loads the entities with the given natural ids and serializes
// them for bulk submission. Ids with no entity are skipped.
func (r *Registry) SerializeBulk(ctx context.Context, store driven.ContentStore, objectType domain.ObjectType, ids []string) ([]domain.Document, error) {
	load, ok := r.loaders[objectType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownObjectType, objectType)
	}
	entities, err := load(ctx, store, ids)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", objectType, err)
	}

	docs := make([]domain.Document, 0, len(entities))
	for _, entity := range entities {
		// user lists and learning paths share a table but not an index
		if list, ok := entity.(*domain.UserList); ok && list.ObjectType() != objectType {
			r.logger.Debug("skipping list of another object type",
				"object_type", objectType, "list_id", list.ID, "list_type", list.ListType)
			continue
		}
		doc, err := r.SerializeForBulk(objectType, entity)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SerializeBulkDeletes builds bulk deletions for document ids.
func SerializeBulkDeletes(docIDs []string) []domain.Document {
	docs := make([]domain.Document, len(docIDs))
	for i, id := range docIDs {
		docs[i] = domain.DeleteDocument(id)
	}
	return docs
}

func asAny[T any](items []*T, err error) ([]any, error) {
	if err != nil {
		return nil, err
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out, nil
}

func unexpected(objectType domain.ObjectType, entity any) error {
	return fmt.Errorf("%w: %s serializer got %T", ErrUnexpectedEntity, objectType, entity)
}

// isoTime formats t for a date field, or nil when t is unset.
func isoTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func isoTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return isoTime(*t)
}

// strs returns s, or an empty slice so the field encodes as [] rather than null.
func strs(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// plainTexter derives plain_text fields through the normaliser registry.
type plainTexter struct {
	registry driven.NormaliserRegistry
}

func (p plainTexter) markdown(content string) string {
	return p.normalise(content, normalisers.MIMEMarkdown)
}

func (p plainTexter) html(content string) string {
	return p.normalise(content, normalisers.MIMEHTML)
}

func (p plainTexter) normalise(content, mimeType string) string {
	if n := p.registry.Get(mimeType); n != nil {
		return n.Normalise(content, mimeType)
	}
	return content
}
