package driving

import (
	"context"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// SearchService runs permission-filtered searches. The principal is always
// passed explicitly; nil means anonymous.
type SearchService interface {
	// ExecuteSearch runs a caller-supplied query against the global alias
	ExecuteSearch(ctx context.Context, user *domain.Principal, query domain.Query) (domain.SearchResponse, error)

	// FindRelatedDocuments returns posts similar to the given post
	FindRelatedDocuments(ctx context.Context, user *domain.Principal, postID string) (domain.SearchResponse, error)

	// FindSimilarResources returns learning resources similar to a seed resource
	FindSimilarResources(ctx context.Context, user *domain.Principal, seed domain.SimilarResourceRequest) ([]map[string]any, error)
}

// IndexService schedules index maintenance
type IndexService interface {
	// ScheduleRecreateIndex enqueues a rebuild of the given object types' indices
	ScheduleRecreateIndex(ctx context.Context, objectTypes []domain.ObjectType) (*domain.Task, error)

	// ScheduleUpdateIndex enqueues an in-place refresh of existing documents
	ScheduleUpdateIndex(ctx context.Context, objectTypes []domain.ObjectType, platform string) (*domain.Task, error)

	// GetTask returns the state of a scheduled task
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)
}
