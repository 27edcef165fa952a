package driven

import (
	"context"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// SearchEngine is the document store holding the search indices (Elasticsearch).
// Alias bindings are always read from the store; implementations must not cache them.
type SearchEngine interface {
	// CreateIndex creates an index with the given settings and mappings body
	CreateIndex(ctx context.Context, index string, body map[string]any) error

	// DeleteIndex deletes indices. Missing indices are ignored.
	DeleteIndex(ctx context.Context, indices ...string) error

	// IndexExists reports whether an index exists
	IndexExists(ctx context.Context, index string) (bool, error)

	// AliasExists reports whether an alias is bound to any index
	AliasExists(ctx context.Context, alias string) (bool, error)

	// GetAliasIndices returns the indices an alias currently points to
	GetAliasIndices(ctx context.Context, alias string) ([]string, error)

	// ListIndices returns every index matching pattern with the aliases bound to it
	ListIndices(ctx context.Context, pattern string) (map[string][]string, error)

	// UpdateAliases applies add/remove actions in a single atomic request
	UpdateAliases(ctx context.Context, actions []domain.AliasAction) error

	// PutAlias binds an alias to an index
	PutAlias(ctx context.Context, index, alias string) error

	// DeleteAlias unbinds an alias from an index
	DeleteAlias(ctx context.Context, index, alias string) error

	// Refresh makes recent writes to an index searchable
	Refresh(ctx context.Context, index string) error

	// Bulk writes documents to an alias in one request and returns the failed items.
	// Deletions of absent documents are reported as items with result "not_found".
	Bulk(ctx context.Context, alias string, docs []domain.Document) ([]domain.BulkItemError, error)

	// UpdateDocument applies a partial update body ({"doc": ...} or {"script": ...})
	UpdateDocument(ctx context.Context, alias, docID string, body map[string]any, retryOnConflict int) error

	// UpdateByQuery runs a scripted update over the documents matching the body's query
	UpdateByQuery(ctx context.Context, alias string, body map[string]any) (*domain.UpdateByQueryResult, error)

	// Search runs a query DSL body against an alias and returns the decoded response
	Search(ctx context.Context, alias string, body domain.Query) (map[string]any, error)

	// HealthCheck verifies the store is reachable
	HealthCheck(ctx context.Context) error
}
