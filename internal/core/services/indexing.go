package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// Defaults for IndexerConfig
const (
	DefaultChunkSize       = 100
	DefaultMaxRequestSize  = 10 * 1024 * 1024
	DefaultRetryOnConflict = 0
)

// IndexerConfig holds dependencies for Indexer.
type IndexerConfig struct {
	Engine  driven.SearchEngine
	Indices *IndexManager

	// ChunkSize is the number of documents per bulk request
	ChunkSize int

	// MaxRequestSize is the encoded size above which a chunk is split further
	MaxRequestSize int

	Logger *slog.Logger
}

// Indexer writes serialized documents to every active alias of their object type.
type Indexer struct {
	engine         driven.SearchEngine
	indices        *IndexManager
	chunkSize      int
	maxRequestSize int
	logger         *slog.Logger
}

// NewIndexer creates a new bulk indexer.
func NewIndexer(cfg IndexerConfig) *Indexer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = DefaultMaxRequestSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		engine:         cfg.Engine,
		indices:        cfg.Indices,
		chunkSize:      cfg.ChunkSize,
		maxRequestSize: cfg.MaxRequestSize,
		logger:         logger,
	}
}

// ChunkSize returns the configured bulk chunk size.
func (x *Indexer) ChunkSize() int {
	return x.chunkSize
}

// IndexItems indexes docs into the active aliases of objectType. With
// updateOnly the reindexing alias is skipped.
func (x *Indexer) IndexItems(ctx context.Context, docs []domain.Document, objectType domain.ObjectType, updateOnly bool) error {
	target := domain.IndexTargetAll
	if updateOnly {
		target = domain.IndexTargetCurrent
	}
	return x.IndexItemsTo(ctx, docs, objectType, target)
}

// IndexItemsTo indexes docs into the aliases of objectType selected by target.
// Docs are split into count-based chunks, and chunks over the request size
// limit are split again. Any failed item aborts with a *domain.ReindexError.
func (x *Indexer) IndexItemsTo(ctx context.Context, docs []domain.Document, objectType domain.ObjectType, target domain.IndexTarget) error {
	aliases, err := x.indices.GetActiveAliases(ctx, []domain.ObjectType{objectType}, target)
	if err != nil {
		return err
	}
	if len(aliases) == 0 {
		x.logger.Warn("no active aliases, skipping index",
			"object_type", objectType, "target", target, "count", len(docs))
		return nil
	}

	for _, chunk := range chunked(docs, x.chunkSize) {
		if err := x.indexChunk(ctx, chunk, objectType, aliases); err != nil {
			return err
		}
	}
	return nil
}

// indexChunk writes one chunk to each alias, splitting it while it exceeds
// the request size limit. A single document over the limit is logged and skipped.
func (x *Indexer) indexChunk(ctx context.Context, chunk []domain.Document, objectType domain.ObjectType, aliases []string) error {
	size, err := requestSize(chunk)
	if err != nil {
		return err
	}

	if size > x.maxRequestSize {
		if len(chunk) == 1 {
			x.logger.Error("document exceeds max request size, skipping",
				"object_type", objectType, "doc_id", chunk[0].ID(),
				"size", size, "max_request_size", x.maxRequestSize)
			return nil
		}
		for _, sub := range chunked(chunk, subChunkSize(len(chunk), size, x.maxRequestSize)) {
			if err := x.indexChunk(ctx, sub, objectType, aliases); err != nil {
				return err
			}
		}
		return nil
	}

	for _, alias := range aliases {
		itemErrors, err := x.engine.Bulk(ctx, alias, chunk)
		if err != nil {
			return fmt.Errorf("bulk index %s into %s: %w", objectType, alias, err)
		}
		if len(itemErrors) > 0 {
			return &domain.ReindexError{ObjectType: objectType, Op: "index", Errors: itemErrors}
		}
	}
	return nil
}

// DeindexItems deletes docs from the active aliases of objectType. Documents
// that are already gone are not an error; any other item failure is.
func (x *Indexer) DeindexItems(ctx context.Context, docs []domain.Document, objectType domain.ObjectType, updateOnly bool) error {
	target := domain.IndexTargetAll
	if updateOnly {
		target = domain.IndexTargetCurrent
	}
	aliases, err := x.indices.GetActiveAliases(ctx, []domain.ObjectType{objectType}, target)
	if err != nil {
		return err
	}

	for _, chunk := range chunked(docs, x.chunkSize) {
		for _, alias := range aliases {
			itemErrors, err := x.engine.Bulk(ctx, alias, chunk)
			if err != nil {
				return fmt.Errorf("bulk delete %s from %s: %w", objectType, alias, err)
			}

			var fatal []domain.BulkItemError
			for _, item := range itemErrors {
				if !item.IsNotFound() {
					fatal = append(fatal, item)
				}
			}
			if len(fatal) > 0 {
				return &domain.ReindexError{ObjectType: objectType, Op: "delete", Errors: fatal}
			}
		}
	}
	return nil
}

// DeindexDocument deletes a single document from every active alias of objectType.
func (x *Indexer) DeindexDocument(ctx context.Context, docID string, objectType domain.ObjectType) error {
	return x.DeindexItems(ctx, []domain.Document{domain.DeleteDocument(docID)}, objectType, false)
}

// UpsertDocument creates or replaces the fields of a single document in
// every active alias of objectType.
func (x *Indexer) UpsertDocument(ctx context.Context, doc domain.Document, objectType domain.ObjectType, retryOnConflict int) error {
	body := map[string]any{"doc": doc.Source(), "doc_as_upsert": true}
	return x.updateAll(ctx, doc.ID(), body, objectType, retryOnConflict)
}

// UpdateDocumentWithPartial merges partial into an existing document.
func (x *Indexer) UpdateDocumentWithPartial(ctx context.Context, docID string, partial map[string]any, objectType domain.ObjectType, retryOnConflict int) error {
	return x.updateAll(ctx, docID, map[string]any{"doc": partial}, objectType, retryOnConflict)
}

// IncrementDocumentIntegerField adds amount to an integer field of a document.
func (x *Indexer) IncrementDocumentIntegerField(ctx context.Context, docID, field string, amount int, objectType domain.ObjectType) error {
	body := map[string]any{
		"script": map[string]any{
			"source": "ctx._source[params.field] += params.amount",
			"lang":   "painless",
			"params": map[string]any{"field": field, "amount": amount},
		},
	}
	return x.updateAll(ctx, docID, body, objectType, DefaultRetryOnConflict)
}

// UpdateFieldValuesByQuery sets fields on every document of objectTypes
// matching query. Version conflicts are logged and left for the next update.
func (x *Indexer) UpdateFieldValuesByQuery(ctx context.Context, query map[string]any, fields map[string]any, objectTypes []domain.ObjectType) error {
	aliases, err := x.indices.GetActiveAliases(ctx, objectTypes, domain.IndexTargetAll)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var source strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&source, "ctx._source.%s = params.%s;", k, k)
	}

	for _, alias := range aliases {
		body := map[string]any{
			"conflicts": "proceed",
			"query":     query,
			"script": map[string]any{
				"source": source.String(),
				"lang":   "painless",
				"params": fields,
			},
		}
		result, err := x.engine.UpdateByQuery(ctx, alias, body)
		if err != nil {
			return fmt.Errorf("update by query on %s: %w", alias, err)
		}
		if result.VersionConflicts > 0 {
			x.logger.Warn("version conflicts during update by query",
				"alias", alias, "conflicts", result.VersionConflicts, "updated", result.Updated)
		}
	}
	return nil
}

func (x *Indexer) updateAll(ctx context.Context, docID string, body map[string]any, objectType domain.ObjectType, retryOnConflict int) error {
	aliases, err := x.indices.GetActiveAliases(ctx, []domain.ObjectType{objectType}, domain.IndexTargetAll)
	if err != nil {
		return err
	}

	for _, alias := range aliases {
		err := x.engine.UpdateDocument(ctx, alias, docID, body, retryOnConflict)
		var storeErr *domain.StoreError
		switch {
		case err == nil:
		case errors.As(err, &storeErr) && storeErr.IsVersionConflict():
			x.logger.Warn("version conflict updating document",
				"alias", alias, "doc_id", docID, "error", err)
		default:
			return fmt.Errorf("update %s in %s: %w", docID, alias, err)
		}
	}
	return nil
}

// chunked splits docs into consecutive chunks of at most size.
func chunked[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	chunks := make([][]T, 0, (len(items)+size-1)/max(size, 1))
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// subChunkSize picks the size of the pieces an oversized chunk is split
// into: enough pieces for each to fit on average, and never the whole chunk.
func subChunkSize(count, size, maxSize int) int {
	pieces := ceilDiv(size, maxSize)
	return max(1, min(ceilDiv(count, pieces), count-1))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// requestSize is the size of docs as NDJSON bulk lines: the action line of
// each document, its source unless it is a delete, and their newlines.
func requestSize(docs []domain.Document) (int, error) {
	total := 0
	for _, d := range docs {
		action, err := json.Marshal(d.BulkAction())
		if err != nil {
			return 0, fmt.Errorf("encode bulk metadata %s: %w", d.ID(), err)
		}
		total += len(action) + 1
		if d.OpType() == domain.OpTypeDelete {
			continue
		}
		b, err := json.Marshal(d.Source())
		if err != nil {
			return 0, fmt.Errorf("encode document %s: %w", d.ID(), err)
		}
		total += len(b) + 1
	}
	return total, nil
}
