// Package elasticsearch implements the SearchEngine port on Elasticsearch 8.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SearchEngine = (*SearchEngine)(nil)

// Config holds Elasticsearch connection configuration
type Config struct {
	// URL is the cluster endpoint (e.g., http://localhost:9200)
	URL string

	// Basic auth credentials, or an API key
	Username string
	Password string
	APIKey   string

	// Timeout bounds each request
	Timeout time.Duration

	// Transport replaces the default HTTP transport when set
	Transport http.RoundTripper
}

// DefaultConfig returns sensible defaults
func DefaultConfig(url string) Config {
	return Config{
		URL:     url,
		Timeout: 60 * time.Second,
	}
}

// SearchEngine implements driven.SearchEngine using go-elasticsearch
type SearchEngine struct {
	client  *es.Client
	timeout time.Duration
}

// NewSearchEngine creates a new Elasticsearch-backed SearchEngine
func NewSearchEngine(cfg Config) (*SearchEngine, error) {
	client, err := es.NewClient(es.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &SearchEngine{client: client, timeout: cfg.Timeout}, nil
}

func (s *SearchEngine) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := encode(body)
	if err != nil {
		return err
	}
	res, err := s.client.Indices.Create(index,
		s.client.Indices.Create.WithBody(r),
		s.client.Indices.Create.WithContext(ctx),
	)
	return check("create index "+index, res, err, nil)
}

func (s *SearchEngine) DeleteIndex(ctx context.Context, indices ...string) error {
	if len(indices) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.Delete(indices,
		s.client.Indices.Delete.WithIgnoreUnavailable(true),
		s.client.Indices.Delete.WithContext(ctx),
	)
	return check("delete index", res, err, nil)
}

func (s *SearchEngine) IndexExists(ctx context.Context, index string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.Exists([]string{index}, s.client.Indices.Exists.WithContext(ctx))
	return exists("index exists "+index, res, err)
}

func (s *SearchEngine) AliasExists(ctx context.Context, alias string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.ExistsAlias([]string{alias}, s.client.Indices.ExistsAlias.WithContext(ctx))
	return exists("alias exists "+alias, res, err)
}

func (s *SearchEngine) GetAliasIndices(ctx context.Context, alias string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.GetAlias(
		s.client.Indices.GetAlias.WithName(alias),
		s.client.Indices.GetAlias.WithContext(ctx),
	)
	var resp map[string]json.RawMessage
	if err := check("get alias "+alias, res, err, &resp); err != nil {
		return nil, err
	}

	indices := make([]string, 0, len(resp))
	for name := range resp {
		indices = append(indices, name)
	}
	sort.Strings(indices)
	return indices, nil
}

func (s *SearchEngine) ListIndices(ctx context.Context, pattern string) (map[string][]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.GetAlias(
		s.client.Indices.GetAlias.WithIndex(pattern),
		s.client.Indices.GetAlias.WithContext(ctx),
	)
	var resp map[string]struct {
		Aliases map[string]json.RawMessage `json:"aliases"`
	}
	if err := check("list indices "+pattern, res, err, &resp); err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(resp))
	for index, entry := range resp {
		aliases := make([]string, 0, len(entry.Aliases))
		for alias := range entry.Aliases {
			aliases = append(aliases, alias)
		}
		sort.Strings(aliases)
		out[index] = aliases
	}
	return out, nil
}

func (s *SearchEngine) UpdateAliases(ctx context.Context, actions []domain.AliasAction) error {
	if len(actions) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	body := make([]map[string]domain.AliasAction, 0, len(actions))
	for _, a := range actions {
		op := "add"
		if a.Remove {
			op = "remove"
		}
		body = append(body, map[string]domain.AliasAction{op: a})
	}
	r, err := encode(map[string]any{"actions": body})
	if err != nil {
		return err
	}

	res, err := s.client.Indices.UpdateAliases(r, s.client.Indices.UpdateAliases.WithContext(ctx))
	return check("update aliases", res, err, nil)
}

func (s *SearchEngine) PutAlias(ctx context.Context, index, alias string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.PutAlias([]string{index}, alias, s.client.Indices.PutAlias.WithContext(ctx))
	return check("put alias "+alias, res, err, nil)
}

func (s *SearchEngine) DeleteAlias(ctx context.Context, index, alias string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.DeleteAlias([]string{index}, []string{alias},
		s.client.Indices.DeleteAlias.WithContext(ctx))
	return check("delete alias "+alias, res, err, nil)
}

func (s *SearchEngine) Refresh(ctx context.Context, index string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithIndex(index),
		s.client.Indices.Refresh.WithContext(ctx),
	)
	return check("refresh "+index, res, err, nil)
}

// bulkResponse is the part of a bulk response needed to find failed items
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Index  string `json:"_index"`
		Status int    `json:"status"`
		Result string `json:"result"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Bulk sends docs as one NDJSON bulk request. Every non-2xx item is
// returned, including deletions of absent documents.
func (s *SearchEngine) Bulk(ctx context.Context, alias string, docs []domain.Document) ([]domain.BulkItemError, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		if err := enc.Encode(doc.BulkAction()); err != nil {
			return nil, fmt.Errorf("encode bulk metadata: %w", err)
		}
		if doc.OpType() == domain.OpTypeDelete {
			continue
		}
		if err := enc.Encode(doc.Source()); err != nil {
			return nil, fmt.Errorf("encode document %s: %w", doc.ID(), err)
		}
	}

	res, err := s.client.Bulk(&buf,
		s.client.Bulk.WithIndex(alias),
		s.client.Bulk.WithContext(ctx),
	)
	var resp bulkResponse
	if err := check("bulk "+alias, res, err, &resp); err != nil {
		return nil, err
	}

	var failed []domain.BulkItemError
	for _, item := range resp.Items {
		for op, r := range item {
			if r.Status < 300 {
				continue
			}
			itemErr := domain.BulkItemError{
				Op:     op,
				ID:     r.ID,
				Index:  r.Index,
				Status: r.Status,
				Result: r.Result,
			}
			if r.Error != nil {
				itemErr.Type = r.Error.Type
				itemErr.Reason = r.Error.Reason
			}
			failed = append(failed, itemErr)
		}
	}
	return failed, nil
}

func (s *SearchEngine) UpdateDocument(ctx context.Context, alias, docID string, body map[string]any, retryOnConflict int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := encode(body)
	if err != nil {
		return err
	}
	opts := []func(*esapi.UpdateRequest){s.client.Update.WithContext(ctx)}
	if retryOnConflict > 0 {
		opts = append(opts, s.client.Update.WithRetryOnConflict(retryOnConflict))
	}

	res, err := s.client.Update(alias, docID, r, opts...)
	return check("update "+docID, res, err, nil)
}

func (s *SearchEngine) UpdateByQuery(ctx context.Context, alias string, body map[string]any) (*domain.UpdateByQueryResult, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := encode(body)
	if err != nil {
		return nil, err
	}
	res, err := s.client.UpdateByQuery([]string{alias},
		s.client.UpdateByQuery.WithBody(r),
		s.client.UpdateByQuery.WithContext(ctx),
	)
	var resp struct {
		Total            int               `json:"total"`
		Updated          int               `json:"updated"`
		VersionConflicts int               `json:"version_conflicts"`
		Failures         []json.RawMessage `json:"failures"`
	}
	if err := check("update by query "+alias, res, err, &resp); err != nil {
		return nil, err
	}
	return &domain.UpdateByQueryResult{
		Total:            resp.Total,
		Updated:          resp.Updated,
		VersionConflicts: resp.VersionConflicts,
		Failures:         len(resp.Failures),
	}, nil
}

func (s *SearchEngine) Search(ctx context.Context, alias string, body domain.Query) (map[string]any, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	r, err := encode(body)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Search(
		s.client.Search.WithIndex(alias),
		s.client.Search.WithBody(r),
		s.client.Search.WithContext(ctx),
	)
	var resp map[string]any
	if err := check("search "+alias, res, err, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// HealthCheck fails when the cluster is unreachable or red.
func (s *SearchEngine) HealthCheck(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := s.client.Cluster.Health(s.client.Cluster.Health.WithContext(ctx))
	var resp struct {
		Status string `json:"status"`
	}
	if err := check("cluster health", res, err, &resp); err != nil {
		return err
	}
	if resp.Status == "red" {
		return fmt.Errorf("%w: cluster status red", domain.ErrServiceUnavailable)
	}
	return nil
}

func (s *SearchEngine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// check turns a failed request into a retryable error and a non-2xx response
// into a *domain.StoreError. On success the body is decoded into out, if given.
func check(op string, res *esapi.Response, err error, out any) error {
	if err != nil {
		return domain.Retryable(fmt.Errorf("%s: %w", op, err))
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return &domain.StoreError{Op: op, StatusCode: res.StatusCode, Body: string(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// exists interprets a HEAD response: 200 is true, 404 is false.
func exists(op string, res *esapi.Response, err error) (bool, error) {
	if err != nil {
		return false, domain.Retryable(fmt.Errorf("%s: %w", op, err))
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, &domain.StoreError{Op: op, StatusCode: res.StatusCode}
	}
}

func encode(v any) (io.Reader, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return &buf, nil
}
