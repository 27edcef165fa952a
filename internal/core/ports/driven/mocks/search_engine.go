package mocks

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

var _ driven.SearchEngine = (*MockSearchEngine)(nil)

// MockSearchEngine is an in-memory document store for testing. It keeps
// indices, alias bindings and documents, and evaluates the subset of the
// query DSL the services emit (bool, term, terms, exists, ids, match,
// multi_match, more_like_this, match_all). Script fields are ignored.
type MockSearchEngine struct {
	mu      sync.RWMutex
	indices map[string]*mockIndex

	// Custom behavior hooks (optional)
	BulkFn          func(alias string, docs []domain.Document) ([]domain.BulkItemError, error)
	SearchFn        func(alias string, body domain.Query) (map[string]any, error)
	UpdateAliasesFn func(actions []domain.AliasAction) error
	UpdateFn        func(alias, docID string, body map[string]any) error
	HealthFn        func() error

	// Recorded calls
	BulkCalls    []BulkCall
	Searches     []SearchCall
	AliasUpdates [][]domain.AliasAction
	Updates      []UpdateCall
}

// BulkCall records one bulk request
type BulkCall struct {
	Alias string
	IDs   []string
}

// SearchCall records one search request
type SearchCall struct {
	Alias string
	Body  domain.Query
}

// UpdateCall records one single-document or by-query update
type UpdateCall struct {
	Alias string
	DocID string
	Body  map[string]any
}

type mockIndex struct {
	body      map[string]any
	aliases   map[string]struct{}
	docs      map[string]map[string]any
	refreshes int
}

// NewMockSearchEngine creates a new MockSearchEngine
func NewMockSearchEngine() *MockSearchEngine {
	return &MockSearchEngine{indices: make(map[string]*mockIndex)}
}

func (m *MockSearchEngine) CreateIndex(ctx context.Context, index string, body map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indices[index]; ok {
		return &domain.StoreError{Op: "create index", StatusCode: 400, Body: "resource_already_exists_exception"}
	}
	m.indices[index] = &mockIndex{
		body:    body,
		aliases: make(map[string]struct{}),
		docs:    make(map[string]map[string]any),
	}
	return nil
}

func (m *MockSearchEngine) DeleteIndex(ctx context.Context, indices ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range indices {
		delete(m.indices, name)
	}
	return nil
}

func (m *MockSearchEngine) IndexExists(ctx context.Context, index string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.indices[index]
	return ok, nil
}

func (m *MockSearchEngine) AliasExists(ctx context.Context, alias string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.aliasIndices(alias)) > 0, nil
}

func (m *MockSearchEngine) GetAliasIndices(ctx context.Context, alias string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	indices := m.aliasIndices(alias)
	if len(indices) == 0 {
		return nil, &domain.StoreError{Op: "get alias", StatusCode: 404, Body: "alias [" + alias + "] missing"}
	}
	return indices, nil
}

func (m *MockSearchEngine) ListIndices(ctx context.Context, pattern string) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string)
	for name, idx := range m.indices {
		if ok, _ := path.Match(pattern, name); !ok {
			continue
		}
		aliases := make([]string, 0, len(idx.aliases))
		for a := range idx.aliases {
			aliases = append(aliases, a)
		}
		sort.Strings(aliases)
		out[name] = aliases
	}
	return out, nil
}

func (m *MockSearchEngine) UpdateAliases(ctx context.Context, actions []domain.AliasAction) error {
	if m.UpdateAliasesFn != nil {
		if err := m.UpdateAliasesFn(actions); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.AliasUpdates = append(m.AliasUpdates, actions)

	// Validate everything first so the update is all-or-nothing
	for _, a := range actions {
		idx, ok := m.indices[a.Index]
		if !ok {
			return &domain.StoreError{Op: "update aliases", StatusCode: 404, Body: "no such index [" + a.Index + "]"}
		}
		if _, bound := idx.aliases[a.Alias]; a.Remove && !bound {
			return &domain.StoreError{Op: "update aliases", StatusCode: 404, Body: "aliases [" + a.Alias + "] missing"}
		}
	}
	for _, a := range actions {
		if a.Remove {
			delete(m.indices[a.Index].aliases, a.Alias)
		} else {
			m.indices[a.Index].aliases[a.Alias] = struct{}{}
		}
	}
	return nil
}

func (m *MockSearchEngine) PutAlias(ctx context.Context, index, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indices[index]
	if !ok {
		return &domain.StoreError{Op: "put alias", StatusCode: 404, Body: "no such index [" + index + "]"}
	}
	idx.aliases[alias] = struct{}{}
	return nil
}

func (m *MockSearchEngine) DeleteAlias(ctx context.Context, index, alias string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indices[index]
	if !ok {
		return &domain.StoreError{Op: "delete alias", StatusCode: 404, Body: "no such index [" + index + "]"}
	}
	if _, bound := idx.aliases[alias]; !bound {
		return &domain.StoreError{Op: "delete alias", StatusCode: 404, Body: "aliases [" + alias + "] missing"}
	}
	delete(idx.aliases, alias)
	return nil
}

func (m *MockSearchEngine) Refresh(ctx context.Context, index string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.indices[index]
	if !ok {
		return &domain.StoreError{Op: "refresh", StatusCode: 404, Body: "no such index [" + index + "]"}
	}
	idx.refreshes++
	return nil
}

func (m *MockSearchEngine) Bulk(ctx context.Context, alias string, docs []domain.Document) ([]domain.BulkItemError, error) {
	m.mu.Lock()
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID()
	}
	m.BulkCalls = append(m.BulkCalls, BulkCall{Alias: alias, IDs: ids})
	m.mu.Unlock()

	if m.BulkFn != nil {
		return m.BulkFn(alias, docs)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.writeIndex(alias)
	if err != nil {
		return nil, err
	}

	var itemErrors []domain.BulkItemError
	for _, d := range docs {
		if d.OpType() == domain.OpTypeDelete {
			if _, ok := idx.docs[d.ID()]; !ok {
				itemErrors = append(itemErrors, domain.BulkItemError{
					Op: domain.OpTypeDelete, ID: d.ID(), Index: alias, Status: 404, Result: "not_found",
				})
				continue
			}
			delete(idx.docs, d.ID())
			continue
		}
		idx.docs[d.ID()] = d.Source()
	}
	return itemErrors, nil
}

func (m *MockSearchEngine) UpdateDocument(ctx context.Context, alias, docID string, body map[string]any, retryOnConflict int) error {
	m.mu.Lock()
	m.Updates = append(m.Updates, UpdateCall{Alias: alias, DocID: docID, Body: body})
	m.mu.Unlock()

	if m.UpdateFn != nil {
		if err := m.UpdateFn(alias, docID, body); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := m.writeIndex(alias)
	if err != nil {
		return err
	}
	doc, ok := idx.docs[docID]
	if !ok {
		if upsert, _ := body["doc_as_upsert"].(bool); !upsert {
			return &domain.StoreError{Op: "update", StatusCode: 404, Body: "document_missing_exception"}
		}
		doc = make(map[string]any)
		idx.docs[docID] = doc
	}
	if partial, ok := body["doc"].(map[string]any); ok {
		for k, v := range partial {
			doc[k] = v
		}
	}
	if script, ok := body["script"].(map[string]any); ok {
		applyIncrementScript(doc, script)
	}
	return nil
}

func (m *MockSearchEngine) UpdateByQuery(ctx context.Context, alias string, body map[string]any) (*domain.UpdateByQueryResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, UpdateCall{Alias: alias, Body: body})

	query, _ := body["query"].(map[string]any)
	params := map[string]any{}
	if script, ok := body["script"].(map[string]any); ok {
		params, _ = script["params"].(map[string]any)
	}

	res := &domain.UpdateByQueryResult{}
	for _, name := range m.aliasIndices(alias) {
		for id, doc := range m.indices[name].docs {
			if query != nil && !m.matches(query, id, doc) {
				continue
			}
			res.Total++
			for k, v := range params {
				doc[k] = v
			}
			res.Updated++
		}
	}
	return res, nil
}

func (m *MockSearchEngine) Search(ctx context.Context, alias string, body domain.Query) (map[string]any, error) {
	m.mu.Lock()
	m.Searches = append(m.Searches, SearchCall{Alias: alias, Body: body})
	m.mu.Unlock()

	if m.SearchFn != nil {
		return m.SearchFn(alias, body)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	indices := m.aliasIndices(alias)
	if len(indices) == 0 {
		return nil, &domain.StoreError{Op: "search", StatusCode: 404, Body: "index_not_found_exception"}
	}

	query, _ := body["query"].(map[string]any)
	size := 10
	if s, ok := toFloat(body["size"]); ok {
		size = int(s)
	}

	hits := make([]any, 0)
	total := 0
	for _, name := range indices {
		ids := make([]string, 0, len(m.indices[name].docs))
		for id := range m.indices[name].docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			doc := m.indices[name].docs[id]
			if query != nil && !m.matches(query, id, doc) {
				continue
			}
			total++
			if len(hits) < size {
				hits = append(hits, map[string]any{
					"_index":  name,
					"_id":     id,
					"_score":  1.0,
					"_source": copyDoc(doc),
				})
			}
		}
	}

	return map[string]any{
		"took":      1,
		"timed_out": false,
		"hits": map[string]any{
			"total": map[string]any{"value": float64(total), "relation": "eq"},
			"hits":  hits,
		},
	}, nil
}

func (m *MockSearchEngine) HealthCheck(ctx context.Context) error {
	if m.HealthFn != nil {
		return m.HealthFn()
	}
	return nil
}

// Helper methods for testing

// Docs returns the documents stored in index (or behind alias), keyed by id.
func (m *MockSearchEngine) Docs(indexOrAlias string) map[string]map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]any)
	for _, name := range m.aliasIndices(indexOrAlias) {
		for id, doc := range m.indices[name].docs {
			out[id] = copyDoc(doc)
		}
	}
	return out
}

// IndexNames returns every index name, sorted.
func (m *MockSearchEngine) IndexNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.indices))
	for name := range m.indices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IndexBody returns the settings and mappings an index was created with.
func (m *MockSearchEngine) IndexBody(index string) map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.indices[index]; ok {
		return idx.body
	}
	return nil
}

// Refreshes returns how many times index was refreshed.
func (m *MockSearchEngine) Refreshes(index string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if idx, ok := m.indices[index]; ok {
		return idx.refreshes
	}
	return 0
}

// Reset clears all state and recorded calls.
func (m *MockSearchEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.indices = make(map[string]*mockIndex)
	m.BulkCalls = nil
	m.Searches = nil
	m.AliasUpdates = nil
	m.Updates = nil
}

// aliasIndices resolves an index name or alias to index names. Callers hold mu.
func (m *MockSearchEngine) aliasIndices(name string) []string {
	if _, ok := m.indices[name]; ok {
		return []string{name}
	}
	var out []string
	for idxName, idx := range m.indices {
		if _, ok := idx.aliases[name]; ok {
			out = append(out, idxName)
		}
	}
	sort.Strings(out)
	return out
}

// writeIndex resolves a write target, which must be exactly one index. Callers hold mu.
func (m *MockSearchEngine) writeIndex(alias string) (*mockIndex, error) {
	indices := m.aliasIndices(alias)
	switch len(indices) {
	case 0:
		return nil, &domain.StoreError{Op: "write", StatusCode: 404, Body: "index_not_found_exception"}
	case 1:
		return m.indices[indices[0]], nil
	default:
		return nil, &domain.StoreError{Op: "write", StatusCode: 400, Body: "alias [" + alias + "] has more than one index"}
	}
}

// matches evaluates a query clause against one document. Callers hold mu.
func (m *MockSearchEngine) matches(query map[string]any, id string, doc map[string]any) bool {
	for kind, raw := range query {
		clause, _ := raw.(map[string]any)
		switch kind {
		case "match_all":
		case "bool":
			if !m.matchesBool(clause, id, doc) {
				return false
			}
		case "term":
			for field, want := range clause {
				if w, ok := want.(map[string]any); ok {
					want = w["value"]
				}
				if !fieldHas(doc, field, want) {
					return false
				}
			}
		case "terms":
			for field, wants := range clause {
				found := false
				for _, want := range toSlice(wants) {
					if fieldHas(doc, field, want) {
						found = true
						break
					}
				}
				if !found {
					return false
				}
			}
		case "exists":
			field, _ := clause["field"].(string)
			if v, ok := doc[field]; !ok || v == nil {
				return false
			}
		case "ids":
			found := false
			for _, v := range toSlice(clause["values"]) {
				if fmt.Sprint(v) == id {
					found = true
				}
			}
			if !found {
				return false
			}
		case "match":
			for field, q := range clause {
				if qm, ok := q.(map[string]any); ok {
					q = qm["query"]
				}
				if !textOverlap(fmt.Sprint(doc[field]), fmt.Sprint(q)) {
					return false
				}
			}
		case "multi_match":
			q := fmt.Sprint(clause["query"])
			found := false
			for _, f := range toSlice(clause["fields"]) {
				field := strings.SplitN(fmt.Sprint(f), "^", 2)[0]
				if textOverlap(fmt.Sprint(doc[field]), q) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case "more_like_this":
			if !m.matchesMoreLikeThis(clause, id, doc) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (m *MockSearchEngine) matchesBool(clause map[string]any, id string, doc map[string]any) bool {
	for _, key := range []string{"must", "filter"} {
		for _, q := range clauseList(clause[key]) {
			if !m.matches(q, id, doc) {
				return false
			}
		}
	}
	for _, q := range clauseList(clause["must_not"]) {
		if m.matches(q, id, doc) {
			return false
		}
	}

	should := clauseList(clause["should"])
	if len(should) == 0 {
		return true
	}
	minMatch := 0
	if clause["must"] == nil && clause["filter"] == nil {
		minMatch = 1
	}
	if v, ok := toFloat(clause["minimum_should_match"]); ok {
		minMatch = int(v)
	}
	matched := 0
	for _, q := range should {
		if m.matches(q, id, doc) {
			matched++
		}
	}
	return matched >= minMatch
}

func (m *MockSearchEngine) matchesMoreLikeThis(clause map[string]any, id string, doc map[string]any) bool {
	fields := toSlice(clause["fields"])
	var seedTerms []string
	for _, like := range toSlice(clause["like"]) {
		ref, ok := like.(map[string]any)
		if !ok {
			seedTerms = append(seedTerms, fmt.Sprint(like))
			continue
		}
		seedID := fmt.Sprint(ref["_id"])
		if seedID == id {
			return false
		}
		for _, name := range m.aliasIndices(fmt.Sprint(ref["_index"])) {
			if seed, ok := m.indices[name].docs[seedID]; ok {
				for _, f := range fields {
					seedTerms = append(seedTerms, fmt.Sprint(seed[fmt.Sprint(f)]))
				}
			}
		}
	}
	seed := strings.Join(seedTerms, " ")
	for _, f := range fields {
		if textOverlap(fmt.Sprint(doc[fmt.Sprint(f)]), seed) {
			return true
		}
	}
	return false
}

func applyIncrementScript(doc map[string]any, script map[string]any) {
	params, _ := script["params"].(map[string]any)
	field, _ := params["field"].(string)
	amount, ok := toFloat(params["amount"])
	if field == "" || !ok {
		return
	}
	current, _ := toFloat(doc[field])
	doc[field] = current + amount
}

func fieldHas(doc map[string]any, field string, want any) bool {
	v, ok := doc[field]
	if !ok {
		return false
	}
	for _, item := range toSlice(v) {
		if fmt.Sprint(item) == fmt.Sprint(want) {
			return true
		}
	}
	return false
}

func textOverlap(text, query string) bool {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = struct{}{}
	}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

func clauseList(v any) []map[string]any {
	switch t := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return []map[string]any{t}
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, item := range t {
			if q, ok := item.(map[string]any); ok {
				out = append(out, q)
			}
		}
		return out
	}
	return nil
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
