package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driving"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// Defaults for SearchServiceConfig
const (
	DefaultRelatedPostsCount     = 4
	DefaultSimilarResourcesCount = 3
	DefaultMaxSuggestHits        = 1
	DefaultMaxSuggestResults     = 1
)

// relatedPostFields are the fields a related-post search compares.
var relatedPostFields = []string{"plain_text", "post_title", "author_id", "channel_name"}

// similarResourceFields are the fields a similar-resource search compares.
var similarResourceFields = []string{"title", "short_description"}

// reverseNestedAggregations are facets computed over nested runs whose
// bucket counts have to be reported per resource, not per run.
var reverseNestedAggregations = []string{"availability", "cost"}

// Discussion indices have no id field, so both scripts check for it before
// reading it: a mixed query runs them on every shard it touches.
const (
	missingIDGuard   = "!doc.containsKey('id') || doc['id'].size() == 0"
	isFavoriteScript = "if (" + missingIDGuard + ") { return false; } " +
		"return params.favorites.contains(doc['object_type'].value + ':' + doc['id'].value);"
	listsScript = "if (" + missingIDGuard + ") { return []; } " +
		"String key = doc['object_type'].value + ':' + doc['id'].value; " +
		"if (params.lists.containsKey(key)) { return params.lists.get(key); } return [];"
)

// SearchServiceConfig holds dependencies for the search service.
type SearchServiceConfig struct {
	Engine      driven.SearchEngine
	Permissions driven.PermissionStore
	Indices     *IndexManager

	RelatedPostsCount     int
	SimilarResourcesCount int

	// MaxSuggestHits is the hit count at or below which suggestions are returned
	MaxSuggestHits    int
	MaxSuggestResults int

	Logger *slog.Logger
}

// searchService implements the SearchService interface
type searchService struct {
	engine                driven.SearchEngine
	permissions           driven.PermissionStore
	indices               *IndexManager
	relatedPostsCount     int
	similarResourcesCount int
	maxSuggestHits        int
	maxSuggestResults     int
	logger                *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(cfg SearchServiceConfig) driving.SearchService {
	if cfg.RelatedPostsCount <= 0 {
		cfg.RelatedPostsCount = DefaultRelatedPostsCount
	}
	if cfg.SimilarResourcesCount <= 0 {
		cfg.SimilarResourcesCount = DefaultSimilarResourcesCount
	}
	if cfg.MaxSuggestHits <= 0 {
		cfg.MaxSuggestHits = DefaultMaxSuggestHits
	}
	if cfg.MaxSuggestResults <= 0 {
		cfg.MaxSuggestResults = DefaultMaxSuggestResults
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &searchService{
		engine:                cfg.Engine,
		permissions:           cfg.Permissions,
		indices:               cfg.Indices,
		relatedPostsCount:     cfg.RelatedPostsCount,
		similarResourcesCount: cfg.SimilarResourcesCount,
		maxSuggestHits:        cfg.MaxSuggestHits,
		maxSuggestResults:     cfg.MaxSuggestResults,
		logger:                logger,
	}
}

// ExecuteSearch runs query against the global alias with the user's
// permission filters applied. Authenticated searches over learning resources
// also get the is_favorite and lists script fields.
func (s *searchService) ExecuteSearch(ctx context.Context, user *domain.Principal, query domain.Query) (domain.SearchResponse, error) {
	fc, err := BuildFilterContext(ctx, s.permissions, user)
	if err != nil {
		return nil, err
	}

	body := ApplyGeneralQueryFilters(query, fc)
	if fc.Authenticated() && isLearningQuery(query) {
		if err := s.attachScriptFields(ctx, body, fc.User); err != nil {
			return nil, err
		}
	}

	raw, err := s.engine.Search(ctx, s.indices.GlobalAlias(), body)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return TransformResults(raw, s.maxSuggestHits, s.maxSuggestResults), nil
}

func (s *searchService) attachScriptFields(ctx context.Context, body domain.Query, user *domain.Principal) error {
	favorites, err := s.permissions.Favorites(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("load favorites: %w", err)
	}
	lists, err := s.permissions.ListMemberships(ctx, user.UserID)
	if err != nil {
		return fmt.Errorf("load list memberships: %w", err)
	}
	if favorites == nil {
		favorites = domain.Favorites{}
	}
	if lists == nil {
		lists = domain.UserLists{}
	}

	body["script_fields"] = map[string]any{
		"is_favorite": map[string]any{"script": map[string]any{
			"source": isFavoriteScript,
			"params": map[string]any{"favorites": []string(favorites)},
		}},
		"lists": map[string]any{"script": map[string]any{
			"source": listsScript,
			"params": map[string]any{"lists": map[string][]int64(lists)},
		}},
	}
	// script_fields replace _source in hits unless it is asked for
	// explicitly. A caller projection, or _source: false, is kept as given:
	// the script values reach _source through TransformResults either way.
	if _, ok := body["_source"]; !ok {
		body["_source"] = true
	}
	return nil
}

// FindRelatedDocuments returns posts similar to postID, filtered like any search.
func (s *searchService) FindRelatedDocuments(ctx context.Context, user *domain.Principal, postID string) (domain.SearchResponse, error) {
	if postID == "" {
		return nil, fmt.Errorf("%w: post id is required", domain.ErrInvalidInput)
	}
	fc, err := BuildFilterContext(ctx, s.permissions, user)
	if err != nil {
		return nil, err
	}

	query := domain.Query{
		"size": s.relatedPostsCount,
		"query": map[string]any{"more_like_this": map[string]any{
			"like": []any{map[string]any{
				"_index": s.indices.DefaultAlias(domain.ObjectTypePost),
				"_id":    domain.PostID(postID),
			}},
			"fields":        relatedPostFields,
			"min_term_freq": 1,
			"min_doc_freq":  1,
		}},
	}

	raw, err := s.engine.Search(ctx, s.indices.GlobalAlias(), ApplyGeneralQueryFilters(query, fc))
	if err != nil {
		return nil, fmt.Errorf("related documents: %w", err)
	}
	return domain.SearchResponse(raw), nil
}

// FindSimilarResources returns the sources of learning resources similar to
// seed, excluding seed itself.
func (s *searchService) FindSimilarResources(ctx context.Context, user *domain.Principal, seed domain.SimilarResourceRequest) ([]map[string]any, error) {
	if seed.Title == "" && seed.ShortDescription == "" {
		return nil, fmt.Errorf("%w: title or short_description is required", domain.ErrInvalidInput)
	}
	fc, err := BuildFilterContext(ctx, s.permissions, user)
	if err != nil {
		return nil, err
	}

	var like []any
	for _, text := range []string{seed.Title, seed.ShortDescription} {
		if text != "" {
			like = append(like, text)
		}
	}

	query := domain.Query{
		"size": s.similarResourcesCount + 1,
		"query": map[string]any{"bool": map[string]any{
			"must": []any{map[string]any{"more_like_this": map[string]any{
				"like":          like,
				"fields":        similarResourceFields,
				"min_term_freq": 1,
				"min_doc_freq":  1,
			}}},
			"filter": []any{map[string]any{"terms": map[string]any{
				"object_type": domain.ObjectTypeStrings(domain.LearningResourceTypes),
			}}},
		}},
	}

	raw, err := s.engine.Search(ctx, s.indices.GlobalAlias(), ApplyGeneralQueryFilters(query, fc))
	if err != nil {
		return nil, fmt.Errorf("similar resources: %w", err)
	}

	results := make([]map[string]any, 0, s.similarResourcesCount)
	for _, hit := range hitList(raw) {
		source, _ := hit["_source"].(map[string]any)
		if source == nil {
			continue
		}
		if fmt.Sprint(source["id"]) == fmt.Sprint(seed.ID) && fmt.Sprint(source["object_type"]) == string(seed.ObjectType) {
			continue
		}
		results = append(results, source)
		if len(results) == s.similarResourcesCount {
			break
		}
	}
	return results, nil
}

// TransformResults reshapes a raw search response in place:
//   - reverse nested facet buckets are flattened and counted per resource
//   - script fields move from "fields" into "_source"
//   - collated suggestions are ranked and reduced to their texts
//
// Responses without script fields, known facets or suggestions pass through.
func TransformResults(response map[string]any, maxSuggestHits, maxSuggestResults int) domain.SearchResponse {
	if response == nil {
		return nil
	}

	if aggs, ok := response["aggregations"].(map[string]any); ok {
		for _, name := range reverseNestedAggregations {
			if agg, ok := aggs[name].(map[string]any); ok {
				aggs[name] = unnestAggregation(name, agg)
			}
		}
	}

	for _, hit := range hitList(response) {
		fields, ok := hit["fields"].(map[string]any)
		if !ok {
			continue
		}
		source, _ := hit["_source"].(map[string]any)
		if source == nil {
			source = make(map[string]any)
			hit["_source"] = source
		}
		if fav, ok := fields["is_favorite"].([]any); ok && len(fav) > 0 {
			source["is_favorite"] = fav[0]
		}
		if _, ok := fields["lists"]; ok {
			lists, _ := fields["lists"].([]any)
			if lists == nil {
				lists = []any{}
			}
			source["lists"] = lists
		}
		delete(hit, "fields")
	}

	if _, ok := response["suggest"]; ok {
		if totalHits(response) <= maxSuggestHits {
			response["suggest"] = rankSuggestions(response["suggest"], maxSuggestResults)
		} else {
			response["suggest"] = []string{}
		}
	}

	return domain.SearchResponse(response)
}

// unnestAggregation flattens {name: {name: {buckets}}} into {buckets}, using
// the per-resource "courses" count of each bucket and dropping empty ones.
func unnestAggregation(name string, agg map[string]any) map[string]any {
	inner := agg
	if nested, ok := agg[name].(map[string]any); ok {
		inner = nested
	}
	raw, ok := inner["buckets"].([]any)
	if !ok {
		return agg
	}

	buckets := make([]any, 0, len(raw))
	for _, b := range raw {
		bucket, ok := b.(map[string]any)
		if !ok {
			continue
		}
		child, ok := bucket["courses"].(map[string]any)
		if !ok {
			buckets = append(buckets, bucket)
			continue
		}
		count, _ := child["doc_count"].(float64)
		if count <= 0 {
			continue
		}
		buckets = append(buckets, map[string]any{"key": bucket["key"], "doc_count": count})
	}
	return map[string]any{"buckets": buckets}
}

// rankSuggestions sums the scores of collated phrase suggester options by
// text and returns the best texts.
func rankSuggestions(raw any, limit int) []string {
	suggesters, _ := raw.(map[string]any)
	scores := make(map[string]float64)
	for _, entries := range suggesters {
		list, _ := entries.([]any)
		for _, e := range list {
			entry, _ := e.(map[string]any)
			options, _ := entry["options"].([]any)
			for _, o := range options {
				option, _ := o.(map[string]any)
				if matched, _ := option["collate_match"].(bool); !matched {
					continue
				}
				text, _ := option["text"].(string)
				score, _ := option["score"].(float64)
				scores[text] += score
			}
		}
	}

	ranked := make([]domain.SuggestResult, 0, len(scores))
	for text, score := range scores {
		ranked = append(ranked, domain.SuggestResult{Text: text, Score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Text < ranked[j].Text
	})

	out := make([]string, 0, min(limit, len(ranked)))
	for _, r := range ranked {
		if len(out) == limit {
			break
		}
		out = append(out, r.Text)
	}
	return out
}

func hitList(response map[string]any) []map[string]any {
	hits, _ := response["hits"].(map[string]any)
	raw, _ := hits["hits"].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, h := range raw {
		if hit, ok := h.(map[string]any); ok {
			out = append(out, hit)
		}
	}
	return out
}

// totalHits reads hits.total, which is either a number or {"value": n}.
func totalHits(response map[string]any) int {
	hits, _ := response["hits"].(map[string]any)
	switch total := hits["total"].(type) {
	case float64:
		return int(total)
	case int:
		return total
	case map[string]any:
		v, _ := total["value"].(float64)
		return int(v)
	}
	return 0
}

// isLearningQuery reports whether any object_type value in the query names
// a learning resource type.
func isLearningQuery(query domain.Query) bool {
	for _, v := range findKeyValues(map[string]any(query), "object_type") {
		if domain.ObjectType(v).IsLearningResource() {
			return true
		}
	}
	return false
}

// findKeyValues collects the string values stored under key anywhere in v.
func findKeyValues(v any, key string) []string {
	var out []string
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if k == key {
				out = append(out, stringValues(child)...)
				continue
			}
			out = append(out, findKeyValues(child, key)...)
		}
	case []any:
		for _, child := range t {
			out = append(out, findKeyValues(child, key)...)
		}
	case []map[string]any:
		for _, child := range t {
			out = append(out, findKeyValues(child, key)...)
		}
	}
	return out
}

func stringValues(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, stringValues(item)...)
		}
		return out
	case map[string]any:
		// {"object_type": {"value": "course"}}
		return stringValues(t["value"])
	}
	return nil
}
