package domain

// Query is a caller-supplied search request body in the store's query DSL.
// The search service only adds filters and scripted fields to it.
type Query map[string]any

// SearchResponse is the decoded store response after result transformation.
type SearchResponse map[string]any

// FilterContext is the per-request permission context derived from the
// principal. It is recomputed on every search and never cached.
type FilterContext struct {
	User *Principal
	// Channels are the channel names where the user is a contributor or
	// moderator, deduplicated and sorted.
	Channels []string
}

// Authenticated reports whether the context belongs to a signed-in user.
func (c FilterContext) Authenticated() bool {
	return !c.User.IsAnonymous()
}

// UserLists maps a learning resource key ("object_type:id") to the ids of the
// user's lists that contain it.
type UserLists map[string][]int64

// Favorites is the set of learning resource keys ("object_type:id") a user has favorited.
type Favorites []string

// SuggestResult is one collated phrase suggestion with its accumulated score
type SuggestResult struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// SimilarResourceRequest seeds a more-like-this search with a resource document
type SimilarResourceRequest struct {
	ID               int64      `json:"id"`
	ObjectType       ObjectType `json:"object_type"`
	Title            string     `json:"title"`
	ShortDescription string     `json:"short_description"`
}
