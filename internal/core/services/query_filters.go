package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// BuildFilterContext computes the permission context of user. Anonymous
// users get an empty channel set without touching the store.
func BuildFilterContext(ctx context.Context, permissions driven.PermissionStore, user *domain.Principal) (domain.FilterContext, error) {
	if user.IsAnonymous() {
		return domain.FilterContext{User: domain.Anonymous()}, nil
	}

	channels, err := permissions.AdvancedChannels(ctx, user.UserID)
	if err != nil {
		return domain.FilterContext{}, fmt.Errorf("load channel roles: %w", err)
	}
	return domain.FilterContext{User: user, Channels: dedupeSorted(channels)}, nil
}

// ApplyGeneralQueryFilters returns a copy of query restricted to what the
// user may see. Three clauses are ANDed:
//   - posts and comments must be in a public or restricted channel, or one
//     where the user is a contributor or moderator
//   - posts and comments must be neither deleted nor removed
//   - lists must be public, or authored by the user
//
// The original query becomes the "must" of the wrapping bool query.
func ApplyGeneralQueryFilters(query domain.Query, fc domain.FilterContext) domain.Query {
	out := make(domain.Query, len(query)+1)
	for k, v := range query {
		out[k] = v
	}

	filters := []any{
		channelVisibilityFilter(fc),
		removalFilter(),
		listPrivacyFilter(fc),
	}

	wrapped := map[string]any{"filter": filters}
	if orig, ok := query["query"]; ok && orig != nil {
		wrapped["must"] = []any{orig}
	}
	out["query"] = map[string]any{"bool": wrapped}
	return out
}

func channelVisibilityFilter(fc domain.FilterContext) map[string]any {
	should := []any{
		notObjectTypes(domain.DiscussionTypes),
		map[string]any{"terms": map[string]any{
			"channel_type": []string{string(domain.ChannelTypePublic), string(domain.ChannelTypeRestricted)},
		}},
	}
	if fc.Authenticated() && len(fc.Channels) > 0 {
		should = append(should, map[string]any{"terms": map[string]any{"channel_name": fc.Channels}})
	}
	return anyOf(should)
}

func removalFilter() map[string]any {
	return anyOf([]any{
		notObjectTypes(domain.DiscussionTypes),
		map[string]any{"bool": map[string]any{
			"filter": []any{
				map[string]any{"term": map[string]any{"deleted": false}},
				map[string]any{"term": map[string]any{"removed": false}},
			},
		}},
	})
}

func listPrivacyFilter(fc domain.FilterContext) map[string]any {
	should := []any{
		notObjectTypes(domain.ListTypes),
		map[string]any{"term": map[string]any{"privacy_level": string(domain.PrivacyLevelPublic)}},
	}
	if fc.Authenticated() {
		should = append(should, map[string]any{"term": map[string]any{"author": fc.User.UserID}})
	}
	return anyOf(should)
}

func notObjectTypes(types []domain.ObjectType) map[string]any {
	return map[string]any{"bool": map[string]any{
		"must_not": []any{
			map[string]any{"terms": map[string]any{"object_type": domain.ObjectTypeStrings(types)}},
		},
	}}
}

func anyOf(should []any) map[string]any {
	return map[string]any{"bool": map[string]any{
		"should":               should,
		"minimum_should_match": 1,
	}}
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
