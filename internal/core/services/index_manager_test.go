package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

func TestIndexManager_AliasNames(t *testing.T) {
	env := newTestEnv(t)
	m := env.indices

	assert.Equal(t, "test_post_default", m.DefaultAlias(domain.ObjectTypePost))
	assert.Equal(t, "test_post_reindexing", m.ReindexingAlias(domain.ObjectTypePost))
	assert.Equal(t, "test_all_default", m.GlobalAlias())

	// content files share the course index
	assert.Equal(t, "test_course_default", m.DefaultAlias(domain.ObjectTypeResourceFile))
	assert.Equal(t, "test_course_reindexing", m.ReindexingAlias(domain.ObjectTypeResourceFile))

	name := m.BackingIndexName(domain.ObjectTypeComment)
	require.True(t, strings.HasPrefix(name, "test_comment_"))
	assert.Len(t, strings.TrimPrefix(name, "test_comment_"), 32)
	assert.NotEqual(t, name, m.BackingIndexName(domain.ObjectTypeComment))
}

func TestIndexManager_CreateBackingIndex(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.indices.CreateBackingIndex(ctx, domain.ObjectTypeCourse)
	require.NoError(t, err)

	indices, err := env.engine.GetAliasIndices(ctx, "test_course_reindexing")
	require.NoError(t, err)
	assert.Equal(t, []string{first}, indices)

	body := env.engine.IndexBody(first)
	settings := body["settings"].(map[string]any)
	analyzers := settings["analysis"].(map[string]any)["analyzer"].(map[string]any)
	assert.Contains(t, analyzers, "folding")
	assert.Contains(t, analyzers, "trigram")
	props := body["mappings"].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "join", props["resource_relations"].(map[string]any)["type"])

	// a second call moves the reindexing alias to the new index only
	second, err := env.indices.CreateBackingIndex(ctx, domain.ObjectTypeCourse)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	indices, err = env.engine.GetAliasIndices(ctx, "test_course_reindexing")
	require.NoError(t, err)
	assert.Equal(t, []string{second}, indices)
}

func TestIndexManager_ClearAndCreateIndexUnknownType(t *testing.T) {
	env := newTestEnv(t)

	err := env.indices.ClearAndCreateIndex(context.Background(), "test_bogus_1", domain.ObjectType("bogus"))
	assert.ErrorIs(t, err, domain.ErrUnknownObjectType)
}

func TestIndexManager_SwitchIndices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	live := env.bootstrap(t, domain.ObjectTypePost, domain.ObjectTypeComment)
	oldPost := live[domain.ObjectTypePost]

	newPost, err := env.indices.CreateBackingIndex(ctx, domain.ObjectTypePost)
	require.NoError(t, err)
	updatesBefore := len(env.engine.AliasUpdates)

	require.NoError(t, env.indices.SwitchIndices(ctx, newPost, domain.ObjectTypePost))

	// one atomic alias update moving both aliases
	require.Len(t, env.engine.AliasUpdates, updatesBefore+1)
	assert.ElementsMatch(t, []domain.AliasAction{
		domain.RemoveAlias(oldPost, "test_post_default"),
		domain.RemoveAlias(oldPost, "test_all_default"),
		domain.AddAlias(newPost, "test_post_default"),
		domain.AddAlias(newPost, "test_all_default"),
	}, env.engine.AliasUpdates[updatesBefore])

	indices, err := env.engine.GetAliasIndices(ctx, "test_post_default")
	require.NoError(t, err)
	assert.Equal(t, []string{newPost}, indices)

	exists, err := env.engine.IndexExists(ctx, oldPost)
	require.NoError(t, err)
	assert.False(t, exists, "old backing index should be deleted")

	reindexing, err := env.engine.AliasExists(ctx, "test_post_reindexing")
	require.NoError(t, err)
	assert.False(t, reindexing)

	global, err := env.engine.GetAliasIndices(ctx, "test_all_default")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{newPost, live[domain.ObjectTypeComment]}, global)

	assert.Equal(t, 1, env.engine.Refreshes(newPost))
}

func TestIndexManager_SwitchIndicesFailureKeepsDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	live := env.bootstrap(t, domain.ObjectTypePost)
	newPost, err := env.indices.CreateBackingIndex(ctx, domain.ObjectTypePost)
	require.NoError(t, err)

	env.engine.UpdateAliasesFn = func([]domain.AliasAction) error {
		return errors.New("connection reset")
	}

	err = env.indices.SwitchIndices(ctx, newPost, domain.ObjectTypePost)
	require.Error(t, err)

	indices, err := env.engine.GetAliasIndices(ctx, "test_post_default")
	require.NoError(t, err)
	assert.Equal(t, []string{live[domain.ObjectTypePost]}, indices)

	exists, _ := env.engine.IndexExists(ctx, live[domain.ObjectTypePost])
	assert.True(t, exists)
}

func TestIndexManager_GetActiveAliases(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	types := []domain.ObjectType{domain.ObjectTypeCourse}

	aliases, err := env.indices.GetActiveAliases(ctx, types, domain.IndexTargetAll)
	require.NoError(t, err)
	assert.Empty(t, aliases)

	env.bootstrap(t, domain.ObjectTypeCourse)
	_, err = env.indices.CreateBackingIndex(ctx, domain.ObjectTypeCourse)
	require.NoError(t, err)

	tests := []struct {
		name   string
		types  []domain.ObjectType
		target domain.IndexTarget
		want   []string
	}{
		{"all", types, domain.IndexTargetAll, []string{"test_course_default", "test_course_reindexing"}},
		{"current", types, domain.IndexTargetCurrent, []string{"test_course_default"}},
		{"reindexing", types, domain.IndexTargetReindexing, []string{"test_course_reindexing"}},
		{"content files", []domain.ObjectType{domain.ObjectTypeResourceFile}, domain.IndexTargetCurrent, []string{"test_course_default"}},
		{"deduplicated", []domain.ObjectType{domain.ObjectTypeCourse, domain.ObjectTypeResourceFile}, domain.IndexTargetCurrent, []string{"test_course_default"}},
		{"missing type", []domain.ObjectType{domain.ObjectTypePost}, domain.IndexTargetAll, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.indices.GetActiveAliases(ctx, tt.types, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIndexManager_DeleteOrphanedIndices(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	live := env.bootstrap(t, domain.ObjectTypePost)
	orphan, err := env.indices.CreateBackingIndex(ctx, domain.ObjectTypePost)
	require.NoError(t, err)

	require.NoError(t, env.indices.DeleteOrphanedIndices(ctx))

	assert.Equal(t, []string{live[domain.ObjectTypePost]}, env.engine.IndexNames())
	exists, _ := env.engine.IndexExists(ctx, orphan)
	assert.False(t, exists)

	indices, err := env.engine.GetAliasIndices(ctx, "test_post_default")
	require.NoError(t, err)
	assert.Equal(t, []string{live[domain.ObjectTypePost]}, indices)
}
