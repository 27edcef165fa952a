package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

func TestParseIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 42}, parseIDs([]string{"1", "abc", "42", ""}))
	assert.Empty(t, parseIDs(nil))
}

func TestListIDsQuery(t *testing.T) {
	tests := []struct {
		objectType   domain.ObjectType
		usesPlatform bool
		contains     string
	}{
		{domain.ObjectTypePost, false, "FROM posts"},
		{domain.ObjectTypeComment, false, "FROM comments"},
		{domain.ObjectTypeProfile, false, "FROM profiles"},
		{domain.ObjectTypeCourse, true, "object_type = 'course'"},
		{domain.ObjectTypeVideo, true, "object_type = 'video'"},
		{domain.ObjectTypeProgram, false, "object_type = 'program'"},
		{domain.ObjectTypePodcast, false, "object_type = 'podcast'"},
		{domain.ObjectTypePodcastEpisode, false, "object_type = 'podcast_episode'"},
		{domain.ObjectTypeUserList, false, "list_type = 'userlist'"},
		{domain.ObjectTypeLearningPath, false, "list_type = 'learningpath'"},
		{domain.ObjectTypeStaffList, false, "WHERE staff"},
		{domain.ObjectTypeResourceFile, true, "FROM content_files"},
	}

	for _, tt := range tests {
		t.Run(string(tt.objectType), func(t *testing.T) {
			query, usesPlatform, err := listIDsQuery(tt.objectType)
			require.NoError(t, err)
			assert.Equal(t, tt.usesPlatform, usesPlatform)
			assert.Contains(t, query, tt.contains)
			assert.Equal(t, tt.usesPlatform, strings.Contains(query, "$1"))
		})
	}

	_, _, err := listIDsQuery("bogus")
	assert.ErrorIs(t, err, domain.ErrUnknownObjectType)
}

func TestEveryIndexedTypeCanBeListed(t *testing.T) {
	for _, ot := range append(domain.IndexedObjectTypes, domain.ObjectTypeResourceFile) {
		_, _, err := listIDsQuery(ot)
		assert.NoError(t, err, ot)
	}
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"posts", "comments", "profiles", "learning_resources", "content_files",
		"user_lists", "user_list_items", "favorites", "channel_memberships"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
}
