package serializers

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven/mocks"
)

var created = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testPost() *domain.Post {
	return &domain.Post{
		PostID:  "abc123",
		Title:   "Hello",
		Slug:    "hello",
		Type:    domain.PostTypeText,
		Text:    "some **bold** text",
		Score:   3,
		Created: created,
		Author:  domain.Author{Username: "alice", Name: "Alice"},
		Channel: domain.Channel{Name: "test", Title: "Test", Type: domain.ChannelTypePublic},
	}
}

func TestPostSerializer(t *testing.T) {
	r := Default()

	doc, err := r.SerializeForBulk(domain.ObjectTypePost, testPost())
	require.NoError(t, err)

	assert.Equal(t, "p_abc123", doc.ID())
	assert.Equal(t, "post", doc["object_type"])
	assert.Equal(t, "test", doc["channel_name"])
	assert.Equal(t, "public", doc["channel_type"])
	assert.Equal(t, "alice", doc["author_id"])
	assert.Equal(t, "some bold text", doc["plain_text"])
	assert.Equal(t, "2024-03-01T12:00:00Z", doc["created"])
	assert.Equal(t, false, doc["removed"])
	assert.Equal(t, false, doc["deleted"])
}

func TestPostModerationFields(t *testing.T) {
	banned := "mod"

	tests := []struct {
		name    string
		mutate  func(p *domain.Post)
		removed bool
		deleted bool
	}{
		{"clean", func(p *domain.Post) {}, false, false},
		{"banned", func(p *domain.Post) { p.BannedBy = &banned }, true, false},
		{"banned then approved", func(p *domain.Post) { p.BannedBy = &banned; p.Approved = true }, false, false},
		{"deleted", func(p *domain.Post) { p.Text = domain.DeletedSentinel }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPost()
			tt.mutate(p)
			doc, err := Default().Serialize(domain.ObjectTypePost, p)
			require.NoError(t, err)
			assert.Equal(t, tt.removed, doc["removed"])
			assert.Equal(t, tt.deleted, doc["deleted"])
		})
	}
}

func TestArticlePostPlainText(t *testing.T) {
	p := testPost()
	p.Type = domain.PostTypeArticle
	p.ArticleContent = "<h1>Intro</h1><p>Body &amp; soul</p>"

	doc, err := Default().Serialize(domain.ObjectTypePost, p)
	require.NoError(t, err)
	assert.Equal(t, "Intro Body & soul", doc["plain_text"])
}

func TestCommentSerializer(t *testing.T) {
	c := &domain.Comment{
		CommentID: "d4",
		PostID:    "abc123",
		PostTitle: "Hello",
		Text:      "reply",
		Created:   created,
		Author:    domain.Author{Username: "bob"},
		Channel:   domain.Channel{Name: "test", Type: domain.ChannelTypePrivate},
	}

	doc, err := Default().SerializeForBulk(domain.ObjectTypeComment, c)
	require.NoError(t, err)
	assert.Equal(t, "c_d4", doc.ID())
	assert.Equal(t, "comment", doc["object_type"])
	assert.Equal(t, "private", doc["channel_type"])
	assert.Nil(t, doc["parent_comment_id"])
	assert.Equal(t, "abc123", doc["post_id"])
}

func TestProfileSerializer(t *testing.T) {
	p := &domain.Profile{
		Author: domain.Author{Username: "alice", Name: "Alice", Bio: "hi"},
		Channels: []domain.ChannelMembership{
			{Name: "old", Joined: created.Add(-time.Hour)},
			{Name: "new", Joined: created},
		},
	}

	doc, err := Default().SerializeForBulk(domain.ObjectTypeProfile, p)
	require.NoError(t, err)
	assert.Equal(t, "u_alice", doc.ID())
	assert.Equal(t, []string{"new", "old"}, doc["author_channel_membership"])
	assert.Equal(t, "hi", doc["author_bio"])
}

func TestCourseSerializer(t *testing.T) {
	early := created.Add(-48 * time.Hour)
	course := &domain.Course{
		Resource: domain.Resource{
			ID:        9,
			Title:     "Circuits",
			Published: true,
			Runs: []domain.Run{
				{RunID: "old", Published: true, BestStartDate: &early, Prices: []domain.Price{{Price: 50, Mode: "verified"}}},
				{RunID: "draft", Published: false, Prices: []domain.Price{{Price: 1}}},
				{RunID: "undated", Published: true},
				{RunID: "new", Published: true, BestStartDate: &created, Prices: []domain.Price{{Price: 25, Mode: "audit"}},
					Instructors: []domain.Instructor{{FirstName: "Ada", LastName: "Lovelace"}}},
			},
		},
		CourseID: "MITx+6.002x",
		Platform: "mitx",
	}

	doc, err := Default().SerializeForBulk(domain.ObjectTypeCourse, course)
	require.NoError(t, err)

	assert.Equal(t, "co_mitx_TUlUeCs2LjAwMng", doc.ID())
	assert.Equal(t, 25.0, doc["minimum_price"])
	assert.Equal(t, 1, doc["default_search_priority"])
	assert.Equal(t, map[string]any{"name": "resource"}, doc["resource_relations"])
	assert.Equal(t, []string{}, doc["topics"])

	runs := doc["runs"].([]map[string]any)
	require.Len(t, runs, 3)
	assert.Equal(t, "new", runs[0]["run_id"])
	assert.Equal(t, "old", runs[1]["run_id"])
	assert.Equal(t, "undated", runs[2]["run_id"])
	assert.Equal(t, []string{"Ada Lovelace"}, runs[0]["instructors"])
}

func TestMinimumPriceWithoutPrices(t *testing.T) {
	assert.Equal(t, 0.0, minimumPrice(nil))
	assert.Equal(t, 0.0, minimumPrice([]domain.Run{{Published: true}}))
	assert.Equal(t, 0.0, minimumPrice([]domain.Run{{Prices: []domain.Price{{Price: 0}, {Price: 10}}}}))
}

func TestSearchPriority(t *testing.T) {
	assert.Equal(t, 1, searchPriority(domain.ObjectTypeVideo, true))
	assert.Equal(t, 0, searchPriority(domain.ObjectTypeVideo, false))
	assert.Equal(t, 0, searchPriority(domain.ObjectTypeUserList, true))
}

func TestUserListSerializer(t *testing.T) {
	r := Default()

	list := &domain.UserList{ID: 4, Title: "Mine", AuthorID: 7, ListType: domain.ListTypeLearningPath, PrivacyLevel: domain.PrivacyLevelPrivate}
	doc, err := r.SerializeForBulk(domain.ObjectTypeLearningPath, list)
	require.NoError(t, err)
	assert.Equal(t, "user_list_4", doc.ID())
	assert.Equal(t, "learning_path", doc["object_type"])
	assert.Equal(t, int64(7), doc["author"])
	assert.Equal(t, "private", doc["privacy_level"])
	assert.Equal(t, 0, doc["default_search_priority"])

	staff := &domain.UserList{ID: 5, Staff: true, PrivacyLevel: domain.PrivacyLevelPublic}
	doc, err = r.SerializeForBulk(domain.ObjectTypeStaffList, staff)
	require.NoError(t, err)
	assert.Equal(t, "staff_list_5", doc.ID())
	assert.Equal(t, "staff_list", doc["object_type"])
}

func TestResourceType(t *testing.T) {
	tests := []struct {
		section string
		want    string
	}{
		{"Lecture Notes", ResourceTypeLectureNotes},
		{"  exams and solutions ", ResourceTypeExams},
		{"Assignments", ResourceTypeAssignments},
		{"Weekly Assignment 3", ResourceTypeAssignments},
		{"Syllabus", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.section, func(t *testing.T) {
			assert.Equal(t, tt.want, ResourceType(tt.section))
		})
	}
}

func testContentFile(content string) *domain.ContentFile {
	return &domain.ContentFile{
		ID:             1,
		Key:            "courses/6.002/notes.pdf",
		Title:          "Notes",
		Section:        "Lecture Notes",
		Content:        content,
		CourseID:       "MITx+6.002x",
		CoursePlatform: "mitx",
	}
}

func TestContentFileSerializer(t *testing.T) {
	doc, err := Default().SerializeForBulk(domain.ObjectTypeResourceFile, testContentFile("short"))
	require.NoError(t, err)

	assert.Equal(t, "cf_courses%2F6.002%2Fnotes.pdf", doc.ID())
	assert.Equal(t, "co_mitx_TUlUeCs2LjAwMng", doc.Routing())
	assert.Equal(t, "resource_file", doc["object_type"])
	assert.Equal(t, ResourceTypeLectureNotes, doc["resource_type"])
	assert.Equal(t, map[string]any{"name": "resourcefile", "parent": "co_mitx_TUlUeCs2LjAwMng"}, doc["resource_relations"])
	assert.Equal(t, "short", doc["content"])
}

func TestContentFileTruncation(t *testing.T) {
	const maxSize = 2000
	r := NewRegistry(Config{MaxDocumentSize: maxSize})

	tests := []struct {
		name    string
		content string
	}{
		{"ascii", strings.Repeat("a", 5000)},
		{"multibyte", strings.Repeat("é漢", 2000)},
		{"escapes", strings.Repeat(`"\<`, 2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := r.Serialize(domain.ObjectTypeResourceFile, testContentFile(tt.content))
			require.NoError(t, err)

			encoded, err := json.Marshal(doc)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(encoded), maxSize)

			content := doc["content"].(string)
			assert.True(t, utf8.ValidString(content))
			assert.True(t, strings.HasPrefix(tt.content, content))
			assert.NotEmpty(t, content)
		})
	}
}

func TestContentFileWithinLimitUntouched(t *testing.T) {
	content := strings.Repeat("b", 100)
	doc, err := NewRegistry(Config{MaxDocumentSize: 5000}).Serialize(domain.ObjectTypeResourceFile, testContentFile(content))
	require.NoError(t, err)
	assert.Equal(t, content, doc["content"])
}

func TestSerializeWrongEntity(t *testing.T) {
	_, err := Default().Serialize(domain.ObjectTypePost, &domain.Comment{})
	assert.ErrorIs(t, err, ErrUnexpectedEntity)

	_, err = Default().Serialize(domain.ObjectType("bogus"), testPost())
	assert.ErrorIs(t, err, domain.ErrUnknownObjectType)
}

func TestSerializeBulk(t *testing.T) {
	store := mocks.NewMockContentStore()
	store.AddPost(testPost())
	second := testPost()
	second.PostID = "def456"
	store.AddPost(second)

	docs, err := Default().SerializeBulk(context.Background(), store, domain.ObjectTypePost, []string{"abc123", "missing", "def456"})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "p_abc123", docs[0].ID())
	assert.Equal(t, "p_def456", docs[1].ID())
}

func TestSerializeBulkSkipsOtherListTypes(t *testing.T) {
	store := mocks.NewMockContentStore()
	store.AddUserList(&domain.UserList{ID: 1, ListType: domain.ListTypeUserList})
	store.AddUserList(&domain.UserList{ID: 2, ListType: domain.ListTypeLearningPath})

	docs, err := Default().SerializeBulk(context.Background(), store, domain.ObjectTypeUserList, []string{"1", "2"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "user_list_1", docs[0].ID())
}

func TestSerializeBulkStoreError(t *testing.T) {
	store := mocks.NewMockContentStore()
	store.Err = errors.New("connection refused")

	_, err := Default().SerializeBulk(context.Background(), store, domain.ObjectTypeCourse, []string{"1"})
	assert.ErrorContains(t, err, "connection refused")
}

func TestSerializeBulkDeletes(t *testing.T) {
	docs := SerializeBulkDeletes([]string{"p_1", "p_2"})

	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, domain.OpTypeDelete, d.OpType())
	}
	assert.Equal(t, "p_2", docs[1].ID())
}
