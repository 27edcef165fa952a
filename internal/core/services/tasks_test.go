package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

func contentFile(id int64, key, platform, courseID string) *domain.ContentFile {
	return &domain.ContentFile{
		ID:             id,
		Key:            key,
		Title:          "file " + key,
		Content:        "lecture notes",
		Section:        "Lecture Notes",
		CourseID:       courseID,
		CoursePlatform: platform,
	}
}

func TestIndexTasks_PostLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t, domain.ObjectTypePost)

	p := post("abc123", "science", domain.ChannelTypePublic, "first")
	env.store.AddPost(p)

	require.NoError(t, env.tasks.IndexPosts(ctx, []string{"abc123"}, false))
	doc := env.engine.Docs("test_post_default")["p_abc123"]
	require.NotNil(t, doc)
	assert.Equal(t, "post", doc["object_type"])
	assert.Equal(t, false, doc["removed"])

	banned := "mod"
	p.BannedBy = &banned
	require.NoError(t, env.tasks.UpsertPost(ctx, "abc123"))
	assert.Equal(t, true, env.engine.Docs("test_post_default")["p_abc123"]["removed"])

	require.NoError(t, env.tasks.DeindexDocuments(ctx, domain.ObjectTypePost, []string{"p_abc123"}))
	assert.Empty(t, env.engine.Docs("test_post_default"))

	// deleting again is not an error
	require.NoError(t, env.tasks.DeindexDocument(ctx, "p_abc123", domain.ObjectTypePost))
}

func TestIndexTasks_IndexSkipsMissingEntities(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, domain.ObjectTypeComment)

	env.store.AddComment(&domain.Comment{CommentID: "c1", PostID: "abc123", Text: "hi", Created: testCreated})

	require.NoError(t, env.tasks.IndexComments(context.Background(), []string{"c1", "missing"}, false))
	docs := env.engine.Docs("test_comment_default")
	assert.Len(t, docs, 1)
	assert.Contains(t, docs, "c_c1")
}

func TestIndexTasks_StoreErrorIsRetryable(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, domain.ObjectTypePost)
	env.store.Err = errors.New("connection refused")

	err := env.tasks.IndexPosts(context.Background(), []string{"abc123"}, false)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
}

func TestIndexTasks_UnknownObjectType(t *testing.T) {
	env := newTestEnv(t)

	err := env.tasks.IndexDocuments(context.Background(), domain.ObjectType("bogus"), []string{"1"}, false)
	assert.ErrorIs(t, err, domain.ErrUnknownObjectType)
	assert.False(t, domain.IsRetryable(err))
}

func TestIndexTasks_IndexPerObjectType(t *testing.T) {
	resource := func(id int64, title string) domain.Resource {
		return domain.Resource{ID: id, Title: title, Published: true, Created: testCreated}
	}

	tests := []struct {
		objectType domain.ObjectType
		add        func(env *testEnv)
		index      func(ctx context.Context, tasks *IndexTasks) error
		docID      string
	}{
		{
			objectType: domain.ObjectTypeProfile,
			add: func(env *testEnv) {
				env.store.AddProfile(&domain.Profile{Author: domain.Author{Username: "ann", Name: "Ann"}})
			},
			index: func(ctx context.Context, tasks *IndexTasks) error {
				return tasks.IndexProfiles(ctx, []string{"ann"}, false)
			},
			docID: domain.ProfileID("ann"),
		},
		{
			objectType: domain.ObjectTypeProgram,
			add: func(env *testEnv) {
				env.store.AddProgram(&domain.Program{Resource: resource(2, "MicroMasters"), ProgramID: "mm"})
			},
			index: func(ctx context.Context, tasks *IndexTasks) error {
				return tasks.IndexPrograms(ctx, []string{"2"}, false)
			},
			docID: domain.ProgramID(2),
		},
		{
			objectType: domain.ObjectTypeVideo,
			add: func(env *testEnv) {
				env.store.AddVideo(&domain.Video{Resource: resource(3, "Lecture 1"), VideoID: "v1", Platform: "youtube"})
			},
			index: func(ctx context.Context, tasks *IndexTasks) error {
				return tasks.IndexVideos(ctx, []string{"3"}, false)
			},
			docID: domain.VideoID("youtube", "v1"),
		},
		{
			objectType: domain.ObjectTypePodcast,
			add: func(env *testEnv) {
				env.store.AddPodcast(&domain.Podcast{Resource: resource(4, "Chalk Radio"), PodcastID: "cr"})
			},
			index: func(ctx context.Context, tasks *IndexTasks) error {
				return tasks.IndexPodcasts(ctx, []string{"4"}, false)
			},
			docID: domain.PodcastID(4),
		},
		{
			objectType: domain.ObjectTypePodcastEpisode,
			add: func(env *testEnv) {
				env.store.AddPodcastEpisode(&domain.PodcastEpisode{Resource: resource(5, "Episode 1"), PodcastID: 4})
			},
			index: func(ctx context.Context, tasks *IndexTasks) error {
				return tasks.IndexPodcastEpisodes(ctx, []string{"5"}, false)
			},
			docID: domain.PodcastEpisodeID(5),
		},
		{
			objectType: domain.ObjectTypeStaffList,
			add: func(env *testEnv) {
				env.store.AddUserList(&domain.UserList{ID: 6, Title: "Staff picks", Staff: true,
					ListType: domain.ListTypeUserList, PrivacyLevel: domain.PrivacyLevelPublic})
			},
			index: func(ctx context.Context, tasks *IndexTasks) error {
				return tasks.IndexStaffLists(ctx, []string{"6"}, false)
			},
			docID: domain.StaffListID(6),
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.objectType), func(t *testing.T) {
			env := newTestEnv(t)
			env.bootstrap(t, tt.objectType)
			tt.add(env)

			require.NoError(t, tt.index(context.Background(), env.tasks))
			docs := env.engine.Docs("test_" + string(tt.objectType) + "_default")
			require.Contains(t, docs, tt.docID)
			assert.Equal(t, string(tt.objectType), docs[tt.docID]["object_type"])
		})
	}
}

func TestIndexTasks_UpsertDocumentDispatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t, domain.ObjectTypePost)
	env.store.AddPost(post("xyz", "science", domain.ChannelTypePublic, "body"))

	require.NoError(t, env.tasks.UpsertDocument(ctx, domain.ObjectTypePost, "xyz"))
	assert.Contains(t, env.engine.Docs("test_post_default"), "p_xyz")

	assert.ErrorIs(t, env.tasks.UpsertDocument(ctx, domain.ObjectTypePost, "nope"), domain.ErrNotFound)
	assert.ErrorIs(t, env.tasks.UpsertDocument(ctx, domain.ObjectType("bogus"), "1"), domain.ErrUnknownObjectType)
}

func TestIndexTasks_UpsertCreatesDocument(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t, domain.ObjectTypeCourse)

	env.store.AddCourse(course(1, "mitx", "6.00.1x", "Intro to Python"))
	require.NoError(t, env.tasks.UpsertCourse(ctx, "1"))

	docs := env.engine.Docs("test_course_default")
	require.Contains(t, docs, domain.CourseID("mitx", "6.00.1x"))
	assert.Equal(t, "Intro to Python", docs[domain.CourseID("mitx", "6.00.1x")]["title"])

	// missing entities are reported so the worker can retry them
	require.ErrorIs(t, env.tasks.UpsertCourse(ctx, "404"), domain.ErrNotFound)
	assert.Len(t, env.engine.Docs("test_course_default"), 1)
}

func TestIndexTasks_UpsertUserListPicksIndex(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t, domain.ObjectTypeUserList, domain.ObjectTypeLearningPath)

	env.store.AddUserList(&domain.UserList{ID: 4, Title: "path", AuthorID: 7,
		ListType: domain.ListTypeLearningPath, PrivacyLevel: domain.PrivacyLevelPublic})

	require.NoError(t, env.tasks.UpsertUserList(ctx, "4"))
	assert.Empty(t, env.engine.Docs("test_user_list_default"))
	assert.Contains(t, env.engine.Docs("test_learning_path_default"), "user_list_4")
}

func TestIndexTasks_ContentFiles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t, domain.ObjectTypeCourse)

	env.store.AddContentFile(contentFile(10, "courses/6.002/notes.pdf", "mitx", "6.002x"))
	require.NoError(t, env.tasks.IndexContentFiles(ctx, []string{"10"}, false))

	docID := domain.ContentFileID("courses/6.002/notes.pdf")
	assert.Contains(t, env.engine.Docs("test_course_default"), docID)

	require.NoError(t, env.tasks.DeindexContentFiles(ctx, []string{"10"}))
	assert.NotContains(t, env.engine.Docs("test_course_default"), docID)
}

func TestIndexTasks_RunTask(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t, domain.ObjectTypePost, domain.ObjectTypeCourse)

	env.store.AddPost(post("abc123", "science", domain.ChannelTypePublic, "text"))
	env.store.AddPost(post("def456", "science", domain.ChannelTypePublic, "text"))
	env.store.AddContentFile(contentFile(10, "notes.pdf", "mitx", "6.002x"))

	require.NoError(t, env.tasks.RunTask(ctx, domain.NewIndexTask(domain.ObjectTypePost, []string{"abc123"}, false)))
	require.NoError(t, env.tasks.RunTask(ctx, domain.NewUpsertTask(domain.ObjectTypePost, "def456")))
	require.NoError(t, env.tasks.RunTask(ctx, domain.NewIndexTask(domain.ObjectTypeResourceFile, []string{"10"}, true)))
	assert.Len(t, env.engine.Docs("test_post_default"), 2)
	assert.Len(t, env.engine.Docs("test_course_default"), 1)

	require.NoError(t, env.tasks.RunTask(ctx, domain.NewDeindexTask(domain.ObjectTypePost, []string{"p_abc123"})))
	require.NoError(t, env.tasks.RunTask(ctx, domain.NewDeindexTask(domain.ObjectTypeResourceFile, []string{"10"})))
	assert.Equal(t, []string{"p_def456"}, keysOf(env.engine.Docs("test_post_default")))
	assert.Empty(t, env.engine.Docs("test_course_default"))
}

func TestIndexTasks_RunTaskInvalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.tasks.RunTask(ctx, domain.NewTask(domain.TaskType("compact"), nil))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = env.tasks.RunTask(ctx, domain.NewIndexTask(domain.ObjectType("bogus"), []string{"1"}, false))
	assert.ErrorIs(t, err, domain.ErrUnknownObjectType)

	task := domain.NewTask(domain.TaskTypeRecreateIndex, map[string]string{domain.PayloadObjectTypes: "post,bogus"})
	err = env.tasks.RunTask(ctx, task)
	assert.ErrorIs(t, err, domain.ErrUnknownObjectType)
}

func keysOf(m map[string]map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestIndexTasks_RunTaskUpdates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.bootstrap(t, domain.ObjectTypePost)

	require.NoError(t, env.indexer.IndexItems(ctx, []domain.Document{
		domain.Document{"object_type": "post", "author_id": "alice", "num_comments": 1}.WithID("p_1"),
		domain.Document{"object_type": "post", "author_id": "bob", "num_comments": 0}.WithID("p_2"),
	}, domain.ObjectTypePost, false))

	update, err := domain.NewUpdateDocumentsTask(domain.ObjectTypePost, []string{"p_1", "p_2"}, map[string]any{"removed": true})
	require.NoError(t, err)
	require.NoError(t, env.tasks.RunTask(ctx, update))

	increment := domain.NewIncrementFieldTask(domain.ObjectTypePost, []string{"p_1"}, "num_comments", 2)
	require.NoError(t, env.tasks.RunTask(ctx, increment))

	byQuery, err := domain.NewUpdateByQueryTask([]domain.ObjectType{domain.ObjectTypePost},
		map[string]any{"term": map[string]any{"author_id": "alice"}}, map[string]any{"author_name": "Alice A."})
	require.NoError(t, err)
	require.NoError(t, env.tasks.RunTask(ctx, byQuery))

	docs := env.engine.Docs("test_post_default")
	assert.Equal(t, true, docs["p_1"]["removed"])
	assert.Equal(t, true, docs["p_2"]["removed"])
	assert.Equal(t, 3.0, docs["p_1"]["num_comments"])
	assert.Equal(t, "Alice A.", docs["p_1"]["author_name"])
	assert.NotContains(t, docs["p_2"], "author_name")
}

func TestIndexTasks_RunTaskUpdatePayloadErrors(t *testing.T) {
	env := newTestEnv(t)
	env.bootstrap(t, domain.ObjectTypePost)

	tests := []struct {
		name string
		task *domain.Task
	}{
		{"update without fields", domain.NewTask(domain.TaskTypeUpdateDocuments, map[string]string{
			domain.PayloadObjectType: "post", domain.PayloadIDs: "p_1",
		})},
		{"increment without field", domain.NewIncrementFieldTask(domain.ObjectTypePost, []string{"p_1"}, "", 1)},
		{"update by query with bad query", domain.NewTask(domain.TaskTypeUpdateByQuery, map[string]string{
			domain.PayloadQuery: "not json", domain.PayloadFields: `{"a":1}`,
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.tasks.RunTask(context.Background(), tt.task)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.False(t, domain.IsRetryable(err))
		})
	}
	assert.Empty(t, env.engine.Updates)
}
