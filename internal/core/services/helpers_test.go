package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driving"
	"github.com/custodia-labs/discussion-search/internal/serializers"
)

const testPrefix = "test"

var testCreated = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// testEnv wires the services against in-memory ports.
type testEnv struct {
	engine  *mocks.MockSearchEngine
	store   *mocks.MockContentStore
	perms   *mocks.MockPermissionStore
	lock    *mocks.MockDistributedLock
	indices *IndexManager
	indexer *Indexer
	tasks   *IndexTasks
	search  driving.SearchService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithIndexer(t, IndexerConfig{})
}

func newTestEnvWithIndexer(t *testing.T, indexerCfg IndexerConfig) *testEnv {
	t.Helper()
	logger := discardLogger()

	env := &testEnv{
		engine: mocks.NewMockSearchEngine(),
		store:  mocks.NewMockContentStore(),
		perms:  mocks.NewMockPermissionStore(),
		lock:   mocks.NewMockDistributedLock(),
	}
	env.indices = NewIndexManager(IndexManagerConfig{
		Engine: env.engine,
		Prefix: testPrefix,
		Shards: 1,
		Logger: logger,
	})

	indexerCfg.Engine = env.engine
	indexerCfg.Indices = env.indices
	indexerCfg.Logger = logger
	env.indexer = NewIndexer(indexerCfg)

	env.tasks = NewIndexTasks(IndexTasksConfig{
		Store:              env.store,
		Serializers:        serializers.NewRegistry(serializers.Config{Logger: logger}),
		Indexer:            env.indexer,
		Indices:            env.indices,
		Lock:               env.lock,
		ReindexConcurrency: 2,
		Logger:             logger,
	})
	env.search = NewSearchService(SearchServiceConfig{
		Engine:      env.engine,
		Permissions: env.perms,
		Indices:     env.indices,
		Logger:      logger,
	})
	return env
}

// bootstrap gives each object type a live default index.
func (e *testEnv) bootstrap(t *testing.T, objectTypes ...domain.ObjectType) map[domain.ObjectType]string {
	t.Helper()
	ctx := context.Background()
	out := make(map[domain.ObjectType]string)
	for _, ot := range objectTypes {
		name, err := e.indices.CreateBackingIndex(ctx, ot)
		require.NoError(t, err)
		require.NoError(t, e.indices.SwitchIndices(ctx, name, ot))
		out[ot] = name
	}
	return out
}

func post(id, channel string, channelType domain.ChannelType, text string) *domain.Post {
	return &domain.Post{
		PostID:  id,
		Title:   "title " + id,
		Type:    domain.PostTypeText,
		Text:    text,
		Created: testCreated,
		Author:  domain.Author{Username: "author_" + id},
		Channel: domain.Channel{Name: channel, Type: channelType},
	}
}

func course(id int64, platform, courseID, title string) *domain.Course {
	return &domain.Course{
		Resource: domain.Resource{
			ID:        id,
			Title:     title,
			Published: true,
			Created:   testCreated,
		},
		CourseID: courseID,
		Platform: platform,
	}
}

func textDocs(n int, text string) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{
			"object_type": "post",
			"text":        text,
		}.WithID(domain.PostID(string(rune('a'+i%26)) + string(rune('a'+i/26))))
	}
	return docs
}

// hitIDs returns the _id of each hit in a search response.
func hitIDs(response map[string]any) []string {
	var ids []string
	for _, hit := range hitList(response) {
		ids = append(ids, hit["_id"].(string))
	}
	return ids
}

// containsKey reports whether key appears anywhere in v.
func containsKey(v any, key string) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if k == key || containsKey(child, key) {
				return true
			}
		}
	case domain.Query:
		return containsKey(map[string]any(t), key)
	case []any:
		for _, child := range t {
			if containsKey(child, key) {
				return true
			}
		}
	}
	return false
}
