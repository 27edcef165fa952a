package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	_, client := setupTestRedis(t)
	q, err := NewQueue(context.Background(), client, "test-worker")
	require.NoError(t, err)
	return q
}

func TestNewQueue_GroupExists(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()

	_, err := NewQueue(ctx, client, "a")
	require.NoError(t, err)
	_, err = NewQueue(ctx, client, "b")
	require.NoError(t, err)

	_, err = NewQueue(ctx, nil, "c")
	assert.Error(t, err)
}

func TestQueue_EnqueueDequeueAck(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	first := domain.NewIndexTask(domain.ObjectTypePost, []string{"abc123"}, false)
	second := domain.NewDeindexTask(domain.ObjectTypeComment, []string{"c_1"})
	require.NoError(t, q.EnqueueBatch(ctx, []*domain.Task{first, second}))

	got, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, domain.TaskStatusProcessing, got.Status)
	assert.Equal(t, 1, got.Attempts)
	assert.Equal(t, []string{"abc123"}, got.IDs())

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.Equal(t, int64(1), stats.ProcessingCount)

	require.NoError(t, q.Ack(ctx, got.ID))
	stored, err := q.GetTask(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)

	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.PendingCount)
	assert.Equal(t, int64(0), stats.ProcessingCount)
}

func TestQueue_DequeueEmpty(t *testing.T) {
	q := newTestQueue(t)

	task, err := q.DequeueWithTimeout(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, task)

	task, err = q.DequeueWithTimeout(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestQueue_RequeueImmediate(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.NewUpsertTask(domain.ObjectTypePost, "abc123")))

	task, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	task.Error = "store unavailable"
	require.NoError(t, q.Requeue(ctx, task, 0))

	again, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, task.ID, again.ID)
	assert.Equal(t, 2, again.Attempts)
	assert.Equal(t, "store unavailable", again.Error)
}

func TestQueue_RequeueDelayed(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.NewUpsertTask(domain.ObjectTypePost, "abc123")))

	task, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, q.Requeue(ctx, task, 50*time.Millisecond))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.ScheduledCount)
	assert.Equal(t, int64(0), stats.ProcessingCount)

	none, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, none)

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)

	time.Sleep(60 * time.Millisecond)
	due, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	require.NotNil(t, due)
	assert.Equal(t, task.ID, due.ID)

	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.ScheduledCount)
}

func TestQueue_Fail(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, domain.NewRecreateIndexTask([]domain.ObjectType{domain.ObjectTypePost})))

	task, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	task.Error = "errors occurred during recreate_index: boom"
	require.NoError(t, q.Fail(ctx, task))

	stored, err := q.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusFailed, stored.Status)
	assert.Equal(t, task.Error, stored.Error)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FailedCount)
	assert.Equal(t, int64(0), stats.PendingCount)
	assert.Equal(t, int64(0), stats.ProcessingCount)
}

func TestQueue_DeliverSkipsMissingRecord(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	q, err := NewQueue(ctx, client, "test-worker")
	require.NoError(t, err)

	task := domain.NewUpsertTask(domain.ObjectTypePost, "abc123")
	require.NoError(t, q.Enqueue(ctx, task))
	mr.Del(taskKeyPrefix + task.ID)

	got, err := q.DequeueWithTimeout(ctx, 0)
	require.NoError(t, err)
	assert.Nil(t, got)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.PendingCount)
}

func TestQueue_GetTaskNotFound(t *testing.T) {
	q := newTestQueue(t)

	_, err := q.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueue_PingClose(t *testing.T) {
	q := newTestQueue(t)
	assert.NoError(t, q.Ping(context.Background()))
	assert.NoError(t, q.Close())
}
