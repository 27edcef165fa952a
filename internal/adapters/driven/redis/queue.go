package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

const (
	taskStream     = KeyPrefix + "tasks"
	taskGroup      = KeyPrefix + "workers"
	scheduledTasks = KeyPrefix + "scheduled"
	failedTasks    = KeyPrefix + "failed"
	taskKeyPrefix  = KeyPrefix + "task:"

	// how long task records are kept for status lookups
	taskTTL = 24 * time.Hour

	// a delivered message idle this long is considered abandoned by its worker
	claimTimeout = 5 * time.Minute
)

// Verify interface compliance
var _ driven.TaskQueue = (*Queue)(nil)

// Queue implements TaskQueue on a Redis stream with one consumer group.
// Task records live in plain keys; the stream only carries task ids. Delayed
// tasks wait in a sorted set scored by due time until a dequeue promotes them.
type Queue struct {
	client       redis.UniversalClient
	consumerName string
}

// NewQueue creates the consumer group if needed. consumerName should be
// unique per worker process.
func NewQueue(ctx context.Context, client redis.UniversalClient, consumerName string) (*Queue, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if consumerName == "" {
		consumerName = "worker-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	}

	err := client.XGroupCreateMkStream(ctx, taskStream, taskGroup, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}
	return &Queue{client: client, consumerName: consumerName}, nil
}

func (q *Queue) Enqueue(ctx context.Context, task *domain.Task) error {
	if task == nil {
		return errors.New("task is required")
	}
	return q.EnqueueBatch(ctx, []*domain.Task{task})
}

// EnqueueBatch writes all tasks in one pipeline.
func (q *Queue) EnqueueBatch(ctx context.Context, tasks []*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	now := time.Now()
	pipe := q.client.TxPipeline()
	for _, task := range tasks {
		if task == nil {
			continue
		}
		if err := q.save(ctx, pipe, task); err != nil {
			return err
		}
		q.schedule(ctx, pipe, task, now)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue tasks: %w", err)
	}
	return nil
}

// DequeueWithTimeout returns the next task, claiming abandoned deliveries
// before reading new ones. A timeout <= 0 does not block.
func (q *Queue) DequeueWithTimeout(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	// best effort, a failed promotion is retried on the next dequeue
	_ = q.promoteScheduled(ctx)

	if task, err := q.claimAbandoned(ctx); err == nil && task != nil {
		return task, nil
	}

	block := timeout
	if block <= 0 {
		block = -1
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    taskGroup,
		Consumer: q.consumerName,
		Streams:  []string{taskStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("read task stream: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}

	return q.deliver(ctx, streams[0].Messages[0])
}

// Ack marks a task completed and removes its stream message.
func (q *Queue) Ack(ctx context.Context, taskID string) error {
	task, err := q.load(ctx, taskID)
	if err != nil {
		return err
	}

	pipe := q.client.TxPipeline()
	q.dropMessage(ctx, pipe, taskID)
	if task != nil {
		task.MarkCompleted()
		if err := q.save(ctx, pipe, task); err != nil {
			return err
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ack task %s: %w", taskID, err)
	}
	return nil
}

// Requeue returns a task to pending and delivers it again once delay has passed.
func (q *Queue) Requeue(ctx context.Context, task *domain.Task, delay time.Duration) error {
	task.Retry(task.Error, delay)

	pipe := q.client.TxPipeline()
	q.dropMessage(ctx, pipe, task.ID)
	if err := q.save(ctx, pipe, task); err != nil {
		return err
	}
	q.schedule(ctx, pipe, task, time.Now())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("requeue task %s: %w", task.ID, err)
	}
	return nil
}

// Fail records a task as permanently failed, keeping its last error.
func (q *Queue) Fail(ctx context.Context, task *domain.Task) error {
	task.MarkFailed(task.Error)

	pipe := q.client.TxPipeline()
	q.dropMessage(ctx, pipe, task.ID)
	if err := q.save(ctx, pipe, task); err != nil {
		return err
	}
	pipe.ZAdd(ctx, failedTasks, redis.Z{Score: float64(task.UpdatedAt.UnixMilli()), Member: task.ID})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("fail task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask returns domain.ErrNotFound for unknown or expired tasks.
func (q *Queue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	task, err := q.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (q *Queue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	pipe := q.client.Pipeline()
	streamLen := pipe.XLen(ctx, taskStream)
	pending := pipe.XPending(ctx, taskStream, taskGroup)
	scheduled := pipe.ZCard(ctx, scheduledTasks)
	failed := pipe.ZCard(ctx, failedTasks)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	stats := &driven.QueueStats{
		ScheduledCount: scheduled.Val(),
		FailedCount:    failed.Val(),
	}
	if p := pending.Val(); p != nil {
		stats.ProcessingCount = p.Count
	}
	// the stream keeps delivered messages until they are acked
	stats.PendingCount = streamLen.Val() - stats.ProcessingCount
	if stats.PendingCount < 0 {
		stats.PendingCount = 0
	}
	return stats, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Close is a no-op; the client is owned by the caller.
func (q *Queue) Close() error {
	return nil
}

// deliver loads the task a stream message points at and marks it processing.
// Messages whose task record is gone are dropped.
func (q *Queue) deliver(ctx context.Context, msg redis.XMessage) (*domain.Task, error) {
	taskID, _ := msg.Values["task_id"].(string)
	task, err := q.load(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		pipe := q.client.Pipeline()
		pipe.XAck(ctx, taskStream, taskGroup, msg.ID)
		pipe.XDel(ctx, taskStream, msg.ID)
		_, _ = pipe.Exec(ctx)
		return nil, nil
	}

	task.MarkProcessing()
	pipe := q.client.TxPipeline()
	if err := q.save(ctx, pipe, task); err != nil {
		return nil, err
	}
	pipe.Set(ctx, messageKey(task.ID), msg.ID, taskTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mark task %s processing: %w", task.ID, err)
	}
	return task, nil
}

func (q *Queue) claimAbandoned(ctx context.Context) (*domain.Task, error) {
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: taskStream,
		Group:  taskGroup,
		Idle:   claimTimeout,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		return nil, err
	}

	for _, p := range pending {
		claimed, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   taskStream,
			Group:    taskGroup,
			Consumer: q.consumerName,
			MinIdle:  claimTimeout,
			Messages: []string{p.ID},
		}).Result()
		if err != nil || len(claimed) == 0 {
			continue
		}
		task, err := q.deliver(ctx, claimed[0])
		if err == nil && task != nil {
			return task, nil
		}
	}
	return nil, nil
}

// promoteScheduled moves due tasks from the scheduled set onto the stream.
func (q *Queue) promoteScheduled(ctx context.Context) error {
	due, err := q.client.ZRangeByScore(ctx, scheduledTasks, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}).Result()
	if err != nil || len(due) == 0 {
		return err
	}

	for _, taskID := range due {
		// ZRem wins exactly once when workers race on the same task
		removed, err := q.client.ZRem(ctx, scheduledTasks, taskID).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.XAdd(ctx, streamArgs(taskID)).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queue) schedule(ctx context.Context, pipe redis.Pipeliner, task *domain.Task, now time.Time) {
	if task.ScheduledFor.After(now) {
		pipe.ZAdd(ctx, scheduledTasks, redis.Z{
			Score:  float64(task.ScheduledFor.UnixMilli()),
			Member: task.ID,
		})
		return
	}
	pipe.XAdd(ctx, streamArgs(task.ID))
}

func (q *Queue) dropMessage(ctx context.Context, pipe redis.Pipeliner, taskID string) {
	msgID, err := q.client.Get(ctx, messageKey(taskID)).Result()
	if err == nil && msgID != "" {
		pipe.XAck(ctx, taskStream, taskGroup, msgID)
		pipe.XDel(ctx, taskStream, msgID)
	}
	pipe.Del(ctx, messageKey(taskID))
}

func (q *Queue) save(ctx context.Context, pipe redis.Pipeliner, task *domain.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	pipe.Set(ctx, taskKeyPrefix+task.ID, data, taskTTL)
	return nil
}

// load returns nil, nil when the task record does not exist.
func (q *Queue) load(ctx context.Context, taskID string) (*domain.Task, error) {
	if taskID == "" {
		return nil, nil
	}
	data, err := q.client.Get(ctx, taskKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", taskID, err)
	}

	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

func streamArgs(taskID string) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: taskStream,
		Values: map[string]any{"task_id": taskID},
	}
}

func messageKey(taskID string) string {
	return taskKeyPrefix + taskID + ":msg"
}
