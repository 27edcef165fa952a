package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// TaskRunner executes one index task. services.IndexTasks implements it.
type TaskRunner interface {
	RunTask(ctx context.Context, task *domain.Task) error
}

// RetryPolicy decides whether and when a failed task runs again.
type RetryPolicy struct {
	// MaxAttempts caps attempts for tasks that don't carry their own limit
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable classifies errors; defaults to domain.IsRetryable
	Retryable func(error) bool

	// NotFoundGrace is how long after a task was created a missing entity
	// is retried. Zero never retries not-found.
	NotFoundGrace time.Duration
}

// DefaultRetryPolicy retries transient store and network failures with
// exponential backoff starting at two seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     2 * time.Second,
		MaxDelay:      2 * time.Minute,
		Retryable:     domain.IsRetryable,
		NotFoundGrace: time.Minute,
	}
}

// Backoff returns the delay before the given attempt number runs again.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

func (p RetryPolicy) shouldRetry(task *domain.Task, err error) bool {
	retryable := p.Retryable(err)
	if !retryable && errors.Is(err, domain.ErrNotFound) {
		retryable = time.Since(task.CreatedAt) < p.NotFoundGrace
	}
	if !retryable {
		return false
	}
	if task.MaxAttempts <= 0 {
		return task.Attempts < p.MaxAttempts
	}
	return task.CanRetry()
}

// Worker pulls index tasks off the queue and runs them.
type Worker struct {
	taskQueue driven.TaskQueue
	runner    TaskRunner
	retry     RetryPolicy
	logger    *slog.Logger

	concurrency    int
	dequeueTimeout time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Runner         TaskRunner
	Retry          RetryPolicy
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout time.Duration // How long to block waiting for a task
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5 * time.Second
	}

	retry := cfg.Retry
	defaults := DefaultRetryPolicy()
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaults.MaxAttempts
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = defaults.BaseDelay
	}
	if retry.Retryable == nil {
		retry.Retryable = defaults.Retryable
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		runner:         cfg.Runner,
		retry:          retry,
		logger:         logger,
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
	}
}

// Start launches the processing goroutines and returns immediately.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, workerID)
		}(i)
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop signals the goroutines and waits for in-flight tasks to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (w *Worker) processLoop(ctx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}

		task, err := w.taskQueue.DequeueWithTimeout(ctx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			case <-w.stopCh:
			}
			continue
		}
		if task == nil {
			continue
		}

		w.ProcessTask(ctx, task)
	}
}

// ProcessTask runs one dequeued task and settles it on the queue: acked on
// success, requeued with backoff on a retryable failure, failed otherwise.
func (w *Worker) ProcessTask(ctx context.Context, task *domain.Task) {
	logger := w.logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Info("processing task")

	start := time.Now()
	err := w.runner.RunTask(ctx, task)
	duration := time.Since(start)

	if err == nil {
		logger.Info("task completed", "duration", duration)
		if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
			logger.Error("failed to ack task", "error", ackErr)
		}
		return
	}

	task.Error = err.Error()
	if w.retry.shouldRetry(task, err) {
		delay := w.retry.Backoff(task.Attempts)
		logger.Warn("task failed, retrying", "duration", duration, "delay", delay, "error", err)
		if requeueErr := w.taskQueue.Requeue(ctx, task, delay); requeueErr != nil {
			logger.Error("failed to requeue task", "error", requeueErr)
		}
		return
	}

	logger.Error("task failed", "duration", duration, "error", err)
	if failErr := w.taskQueue.Fail(ctx, task); failErr != nil {
		logger.Error("failed to record task failure", "error", failErr)
	}
}

// Health reports whether the worker is running and the queue reachable.
type Health struct {
	Running     bool               `json:"running"`
	QueueHealth bool               `json:"queue_health"`
	Stats       *driven.QueueStats `json:"stats,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
		return health
	}
	health.QueueHealth = true

	if stats, err := w.taskQueue.Stats(ctx); err == nil {
		health.Stats = stats
	}
	return health
}
