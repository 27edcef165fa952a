package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driving"
)

// Ensure indexService implements IndexService
var _ driving.IndexService = (*indexService)(nil)

// indexService schedules index maintenance on the task queue
type indexService struct {
	queue  driven.TaskQueue
	logger *slog.Logger
}

// NewIndexService creates a new IndexService
func NewIndexService(queue driven.TaskQueue, logger *slog.Logger) driving.IndexService {
	if logger == nil {
		logger = slog.Default()
	}
	return &indexService{queue: queue, logger: logger}
}

// ScheduleRecreateIndex enqueues a recreate of objectTypes, or of every
// indexed type when none are given.
func (s *indexService) ScheduleRecreateIndex(ctx context.Context, objectTypes []domain.ObjectType) (*domain.Task, error) {
	types, err := s.validate(objectTypes)
	if err != nil {
		return nil, err
	}
	task := domain.NewRecreateIndexTask(types)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue recreate index: %w", err)
	}
	s.logger.Info("scheduled recreate index", "task_id", task.ID, "object_types", types)
	return task, nil
}

// ScheduleUpdateIndex enqueues an in-place update of objectTypes.
func (s *indexService) ScheduleUpdateIndex(ctx context.Context, objectTypes []domain.ObjectType, platform string) (*domain.Task, error) {
	types, err := s.validate(objectTypes)
	if err != nil {
		return nil, err
	}
	task := domain.NewUpdateIndexTask(types, platform)
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue update index: %w", err)
	}
	s.logger.Info("scheduled update index", "task_id", task.ID, "object_types", types, "platform", platform)
	return task, nil
}

func (s *indexService) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.queue.GetTask(ctx, taskID)
}

func (s *indexService) validate(objectTypes []domain.ObjectType) ([]domain.ObjectType, error) {
	if len(objectTypes) == 0 {
		return append([]domain.ObjectType(nil), domain.IndexedObjectTypes...), nil
	}
	for _, t := range objectTypes {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownObjectType, t)
		}
	}
	return objectTypes, nil
}
