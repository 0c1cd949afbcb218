package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
)

// TaskServiceError is a custom error type for task service errors.
type TaskServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TaskServiceError.
func (e *TaskServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("task service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TaskServiceError) Unwrap() error {
	return e.Err
}

// Executor runs one task through the claim + dispatch path. Satisfied
// by the scheduler, so manual execution and the poll loop share one
// code path.
type Executor interface {
	ExecuteTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)
}

// CreateTaskParams carries the caller-supplied fields for a new task.
type CreateTaskParams struct {
	Title           string
	Description     string
	AssignedHandler string
	Priority        int
	MaxAttempts     int
	ScheduledAt     *time.Time
	ParentTaskID    *uuid.UUID
	Metadata        map[string]any
}

// UpdateTaskParams carries a partial update; nil fields are left as-is.
type UpdateTaskParams struct {
	Title           *string
	Description     *string
	AssignedHandler *string
	Priority        *int
	ScheduledAt     *time.Time
	Metadata        map[string]any
}

// TaskService implements task lifecycle use cases over the task store.
type TaskService struct {
	tasks              store.TaskStore
	db                 *sql.DB
	executor           Executor
	logger             *slog.Logger
	defaultMaxAttempts int
}

// NewTaskService creates a TaskService. db may be nil when no
// transactional parent checks are needed (tests).
func NewTaskService(
	tasks store.TaskStore,
	db *sql.DB,
	executor Executor,
	defaultMaxAttempts int,
	logger *slog.Logger,
) *TaskService {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = 3
	}
	return &TaskService{
		tasks:              tasks,
		db:                 db,
		executor:           executor,
		logger:             logger.With("component", "task_service"),
		defaultMaxAttempts: defaultMaxAttempts,
	}
}

// CreateTask validates and persists a new pending task. When a parent is
// named, its existence is checked in the same transaction as the insert.
func (s *TaskService) CreateTask(ctx context.Context, params CreateTaskParams) (*domain.Task, error) {
	maxAttempts := params.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = s.defaultMaxAttempts
	}

	task, err := domain.NewTask(params.Title, params.Description, params.Priority, maxAttempts)
	if err != nil {
		return nil, err
	}
	task.AssignedHandler = params.AssignedHandler
	task.ScheduledAt = params.ScheduledAt
	task.ParentTaskID = params.ParentTaskID
	task.Metadata = params.Metadata

	if params.ParentTaskID != nil && s.db != nil {
		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			txTasks := s.tasks.WithTx(tx)
			if _, err := txTasks.GetTask(ctx, *params.ParentTaskID); err != nil {
				if errors.Is(err, store.ErrTaskNotFound) {
					return ErrParentTaskNotFound
				}
				return err
			}
			return txTasks.CreateTask(ctx, task)
		})
	} else {
		if params.ParentTaskID != nil {
			if _, err := s.tasks.GetTask(ctx, *params.ParentTaskID); err != nil {
				if errors.Is(err, store.ErrTaskNotFound) {
					return nil, ErrParentTaskNotFound
				}
				return nil, err
			}
		}
		err = s.tasks.CreateTask(ctx, task)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		"task_id", task.ID,
		"handler", task.AssignedHandler,
		"priority", task.Priority)
	return task, nil
}

// GetTask retrieves one task.
func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return s.tasks.GetTask(ctx, id)
}

// UpdateTask applies a partial update to a task's editable fields.
func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, params UpdateTaskParams) (*domain.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Title != nil {
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = *params.Description
	}
	if params.AssignedHandler != nil {
		task.AssignedHandler = *params.AssignedHandler
	}
	if params.Priority != nil {
		task.Priority = *params.Priority
	}
	if params.ScheduledAt != nil {
		task.ScheduledAt = params.ScheduledAt
	}
	if params.Metadata != nil {
		task.Metadata = params.Metadata
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	return s.tasks.GetTask(ctx, id)
}

// DeleteTask removes a task; children cascade with it.
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.tasks.DeleteTask(ctx, id)
}

// ListTasks returns tasks matching the filter.
func (s *TaskService) ListTasks(ctx context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	return s.tasks.ListTasks(ctx, filter)
}

// Stats returns task counts grouped by status, handler, and priority.
func (s *TaskService) Stats(ctx context.Context) (*store.TaskStats, error) {
	return s.tasks.CountByGroup(ctx)
}

// CancelTask moves a pending or in_progress task to cancelled. A task
// already running keeps running; the scheduler observes the cancelled
// status at sealing time and drops the late result.
func (s *TaskService) CancelTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if domain.IsTerminalStatus(task.Status) {
		return nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotCancellable, id, task.Status)
	}

	err = s.tasks.TransitionStatus(ctx, id, task.Status, domain.TaskStatusCancelled, "", "")
	if err != nil {
		if errors.Is(err, store.ErrTransitionConflict) {
			// Status moved between the read and the write; report the
			// current state instead of guessing.
			current, getErr := s.tasks.GetTask(ctx, id)
			if getErr == nil && current.Status == domain.TaskStatusCancelled {
				return current, nil
			}
		}
		return nil, err
	}

	s.logger.Info("task cancelled", "task_id", id, "was", task.Status)
	return s.tasks.GetTask(ctx, id)
}

// RetryTask resets a failed task to pending. Legal only while attempts
// remain; this is the sole path from failed back to pending.
func (s *TaskService) RetryTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if err := s.tasks.ResetForRetry(ctx, id); err != nil {
		return nil, err
	}
	s.logger.Info("task reset for retry", "task_id", id)
	return s.tasks.GetTask(ctx, id)
}

// ExecuteTask dispatches a task immediately through the shared claim
// path. Returns scheduler.ErrTaskNotClaimable (wrapped) when the task
// is not pending.
func (s *TaskService) ExecuteTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.executor == nil {
		return nil, &TaskServiceError{Operation: "execute", Message: "no executor configured"}
	}
	return s.executor.ExecuteTask(ctx, id)
}
