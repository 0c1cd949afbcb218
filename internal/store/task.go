package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/google/uuid"
)

// TaskFilter narrows ListTasks results. Nil/zero fields are ignored.
type TaskFilter struct {
	Status          *domain.TaskStatus
	AssignedHandler string
	Priority        *int
	Limit           int
	Offset          int
}

// TaskStats holds task counts grouped by status, handler, and priority.
type TaskStats struct {
	ByStatus   map[domain.TaskStatus]int `json:"by_status"`
	ByHandler  map[string]int            `json:"by_handler"`
	ByPriority map[int]int               `json:"by_priority"`
}

// TaskStore defines the persistence contract for tasks.
type TaskStore interface {
	// CreateTask persists a new task.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by ID.
	// Returns ErrTaskNotFound if it does not exist.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// UpdateTask updates a task's editable fields (title, description,
	// priority, assigned handler, scheduled time, metadata).
	// Status and attempt bookkeeping go through TransitionStatus/ClaimTask.
	UpdateTask(ctx context.Context, task *domain.Task) error

	// DeleteTask removes a task. Deletion cascades to child tasks.
	DeleteTask(ctx context.Context, id uuid.UUID) error

	// ListTasks returns tasks matching the filter, newest first.
	ListTasks(ctx context.Context, filter TaskFilter) ([]*domain.Task, error)

	// GetReady returns up to limit pending tasks whose scheduled time has
	// passed (or is unset), ordered by priority ascending then created_at
	// ascending. A non-empty handlerFilter restricts to that handler.
	GetReady(ctx context.Context, limit int, handlerFilter string) ([]*domain.Task, error)

	// ClaimTask atomically transitions a task from pending to in_progress,
	// incrementing attempt_count and stamping started_at on the first
	// claim. Returns false (and no error) when the task was not pending,
	// which is how concurrent claim attempts lose the race.
	ClaimTask(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// TransitionStatus moves a task from one status to another, stamping
	// completed_at for terminal states and recording result or error
	// message, all in a single atomic write. Returns
	// domain.ErrInvalidTransition for moves the state machine forbids and
	// ErrTransitionConflict when the task's status is no longer `from`.
	TransitionStatus(
		ctx context.Context,
		id uuid.UUID,
		from, to domain.TaskStatus,
		result, errorMessage string,
	) error

	// ReleaseForRetry moves an in_progress task back to pending with a
	// deferred scheduled time and the failure message recorded, in one
	// atomic write. Used by the scheduler's backoff path. Returns
	// ErrTransitionConflict when the task's status is no longer
	// in_progress (e.g. it was cancelled mid-flight) and
	// domain.ErrRetryExhausted when the stored attempt_count has already
	// reached max_attempts.
	ReleaseForRetry(ctx context.Context, id uuid.UUID, retryAt time.Time, errorMessage string) error

	// ResetForRetry moves a failed task back to pending, clearing its
	// error message. Legal only while attempt_count < max_attempts;
	// returns domain.ErrRetryExhausted otherwise.
	ResetForRetry(ctx context.Context, id uuid.UUID) error

	// ResetStuck returns in_progress tasks older than the given age to
	// pending, for crash recovery at startup. Returns the number of tasks
	// reset.
	ResetStuck(ctx context.Context, olderThan time.Duration) (int, error)

	// CountByGroup returns task counts grouped by status, handler, and
	// priority.
	CountByGroup(ctx context.Context) (*TaskStats, error)

	// WithTx returns a TaskStore bound to the given transaction.
	WithTx(tx *sql.Tx) TaskStore
}
