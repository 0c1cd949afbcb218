package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

// Possible task status values.
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task-specific validation and lifecycle errors.
var (
	// ErrTaskIDEmpty is returned when a task ID is empty or nil.
	ErrTaskIDEmpty = errors.New("task ID cannot be empty")

	// ErrTaskTitleEmpty is returned when a task's title is empty.
	ErrTaskTitleEmpty = errors.New("task title cannot be empty")

	// ErrTaskPriorityInvalid is returned when a task's priority is outside 1..5.
	ErrTaskPriorityInvalid = errors.New("task priority must be between 1 and 5")

	// ErrTaskMaxAttemptsInvalid is returned when max attempts is not positive.
	ErrTaskMaxAttemptsInvalid = errors.New("task max attempts must be positive")

	// ErrTaskStatusInvalid is returned when a task carries an unknown status.
	ErrTaskStatusInvalid = errors.New("task status is not a recognized value")

	// ErrInvalidTransition is returned when a status change violates the
	// task state machine. Illegal transitions are rejected, never silently
	// ignored.
	ErrInvalidTransition = errors.New("illegal task status transition")

	// ErrRetryExhausted is returned when a failed task is reset for retry
	// but has already used all of its attempts.
	ErrRetryExhausted = errors.New("task has no attempts remaining")
)

// validTransitions is the task state machine. failed -> pending is legal
// only through an explicit retry reset, which is checked separately in
// CanRetry; it is listed here because the transition itself is permitted.
var validTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled},
	TaskStatusFailed:     {TaskStatusPending},
	TaskStatusCompleted:  {},
	TaskStatusCancelled:  {},
}

// ValidTaskStatus reports whether s is a recognized task status.
func ValidTaskStatus(s TaskStatus) bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransition reports whether the task state machine permits moving
// from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether a status ends the task lifecycle.
// Terminal statuses are never overwritten, including by late-arriving
// execution results.
func IsTerminalStatus(s TaskStatus) bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// Task represents a persisted, schedulable unit of work with its own
// status lifecycle, independent of any single live request.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`

	// AssignedHandler names the capability handler that executes this
	// task. Empty means the full-reasoning handler decides at execution
	// time.
	AssignedHandler string `json:"assigned_handler,omitempty"`

	// Priority orders ready tasks: 1 is highest, 5 is lowest.
	Priority int `json:"priority"`

	// ScheduledAt defers execution; nil means eligible immediately.
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`

	Result       string `json:"result,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	AttemptCount int `json:"attempt_count"`
	MaxAttempts  int `json:"max_attempts"`

	// ParentTaskID links subtasks to their parent. The parent/child
	// relation forms a tree; deletion of a parent cascades to children.
	ParentTaskID *uuid.UUID `json:"parent_task_id,omitempty"`

	// Metadata is an open key/value bag of handler-specific parameters.
	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTask creates a pending Task with the given title. Priority and max
// attempts get defaults when zero. Returns an error if validation fails.
func NewTask(title, description string, priority int, maxAttempts int) (*Task, error) {
	if priority == 0 {
		priority = 3
	}
	if maxAttempts == 0 {
		maxAttempts = 3
	}

	now := time.Now().UTC()
	task := &Task{
		ID:          uuid.New(),
		Title:       title,
		Description: description,
		Status:      TaskStatusPending,
		Priority:    priority,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks if the Task has valid data.
// Returns an error if any field fails validation.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrTaskIDEmpty
	}

	if t.Title == "" {
		return ErrTaskTitleEmpty
	}

	if t.Priority < 1 || t.Priority > 5 {
		return ErrTaskPriorityInvalid
	}

	if t.MaxAttempts < 1 {
		return ErrTaskMaxAttemptsInvalid
	}

	if !ValidTaskStatus(t.Status) {
		return fmt.Errorf("%w: %q", ErrTaskStatusInvalid, t.Status)
	}

	return nil
}

// IsReady reports whether the task is eligible for dispatch at the given
// time: pending, and either unscheduled or past its scheduled time.
func (t *Task) IsReady(now time.Time) bool {
	if t.Status != TaskStatusPending {
		return false
	}
	return t.ScheduledAt == nil || !t.ScheduledAt.After(now)
}

// CanRetry reports whether a failed task may be reset to pending.
func (t *Task) CanRetry() bool {
	return t.Status == TaskStatusFailed && t.AttemptCount < t.MaxAttempts
}
