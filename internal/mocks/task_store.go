package mocks

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
)

// MemoryTaskStore implements store.TaskStore in memory with the same
// conditional-claim and transition semantics as the SQL implementation.
type MemoryTaskStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*domain.Task
}

var _ store.TaskStore = (*MemoryTaskStore)(nil)

// NewMemoryTaskStore creates an empty MemoryTaskStore.
func NewMemoryTaskStore() *MemoryTaskStore {
	return &MemoryTaskStore{tasks: make(map[uuid.UUID]*domain.Task)}
}

// Put inserts or replaces a task directly, bypassing validation. Test
// setup only.
func (s *MemoryTaskStore) Put(task *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
}

// Mutate applies fn to the stored task under the lock. Test setup only.
func (s *MemoryTaskStore) Mutate(id uuid.UUID, fn func(task *domain.Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		fn(task)
	}
}

// CreateTask persists a new task.
func (s *MemoryTaskStore) CreateTask(_ context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *task
	s.tasks[task.ID] = &copied
	return nil
}

// GetTask retrieves a task by ID.
func (s *MemoryTaskStore) GetTask(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

// UpdateTask updates a task's editable fields.
func (s *MemoryTaskStore) UpdateTask(_ context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[task.ID]
	if !ok {
		return store.ErrTaskNotFound
	}
	existing.Title = task.Title
	existing.Description = task.Description
	existing.AssignedHandler = task.AssignedHandler
	existing.Priority = task.Priority
	existing.ScheduledAt = task.ScheduledAt
	existing.Metadata = task.Metadata
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteTask removes a task and, mirroring the cascade, its children.
func (s *MemoryTaskStore) DeleteTask(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return store.ErrTaskNotFound
	}
	delete(s.tasks, id)
	for childID, child := range s.tasks {
		if child.ParentTaskID != nil && *child.ParentTaskID == id {
			delete(s.tasks, childID)
		}
	}
	return nil
}

// ListTasks returns tasks matching the filter, newest first.
func (s *MemoryTaskStore) ListTasks(_ context.Context, filter store.TaskFilter) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.Task
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.AssignedHandler != "" && task.AssignedHandler != filter.AssignedHandler {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		copied := *task
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetReady returns dispatchable pending tasks in strict priority order
// with FIFO tie-break.
func (s *MemoryTaskStore) GetReady(_ context.Context, limit int, handlerFilter string) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()

	var ready []*domain.Task
	for _, task := range s.tasks {
		if !task.IsReady(now) {
			continue
		}
		if handlerFilter != "" && task.AssignedHandler != handlerFilter {
			continue
		}
		copied := *task
		ready = append(ready, &copied)
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority < ready[j].Priority
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})

	if len(ready) > limit {
		ready = ready[:limit]
	}
	return ready, nil
}

// ClaimTask atomically transitions a pending task to in_progress.
func (s *MemoryTaskStore) ClaimTask(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false, store.ErrTaskNotFound
	}
	if task.Status != domain.TaskStatusPending {
		return false, nil
	}
	task.Status = domain.TaskStatusInProgress
	task.AttemptCount++
	if task.StartedAt == nil {
		t := now
		task.StartedAt = &t
	}
	task.UpdatedAt = now
	return true, nil
}

// TransitionStatus moves a task between statuses, enforcing the state
// machine and the conditional write.
func (s *MemoryTaskStore) TransitionStatus(
	_ context.Context,
	id uuid.UUID,
	from, to domain.TaskStatus,
	result, errorMessage string,
) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if task.Status != from {
		return fmt.Errorf("%w: task %s is no longer %s", store.ErrTransitionConflict, id, from)
	}

	now := time.Now().UTC()
	task.Status = to
	task.Result = result
	task.ErrorMessage = errorMessage
	task.UpdatedAt = now
	if domain.IsTerminalStatus(to) {
		task.CompletedAt = &now
	}
	return nil
}

// ReleaseForRetry returns an in_progress task to pending with a
// deferred scheduled time. The attempt cap is checked against the
// stored counter, not the caller's snapshot.
func (s *MemoryTaskStore) ReleaseForRetry(
	_ context.Context,
	id uuid.UUID,
	retryAt time.Time,
	errorMessage string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if task.Status != domain.TaskStatusInProgress {
		return fmt.Errorf("%w: task %s is no longer %s",
			store.ErrTransitionConflict, id, domain.TaskStatusInProgress)
	}
	if task.AttemptCount >= task.MaxAttempts {
		return domain.ErrRetryExhausted
	}
	task.Status = domain.TaskStatusPending
	t := retryAt
	task.ScheduledAt = &t
	task.ErrorMessage = errorMessage
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetForRetry moves a failed task back to pending when attempts remain.
func (s *MemoryTaskStore) ResetForRetry(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return store.ErrTaskNotFound
	}
	if task.Status != domain.TaskStatusFailed {
		return fmt.Errorf("%w: %s -> %s",
			domain.ErrInvalidTransition, task.Status, domain.TaskStatusPending)
	}
	if task.AttemptCount >= task.MaxAttempts {
		return domain.ErrRetryExhausted
	}
	task.Status = domain.TaskStatusPending
	task.ErrorMessage = ""
	task.CompletedAt = nil
	task.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetStuck returns stale in_progress tasks to pending.
func (s *MemoryTaskStore) ResetStuck(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	count := 0
	for _, task := range s.tasks {
		if task.Status == domain.TaskStatusInProgress && task.UpdatedAt.Before(cutoff) {
			task.Status = domain.TaskStatusPending
			task.UpdatedAt = time.Now().UTC()
			count++
		}
	}
	return count, nil
}

// CountByGroup returns task counts grouped by status, handler, and priority.
func (s *MemoryTaskStore) CountByGroup(context.Context) (*store.TaskStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := &store.TaskStats{
		ByStatus:   make(map[domain.TaskStatus]int),
		ByHandler:  make(map[string]int),
		ByPriority: make(map[int]int),
	}
	for _, task := range s.tasks {
		stats.ByStatus[task.Status]++
		if task.AssignedHandler != "" {
			stats.ByHandler[task.AssignedHandler]++
		}
		stats.ByPriority[task.Priority]++
	}
	return stats, nil
}

// WithTx returns the store itself; the in-memory double has no
// transactions.
func (s *MemoryTaskStore) WithTx(*sql.Tx) store.TaskStore { return s }
