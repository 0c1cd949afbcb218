// Package scheduler drains ready tasks from the store and dispatches
// them through the handler registry, independent of any live request.
// The pending to in_progress claim is the exclusivity point: both the
// poll loop and manual execution go through the same claim, so a task
// runs at most once concurrently no matter which path reaches it first.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/concierge-dev/concierge/internal/config"
	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/events"
	"github.com/concierge-dev/concierge/internal/registry"
	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// ErrTaskNotClaimable is returned by ExecuteTask when the task is not
// pending, typically because another path already claimed it.
var ErrTaskNotClaimable = errors.New("task is not pending and cannot be claimed")

// Dispatcher runs a named handler. Satisfied by the registry.
type Dispatcher interface {
	Invoke(ctx context.Context, name string, req registry.Request) registry.Result
}

// Scheduler owns the background poll loop and the single code path for
// executing a claimed task.
type Scheduler struct {
	tasks      store.TaskStore
	dispatcher Dispatcher
	emitter    events.EventEmitter
	logger     *slog.Logger
	config     config.SchedulerConfig

	sem    *semaphore.Weighted
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates a Scheduler. The emitter may be nil; lifecycle events are
// then skipped.
func New(
	tasks store.TaskStore,
	dispatcher Dispatcher,
	emitter events.EventEmitter,
	cfg config.SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Scheduler{
		tasks:      tasks,
		dispatcher: dispatcher,
		emitter:    emitter,
		logger:     logger.With("component", "scheduler"),
		config:     cfg,
		sem:        semaphore.NewWeighted(int64(concurrency)),
	}
}

// Start resets stuck tasks from a previous run and launches the poll
// loop. Calling Start on a running scheduler is an error.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}

	if s.config.StuckTaskAge > 0 {
		reset, err := s.tasks.ResetStuck(ctx, s.config.StuckTaskAge)
		if err != nil {
			return fmt.Errorf("failed to reset stuck tasks: %w", err)
		}
		if reset > 0 {
			s.logger.Warn("reset stuck tasks from previous run", "count", reset)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	s.wg.Add(1)
	go s.pollLoop(loopCtx)

	s.logger.Info("scheduler started",
		"poll_interval", s.config.PollInterval,
		"batch_size", s.config.BatchSize,
		"concurrency", s.config.Concurrency)
	return nil
}

// Stop halts the poll loop and waits for in-flight dispatches to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) pollLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// One immediate cycle so a restart does not wait a full interval.
	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// runCycle dispatches up to one batch of ready tasks. The semaphore
// bounds concurrent handler calls across cycles.
func (s *Scheduler) runCycle(ctx context.Context) {
	ready, err := s.tasks.GetReady(ctx, s.config.BatchSize, "")
	if err != nil {
		s.logger.Error("failed to fetch ready tasks", "error", err)
		return
	}
	if len(ready) == 0 {
		return
	}

	s.logger.Debug("dispatching ready tasks", "count", len(ready))

	for _, task := range ready {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return
		}

		s.wg.Add(1)
		go func(task *domain.Task) {
			defer s.wg.Done()
			defer s.sem.Release(1)

			claimed, err := s.tasks.ClaimTask(ctx, task.ID, time.Now().UTC())
			if err != nil {
				s.logger.Error("failed to claim task", "task_id", task.ID, "error", err)
				return
			}
			if !claimed {
				// Lost the race to a manual execution or a cancel.
				return
			}

			s.runClaimed(ctx, task)
		}(task)
	}
}

// ExecuteTask runs one task from the request path, sharing the claim and
// execution logic with the poll loop. Returns ErrTaskNotClaimable when
// the task is not pending.
func (s *Scheduler) ExecuteTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	claimed, err := s.tasks.ClaimTask(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("%w: task %s is %s", ErrTaskNotClaimable, id, task.Status)
	}

	s.runClaimed(ctx, task)
	return s.tasks.GetTask(ctx, id)
}

// runClaimed executes a task that has just been claimed. task carries
// the pre-claim snapshot; the claim already incremented attempt_count.
func (s *Scheduler) runClaimed(ctx context.Context, task *domain.Task) {
	attempt := task.AttemptCount + 1
	handlerName := task.AssignedHandler
	if handlerName == "" {
		handlerName = registry.FullReasoningHandler
	}

	log := s.logger.With(
		"task_id", task.ID,
		"handler", handlerName,
		"attempt", attempt,
		"max_attempts", task.MaxAttempts,
	)
	log.Info("executing task")

	query := task.Description
	if query == "" {
		query = task.Title
	}

	taskID := task.ID
	result := s.dispatcher.Invoke(ctx, handlerName, registry.Request{
		Query:  query,
		TaskID: &taskID,
		Params: task.Metadata,
	})

	if result.OK {
		s.seal(ctx, task, domain.TaskStatusCompleted, result.Text, "", attempt, log)
		return
	}

	log.Warn("task execution failed",
		"error_kind", result.ErrorKind,
		"error", result.ErrorMessage)

	if result.Retryable() && attempt < task.MaxAttempts {
		retryAt := time.Now().UTC().Add(s.backoff(attempt))
		err := s.tasks.ReleaseForRetry(ctx, task.ID, retryAt, result.ErrorMessage)
		switch {
		case err == nil:
			return
		case errors.Is(err, store.ErrTransitionConflict):
			log.Info("task no longer in progress, leaving status untouched")
			return
		case errors.Is(err, domain.ErrRetryExhausted):
			// The pre-claim snapshot was stale: the stored counter has
			// already reached the cap, so this attempt was the last one.
			log.Warn("attempt budget already spent, failing task")
		default:
			log.Error("failed to release task for retry", "error", err)
			return
		}
	}

	s.seal(ctx, task, domain.TaskStatusFailed, "", result.ErrorMessage, attempt, log)
}

// seal writes the terminal outcome. A conflict means the status changed
// underneath us (a cancel landed mid-flight); the late result is
// dropped rather than clobbering the terminal status.
func (s *Scheduler) seal(
	ctx context.Context,
	task *domain.Task,
	status domain.TaskStatus,
	result, errorMessage string,
	attempt int,
	log *slog.Logger,
) {
	err := s.tasks.TransitionStatus(ctx, task.ID, domain.TaskStatusInProgress, status, result, errorMessage)
	if err != nil {
		if errors.Is(err, store.ErrTransitionConflict) {
			log.Info("task status changed during execution, dropping late result",
				"intended_status", status)
			return
		}
		log.Error("failed to record task outcome", "status", status, "error", err)
		return
	}

	log.Info("task finished", "status", status)
	s.emitLifecycle(ctx, task, status, errorMessage, attempt)
}

func (s *Scheduler) emitLifecycle(
	ctx context.Context,
	task *domain.Task,
	status domain.TaskStatus,
	errorMessage string,
	attempt int,
) {
	if s.emitter == nil {
		return
	}

	eventType := events.EventTaskCompleted
	if status == domain.TaskStatusFailed {
		eventType = events.EventTaskFailed
	}

	event, err := events.NewEvent(eventType, events.TaskLifecyclePayload{
		TaskID:       task.ID,
		Handler:      task.AssignedHandler,
		AttemptCount: attempt,
		Error:        errorMessage,
	})
	if err != nil {
		s.logger.Error("failed to build lifecycle event", "task_id", task.ID, "error", err)
		return
	}
	if err := s.emitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit lifecycle event", "task_id", task.ID, "error", err)
	}
}

// backoff returns the scheduled_at push-out before the next attempt:
// exponential from the configured base, capped at the configured max.
func (s *Scheduler) backoff(attempt int) time.Duration {
	d := s.config.RetryBackoff
	if d <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if s.config.RetryBackoffMax > 0 && d >= s.config.RetryBackoffMax {
			return s.config.RetryBackoffMax
		}
	}
	if s.config.RetryBackoffMax > 0 && d > s.config.RetryBackoffMax {
		return s.config.RetryBackoffMax
	}
	return d
}
