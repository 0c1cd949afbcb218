package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/mocks"
	"github.com/concierge-dev/concierge/internal/service"
	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	executed []uuid.UUID
	result   *domain.Task
	err      error
}

func (e *fakeExecutor) ExecuteTask(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	e.executed = append(e.executed, id)
	return e.result, e.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTaskService(tasks store.TaskStore, executor service.Executor) *service.TaskService {
	return service.NewTaskService(tasks, nil, executor, 3, discardLogger())
}

func TestCreateTaskAppliesDefaults(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		Title: "summarize standup notes",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, 3, task.Priority)
	assert.Equal(t, 3, task.MaxAttempts)
	assert.Equal(t, 0, task.AttemptCount)

	stored, err := tasks.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, "summarize standup notes", stored.Title)
}

func TestCreateTaskRejectsMissingParent(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	missing := uuid.New()
	_, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		Title:        "child of nothing",
		ParentTaskID: &missing,
	})
	assert.ErrorIs(t, err, service.ErrParentTaskNotFound)
}

func TestCreateTaskWithExistingParent(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	parent, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		Title: "plan the offsite",
	})
	require.NoError(t, err)

	child, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		Title:        "book the venue",
		ParentTaskID: &parent.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, child.ParentTaskID)
	assert.Equal(t, parent.ID, *child.ParentTaskID)
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	_, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: ""})
	assert.ErrorIs(t, err, domain.ErrTaskTitleEmpty)

	_, err = svc.CreateTask(context.Background(), service.CreateTaskParams{
		Title:    "bad priority",
		Priority: 9,
	})
	assert.ErrorIs(t, err, domain.ErrTaskPriorityInvalid)
}

func TestUpdateTaskIsPartial(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
		Title:       "triage inbox",
		Description: "original description",
		Priority:    2,
	})
	require.NoError(t, err)

	newPriority := 4
	updated, err := svc.UpdateTask(context.Background(), task.ID, service.UpdateTaskParams{
		Priority: &newPriority,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, updated.Priority)
	assert.Equal(t, "triage inbox", updated.Title)
	assert.Equal(t, "original description", updated.Description)
}

func TestUpdateTaskValidatesResult(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "triage inbox"})
	require.NoError(t, err)

	empty := ""
	_, err = svc.UpdateTask(context.Background(), task.ID, service.UpdateTaskParams{Title: &empty})
	assert.ErrorIs(t, err, domain.ErrTaskTitleEmpty)
}

func TestCancelPendingTask(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "triage inbox"})
	require.NoError(t, err)

	cancelled, err := svc.CancelTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)
}

func TestCancelInProgressTask(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "long job"})
	require.NoError(t, err)
	claimed, err := tasks.ClaimTask(context.Background(), task.ID, time.Now().UTC())
	require.NoError(t, err)
	require.True(t, claimed)

	cancelled, err := svc.CancelTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCancelled, cancelled.Status)
}

func TestCancelTerminalTaskRejected(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "done already"})
	require.NoError(t, err)
	tasks.Mutate(task.ID, func(task *domain.Task) {
		task.Status = domain.TaskStatusCompleted
	})

	_, err = svc.CancelTask(context.Background(), task.ID)
	assert.ErrorIs(t, err, service.ErrTaskNotCancellable)
}

func TestRetryFailedTask(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "flaky job"})
	require.NoError(t, err)
	tasks.Mutate(task.ID, func(task *domain.Task) {
		task.Status = domain.TaskStatusFailed
		task.AttemptCount = 1
		task.ErrorMessage = "upstream 503"
	})

	retried, err := svc.RetryTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, retried.Status)
	assert.Empty(t, retried.ErrorMessage)
}

func TestRetryExhaustedTaskRejected(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "doomed job"})
	require.NoError(t, err)
	tasks.Mutate(task.ID, func(task *domain.Task) {
		task.Status = domain.TaskStatusFailed
		task.AttemptCount = task.MaxAttempts
	})

	_, err = svc.RetryTask(context.Background(), task.ID)
	assert.ErrorIs(t, err, domain.ErrRetryExhausted)
}

func TestRetryNonFailedTaskRejected(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	task, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "still pending"})
	require.NoError(t, err)

	_, err = svc.RetryTask(context.Background(), task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestStatsGroupsCounts(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	svc := newTaskService(tasks, nil)

	for i := 0; i < 3; i++ {
		_, err := svc.CreateTask(context.Background(), service.CreateTaskParams{
			Title:           "pending work",
			AssignedHandler: "email",
		})
		require.NoError(t, err)
	}
	done, err := svc.CreateTask(context.Background(), service.CreateTaskParams{Title: "finished work"})
	require.NoError(t, err)
	tasks.Mutate(done.ID, func(task *domain.Task) {
		task.Status = domain.TaskStatusCompleted
	})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ByStatus[domain.TaskStatusPending])
	assert.Equal(t, 1, stats.ByStatus[domain.TaskStatusCompleted])
	assert.Equal(t, 3, stats.ByHandler["email"])
}

func TestExecuteTaskDelegatesToExecutor(t *testing.T) {
	tasks := mocks.NewMemoryTaskStore()
	executor := &fakeExecutor{result: &domain.Task{Status: domain.TaskStatusCompleted}}
	svc := newTaskService(tasks, executor)

	id := uuid.New()
	result, err := svc.ExecuteTask(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusCompleted, result.Status)
	assert.Equal(t, []uuid.UUID{id}, executor.executed)
}

func TestExecuteTaskWithoutExecutor(t *testing.T) {
	svc := newTaskService(mocks.NewMemoryTaskStore(), nil)

	_, err := svc.ExecuteTask(context.Background(), uuid.New())
	require.Error(t, err)
	var svcErr *service.TaskServiceError
	assert.ErrorAs(t, err, &svcErr)
}
