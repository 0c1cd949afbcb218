package service

import (
	"context"
	"log/slog"

	"github.com/concierge-dev/concierge/internal/events"
)

// TaskRequestHandler persists task-request events as tasks. It is the
// bridge between the full-reasoning handler's deferred-work events and
// the task store, registered on the emitter in cmd/server.
type TaskRequestHandler struct {
	tasks  *TaskService
	logger *slog.Logger
}

// NewTaskRequestHandler creates a TaskRequestHandler.
func NewTaskRequestHandler(tasks *TaskService, logger *slog.Logger) *TaskRequestHandler {
	return &TaskRequestHandler{
		tasks:  tasks,
		logger: logger.With("component", "task_request_handler"),
	}
}

// HandleEvent implements events.EventHandler. Events other than task
// requests are ignored.
func (h *TaskRequestHandler) HandleEvent(ctx context.Context, event *events.Event) error {
	if event.Type != events.EventTaskRequested {
		return nil
	}

	var payload events.TaskRequestPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		h.logger.Error("failed to decode task request payload",
			"event_id", event.ID,
			"error", err)
		return err
	}

	task, err := h.tasks.CreateTask(ctx, CreateTaskParams{
		Title:           payload.Title,
		Description:     payload.Description,
		AssignedHandler: payload.Handler,
		Priority:        payload.Priority,
		Metadata:        payload.Metadata,
	})
	if err != nil {
		h.logger.Error("failed to create task from event",
			"event_id", event.ID,
			"title", payload.Title,
			"error", err)
		return err
	}

	h.logger.Info("task created from event",
		"event_id", event.ID,
		"task_id", task.ID)
	return nil
}
