package main

import (
	"context"
	"log/slog"

	"github.com/concierge-dev/concierge/internal/events"
)

// lifecycleLogger records task completion and failure events so the log
// stream carries a full account of scheduled work without a separate
// audit query.
type lifecycleLogger struct {
	logger *slog.Logger
}

func newLifecycleLogger(logger *slog.Logger) *lifecycleLogger {
	return &lifecycleLogger{logger: logger.With("component", "task_lifecycle")}
}

// HandleEvent implements events.EventHandler.
func (l *lifecycleLogger) HandleEvent(_ context.Context, event *events.Event) error {
	switch event.Type {
	case events.EventTaskCompleted, events.EventTaskFailed:
	default:
		return nil
	}

	var payload events.TaskLifecyclePayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		l.logger.Warn("unparseable lifecycle payload", "event_id", event.ID, "error", err)
		return nil
	}

	if event.Type == events.EventTaskFailed {
		l.logger.Warn("task failed",
			"task_id", payload.TaskID,
			"handler", payload.Handler,
			"attempt_count", payload.AttemptCount,
			"error", payload.Error)
		return nil
	}

	l.logger.Info("task completed",
		"task_id", payload.TaskID,
		"handler", payload.Handler,
		"attempt_count", payload.AttemptCount)
	return nil
}
