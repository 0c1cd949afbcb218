package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType identifies what an event describes.
type EventType string

// Recognized event types.
const (
	// EventTaskRequested asks the wiring layer to persist a new task.
	// Emitted by the full-reasoning handler for deferred work.
	EventTaskRequested EventType = "task.requested"

	// EventTaskCompleted reports a task reaching completed.
	EventTaskCompleted EventType = "task.completed"

	// EventTaskFailed reports a task reaching terminal failed.
	EventTaskFailed EventType = "task.failed"
)

// Event is one emitted occurrence with a typed JSON payload.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// TaskRequestPayload carries the fields needed to create a task from an
// EventTaskRequested event.
type TaskRequestPayload struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Handler     string         `json:"handler,omitempty"`
	Priority    int            `json:"priority,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TaskLifecyclePayload carries the outcome of a finished task for
// EventTaskCompleted and EventTaskFailed events.
type TaskLifecyclePayload struct {
	TaskID       uuid.UUID `json:"task_id"`
	Handler      string    `json:"handler,omitempty"`
	AttemptCount int       `json:"attempt_count"`
	Error        string    `json:"error,omitempty"`
}

// NewEvent creates an Event of the given type, serializing the payload.
func NewEvent(eventType EventType, payload interface{}) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *Event) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler processes emitted events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter publishes events to registered handlers without knowing
// who consumes them.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *Event) error
}
