package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := TaskRequestPayload{
		Title:    "triage inbox",
		Handler:  "email",
		Priority: 2,
	}

	event, err := NewEvent(EventTaskRequested, payload)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, EventTaskRequested, event.Type)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded TaskRequestPayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewEventUnserializablePayload(t *testing.T) {
	_, err := NewEvent(EventTaskRequested, map[string]any{"bad": make(chan int)})
	assert.Error(t, err)
}

func TestLifecyclePayloadRoundTrip(t *testing.T) {
	taskID := uuid.New()
	event, err := NewEvent(EventTaskFailed, TaskLifecyclePayload{
		TaskID:       taskID,
		Handler:      "calendar",
		AttemptCount: 3,
		Error:        "upstream unavailable",
	})
	require.NoError(t, err)

	var decoded TaskLifecyclePayload
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, taskID, decoded.TaskID)
	assert.Equal(t, 3, decoded.AttemptCount)
	assert.Equal(t, "upstream unavailable", decoded.Error)
}

// MockEventHandler implements EventHandler for tests.
type MockEventHandler struct {
	LastEvent    *Event
	HandlerError error
	HandledCount int
}

func (h *MockEventHandler) HandleEvent(ctx context.Context, event *Event) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestMockEventHandler(t *testing.T) {
	handler := &MockEventHandler{}

	event, err := NewEvent(EventTaskCompleted, TaskLifecyclePayload{TaskID: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, handler.HandleEvent(context.Background(), event))
	assert.Equal(t, 1, handler.HandledCount)
	assert.Equal(t, event, handler.LastEvent)

	handler.HandlerError = errors.New("handler error")
	err = handler.HandleEvent(context.Background(), event)
	assert.EqualError(t, err, "handler error")
	assert.Equal(t, 2, handler.HandledCount)
}
