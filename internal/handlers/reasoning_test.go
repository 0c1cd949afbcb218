package handlers_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/concierge-dev/concierge/internal/events"
	"github.com/concierge-dev/concierge/internal/handlers"
	"github.com/concierge-dev/concierge/internal/platform/gemini"
	"github.com/concierge-dev/concierge/internal/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	text   string
	tokens int64
	err    error
}

func (g *fakeGenerator) Generate(context.Context, string) (*gemini.GenerationResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &gemini.GenerationResult{Text: g.text, TokensUsed: g.tokens}, nil
}

type capturingHandler struct {
	received []*events.Event
}

func (h *capturingHandler) HandleEvent(_ context.Context, event *events.Event) error {
	h.received = append(h.received, event)
	return nil
}

func TestReasoningReply(t *testing.T) {
	gen := &fakeGenerator{text: "Your next train is at 14:05.", tokens: 120}
	h := handlers.NewReasoning(gen, nil, handlers.ReasoningConfig{CostPerKTokensMillicents: 10})
	inv := newInvocation(t, "when is my next train", nil)

	result := h.Invoke(context.Background(), inv)

	require.True(t, result.OK)
	assert.Equal(t, "Your next train is at 14:05.", result.Text)
	assert.Empty(t, result.FollowupTasks)
	assert.Equal(t, int64(120), inv.Execution.TokensUsed)
	assert.Equal(t, int64(1), inv.Execution.CostMillicents)
}

func TestReasoningTaskDirectives(t *testing.T) {
	gen := &fakeGenerator{
		tokens: 300,
		text: "I'll keep an eye on that for you.\n" +
			"TASK: Check visa status | handler=email | priority=2 | Search inbox for embassy reply\n" +
			"TASK: Renew passport reminder\n",
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	emitter := events.NewInMemoryEventEmitter(logger)
	sink := &capturingHandler{}
	emitter.RegisterHandler(sink)

	h := handlers.NewReasoning(gen, emitter, handlers.ReasoningConfig{})
	inv := newInvocation(t, "chase up my visa application", nil)

	result := h.Invoke(context.Background(), inv)

	require.True(t, result.OK)
	assert.Equal(t, "I'll keep an eye on that for you.", result.Text)

	require.Len(t, result.FollowupTasks, 2)
	first := result.FollowupTasks[0]
	assert.Equal(t, "Check visa status", first.Title)
	assert.Equal(t, "email", first.Handler)
	assert.Equal(t, 2, first.Priority)
	assert.Equal(t, "Search inbox for embassy reply", first.Description)

	second := result.FollowupTasks[1]
	assert.Equal(t, "Renew passport reminder", second.Title)
	assert.Empty(t, second.Handler)

	require.Len(t, sink.received, 2)
	assert.Equal(t, events.EventTaskRequested, sink.received[0].Type)
	var payload events.TaskRequestPayload
	require.NoError(t, sink.received[0].UnmarshalPayload(&payload))
	assert.Equal(t, "Check visa status", payload.Title)
	assert.Equal(t, "email", payload.Handler)
}

func TestReasoningGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model unavailable")}
	h := handlers.NewReasoning(gen, nil, handlers.ReasoningConfig{})
	inv := newInvocation(t, "hello", nil)

	result := h.Invoke(context.Background(), inv)

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindHandler, result.ErrorKind)
	assert.True(t, result.Retryable())
}

func TestReasoningHandlerName(t *testing.T) {
	h := handlers.NewReasoning(&fakeGenerator{}, nil, handlers.ReasoningConfig{})
	assert.Equal(t, registry.FullReasoningHandler, h.Name())
	assert.Empty(t, h.Metadata().Patterns)
}
