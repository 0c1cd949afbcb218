package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/events"
	"github.com/concierge-dev/concierge/internal/platform/gemini"
	"github.com/concierge-dev/concierge/internal/registry"
)

// Generator produces a completion for a prompt. Satisfied by the Gemini
// platform client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*gemini.GenerationResult, error)
}

// taskDirectivePrefix marks lines in the model output that request
// deferred work instead of being part of the reply.
const taskDirectivePrefix = "TASK:"

const reasoningPreamble = `You are the reasoning core of a personal assistant.
Answer the user's request directly. If part of the request is better done
later as a background task, emit one line per task in the form:
TASK: <title> | handler=<handler-name> | priority=<1-5> | <description>
Everything else you write is shown to the user verbatim.

Request:
`

// ReasoningConfig tunes the full-reasoning handler.
type ReasoningConfig struct {
	// CostPerKTokensMillicents prices generation usage for the
	// execution's cost counter.
	CostPerKTokensMillicents int64
}

// Reasoning is the fallback handler that runs the full generation model.
// It answers queries no capability handler matched and may request
// deferred work through the event emitter.
type Reasoning struct {
	generator Generator
	emitter   events.EventEmitter
	config    ReasoningConfig
}

// NewReasoning creates the full-reasoning handler.
func NewReasoning(generator Generator, emitter events.EventEmitter, config ReasoningConfig) *Reasoning {
	if config.CostPerKTokensMillicents <= 0 {
		config.CostPerKTokensMillicents = 15
	}
	return &Reasoning{
		generator: generator,
		emitter:   emitter,
		config:    config,
	}
}

// Name implements registry.Handler.
func (h *Reasoning) Name() string { return registry.FullReasoningHandler }

// Metadata implements registry.Handler. The fallback handler carries no
// routing corpora: the router selects it by threshold, never by score.
func (h *Reasoning) Metadata() registry.Metadata {
	return registry.Metadata{
		Description: "Full reasoning model for requests no capability handler covers.",
	}
}

// Invoke generates a reply for the query. Task directives in the model
// output become follow-up tasks and are stripped from the reply text.
func (h *Reasoning) Invoke(ctx context.Context, inv *registry.Invocation) registry.Result {
	if err := inv.Execution.AppendLog(domain.LogKindThought, "generating full response"); err != nil {
		return registry.Failure(registry.ErrorKindInternal, err.Error())
	}

	result, err := h.generator.Generate(ctx, reasoningPreamble+inv.Query)
	if err != nil {
		return registry.Failure(registry.ErrorKindHandler,
			fmt.Sprintf("generation failed: %v", err))
	}

	cost := result.TokensUsed * h.config.CostPerKTokensMillicents / 1000
	if err := inv.Execution.AddUsage(result.TokensUsed, cost); err != nil {
		return registry.Failure(registry.ErrorKindInternal, err.Error())
	}

	reply, followups := parseTaskDirectives(result.Text)
	for _, f := range followups {
		if err := h.emitTaskRequest(ctx, inv, f); err != nil {
			// The reply stands even if a follow-up could not be queued.
			_ = inv.Execution.AppendLog(domain.LogKindThought,
				fmt.Sprintf("failed to queue follow-up %q: %v", f.Title, err))
		}
	}

	return registry.Success(reply, followups...)
}

func (h *Reasoning) emitTaskRequest(
	ctx context.Context,
	inv *registry.Invocation,
	f registry.FollowupTask,
) error {
	if h.emitter == nil {
		return nil
	}

	event, err := events.NewEvent(events.EventTaskRequested, events.TaskRequestPayload{
		Title:       f.Title,
		Description: f.Description,
		Handler:     f.Handler,
		Priority:    f.Priority,
		Metadata:    f.Metadata,
	})
	if err != nil {
		return err
	}

	if err := inv.Execution.AppendLog(domain.LogKindTool,
		fmt.Sprintf("task-request %s", f.Title)); err != nil {
		return err
	}

	return h.emitter.EmitEvent(ctx, event)
}

// parseTaskDirectives splits model output into the user-visible reply and
// the follow-up tasks requested by TASK: lines.
func parseTaskDirectives(text string) (string, []registry.FollowupTask) {
	var reply []string
	var followups []registry.FollowupTask

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, taskDirectivePrefix) {
			reply = append(reply, line)
			continue
		}

		if f, ok := parseDirective(strings.TrimPrefix(trimmed, taskDirectivePrefix)); ok {
			followups = append(followups, f)
		}
	}

	return strings.TrimSpace(strings.Join(reply, "\n")), followups
}

func parseDirective(body string) (registry.FollowupTask, bool) {
	fields := strings.Split(body, "|")
	title := strings.TrimSpace(fields[0])
	if title == "" {
		return registry.FollowupTask{}, false
	}

	f := registry.FollowupTask{Title: title}
	for _, field := range fields[1:] {
		field = strings.TrimSpace(field)
		switch {
		case strings.HasPrefix(field, "handler="):
			f.Handler = strings.TrimSpace(strings.TrimPrefix(field, "handler="))
		case strings.HasPrefix(field, "priority="):
			if p, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(field, "priority="))); err == nil {
				f.Priority = p
			}
		case field != "" && f.Description == "":
			f.Description = field
		}
	}

	return f, true
}
