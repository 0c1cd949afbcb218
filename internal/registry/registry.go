// Package registry manages the set of capability handlers and wraps
// every invocation with execution audit records, per-call timeouts, and
// delegation enforcement. All handler calls in the system, whether from
// the router, the scheduler, or a delegating handler, pass through here.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/store"
	"github.com/google/uuid"
)

// FullReasoningHandler is the reserved name of the fallback handler that
// runs the full reasoning model. It must be registered before the router
// or scheduler start.
const FullReasoningHandler = "full-reasoning"

// Metadata describes a handler to the router: Tier-1 patterns (ordered,
// first match wins), the keyword corpus for lexical scoring, and the
// example corpus for semantic scoring.
type Metadata struct {
	Description string   `json:"description"`
	Patterns    []string `json:"patterns,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// Handler is the uniform contract all capability handlers implement,
// the full-reasoning handler included.
type Handler interface {
	// Name returns the handler's unique registration name.
	Name() string

	// Metadata returns the handler's routing corpora.
	Metadata() Metadata

	// Invoke executes the handler for one invocation. Errors are
	// reported through the Result, not a separate error return; the
	// registry translates panics and timeouts itself.
	Invoke(ctx context.Context, inv *Invocation) Result
}

// Invocation carries one handler call: the originating query or task,
// handler-specific parameters from task metadata, the current execution
// handle, and the delegation callback.
type Invocation struct {
	Query  string
	TaskID *uuid.UUID
	Params map[string]any

	// Execution is the audit record for this invocation. Handlers append
	// tool invocations, thinking notes, and usage counters to it.
	Execution *domain.Execution

	delegate func(ctx context.Context, target string, req Request) Result
}

// Delegate invokes a different registered handler from within a running
// handler. The registry enforces the maximum delegation depth and
// rejects cycles back to an already-active handler name.
func (inv *Invocation) Delegate(ctx context.Context, target string, req Request) Result {
	if inv.delegate == nil {
		return Failure(ErrorKindDelegation, "delegation is not available outside a registry invocation")
	}
	return inv.delegate(ctx, target, req)
}

// Request is the caller-facing input to an invocation.
type Request struct {
	Query  string
	TaskID *uuid.UUID
	Params map[string]any
}

// Config holds registry settings.
type Config struct {
	// MaxDelegationDepth bounds nested delegation. Depth 0 is the
	// top-level call.
	MaxDelegationDepth int

	// InvokeTimeout bounds each individual handler call.
	InvokeTimeout time.Duration
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxDelegationDepth: 5,
		InvokeTimeout:      2 * time.Minute,
	}
}

// Registry holds the named handlers and owns all Execution records:
// every call is wrapped so audit logging is consistent regardless of
// which handler runs.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	order    []string

	executions store.ExecutionStore
	logger     *slog.Logger
	config     Config
}

// New creates a Registry with the given execution store and settings.
func New(executions store.ExecutionStore, config Config, logger *slog.Logger) *Registry {
	if config.MaxDelegationDepth <= 0 {
		config.MaxDelegationDepth = DefaultConfig().MaxDelegationDepth
	}
	if config.InvokeTimeout <= 0 {
		config.InvokeTimeout = DefaultConfig().InvokeTimeout
	}

	return &Registry{
		handlers:   make(map[string]Handler),
		executions: executions,
		logger:     logger.With("component", "registry"),
		config:     config,
	}
}

// Register adds a handler under its name. Registration order is
// preserved; the router uses it as the deterministic tie-break.
func (r *Registry) Register(h Handler) error {
	name := h.Name()
	if name == "" {
		return fmt.Errorf("handler name must be non-empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}

	r.handlers[name] = h
	r.order = append(r.order, name)
	r.logger.Info("handler registered", "handler", name)
	return nil
}

// Names returns the registered handler names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// MetadataFor returns the routing metadata for a registered handler.
func (r *Registry) MetadataFor(name string) (Metadata, bool) {
	h, ok := r.Get(name)
	if !ok {
		return Metadata{}, false
	}
	return h.Metadata(), true
}

// Invoke runs the named handler for the given request, wrapping it with
// an execution record. This is the single entry point for top-level
// handler calls.
func (r *Registry) Invoke(ctx context.Context, name string, req Request) Result {
	return r.invoke(ctx, name, req, callState{
		active: make(map[string]bool),
	})
}

// callState tracks one delegation chain.
type callState struct {
	depth  int
	active map[string]bool
	parent *domain.Execution
}

func (r *Registry) invoke(ctx context.Context, name string, req Request, state callState) Result {
	handler, ok := r.Get(name)
	if !ok {
		r.logger.Warn("invocation of unknown handler", "handler", name)
		return Failure(ErrorKindUnknownHandler, fmt.Sprintf("no handler registered under %q", name))
	}

	if state.depth > r.config.MaxDelegationDepth {
		return Failure(ErrorKindDelegation,
			fmt.Sprintf("delegation depth %d exceeds maximum %d", state.depth, r.config.MaxDelegationDepth))
	}
	if state.active[name] {
		return Failure(ErrorKindDelegation,
			fmt.Sprintf("delegation cycle: handler %q is already active in this call chain", name))
	}

	var parentID *uuid.UUID
	if state.parent != nil {
		id := state.parent.ID
		parentID = &id
	}

	exec, err := domain.NewExecution(name, req.TaskID, parentID)
	if err != nil {
		return Failure(ErrorKindInternal, fmt.Sprintf("failed to create execution: %v", err))
	}
	if err := r.executions.CreateExecution(ctx, exec); err != nil {
		r.logger.Error("failed to persist execution record",
			"handler", name,
			"error", err)
		return Failure(ErrorKindInternal, "failed to record execution")
	}

	log := r.logger.With(
		"handler", name,
		"execution_id", exec.ID,
		"depth", state.depth,
	)
	log.Debug("invoking handler")

	childActive := make(map[string]bool, len(state.active)+1)
	for k := range state.active {
		childActive[k] = true
	}
	childActive[name] = true

	inv := &Invocation{
		Query:     req.Query,
		TaskID:    req.TaskID,
		Params:    req.Params,
		Execution: exec,
		delegate: func(ctx context.Context, target string, req Request) Result {
			return r.invoke(ctx, target, req, callState{
				depth:  state.depth + 1,
				active: childActive,
				parent: exec,
			})
		},
	}

	result := r.callWithTimeout(ctx, handler, inv, log)
	result.ExecutionID = exec.ID

	status := domain.ExecutionStatusCompleted
	if !result.OK {
		status = domain.ExecutionStatusFailed
	}
	if err := exec.Seal(status); err != nil {
		log.Error("failed to seal execution", "error", err)
	}
	if err := r.executions.SealExecution(ctx, exec); err != nil {
		log.Error("failed to persist sealed execution", "error", err)
	}

	// Roll usage up into the parent so the top-level execution carries
	// aggregate accounting for the whole delegation tree.
	if state.parent != nil {
		if err := state.parent.AddUsage(exec.TokensUsed, exec.CostMillicents); err != nil {
			log.Warn("failed to roll up usage to parent execution", "error", err)
		}
	}

	log.Debug("handler invocation finished",
		"ok", result.OK,
		"error_kind", result.ErrorKind,
		"tokens_used", exec.TokensUsed)

	return result
}

// callWithTimeout runs the handler under the per-call timeout, recovering
// panics into failures. A timeout failure feeds the retry path like any
// other handler failure.
func (r *Registry) callWithTimeout(
	ctx context.Context,
	handler Handler,
	inv *Invocation,
	log *slog.Logger,
) Result {
	ctx, cancel := context.WithTimeout(ctx, r.config.InvokeTimeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				log.Error("handler panicked", "panic", p)
				done <- Failure(ErrorKindHandler, fmt.Sprintf("handler panic: %v", p))
			}
		}()
		done <- handler.Invoke(ctx, inv)
	}()

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return Failure(ErrorKindTimeout,
				fmt.Sprintf("handler %q exceeded timeout %s", handler.Name(), r.config.InvokeTimeout))
		}
		return Failure(ErrorKindHandler, fmt.Sprintf("invocation cancelled: %v", ctx.Err()))
	}
}
