package registry_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/registry"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutionStore records executions in memory.
type fakeExecutionStore struct {
	mu      sync.Mutex
	created []*domain.Execution
	sealed  []*domain.Execution

	createErr error
}

func (f *fakeExecutionStore) CreateExecution(_ context.Context, exec *domain.Execution) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, exec)
	return nil
}

func (f *fakeExecutionStore) SealExecution(_ context.Context, exec *domain.Execution) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sealed = append(f.sealed, exec)
	return nil
}

func (f *fakeExecutionStore) GetExecution(_ context.Context, id uuid.UUID) (*domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, exec := range f.created {
		if exec.ID == id {
			return exec, nil
		}
	}
	return nil, domain.ErrExecutionHandlerEmpty
}

// funcHandler adapts a closure to the Handler interface.
type funcHandler struct {
	name     string
	metadata registry.Metadata
	invoke   func(ctx context.Context, inv *registry.Invocation) registry.Result
}

func (h *funcHandler) Name() string                { return h.name }
func (h *funcHandler) Metadata() registry.Metadata { return h.metadata }
func (h *funcHandler) Invoke(ctx context.Context, inv *registry.Invocation) registry.Result {
	return h.invoke(ctx, inv)
}

func newTestRegistry(t *testing.T, store *fakeExecutionStore, cfg registry.Config) *registry.Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return registry.New(store, cfg, logger)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := newTestRegistry(t, &fakeExecutionStore{}, registry.DefaultConfig())

	h := &funcHandler{name: "email", invoke: func(context.Context, *registry.Invocation) registry.Result {
		return registry.Success("ok")
	}}

	require.NoError(t, reg.Register(h))
	assert.Error(t, reg.Register(h))
	assert.Equal(t, []string{"email"}, reg.Names())
}

func TestInvokeUnknownHandler(t *testing.T) {
	execs := &fakeExecutionStore{}
	reg := newTestRegistry(t, execs, registry.DefaultConfig())

	result := reg.Invoke(context.Background(), "nope", registry.Request{Query: "hi"})

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindUnknownHandler, result.ErrorKind)
	assert.False(t, result.Retryable())
	// No execution record is written for a name that was never resolved.
	assert.Empty(t, execs.created)
}

func TestInvokeSealsExecution(t *testing.T) {
	execs := &fakeExecutionStore{}
	reg := newTestRegistry(t, execs, registry.DefaultConfig())

	require.NoError(t, reg.Register(&funcHandler{
		name: "notes",
		invoke: func(_ context.Context, inv *registry.Invocation) registry.Result {
			require.NoError(t, inv.Execution.AppendLog(domain.LogKindTool, "notes.search"))
			require.NoError(t, inv.Execution.AddUsage(10, 2))
			return registry.Success("found it")
		},
	}))

	result := reg.Invoke(context.Background(), "notes", registry.Request{Query: "find my note"})

	require.True(t, result.OK)
	assert.Equal(t, "found it", result.Text)

	require.Len(t, execs.sealed, 1)
	exec := execs.sealed[0]
	assert.Equal(t, result.ExecutionID, exec.ID)
	assert.Equal(t, domain.ExecutionStatusCompleted, exec.Status)
	assert.True(t, exec.Sealed())
	assert.NotNil(t, exec.CompletedAt)
	assert.Equal(t, int64(10), exec.TokensUsed)
	require.Len(t, exec.Log, 1)
	assert.Equal(t, domain.LogKindTool, exec.Log[0].Kind)

	// Sealed executions are immutable.
	assert.ErrorIs(t, exec.AppendLog(domain.LogKindThought, "late"), domain.ErrExecutionSealed)
	assert.ErrorIs(t, exec.AddUsage(1, 0), domain.ErrExecutionSealed)
}

func TestInvokeHandlerFailureSealsFailed(t *testing.T) {
	execs := &fakeExecutionStore{}
	reg := newTestRegistry(t, execs, registry.DefaultConfig())

	require.NoError(t, reg.Register(&funcHandler{
		name: "calendar",
		invoke: func(context.Context, *registry.Invocation) registry.Result {
			return registry.Failure(registry.ErrorKindHandler, "upstream 503")
		},
	}))

	result := reg.Invoke(context.Background(), "calendar", registry.Request{Query: "book it"})

	assert.False(t, result.OK)
	assert.True(t, result.Retryable())
	require.Len(t, execs.sealed, 1)
	assert.Equal(t, domain.ExecutionStatusFailed, execs.sealed[0].Status)
}

func TestInvokeRecoversPanic(t *testing.T) {
	execs := &fakeExecutionStore{}
	reg := newTestRegistry(t, execs, registry.DefaultConfig())

	require.NoError(t, reg.Register(&funcHandler{
		name: "flaky",
		invoke: func(context.Context, *registry.Invocation) registry.Result {
			panic("boom")
		},
	}))

	result := reg.Invoke(context.Background(), "flaky", registry.Request{Query: "go"})

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindHandler, result.ErrorKind)
	assert.Contains(t, result.ErrorMessage, "boom")
	require.Len(t, execs.sealed, 1)
	assert.Equal(t, domain.ExecutionStatusFailed, execs.sealed[0].Status)
}

func TestInvokeTimeout(t *testing.T) {
	execs := &fakeExecutionStore{}
	cfg := registry.DefaultConfig()
	cfg.InvokeTimeout = 25 * time.Millisecond
	reg := newTestRegistry(t, execs, cfg)

	require.NoError(t, reg.Register(&funcHandler{
		name: "slow",
		invoke: func(ctx context.Context, _ *registry.Invocation) registry.Result {
			<-ctx.Done()
			time.Sleep(50 * time.Millisecond)
			return registry.Success("too late")
		},
	}))

	result := reg.Invoke(context.Background(), "slow", registry.Request{Query: "wait"})

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindTimeout, result.ErrorKind)
	assert.True(t, result.Retryable())
	require.Len(t, execs.sealed, 1)
	assert.Equal(t, domain.ExecutionStatusFailed, execs.sealed[0].Status)
}

func TestInvokeTimeoutSealsAgainstLingeringHandler(t *testing.T) {
	execs := &fakeExecutionStore{}
	cfg := registry.DefaultConfig()
	cfg.InvokeTimeout = 25 * time.Millisecond
	reg := newTestRegistry(t, execs, cfg)

	handlerDone := make(chan error, 1)
	require.NoError(t, reg.Register(&funcHandler{
		name: "lingering",
		invoke: func(ctx context.Context, inv *registry.Invocation) registry.Result {
			<-ctx.Done()
			// The deadline has fired and the caller is sealing the record
			// on its side. Keep writing until the seal shuts the door.
			var err error
			for err == nil {
				err = inv.Execution.AppendLog(domain.LogKindTool, "late write")
				if err == nil {
					err = inv.Execution.AddUsage(1, 0)
				}
			}
			handlerDone <- err
			return registry.Success("too late")
		},
	}))

	result := reg.Invoke(context.Background(), "lingering", registry.Request{Query: "wait"})

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindTimeout, result.ErrorKind)

	var lateErr error
	select {
	case lateErr = <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("abandoned handler goroutine never observed the seal")
	}
	assert.ErrorIs(t, lateErr, domain.ErrExecutionSealed)

	require.Len(t, execs.sealed, 1)
	exec := execs.sealed[0]
	assert.True(t, exec.Sealed())
	assert.Equal(t, domain.ExecutionStatusFailed, exec.Status)

	// Nothing lands after the seal: the log length is stable now that
	// every mutator reports ErrExecutionSealed.
	logLen := len(exec.Log)
	assert.ErrorIs(t, exec.AppendLog(domain.LogKindThought, "even later"), domain.ErrExecutionSealed)
	assert.Len(t, exec.Log, logLen)
}

func TestDelegationBuildsExecutionTree(t *testing.T) {
	execs := &fakeExecutionStore{}
	reg := newTestRegistry(t, execs, registry.DefaultConfig())

	require.NoError(t, reg.Register(&funcHandler{
		name: "child",
		invoke: func(_ context.Context, inv *registry.Invocation) registry.Result {
			require.NoError(t, inv.Execution.AddUsage(7, 3))
			return registry.Success("child done")
		},
	}))
	require.NoError(t, reg.Register(&funcHandler{
		name: "parent",
		invoke: func(ctx context.Context, inv *registry.Invocation) registry.Result {
			require.NoError(t, inv.Execution.AddUsage(5, 1))
			child := inv.Delegate(ctx, "child", registry.Request{Query: "sub"})
			require.True(t, child.OK)
			return registry.Success("parent done")
		},
	}))

	result := reg.Invoke(context.Background(), "parent", registry.Request{Query: "top"})

	require.True(t, result.OK)
	require.Len(t, execs.sealed, 2)

	// Child seals before the parent.
	childExec := execs.sealed[0]
	parentExec := execs.sealed[1]
	assert.Equal(t, "child", childExec.HandlerName)
	assert.Equal(t, "parent", parentExec.HandlerName)
	require.NotNil(t, childExec.ParentExecutionID)
	assert.Equal(t, parentExec.ID, *childExec.ParentExecutionID)
	assert.Nil(t, parentExec.ParentExecutionID)

	// Child usage rolls up into the parent's totals.
	assert.Equal(t, int64(7), childExec.TokensUsed)
	assert.Equal(t, int64(12), parentExec.TokensUsed)
	assert.Equal(t, int64(4), parentExec.CostMillicents)
}

func TestDelegationDepthLimit(t *testing.T) {
	execs := &fakeExecutionStore{}
	cfg := registry.DefaultConfig()
	cfg.MaxDelegationDepth = 2
	reg := newTestRegistry(t, execs, cfg)

	var depthFailure registry.Result
	names := []string{"a", "b", "c", "d"}
	for i, name := range names {
		name := name
		next := ""
		if i+1 < len(names) {
			next = names[i+1]
		}
		require.NoError(t, reg.Register(&funcHandler{
			name: name,
			invoke: func(ctx context.Context, inv *registry.Invocation) registry.Result {
				if next == "" {
					return registry.Success("bottom")
				}
				res := inv.Delegate(ctx, next, registry.Request{Query: "down"})
				if !res.OK && res.ErrorKind == registry.ErrorKindDelegation {
					depthFailure = res
					return res
				}
				return res
			},
		}))
	}

	result := reg.Invoke(context.Background(), "a", registry.Request{Query: "start"})

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindDelegation, depthFailure.ErrorKind)
	assert.Contains(t, depthFailure.ErrorMessage, "depth")
	assert.False(t, depthFailure.Retryable())

	// Executions exist only for calls that passed the depth check:
	// a (0), b (1), c (2).
	assert.Len(t, execs.created, 3)
}

func TestDelegationCycleRejected(t *testing.T) {
	execs := &fakeExecutionStore{}
	reg := newTestRegistry(t, execs, registry.DefaultConfig())

	var cycleFailure registry.Result
	require.NoError(t, reg.Register(&funcHandler{
		name: "ping",
		invoke: func(ctx context.Context, inv *registry.Invocation) registry.Result {
			return inv.Delegate(ctx, "pong", registry.Request{Query: "over"})
		},
	}))
	require.NoError(t, reg.Register(&funcHandler{
		name: "pong",
		invoke: func(ctx context.Context, inv *registry.Invocation) registry.Result {
			cycleFailure = inv.Delegate(ctx, "ping", registry.Request{Query: "back"})
			return cycleFailure
		},
	}))

	result := reg.Invoke(context.Background(), "ping", registry.Request{Query: "serve"})

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindDelegation, cycleFailure.ErrorKind)
	assert.Contains(t, cycleFailure.ErrorMessage, "cycle")
	// Only ping and pong ran; the cyclic re-entry never got a record.
	assert.Len(t, execs.created, 2)
}

func TestDelegateOutsideRegistry(t *testing.T) {
	inv := &registry.Invocation{Query: "loose"}
	result := inv.Delegate(context.Background(), "anything", registry.Request{})
	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindDelegation, result.ErrorKind)
}

func TestInvokeExecutionStoreFailure(t *testing.T) {
	execs := &fakeExecutionStore{createErr: assert.AnError}
	reg := newTestRegistry(t, execs, registry.DefaultConfig())

	require.NoError(t, reg.Register(&funcHandler{
		name: "email",
		invoke: func(context.Context, *registry.Invocation) registry.Result {
			t.Fatal("handler must not run when the execution record cannot be created")
			return registry.Result{}
		},
	}))

	result := reg.Invoke(context.Background(), "email", registry.Request{Query: "send"})

	assert.False(t, result.OK)
	assert.Equal(t, registry.ErrorKindInternal, result.ErrorKind)
}
