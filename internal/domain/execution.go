package domain

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus represents the state of one handler invocation.
type ExecutionStatus string

// Possible execution status values.
const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ExecutionLogKind distinguishes the entries in an execution's ordered log.
type ExecutionLogKind string

const (
	// LogKindTool records one tool invocation made by the handler.
	LogKindTool ExecutionLogKind = "tool"

	// LogKindThought records an intermediate reasoning note.
	LogKindThought ExecutionLogKind = "thought"
)

// Execution-specific errors.
var (
	// ErrExecutionHandlerEmpty is returned when an execution names no handler.
	ErrExecutionHandlerEmpty = errors.New("execution handler name cannot be empty")

	// ErrExecutionSealed is returned on any attempt to mutate an
	// execution after it has been sealed.
	ErrExecutionSealed = errors.New("execution is sealed and cannot be modified")
)

// ExecutionLogEntry is one ordered entry in an execution's log: a tool
// invocation or an intermediate thinking note.
type ExecutionLogEntry struct {
	Kind    ExecutionLogKind `json:"kind"`
	Content string           `json:"content"`
	At      time.Time        `json:"at"`
}

// Execution records one invocation of a handler, including the
// full-reasoning handler. Executions created while another execution is
// active reference it through ParentExecutionID, forming a delegation
// tree. An execution is created at invocation start, appended to during
// execution, and sealed at completion; a sealed execution is immutable.
//
// AppendLog, AddUsage, Seal, and Sealed are safe for concurrent use: a
// timed-out handler keeps running on its own goroutine and may still be
// appending when the caller seals the record. Once Seal returns, every
// mutator fails with ErrExecutionSealed, so the sealed fields can be
// read without further locking.
type Execution struct {
	ID                uuid.UUID       `json:"id"`
	HandlerName       string          `json:"handler_name"`
	TaskID            *uuid.UUID      `json:"task_id,omitempty"`
	ParentExecutionID *uuid.UUID      `json:"parent_execution_id,omitempty"`
	Status            ExecutionStatus `json:"status"`
	StartedAt         time.Time       `json:"started_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`

	// TokensUsed and CostMillicents accumulate over the call and, on
	// sealing, roll up into the parent execution for aggregate accounting.
	TokensUsed     int64 `json:"tokens_used"`
	CostMillicents int64 `json:"cost_millicents"`

	Log []ExecutionLogEntry `json:"log,omitempty"`

	mu     sync.Mutex
	sealed bool
}

// NewExecution creates a running Execution for the named handler.
// taskID and parentID may be nil: a live chat turn has no task, and a
// top-level invocation has no parent.
func NewExecution(handlerName string, taskID, parentID *uuid.UUID) (*Execution, error) {
	if handlerName == "" {
		return nil, ErrExecutionHandlerEmpty
	}

	return &Execution{
		ID:                uuid.New(),
		HandlerName:       handlerName,
		TaskID:            taskID,
		ParentExecutionID: parentID,
		Status:            ExecutionStatusRunning,
		StartedAt:         time.Now().UTC(),
	}, nil
}

// AppendLog adds an entry to the execution's ordered log.
// Returns ErrExecutionSealed if the execution has been sealed.
func (e *Execution) AppendLog(kind ExecutionLogKind, content string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return ErrExecutionSealed
	}

	e.Log = append(e.Log, ExecutionLogEntry{
		Kind:    kind,
		Content: content,
		At:      time.Now().UTC(),
	})
	return nil
}

// AddUsage accumulates token and cost counters.
// Returns ErrExecutionSealed if the execution has been sealed.
func (e *Execution) AddUsage(tokens, costMillicents int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return ErrExecutionSealed
	}

	e.TokensUsed += tokens
	e.CostMillicents += costMillicents
	return nil
}

// Seal marks the execution as finished with the given terminal status and
// stamps CompletedAt. Sealing twice is an error.
func (e *Execution) Seal(status ExecutionStatus) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return ErrExecutionSealed
	}

	now := time.Now().UTC()
	e.Status = status
	e.CompletedAt = &now
	e.sealed = true
	return nil
}

// Sealed reports whether the execution has been sealed.
func (e *Execution) Sealed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sealed
}
