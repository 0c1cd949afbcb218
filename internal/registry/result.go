package registry

import "github.com/google/uuid"

// ErrorKind classifies a failed handler invocation. Input-style failures
// (unknown handler, delegation violations) are never retried; execution
// failures feed the task retry path.
type ErrorKind string

// Recognized error kinds.
const (
	// ErrorKindHandler is an error raised inside a capability handler,
	// including recovered panics.
	ErrorKindHandler ErrorKind = "handler_error"

	// ErrorKindTimeout is a per-call timeout expiry. Treated like a
	// handler failure for retry purposes.
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindUnknownHandler is a lookup of a handler name that is not
	// registered.
	ErrorKindUnknownHandler ErrorKind = "unknown_handler"

	// ErrorKindDelegation is a delegation depth or cycle violation.
	ErrorKindDelegation ErrorKind = "delegation_error"

	// ErrorKindInternal is an infrastructure error inside the registry
	// itself (e.g. the execution record could not be created).
	ErrorKindInternal ErrorKind = "internal_error"
)

// FollowupTask describes deferred work a handler wants persisted.
// The full-reasoning handler uses this to queue tasks it decides not to
// answer inline.
type FollowupTask struct {
	Title       string
	Description string
	Handler     string
	Priority    int
	Metadata    map[string]any
}

// Result is the discriminated outcome of one handler invocation.
type Result struct {
	OK            bool
	Text          string
	FollowupTasks []FollowupTask

	ErrorKind    ErrorKind
	ErrorMessage string

	// ExecutionID identifies the audit record the registry wrote for
	// this invocation.
	ExecutionID uuid.UUID
}

// Success builds a successful Result with optional follow-up tasks.
func Success(text string, followups ...FollowupTask) Result {
	return Result{
		OK:            true,
		Text:          text,
		FollowupTasks: followups,
	}
}

// Failure builds a failed Result with the given kind and message.
func Failure(kind ErrorKind, message string) Result {
	return Result{
		OK:           false,
		ErrorKind:    kind,
		ErrorMessage: message,
	}
}

// Retryable reports whether a failure should feed the task retry path.
// Input-style failures are surfaced immediately and never retried.
func (r Result) Retryable() bool {
	if r.OK {
		return false
	}
	switch r.ErrorKind {
	case ErrorKindHandler, ErrorKindTimeout, ErrorKindInternal:
		return true
	default:
		return false
	}
}
