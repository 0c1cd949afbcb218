// Package events decouples components that produce work from the wiring
// that persists or reports it. The full-reasoning handler emits
// task-request events without importing the task service; the scheduler
// and task service emit lifecycle events consumed by logging handlers.
package events
