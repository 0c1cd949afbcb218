// Package store defines the persistence interfaces for tasks, routing
// decisions, and executions, along with shared store errors and the
// transaction helper. Implementations live in internal/platform/postgres.
package store
