// Package domain contains the core entities of the assistant: tasks,
// routing decisions, and handler executions. Entities validate themselves
// on construction and expose their lifecycle rules (status transitions,
// sealing) so that stores and services cannot produce invalid states.
package domain
