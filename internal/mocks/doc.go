// Package mocks provides shared in-memory test doubles for the store
// interfaces. The doubles keep the same claim and transition semantics
// as the SQL implementations so concurrency tests exercise the real
// state machine.
package mocks
