// Package service contains the application-level use cases: task
// lifecycle management, query routing and dispatch, and API-key
// authentication. Services orchestrate domain objects and the store
// interfaces; they never depend on concrete infrastructure, so the API
// layer and the wiring in cmd/server stay thin.
package service
