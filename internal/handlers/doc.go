// Package handlers contains the capability handlers registered with the
// registry: thin adapters over injected external-service clients
// (code hosting, email, calendar, notes, task tracking) and the
// full-reasoning handler backed by the generation model. Each handler
// carries the routing metadata the router uses to match queries to it.
package handlers
