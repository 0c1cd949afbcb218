// Package main implements the entry point for the concierge server: a
// self-hosted conversational assistant core with tiered query routing,
// delegated capability handlers, and a background task scheduler.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// main wires configuration, storage, routing, and the HTTP surface
// together, then runs until interrupted.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}
