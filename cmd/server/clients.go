package main

import (
	"context"
	"fmt"
	"log/slog"
)

// loopbackClient is the default capability backend. It acknowledges the
// requested action without talking to any external system, which keeps a
// fresh deployment fully routable before real integrations are wired in.
type loopbackClient struct {
	logger *slog.Logger
}

func newLoopbackClient(logger *slog.Logger) *loopbackClient {
	return &loopbackClient{logger: logger.With("component", "loopback_client")}
}

// Do implements handlers.Client.
func (c *loopbackClient) Do(_ context.Context, action string, params map[string]any) (string, error) {
	query, _ := params["query"].(string)
	c.logger.Info("loopback capability call", "action", action, "query", query)

	if query != "" {
		return fmt.Sprintf("Acknowledged %s for %q. No backend is connected to this capability yet.",
			action, query), nil
	}
	return fmt.Sprintf("Acknowledged %s. No backend is connected to this capability yet.", action), nil
}
