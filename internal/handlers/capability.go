package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/registry"
)

// Client executes one named action against an external capability
// service. Implementations wrap real API clients and are injected at
// wiring time; the handlers never see credentials or transport details.
type Client interface {
	Do(ctx context.Context, action string, params map[string]any) (string, error)
}

// CapabilityHandler adapts one external capability client to the
// registry's handler contract. The handler resolves the action from the
// invocation params, records the tool call on the execution, and maps
// client errors to handler failures.
type CapabilityHandler struct {
	name          string
	metadata      registry.Metadata
	client        Client
	defaultAction string
}

// NewCapabilityHandler builds a handler for one capability.
func NewCapabilityHandler(
	name string,
	metadata registry.Metadata,
	client Client,
	defaultAction string,
) *CapabilityHandler {
	return &CapabilityHandler{
		name:          name,
		metadata:      metadata,
		client:        client,
		defaultAction: defaultAction,
	}
}

// Name implements registry.Handler.
func (h *CapabilityHandler) Name() string { return h.name }

// Metadata implements registry.Handler.
func (h *CapabilityHandler) Metadata() registry.Metadata { return h.metadata }

// Invoke resolves the action and runs it against the wrapped client.
func (h *CapabilityHandler) Invoke(ctx context.Context, inv *registry.Invocation) registry.Result {
	action := h.defaultAction
	if a, ok := stringParam(inv.Params, "action"); ok {
		action = a
	}

	params := make(map[string]any, len(inv.Params)+1)
	for k, v := range inv.Params {
		params[k] = v
	}
	if _, ok := params["query"]; !ok {
		params["query"] = inv.Query
	}

	if err := inv.Execution.AppendLog(domain.LogKindTool,
		fmt.Sprintf("%s.%s", h.name, action)); err != nil {
		return registry.Failure(registry.ErrorKindInternal, err.Error())
	}

	output, err := h.client.Do(ctx, action, params)
	if err != nil {
		return registry.Failure(registry.ErrorKindHandler,
			fmt.Sprintf("%s %s: %v", h.name, action, err))
	}

	return registry.Success(output)
}

func stringParam(params map[string]any, key string) (string, bool) {
	if params == nil {
		return "", false
	}
	v, ok := params[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
