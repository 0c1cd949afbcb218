package service

import (
	"context"
	"log/slog"

	"github.com/concierge-dev/concierge/internal/domain"
	"github.com/concierge-dev/concierge/internal/registry"
)

// Router decides which handler serves a query. Satisfied by the tiered
// router.
type Router interface {
	Route(ctx context.Context, query string) (*domain.RoutingDecision, error)
}

// Dispatcher runs a named handler. Satisfied by the registry.
type Dispatcher interface {
	Invoke(ctx context.Context, name string, req registry.Request) registry.Result
}

// QueryOutcome pairs the routing decision with the handler result for
// one live query.
type QueryOutcome struct {
	Decision *domain.RoutingDecision
	Result   registry.Result
}

// QueryService runs the synchronous query path: route, then dispatch
// the chosen handler.
type QueryService struct {
	router     Router
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewQueryService creates a QueryService.
func NewQueryService(router Router, dispatcher Dispatcher, logger *slog.Logger) *QueryService {
	return &QueryService{
		router:     router,
		dispatcher: dispatcher,
		logger:     logger.With("component", "query_service"),
	}
}

// Query routes the text and invokes the selected handler synchronously.
func (s *QueryService) Query(ctx context.Context, text string) (*QueryOutcome, error) {
	decision, err := s.router.Route(ctx, text)
	if err != nil {
		return nil, err
	}

	result := s.dispatcher.Invoke(ctx, decision.SelectedHandler, registry.Request{
		Query: text,
	})

	s.logger.Info("query served",
		"tier", decision.TierUsed,
		"handler", decision.SelectedHandler,
		"confidence", decision.Confidence,
		"ok", result.OK)

	return &QueryOutcome{Decision: decision, Result: result}, nil
}
