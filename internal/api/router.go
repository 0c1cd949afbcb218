package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apimiddleware "github.com/concierge-dev/concierge/internal/api/middleware"
	"github.com/concierge-dev/concierge/internal/service"
	"github.com/concierge-dev/concierge/internal/service/auth"
	"github.com/concierge-dev/concierge/internal/store"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	AuthService  *service.AuthService
	TaskService  *service.TaskService
	QueryService *service.QueryService
	Decisions    store.DecisionStore
	TokenService auth.TokenService
	DB           Pinger
}

// NewRouter builds the chi router with all routes and middleware. The
// token endpoint and the health check are public; everything else
// requires a bearer token.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	authHandler := NewAuthHandler(deps.AuthService)
	taskHandler := NewTaskHandler(deps.TaskService)
	queryHandler := NewQueryHandler(deps.QueryService, deps.Decisions)
	healthHandler := NewHealthHandler(deps.DB)
	authMiddleware := apimiddleware.NewAuthMiddleware(deps.TokenService)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/token", authHandler.Token)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/query", queryHandler.Query)
			r.Get("/decisions", queryHandler.ListDecisions)

			r.Get("/tasks/stats", taskHandler.Stats)
			r.Post("/tasks", taskHandler.Create)
			r.Get("/tasks", taskHandler.List)
			r.Get("/tasks/{id}", taskHandler.Get)
			r.Patch("/tasks/{id}", taskHandler.Update)
			r.Delete("/tasks/{id}", taskHandler.Delete)
			r.Post("/tasks/{id}/execute", taskHandler.Execute)
			r.Post("/tasks/{id}/cancel", taskHandler.Cancel)
			r.Post("/tasks/{id}/retry", taskHandler.Retry)
		})
	})

	r.Get("/healthz", healthHandler.Health)

	return r
}
