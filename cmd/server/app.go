package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/concierge-dev/concierge/internal/api"
	"github.com/concierge-dev/concierge/internal/cache"
	"github.com/concierge-dev/concierge/internal/config"
	"github.com/concierge-dev/concierge/internal/events"
	"github.com/concierge-dev/concierge/internal/handlers"
	"github.com/concierge-dev/concierge/internal/platform/gemini"
	"github.com/concierge-dev/concierge/internal/platform/logger"
	"github.com/concierge-dev/concierge/internal/platform/postgres"
	"github.com/concierge-dev/concierge/internal/registry"
	"github.com/concierge-dev/concierge/internal/router"
	"github.com/concierge-dev/concierge/internal/scheduler"
	"github.com/concierge-dev/concierge/internal/service"
	"github.com/concierge-dev/concierge/internal/service/auth"
	"github.com/concierge-dev/concierge/migrations"
)

// application holds the composed dependencies of the running server.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	db        *sql.DB
	scheduler *scheduler.Scheduler
	handler   http.Handler
}

// newApplication loads configuration and wires every component. Nothing
// here starts serving yet; Run does that.
func newApplication(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	// Cache backend: Redis when configured, in-process otherwise. Cache
	// failures only ever degrade to recomputation, so a missing Redis is
	// a deployment choice rather than an error.
	var cacheBackend cache.Cache
	if cfg.Cache.RedisAddr != "" {
		cacheBackend = cache.NewRedisCache(cfg.Cache.RedisAddr, log)
		log.Info("using redis cache", "addr", cfg.Cache.RedisAddr)
	} else {
		cacheBackend = cache.NewMemoryCache()
		log.Info("using in-memory cache")
	}

	llm, err := gemini.NewClient(ctx, log, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	taskStore := postgres.NewPostgresTaskStore(db)
	decisionStore := postgres.NewPostgresDecisionStore(db)
	executionStore := postgres.NewPostgresExecutionStore(db)

	emitter := events.NewInMemoryEventEmitter(log)

	reg := registry.New(executionStore, registry.Config{
		MaxDelegationDepth: cfg.Registry.MaxDelegationDepth,
		InvokeTimeout:      cfg.Registry.InvokeTimeout,
	}, log)
	if err := registerHandlers(reg, llm, emitter, log); err != nil {
		return nil, err
	}

	tieredRouter, err := router.New(reg, llm, cacheBackend, decisionStore, cfg.Router, cfg.Cache, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	sched := scheduler.New(taskStore, reg, emitter, cfg.Scheduler, log)

	taskService := service.NewTaskService(taskStore, db, sched, cfg.Scheduler.MaxAttempts, log)
	queryService := service.NewQueryService(tieredRouter, reg, log)

	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}
	authService := service.NewAuthService(tokenService, auth.NewBcryptVerifier(), cfg.Auth.APIKeyHash, log)

	// Follow-up tasks requested by the reasoning handler land in the
	// task store through the event bus; lifecycle outcomes go to the log.
	emitter.RegisterHandler(service.NewTaskRequestHandler(taskService, log))
	emitter.RegisterHandler(newLifecycleLogger(log))

	handler := api.NewRouter(api.RouterDeps{
		AuthService:  authService,
		TaskService:  taskService,
		QueryService: queryService,
		Decisions:    decisionStore,
		TokenService: tokenService,
		DB:           db,
	})

	return &application{
		config:    cfg,
		logger:    log,
		db:        db,
		scheduler: sched,
		handler:   handler,
	}, nil
}

// openDatabase connects, verifies the connection, and applies pending
// migrations.
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("database ready")
	return db, nil
}

// registerHandlers registers the capability handlers and the
// full-reasoning fallback. The capability backends here are loopback
// clients; real integrations are injected in their place per deployment.
func registerHandlers(
	reg *registry.Registry,
	llm *gemini.Client,
	emitter events.EventEmitter,
	log *slog.Logger,
) error {
	client := newLoopbackClient(log)

	all := []registry.Handler{
		handlers.NewCodeHosting(client),
		handlers.NewEmail(client),
		handlers.NewCalendar(client),
		handlers.NewNotes(client),
		handlers.NewTaskTracking(client),
		handlers.NewReasoning(llm, emitter, handlers.ReasoningConfig{}),
	}

	for _, h := range all {
		if err := reg.Register(h); err != nil {
			return fmt.Errorf("failed to register handler: %w", err)
		}
	}
	return nil
}

// Run starts the scheduler and the HTTP server and blocks until the
// context is cancelled, then shuts both down gracefully.
func (app *application) Run(ctx context.Context) error {
	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error("failed to close database", "error", err)
		}
	}()

	if err := app.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer app.scheduler.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server listening", "port", app.config.Server.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
