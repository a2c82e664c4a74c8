package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/gpiogw/internal/action"
	"github.com/mattjoyce/gpiogw/internal/auth"
	"github.com/mattjoyce/gpiogw/internal/events"
	"github.com/mattjoyce/gpiogw/internal/plugin"
	"github.com/mattjoyce/gpiogw/internal/storage"
	"github.com/mattjoyce/gpiogw/internal/task"
)

// ActionQueue is the dispatch surface the API drives.
type ActionQueue interface {
	Enqueue(item action.QueueItem) error
	Tasks() []task.Info
	GetTask(id string) (task.Info, bool)
	CancelTask(id string) bool
	QueueDepth() int
	ActiveTasks() int
}

// HandlerRegistry lists the loaded handlers.
type HandlerRegistry interface {
	Handlers() []*plugin.Entry
	Kinds() []string
}

// ConfigIndex lists the loaded config documents.
type ConfigIndex interface {
	Names() []string
	Digest(name string) (string, bool)
}

// HistoryReader reads the action history.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
}

// EventSource feeds the SSE endpoint. *events.Hub satisfies it.
type EventSource interface {
	Subscribe() (<-chan events.Event, func())
	SnapshotSince(lastID int64) []events.Event
}

// Config holds API server configuration
type Config struct {
	Listen string
	// APIKey is a single bearer token with full access.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
}

func (c Config) authEnabled() bool {
	return c.APIKey != "" || len(c.Tokens) > 0
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	queue     ActionQueue
	registry  HandlerRegistry
	configs   ConfigIndex
	history   HistoryReader
	events    EventSource
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time
}

// New creates a new API server instance. history may be nil, in which case
// GET /gpio/history answers 503.
func New(config Config, queue ActionQueue, registry HandlerRegistry, configs ConfigIndex, history HistoryReader, hub EventSource, logger *slog.Logger) *Server {
	return &Server{
		config:    config,
		queue:     queue,
		registry:  registry,
		configs:   configs,
		history:   history,
		events:    hub,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start starts the HTTP server and blocks until ctx is done or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        s.config.Listen,
		Handler:     s.setupRoutes(),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: /gpio/events streams indefinitely
		IdleTimeout: 60 * time.Second,
	}

	if !s.config.authEnabled() {
		s.logger.Warn("API authentication disabled, no api_key or tokens configured")
	}
	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoints.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/gpio/ping", s.handlePing)
	r.Get("/openapi.json", s.handleOpenAPI)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.With(s.requireScopes(auth.ScopeActionsRW)).Post("/gpio/action", s.handlePostActions)
		r.With(s.requireScopes(auth.ScopeTasksRO)).Get("/gpio/task", s.handleListTasks)
		r.With(s.requireScopes(auth.ScopeTasksRO)).Get("/gpio/task/{id}", s.handleGetTask)
		r.With(s.requireScopes(auth.ScopeTasksRW)).Delete("/gpio/task/{id}", s.handleCancelTask)
		r.With(s.requireScopes(auth.ScopeTasksRO)).Get("/gpio/plugins", s.handleListPlugins)
		r.With(s.requireScopes(auth.ScopeTasksRO)).Get("/gpio/config", s.handleListConfigs)
		r.With(s.requireScopes(auth.ScopeTasksRO)).Get("/gpio/history", s.handleHistory)
		r.With(s.requireScopes(auth.ScopeEventsRO)).Get("/gpio/events", s.handleEvents)
	})

	return r
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
