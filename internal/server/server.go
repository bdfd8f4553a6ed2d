// Package server provides the HTTP trigger and reporting API with lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raphaelgruber/portalsync/internal/metrics"
	"github.com/raphaelgruber/portalsync/internal/models"
	"github.com/raphaelgruber/portalsync/internal/service"
	"github.com/raphaelgruber/portalsync/internal/warehouse"
)

// Syncer runs syncs. *service.SyncService implements it.
type Syncer interface {
	// TrySync returns errs.ErrSyncInProgress without waiting when a run is
	// already going. An empty kind syncs everything.
	TrySync(ctx context.Context, kind models.Kind) (*models.SyncRunResult, error)
	Progress() (service.RunProgress, bool)
}

// Reports reads the relational projection. *warehouse.Store implements it.
type Reports interface {
	Stats(ctx context.Context) (*warehouse.Stats, error)
	LocationHistory(ctx context.Context, locationID string, limit int) (*warehouse.LocationHistory, error)
	RecentRuns(ctx context.Context, limit int) ([]warehouse.RunRecord, error)
	Ping(ctx context.Context) error
}

// Pinger checks a store's reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server dependencies.
type Config struct {
	Sync      Syncer
	Reports   Reports
	Documents Pinger             // optional, included in /health
	Collector *metrics.Collector // optional, served on /api/stats/runtime
	JWTSecret string

	// SyncTimeout bounds one triggered run. 0 means 10 minutes.
	SyncTimeout time.Duration
}

// Server wraps the HTTP server with dependencies and lifecycle management.
type Server struct {
	cfg    Config
	logger *slog.Logger
	router chi.Router
}

// New creates the server and registers its routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	if cfg.Sync == nil || cfg.Reports == nil {
		return nil, errors.New("server: sync service and reports are required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("server: JWT secret is required")
	}
	if cfg.SyncTimeout <= 0 {
		cfg.SyncTimeout = 10 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{cfg: cfg, logger: logger}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireRole([]byte(s.cfg.JWTSecret), SyncRoles...))

		r.Post("/sync", s.handleSync)
		r.Get("/sync/status", s.handleSyncStatus)
		r.Get("/sync/runs", s.handleRuns)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/runtime", s.handleRuntimeStats)
		r.Get("/locations/{id}/history", s.handleHistory)
	})
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: s.cfg.SyncTimeout + 30*time.Second, // sync responses are synchronous
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
