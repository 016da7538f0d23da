package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
	"mercator-hq/janitor/pkg/config"
	"mercator-hq/janitor/pkg/server/middleware"
	"mercator-hq/janitor/pkg/telemetry/health"
	"mercator-hq/janitor/pkg/telemetry/metrics"
	"mercator-hq/janitor/pkg/telemetry/tracing"
)

// Controller is the run controller surface the RPC endpoint drives.
type Controller interface {
	List(ctx context.Context) ([]cleanup.CategoryStatus, error)
	Start(ctx context.Context, categoryID string) (*cleanup.Run, error)
	Tick(ctx context.Context, runID string, opts cleanup.TickOptions) (*cleanup.TickResult, error)
	Pause(ctx context.Context, runID string) (*cleanup.Run, error)
	Resume(ctx context.Context, runID string) (*cleanup.Run, error)
	Stop(ctx context.Context, runID string) (*cleanup.Run, error)
	Scan(ctx context.Context, categoryID string, cutoff *time.Time) (int64, error)
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// Health serves the probe endpoints when non-nil.
	Health *health.Checker

	// Version is served on the version endpoint.
	Version health.VersionInfo

	// Metrics records RPC calls and serves the metrics endpoint when non-nil.
	Metrics *metrics.Collector

	Logger *slog.Logger
}

// Server is the HTTP server for the cleanup RPC endpoint.
type Server struct {
	config       *config.ServerConfig
	telemetry    *config.TelemetryConfig
	controller   Controller
	health       *health.Checker
	version      health.VersionInfo
	metrics      *metrics.Collector
	logger       *slog.Logger
	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server for ctrl.
func NewServer(cfg *config.Config, ctrl Controller, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "server")
	}
	return &Server{
		config:       &cfg.Server,
		telemetry:    &cfg.Telemetry,
		controller:   ctrl,
		health:       opts.Health,
		version:      opts.Version,
		metrics:      opts.Metrics,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting cleanup server",
			"address", s.config.ListenAddress,
			"api_path", s.config.APIPath,
			"auth", s.config.AuthToken != "",
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)

		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		httpServer := s.httpServer
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if httpServer != nil {
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("cleanup server stopped")
	})

	return shutdownErr
}

// setupRoutes configures HTTP routes and the middleware chain.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	rpc := middleware.BearerAuth(s.config.AuthToken)(http.HandlerFunc(s.handleRPC))
	mux.Handle(s.config.APIPath, rpc)

	if s.health != nil {
		s.health.Mount(mux, &s.telemetry.Health, s.version)
	}
	if s.metrics != nil && s.telemetry.Metrics.Enabled {
		mux.Handle(s.telemetry.Metrics.Path, s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = middleware.Timeout(s.config.RequestTimeout)(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Logging(s.logger)(handler)
	// Recovery middleware (outermost)
	handler = middleware.Recovery(handler)

	return handler
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}
