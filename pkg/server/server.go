package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/mixpolicy/pkg/config"
	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/telemetry/health"
	"mercator-hq/mixpolicy/pkg/telemetry/metrics"
)

// Options contains the optional collaborators of a Server.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records request metrics and serves the metrics endpoint when
	// metrics are enabled. May be nil.
	Metrics *metrics.Collector

	// Health serves the liveness and readiness probes. A checker without
	// checks is used when nil.
	Health *health.Checker

	// Build is served on /version when its Version is set.
	Build BuildInfo
}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server serves the policy channel over HTTP.
type Server struct {
	config  *config.Config
	manager *manager.Manager
	metrics *metrics.Collector
	health  *health.Checker
	build   BuildInfo
	logger  *slog.Logger

	mu           sync.RWMutex
	httpServer   *http.Server
	addr         string
	isRunning    bool
	shutdownOnce sync.Once
}

// NewServer creates a server routing requests to mgr.
func NewServer(cfg *config.Config, mgr *manager.Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := opts.Health
	if checker == nil {
		checker = health.New(cfg.Telemetry.Health.CheckTimeout)
	}

	return &Server{
		config:  cfg,
		manager: mgr,
		metrics: opts.Metrics,
		health:  checker,
		build:   opts.Build,
		logger:  logger.With("component", "server"),
	}
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  s.config.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	httpServer := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting policy server", "address", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errCh:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting connections and waits for in-flight requests up
// to the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		httpServer := s.httpServer
		s.mu.RUnlock()
		if httpServer == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())
		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		s.logger.Info("policy server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the address the server listens on, once serving.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "POST /v1/tokens", s.handleOpenSession)
	s.route(mux, "DELETE /v1/tokens/{token}", s.handleCloseSession)
	s.route(mux, "GET /v1/tokens/{token}/events", s.handleEvents)

	s.route(mux, "POST /v1/mixes", s.handleRegister)
	s.route(mux, "GET /v1/mixes", s.handleListMixes)
	s.route(mux, "PUT /v1/mixes/{id}", s.handleUpdate)
	s.route(mux, "DELETE /v1/mixes/{id}", s.handleUnregister)

	s.route(mux, "POST /v1/evaluate", s.handleEvaluate)
	s.route(mux, "POST /v1/streams", s.handleStartStream)
	s.route(mux, "DELETE /v1/streams/{handle}", s.handleStopStream)

	s.route(mux, "GET /v1/snapshot", s.handleSnapshot)

	health.Register(mux, &s.config.Telemetry.Health, s.health)
	if s.build.Version != "" {
		mux.Handle("GET /version", health.VersionHandler(s.build.Version, s.build.Commit, s.build.BuildTime))
	}
	if s.metrics != nil && s.metrics.Enabled() {
		mux.Handle("GET "+s.config.Telemetry.Metrics.Path, s.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = bodyLimitMiddleware(s.config.Server.MaxBodyBytes)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}

// route registers h under pattern and records request metrics labelled
// with the pattern.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	if s.metrics == nil {
		mux.Handle(pattern, h)
		return
	}
	mux.Handle(pattern, metricsMiddleware(s.metrics, pattern)(h))
}
