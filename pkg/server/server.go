// Package server provides the HTTP surface over the request orchestrator:
// generation, credential administration, statistics, health, and metrics.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"wander-hq/sherpa/pkg/orchestrator"
)

// Config contains the HTTP server settings.
type Config struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server serves the orchestrator's API.
type Server struct {
	cfg     Config
	orch    *orchestrator.Orchestrator
	metrics http.Handler
	auth    *tokenAuth
	logger  *slog.Logger

	httpServer *http.Server
	mu         sync.Mutex
	running    bool
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler mounts a handler at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the server's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithAdminTokens guards the /v1 API with static bearer tokens. Health and
// metrics stay open. An empty list leaves the API unguarded.
func WithAdminTokens(tokens []string) Option {
	return func(s *Server) { s.auth = newTokenAuth(tokens) }
}

// New creates the API server.
func New(cfg Config, orch *orchestrator.Orchestrator, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		orch:   orch,
		logger: slog.Default().With("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins serving and blocks until ctx is cancelled or the listener
// fails. Shutdown is graceful within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddress,
		Handler:      s.Routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "address", s.cfg.ListenAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}
