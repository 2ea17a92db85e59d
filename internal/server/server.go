// Package server exposes a [learning.Engine] over HTTP/JSON.
//
// Routes:
//
//	POST   /v1/learn                    observe one edit
//	POST   /v1/apply                    correct a transcription
//	GET    /v1/corrections              list cached corrections
//	GET    /v1/corrections/{word}       confidence-gated lookup
//	DELETE /v1/cache/{word}             evict one cached correction
//	DELETE /v1/cache                    clear the cache
//	POST   /v1/reload                   reload the cache from storage
//	GET    /v1/settings/min-confidence  read the minimum confidence
//	PUT    /v1/settings/min-confidence  change the minimum confidence
//	GET    /v1/stats                    cache size and minimum confidence
//	GET    /healthz, /readyz            probes
//	GET    /metrics                     Prometheus scrape endpoint
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/MrWong99/quillfix/internal/health"
	"github.com/MrWong99/quillfix/internal/learning"
	"github.com/MrWong99/quillfix/internal/observe"
)

// DefaultMaxTextBytes is the default cap on text accepted by learn and apply.
const DefaultMaxTextBytes = 64 << 10

// Option configures a [Server].
type Option func(*Server)

// WithMaxTextBytes caps the size of each text field in learn and apply
// requests. Non-positive values are ignored.
func WithMaxTextBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxTextBytes = n
		}
	}
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records HTTP request metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithHealthCheckers adds readiness checks to /readyz.
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) { s.checkers = append(s.checkers, checkers...) }
}

// Server serves the engine API. It is safe for concurrent use; all state
// lives in the engine.
type Server struct {
	engine         *learning.Engine
	maxTextBytes   int64
	logger         *slog.Logger
	metrics        *observe.Metrics
	metricsHandler http.Handler
	checkers       []health.Checker

	handler http.Handler
}

// New builds a [Server] for engine.
func New(engine *learning.Engine, opts ...Option) *Server {
	s := &Server{
		engine:       engine,
		maxTextBytes: DefaultMaxTextBytes,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	s.routes(mux)
	health.New(s.checkers...).Register(mux)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	m := s.metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	s.handler = observe.Middleware(m, s.logger)(mux)
	return s
}

// Handler returns the root handler with observability middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully, waiting at most shutdownTimeout for in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %q: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is [Server.ListenAndServe] on an existing listener. The listener is
// closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server: listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("server: shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: serve: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info("server: stopped")
	return nil
}
