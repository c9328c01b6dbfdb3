// Package server exposes the connector over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/config"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/connector"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/policy/store"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/sandbox"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/server/middleware"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/health"
	"github.com/hadijannat/Nano-Wasm-Edge-Connector/pkg/telemetry/tracing"
)

// Connector is the part of *connector.Connector the HTTP layer uses.
type Connector interface {
	EvaluateRequest(ctx context.Context, body []byte) sandbox.Outcome
	Reload(ctx context.Context) store.ReloadResult
	Memory() connector.MemoryReport
	ActiveVersion() (string, bool)
}

// BuildInfo is reported by /version.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h on path.
func WithMetricsHandler(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metricsHandler = h
	}
}

// WithHealthChecker replaces the default checker, which only checks for an
// active policy module.
func WithHealthChecker(c *health.Checker) Option {
	return func(s *Server) {
		s.health = c
	}
}

// WithTracer sets the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// WithBuildInfo sets the build information reported by /version.
func WithBuildInfo(info BuildInfo) Option {
	return func(s *Server) {
		s.build = info
	}
}

// Server is the connector HTTP server.
type Server struct {
	config    *config.ServerConfig
	connector Connector
	logger    *slog.Logger
	tracer    trace.Tracer
	health    *health.Checker
	build     BuildInfo

	metricsPath    string
	metricsHandler http.Handler

	httpServer   *http.Server
	listener     net.Listener
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// NewServer creates a server for conn. Nothing listens until Start.
func NewServer(cfg *config.ServerConfig, conn Connector, logger *slog.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config:    cfg,
		connector: conn,
		logger:    logger.With("component", "server"),
		tracer:    noop.NewTracerProvider().Tracer(""),
		build:     BuildInfo{Version: "dev"},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.health == nil {
		s.health = health.New(0)
		s.health.RegisterCheck("policy", health.PolicyCheck(conn.ActiveVersion))
	}
	return s
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.isRunning = true
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the server, waiting up to
// server.shutdown_timeout for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("Initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("HTTP server stopped")
	})

	return shutdownErr
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routes wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.routes()

	handler = middleware.BodyLimitMiddleware(s.config.MaxBodyBytes)(handler)
	handler = middleware.LoggingMiddleware(s.logger)(handler)
	handler = middleware.RequestIDMiddleware(handler)
	handler = s.spanMiddleware(handler)
	handler = tracing.HTTPMiddleware(handler)
	handler = middleware.RecoveryMiddleware(s.logger)(handler)

	return handler
}

// spanMiddleware starts one server span per request.
func (s *Server) spanMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
