// Package api serves the REST endpoints, the JSON-RPC tool-call endpoint
// and operational routes over one chi router.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Twixes/mcpolice/internal/metrics"
	"github.com/Twixes/mcpolice/internal/model"
	"github.com/Twixes/mcpolice/internal/violation"
	"github.com/Twixes/mcpolice/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"
)

// Digester produces a narrative summary of the current statistics
type Digester interface {
	Digest(ctx context.Context, stats model.Stats, recent []model.ViolationReport) (model.Digest, error)
}

// Server is the HTTP front of the violation service
type Server struct {
	svc      *violation.Service
	rpc      http.Handler
	metrics  *metrics.Registry
	limiter  *worker.Limiter
	digester Digester
	logger   *slog.Logger
	cfg      model.ServerConfig
	version  string
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics enables request metrics and the /metrics route
func WithMetrics(m *metrics.Registry) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLimiter rate limits write endpoints per client
func WithLimiter(l *worker.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithDigester enables GET /api/stats/digest
func WithDigester(d Digester) Option {
	return func(s *Server) {
		s.digester = d
	}
}

// WithRPC mounts the JSON-RPC handler at /mcp and /sse
func WithRPC(h http.Handler) Option {
	return func(s *Server) {
		s.rpc = h
	}
}

// WithConfig sets listener settings
func WithConfig(cfg model.ServerConfig) Option {
	return func(s *Server) {
		s.cfg = cfg
	}
}

// WithVersion sets the version reported by /health
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a server
func NewServer(svc *violation.Service, opts ...Option) *Server {
	s := &Server{
		svc:     svc,
		logger:  slog.Default(),
		cfg:     model.DefaultConfig().Server,
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.With(s.rateLimit).Post("/violations/report", s.handleReport)
		api.Get("/violations", s.handleList)
		api.Get("/violations/{id}", s.handleGet)
		api.Get("/stats", s.handleStats)
		api.Get("/stats/digest", s.handleDigest)
		api.Get("/statutes", s.handleStatutes)
		api.Delete("/admin/clear-data", s.handleClear)
	})

	if s.rpc != nil {
		r.With(s.rateLimit).Method(http.MethodPost, "/mcp", s.rpc)
		r.With(s.rateLimit).Method(http.MethodPost, "/sse", s.rpc)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

// ListenAndServe listens on the configured address and serves until ctx is
// canceled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String(), "max_connections", s.cfg.MaxConnections)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
