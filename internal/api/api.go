// Package api exposes the PlantClinic HTTP interface: synchronous chat,
// SSE streaming chat, session inspection, cleanup, stats, health, and
// Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cropwise/plantclinic/internal/session"
	"github.com/cropwise/plantclinic/internal/workflow"
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the workflow engine and session manager to HTTP.
type Server struct {
	sessions *session.Manager
	engine   *workflow.Engine
	srv      *http.Server
}

// NewServer creates the API server.
func NewServer(sessions *session.Manager, engine *workflow.Engine, opts ...Option) *Server {
	cfg := Opts{Addr: ":8080"}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{sessions: sessions, engine: engine}
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", s.chatHandler)
		r.Post("/chat-stream", s.chatStreamHandler)
		r.Post("/cleanup", s.cleanupHandler)
		r.Get("/stats", s.statsHandler)
		r.Route("/session/{sessionID}", func(r chi.Router) {
			r.Get("/", s.sessionInfoHandler)
			r.Get("/history", s.sessionHistoryHandler)
			r.Get("/classification", s.sessionClassificationHandler)
			r.Get("/prescription", s.sessionPrescriptionHandler)
			r.Delete("/", s.sessionDeleteHandler)
		})
	})
	return r
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	slog.Info("Server.Start: listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Server.Shutdown: stopping")
	return s.srv.Shutdown(ctx)
}

// Handler exposes the routed handler, used by tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }
