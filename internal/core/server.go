// Package core provides the HTTP chassis for the relay ingress endpoint.
// It creates a chi router and enforces cross-cutting concerns -- panic
// recovery, request correlation, and request logging -- before requests
// reach the webhook handler.
package core

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Server encapsulates the router and shared dependencies for the ingress
// endpoint, allowing injection during testing.
type Server struct {
	Logger *slog.Logger

	// RouteRegistrars are applied by MountRoutes. Populated by the
	// application entry point; this indirection avoids import cycles
	// between core and handler packages.
	RouteRegistrars []func(chi.Router)

	router *chi.Mux
}

// NewServer prepares the server for route mounting.
func NewServer(logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	return &Server{
		Logger: logger,
		router: chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// MountRoutes registers the global middleware chain, the liveness endpoint,
// and every handler registered via RouteRegistrars.
//
// Middleware ordering: Recoverer is outermost so all panics are caught;
// RequestID runs before RequestLogger so log lines carry the correlation ID.
func (s *Server) MountRoutes() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))

	s.router.Get("/health", HandleHealth)

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}
}
