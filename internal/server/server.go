// Package server wires the manager's HTTP handlers onto a ServeMux, grounded
// on the teacher's internal/server/server.go shape (a thin *http.Server
// wrapper holding the routed mux, started/shut down by cmd/manager).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/webgraph-io/crawlgraph/internal/handlers"
)

// Server owns the manager's HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     arbor.ILogger
}

// New builds a Server bound to addr, routed per spec.md §6's endpoint table.
func New(addr string, crawlHandler *handlers.CrawlHandler, progressHandler *handlers.ProgressHandler, healthHandler *handlers.HealthHandler, logger arbor.ILogger) *Server {
	mux := setupRoutes(crawlHandler, progressHandler, healthHandler)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Start blocks until the server stops or fails to start.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("manager http server starting")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("manager http server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
