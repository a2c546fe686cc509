// Package server provides the HTTP API for runbookd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/opsline/runbookd/internal/config"
	"github.com/opsline/runbookd/internal/indexer"
	"github.com/opsline/runbookd/internal/search"
)

// ReindexFunc reloads the runbook corpus from its source and rebuilds the
// index. Invoked in the background on webhook notifications.
type ReindexFunc func(ctx context.Context) error

// Server is the HTTP server for the runbookd API.
type Server struct {
	engine   *search.Engine
	pipeline *indexer.Pipeline
	reindex  ReindexFunc
	config   *config.ServerConfig
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. reindex may be nil,
// in which case webhook notifications are acknowledged but ignored.
func NewServer(
	engine *search.Engine,
	pipeline *indexer.Pipeline,
	reindex ReindexFunc,
	cfg *config.ServerConfig,
	logger *zap.Logger,
) *Server {
	return &Server{
		engine:   engine,
		pipeline: pipeline,
		reindex:  reindex,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/query", s.handleQuery)
	r.Get("/api/v1/stats", s.handleStats)
	r.Post("/webhook", s.handleWebhook)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
