// Package server provides the HTTP API for mieru.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/mieru/internal/config"
	"github.com/hyperjump/mieru/internal/keyword"
	"github.com/hyperjump/mieru/internal/metrics"
	"github.com/hyperjump/mieru/internal/projection"
	"github.com/hyperjump/mieru/internal/search"
	"github.com/hyperjump/mieru/internal/storage"
	"github.com/hyperjump/mieru/internal/watcher"
)

// Server is the HTTP server for the mieru API.
type Server struct {
	storage   storage.Storage
	engine    *search.Engine
	projector *projection.Engine
	config    *config.Config
	logger    *zap.Logger

	keywordIndex keyword.KeywordIndex
	recorder     *metrics.Recorder
	watch        *watcher.Watcher

	configPath string
	configMu   sync.Mutex

	server *http.Server
}

// ServerOption configures optional server dependencies.
type ServerOption func(*Server)

// WithKeywordIndex enables metadata filtering on the record listing endpoint.
func WithKeywordIndex(kw keyword.KeywordIndex) ServerOption {
	return func(s *Server) { s.keywordIndex = kw }
}

// WithMetrics enables operation timing endpoints and per-request recording.
func WithMetrics(rec *metrics.Recorder) ServerOption {
	return func(s *Server) { s.recorder = rec }
}

// WithWatcher enables the watch directory endpoints. When configPath is
// non-empty, directory changes are persisted back to the config file.
func WithWatcher(w *watcher.Watcher, configPath string) ServerOption {
	return func(s *Server) {
		s.watch = w
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Storage,
	engine *search.Engine,
	projector *projection.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		storage:   store,
		engine:    engine,
		projector: projector,
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/collections", s.handleListCollections)
		r.Post("/collections", s.handleCreateCollection)
		r.Get("/collections/{name}", s.handleGetCollection)
		r.Delete("/collections/{name}", s.handleDeleteCollection)

		r.Post("/collections/{name}/records", s.handleInsertRecord)
		r.Get("/collections/{name}/records", s.handleListRecords)
		r.Get("/collections/{name}/records/{id}", s.handleGetRecord)
		r.Delete("/collections/{name}/records/{id}", s.handleDeleteRecord)

		r.Post("/search", s.handleSearch)
		r.Post("/projection", s.handleProjection)
		r.Get("/status", s.handleStatus)

		r.Get("/metrics", s.handleMetricsRecent)
		r.Get("/metrics/stats", s.handleMetricsStats)
		r.Get("/metrics/connections", s.handleMetricsConnections)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
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

// record stores an operation timing when metrics are enabled.
func (s *Server) record(ctx context.Context, collection, operation string, start time.Time) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, collection, operation, time.Since(start)); err != nil {
		s.logger.Warn("failed to record metric", zap.String("operation", operation), zap.Error(err))
	}
}
