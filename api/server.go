// Package api exposes the guideline store over HTTP.
//
// Endpoints:
//
//	GET    /health                       liveness probe
//	GET    /ready                        readiness probe
//	POST   /api/documents                ingest a document (multipart upload)
//	POST   /api/backfill                 embed rules missing vectors
//	POST   /api/search                   retrieve rules for a query
//	POST   /api/ask                      conversational question answering
//	GET    /api/collections              list collections
//	DELETE /api/collections/{id}         delete a collection and its contents
//	POST   /api/sessions                 create a session
//	GET    /api/sessions/{id}            session metadata
//	GET    /api/sessions/{id}/history    retained turns
//	PATCH  /api/sessions/{id}/context    merge context entries
//	DELETE /api/sessions/{id}            delete a session
//	GET    /api/stats                    store and session counts
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:8080"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout caps header reads to block Slowloris clients.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is generous because document uploads can be large.
	ReadTimeout = 2 * time.Minute

	// WriteTimeout covers slow model-backed endpoints (/api/ask,
	// /api/documents).
	WriteTimeout = 3 * time.Minute

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP front end.
type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger

	health   *HealthHandler
	ingest   *IngestHandler
	search   *SearchHandler
	ask      *AskHandler
	sessions *SessionHandler
	catalog  *CatalogHandler
}

// Deps carries everything the server's handlers need.
type Deps struct {
	Pinger     Pinger
	Ingestor   Ingestor
	Backfiller Backfiller
	Searcher   Searcher
	Asker      Asker
	Sessions   SessionStore
	Catalog    Catalog
	Logger     *slog.Logger
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	s := &Server{
		mux:      mux,
		logger:   logger,
		health:   NewHealthHandler(deps.Pinger, logger),
		ingest:   NewIngestHandler(deps.Ingestor, deps.Backfiller, logger),
		search:   NewSearchHandler(deps.Searcher, logger),
		ask:      NewAskHandler(deps.Asker, logger),
		sessions: NewSessionHandler(deps.Sessions, logger),
		catalog:  NewCatalogHandler(deps.Catalog, deps.Sessions, logger),
	}

	s.health.RegisterRoutes(mux)
	s.ingest.RegisterRoutes(mux)
	s.search.RegisterRoutes(mux)
	s.ask.RegisterRoutes(mux)
	s.sessions.RegisterRoutes(mux)
	s.catalog.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler.
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware(s.logger), loggingMiddleware(s.logger))
}

// Run starts the server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
