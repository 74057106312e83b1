package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pietrospam/pietrosoft-notes-sub000/internal/db"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/events"
	"github.com/pietrospam/pietrosoft-notes-sub000/internal/snapshot"
)

// DefaultMaxImportBytes caps an uploaded archive when Config leaves it unset.
const DefaultMaxImportBytes = 512 << 20

// Server is the workspace API server.
type Server struct {
	addr   string
	mux    *http.ServeMux
	logger *slog.Logger

	engine *snapshot.Engine
	store  *db.WorkspaceDB
	counts *countsCache

	// Event publisher for real-time updates
	publisher events.Publisher
	wsHandler *WSHandler

	maxImportBytes int64
}

// Config holds server configuration.
type Config struct {
	Addr           string
	MaxImportBytes int64
	Logger         *slog.Logger
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:           "127.0.0.1:8080",
		MaxImportBytes: DefaultMaxImportBytes,
		Logger:         slog.Default(),
	}
}

// New creates a new API server. pub must be the publisher the engine
// publishes to.
func New(engine *snapshot.Engine, store *db.WorkspaceDB, pub events.Publisher, cfg *Config) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if pub == nil {
		pub = events.NewNopPublisher()
	}
	maxImport := cfg.MaxImportBytes
	if maxImport <= 0 {
		maxImport = DefaultMaxImportBytes
	}

	s := &Server{
		addr:           cfg.Addr,
		mux:            http.NewServeMux(),
		logger:         logger,
		engine:         engine,
		store:          store,
		publisher:      pub,
		maxImportBytes: maxImport,
	}
	s.counts = newCountsCache(store.CountAll, DefaultStatusTTL)

	s.wsHandler = NewWSHandler(pub, s.workspaceStatus, logger)

	s.registerRoutes()
	return s
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// CORS middleware wrapper. All routes are simple requests; there is no
	// preflight handling.
	cors := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
			h(w, r)
		}
	}

	s.mux.HandleFunc("GET /api/health", cors(s.handleHealth))

	// Workspace snapshot
	s.mux.HandleFunc("GET /api/workspace/status", cors(s.handleStatus))
	s.mux.HandleFunc("GET /api/workspace/export", cors(s.handleExport))
	s.mux.HandleFunc("POST /api/workspace/import", cors(s.handleImport))
	s.mux.HandleFunc("POST /api/workspace/inspect", cors(s.handleInspect))
	s.mux.HandleFunc("POST /api/workspace/wipe", cors(s.handleWipe))

	// Attachments
	s.mux.HandleFunc("GET /api/attachments/{id}", cors(s.handleGetAttachment))

	// WebSocket for real-time updates
	s.mux.Handle("GET /api/ws", s.wsHandler)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartContext starts the API server and shuts it down when ctx is done.
func (s *Server) StartContext(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.wsHandler.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("server shutdown", "error", err)
		}
	}()

	s.logger.Info("starting API server", "addr", s.addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Publisher returns the event publisher for external use.
func (s *Server) Publisher() events.Publisher {
	return s.publisher
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]string{"status": "ok"})
}
