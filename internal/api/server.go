// Package api is the localhost JSON surface the UI collaborators (popup,
// dashboard, blocked page) talk to. Every handler wraps one engine operation;
// failures come back as {"error":"internal","type":<requestType>} so the UI
// never sees an opaque error.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/timewarden/internal/engine"
	"github.com/goodtune/timewarden/internal/storage"
	"github.com/goodtune/timewarden/web"
)

// Engine is the slice of the tracking engine the API surface consumes.
type Engine interface {
	Settings(ctx context.Context) (storage.GlobalSettings, error)
	SaveSettings(ctx context.Context, settings storage.GlobalSettings) error
	Configs(ctx context.Context) ([]storage.HostnameConfig, error)
	SaveConfig(ctx context.Context, cfg storage.HostnameConfig) error
	RemoveHostname(ctx context.Context, host string) error
	Status(ctx context.Context, host string) (engine.Status, error)
	AllStatus(ctx context.Context) ([]engine.Status, error)
	TogglePause(ctx context.Context, host string) (engine.PauseResult, error)
	DashboardData(ctx context.Context) (engine.Dashboard, error)
	BlockedStatus(ctx context.Context, host string) (engine.BlockedInfo, error)
	RefreshBadge(ctx context.Context) error
}

// Config holds the API server configuration.
type Config struct {
	ListenAddr string
}

// Server is the localhost HTTP server.
type Server struct {
	config   Config
	engine   Engine
	server   *http.Server
	router   *mux.Router
	listener net.Listener
	logger   zerolog.Logger
}

// NewServer creates the API server around an engine.
func NewServer(cfg Config, eng Engine, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		config: cfg,
		engine: eng,
		router: router,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// SetListener installs a pre-bound listener (socket activation) to serve on
// instead of ListenAddr.
func (s *Server) SetListener(l net.Listener) {
	s.listener = l
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/settings", s.handleGetSettings).Methods("GET")
	v1.HandleFunc("/settings", s.handleSaveSettings).Methods("POST")
	v1.HandleFunc("/configs", s.handleGetConfigs).Methods("GET")
	v1.HandleFunc("/configs", s.handleSaveConfig).Methods("POST")
	v1.HandleFunc("/configs/{hostname}", s.handleRemoveHostname).Methods("DELETE")
	v1.HandleFunc("/status", s.handleAllStatus).Methods("GET")
	v1.HandleFunc("/status/{hostname}", s.handleStatus).Methods("GET")
	v1.HandleFunc("/pause/{hostname}", s.handleTogglePause).Methods("POST")
	v1.HandleFunc("/dashboard", s.handleDashboard).Methods("GET")
	v1.HandleFunc("/blocked/{hostname}", s.handleBlockedStatus).Methods("GET")
	v1.HandleFunc("/badge", s.handleBadgeRefresh).Methods("POST")

	// Everything else is the embedded UI (dashboard, popup, blocked page).
	s.router.PathPrefix("/").Handler(web.Handler())
}

// Start serves in the background until Stop.
func (s *Server) Start() error {
	if s.listener == nil {
		l, err := net.Listen("tcp", s.config.ListenAddr)
		if err != nil {
			return fmt.Errorf("api listen: %w", err)
		}
		s.listener = l
	}
	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("Starting API server")

	go func() {
		if err := s.server.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
