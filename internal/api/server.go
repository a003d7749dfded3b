// Package api exposes the occupancy and noise engine over HTTP. Identity
// resolution happens upstream; requests arrive with a trusted user header.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/hushlab/hushd/internal/noise"
	"github.com/hushlab/hushd/internal/occupancy"
)

// Config holds the API server configuration.
type Config struct {
	ListenAddr     string
	IdentityHeader string
}

// Server is the public HTTP surface of the engine.
type Server struct {
	config   Config
	manager  *occupancy.Manager
	noise    *noise.Service
	server   *http.Server
	router   *mux.Router
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
	logger   zerolog.Logger
}

// NewServer creates a new API server.
func NewServer(cfg Config, manager *occupancy.Manager, noiseService *noise.Service, logger zerolog.Logger) *Server {
	router := mux.NewRouter()

	s := &Server{
		config:  cfg,
		manager: manager,
		noise:   noiseService,
		router:  router,
		logger:  logger.With().Str("component", "api").Logger(),
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

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	// Everything else requires a resolved identity.
	apiRouter := s.router.PathPrefix("/api").Subrouter()
	apiRouter.Use(IdentityMiddleware(s.config.IdentityHeader))

	apiRouter.HandleFunc("/usages", s.handleListSessions).Methods("GET")
	apiRouter.HandleFunc("/usages/check-in", s.handleCheckIn).Methods("POST")
	apiRouter.HandleFunc("/usages/check-out", s.handleCheckOut).Methods("POST")
	apiRouter.HandleFunc("/usages/expire", s.handleExpire).Methods("POST")

	apiRouter.HandleFunc("/noise/events", s.handleNoiseEvent).Methods("POST")
	apiRouter.HandleFunc("/noise/sessions/close", s.handleSessionClose).Methods("POST")
	apiRouter.HandleFunc("/noise/report", s.handleReport).Methods("GET")
	apiRouter.HandleFunc("/noise/manner-score", s.handleMannerScore).Methods("GET")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting API server")
	go func() {
		var err error
		if s.listener != nil {
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()
	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping API server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
