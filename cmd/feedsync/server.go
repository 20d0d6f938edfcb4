package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"feedsync/internal/constants"
	"feedsync/internal/metrics"
	"feedsync/internal/middleware"
	"feedsync/internal/service"
)

// Server is the local status surface of the sync engine: health, the
// in-memory metrics registry, and channel/engine state for debugging.
type Server struct {
	router  *mux.Router
	logger  *logrus.Logger
	channel *service.ChannelManager
	scope   *service.ScopeTracker
	server  *http.Server
}

func NewServer(channel *service.ChannelManager, scope *service.ScopeTracker, logger *logrus.Logger) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		logger:  logger,
		channel: channel,
		scope:   scope,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	port := os.Getenv("PORT")
	if port == "" {
		port = fmt.Sprintf("%d", constants.DefaultServerPort)
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting status server on port %s", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(metrics.GetAllMetrics()); err != nil {
			s.logger.WithError(err).Error("Failed to encode metrics")
		}
	}
}

type statusResponse struct {
	Connected  bool   `json:"connected"`
	Degraded   bool   `json:"degraded"`
	ActiveRoom string `json:"activeRoom,omitempty"`
	Scope      string `json:"scope"`
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := statusResponse{
			Connected: s.channel.IsConnected(),
			Degraded:  s.channel.IsDegraded(),
			Scope:     s.scope.Get(),
		}
		if room, ok := s.channel.ActiveRoom(); ok {
			status.ActiveRoom = room
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(status); err != nil {
			s.logger.WithError(err).Error("Failed to encode status")
		}
	}
}
