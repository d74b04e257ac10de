package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// StatusSource reports daemon-side counters for the health endpoint.
// Satisfied by the delivery store.
type StatusSource interface {
	OutboxSize(ctx context.Context) (int, error)
}

// Server exposes the surface attach endpoint over HTTP. The daemon listens
// on loopback only; surfaces on the same machine attach at /ws.
type Server struct {
	hub    *Hub
	mux    *http.ServeMux
	srv    *http.Server
	addr   string
	status StatusSource
}

// ServerConfig holds configuration for the surface server.
type ServerConfig struct {
	Addr    string
	Control Control

	// Status feeds the health endpoint's counters. May be nil.
	Status StatusSource
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr: "127.0.0.1:7357",
	}
}

// NewServer creates the surface server and starts its hub loop.
func NewServer(cfg *ServerConfig) *Server {
	s := &Server{
		hub:    NewHub(cfg.Control),
		mux:    http.NewServeMux(),
		addr:   cfg.Addr,
		status: cfg.Status,
	}
	go s.hub.Run()

	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", s.handleHealth)

	return s
}

// handleHealth reports liveness plus the counters the status command shows:
// attached surfaces and acknowledgements waiting in the outbox.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status     string `json:"status"`
		Surfaces   int    `json:"surfaces"`
		OutboxSize int    `json:"outboxSize"`
	}{
		Status:   "ok",
		Surfaces: s.hub.ClientCount(),
	}

	if s.status != nil {
		n, err := s.status.OutboxSize(r.Context())
		if err != nil {
			log.Warnf("Unable to read outbox size: %v", err)
		} else {
			resp.OutboxSize = n
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Debugf("Health response write failed: %v", err)
	}
}

// Hub returns the hub, which doubles as the router's surface directory.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.srv = &http.Server{
		Addr:        s.addr,
		Handler:     s.mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	log.Infof("Listening for surfaces on %s", s.addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and detaches all surfaces.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()

	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}
