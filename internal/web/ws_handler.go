package web

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// upgrader specifies parameters for upgrading an HTTP connection to
// WebSocket. The daemon only talks to surfaces on the same machine, so any
// cross-origin browser request is refused.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// Allow if no origin header (non-browser clients).
		if origin == "" {
			return true
		}

		// Allow same-origin and loopback origins.
		host := r.Host
		if origin == "http://"+host || origin == "https://"+host {
			return true
		}
		return strings.HasPrefix(origin, "http://localhost:") ||
			strings.HasPrefix(origin, "http://127.0.0.1:")
	},
}

// handleWS upgrades a surface connection and attaches it to the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}

	s.hub.Attach(conn)
}
