// Package server exposes HTTP handlers: health, the status snapshot, and the
// WebSocket upgrade that runs the frame protocol over WebSocket messages.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Tyrowin/framechat/internal/protocol"
	"github.com/Tyrowin/framechat/internal/recency"
	"github.com/Tyrowin/framechat/internal/transport"
)

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Clients []ClientInfo    `json:"clients"`
	History []recency.Entry `json:"history"`
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "framechat server is running!")
}

// StatusHandler reports the connected clients and the replay history.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	resp := StatusResponse{
		Clients: s.Clients(),
		History: s.History(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("Error writing status response", zap.Error(err))
	}
}

// WebSocketHandler upgrades the request and serves the connection exactly as
// if it had arrived on the TCP listener.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	// Clients write one frame per message.
	tr := transport.NewWebSocket(conn, protocol.MaxLen)
	if err := s.ServeConn(tr); err != nil {
		s.log.Warn("WebSocket connection rejected", zap.String("addr", r.RemoteAddr), zap.Error(err))
	}
}
