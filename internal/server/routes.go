// Package server wires HTTP handlers into a ServeMux.
package server

import (
	"net/http"

	"github.com/Tyrowin/framechat/internal/transport"
)

// Routes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, status, metrics and the WebSocket endpoint.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/status", s.StatusHandler)
	mux.Handle("/metrics", s.metrics.handler())
	mux.HandleFunc(transport.WebSocketPath, s.WebSocketHandler)
	return mux
}
