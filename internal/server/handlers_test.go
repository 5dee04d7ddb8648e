package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/framechat/internal/recency"
)

func newUnstartedServer(t *testing.T) *Server {
	return New(*NewConfig(), zaptest.NewLogger(t))
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthHandler(t *testing.T) {
	rec := serve(newUnstartedServer(t), http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "framechat server is running!", rec.Body.String())
}

func TestStatusHandler(t *testing.T) {
	s := newUnstartedServer(t)

	p, err := s.Registry().Register(newFakeConn(7000))
	require.NoError(t, err)
	s.Registry().SetName(p.ID(), "alice")
	s.cache.Put("1", "hello")

	rec := serve(s, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Clients, 1)
	assert.Equal(t, "alice", resp.Clients[0].Name)
	assert.Equal(t, 1, resp.Clients[0].ID)
	assert.Equal(t, []recency.Entry{{Key: "1", Value: "hello"}}, resp.History)

	s.Registry().CloseAll()
}

func TestStatusHandlerRejectsPost(t *testing.T) {
	rec := serve(newUnstartedServer(t), http.MethodPost, "/status")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebSocketHandlerRejectsPost(t *testing.T) {
	rec := serve(newUnstartedServer(t), http.MethodPost, "/ws")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebSocketHandlerRequiresUpgrade(t *testing.T) {
	rec := serve(newUnstartedServer(t), http.MethodGet, "/ws")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	s := newUnstartedServer(t)
	s.metrics.clientJoined()
	s.metrics.broadcastFailed()

	rec := serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "framechat_clients_connected 1")
	assert.Contains(t, body, "framechat_connections_accepted_total 1")
	assert.Contains(t, body, "framechat_broadcast_failures_total 1")
}

func TestCreateServer(t *testing.T) {
	mux := http.NewServeMux()
	srv := CreateServer(":8081", mux)

	assert.Equal(t, ":8081", srv.Addr)
	assert.Equal(t, mux, srv.Handler)
	assert.Equal(t, 15*time.Second, srv.ReadTimeout)
	assert.Equal(t, 15*time.Second, srv.WriteTimeout)
	assert.Equal(t, 60*time.Second, srv.IdleTimeout)
}
