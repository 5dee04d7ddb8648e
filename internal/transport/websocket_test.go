package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/framechat/internal/protocol"
)

// TestWebSocketCarriesFrames verifies that frames written one message at a
// time arrive as a contiguous stream on the other side, including when a
// single message holds several frames.
func TestWebSocketCarriesFrames(t *testing.T) {
	received := make(chan []string, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		tr := NewWebSocket(conn, 0)
		defer tr.Close()

		var got []string
		for i := 0; i < 2; i++ {
			frame, err := protocol.ReadFrame(tr)
			if err != nil {
				break
			}
			got = append(got, frame)
		}
		received <- got

		_ = protocol.WriteEnvelope(tr, protocol.Chat("server", 7, "pong"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := DialWebSocket(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, protocol.WriteFrame(client, "alice"))
	require.NoError(t, protocol.WriteFrame(client, "ping"))

	select {
	case got := <-received:
		assert.Equal(t, []string{"alice", "ping"}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("server never received frames")
	}

	require.NoError(t, client.SetReadDeadline(time.Now().Add(5*time.Second)))
	env, err := protocol.ReadEnvelope(client)
	require.NoError(t, err)
	assert.Equal(t, protocol.Chat("server", 7, "pong"), env)
}

// TestIsClosed classifies the errors a closed connection produces.
func TestIsClosed(t *testing.T) {
	assert.False(t, IsClosed(nil))
	assert.True(t, IsClosed(io.EOF))
	assert.True(t, IsClosed(net.ErrClosed))
	assert.True(t, IsClosed(&websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.False(t, IsClosed(errors.New("boom")))
}
