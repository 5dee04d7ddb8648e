// Package transport adapts TCP and WebSocket connections to the byte stream
// the frame codec runs over.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the connection a chat session reads frames from and writes
// frames to. net.Conn satisfies it directly.
type Transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() net.Addr
}

// WebSocketPath is the HTTP path the server upgrades on.
const WebSocketPath = "/ws"

// Dial connects to a chat server at addr (host:port). When useWebSocket is
// set the connection is made to the server's WebSocket endpoint instead of
// the raw TCP listener.
func Dial(ctx context.Context, addr string, useWebSocket bool) (Transport, error) {
	if !useWebSocket {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("connect to %s: %w", addr, err)
		}
		return conn, nil
	}

	url := addr
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + addr + WebSocketPath
	}
	return DialWebSocket(ctx, url)
}

// DialWebSocket connects to a full ws:// or wss:// URL.
func DialWebSocket(ctx context.Context, url string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	return NewWebSocket(conn, 0), nil
}

// IsClosed reports whether err is what a read or write returns once the
// peer or the local side has closed the connection.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
