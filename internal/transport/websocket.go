package transport

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn presents a WebSocket connection as a byte stream. Every Write is
// sent as one binary message; inbound messages are concatenated, so message
// boundaries carry no meaning and the frame codec works unchanged.
type wsConn struct {
	conn   *websocket.Conn
	reader io.Reader
}

// NewWebSocket wraps conn. A positive readLimit caps the size of a single
// inbound message.
func NewWebSocket(conn *websocket.Conn, readLimit int64) Transport {
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	return &wsConn{conn: conn}
}

func (w *wsConn) Read(p []byte) (int, error) {
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, err
			}
			w.reader = r
		}

		n, err := w.reader.Read(p)
		if errors.Is(err, io.EOF) {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (w *wsConn) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConn) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return w.conn.Close()
}

func (w *wsConn) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

func (w *wsConn) SetWriteDeadline(t time.Time) error {
	return w.conn.SetWriteDeadline(t)
}

func (w *wsConn) RemoteAddr() net.Addr {
	return w.conn.RemoteAddr()
}
