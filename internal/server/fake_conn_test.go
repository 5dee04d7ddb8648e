package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/Tyrowin/framechat/internal/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var errWriteFailed = errors.New("write: connection refused")

// fakeConn records writes and never produces input.
type fakeConn struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	port       int
	failWrites bool
	closed     bool
}

func newFakeConn(port int) *fakeConn {
	return &fakeConn{port: port}
}

func (c *fakeConn) Read([]byte) (int, error) {
	return 0, io.EOF
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, net.ErrClosed
	}
	if c.failWrites {
		return 0, errWriteFailed
	}
	return c.buf.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetReadDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: c.port}
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// envelopes decodes every complete trio written so far.
func (c *fakeConn) envelopes(t *testing.T) []protocol.Envelope {
	t.Helper()

	c.mu.Lock()
	raw := append([]byte(nil), c.buf.Bytes()...)
	c.mu.Unlock()

	r := bytes.NewReader(raw)
	var out []protocol.Envelope
	for r.Len() > 0 {
		env, err := protocol.ReadEnvelope(r)
		if err != nil {
			t.Fatalf("decode written bytes: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func (c *fakeConn) written() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}
