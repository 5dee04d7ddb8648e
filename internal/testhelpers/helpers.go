// Package testhelpers provides common utilities and helper functions for testing the chat server.
//
// It contains a frame-level test client shared by the server and client package tests, so
// end-to-end scenarios can be written in terms of joins, sends and received trios instead of
// raw byte buffers.
package testhelpers

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/Tyrowin/framechat/internal/protocol"
	"github.com/Tyrowin/framechat/internal/transport"
)

// DefaultTimeout bounds every blocking read made by a FrameClient.
const DefaultTimeout = 3 * time.Second

// FrameClient speaks the wire protocol directly.
type FrameClient struct {
	t    *testing.T
	Name string
	Conn transport.Transport
}

// DialTCP connects to addr over TCP. The connection is closed when the test ends.
func DialTCP(t *testing.T, addr string) *FrameClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", addr, err)
	}
	return newFrameClient(t, conn)
}

// DialWebSocket connects to a ws:// URL. The connection is closed when the test ends.
func DialWebSocket(t *testing.T, url string) *FrameClient {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	conn, err := transport.DialWebSocket(ctx, url)
	if err != nil {
		t.Fatalf("Failed to connect to %s: %v", url, err)
	}
	return newFrameClient(t, conn)
}

func newFrameClient(t *testing.T, conn transport.Transport) *FrameClient {
	c := &FrameClient{t: t, Conn: conn}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return c
}

// Join sends the identity frame.
func (c *FrameClient) Join(name string) {
	c.t.Helper()
	c.Name = name
	c.Send(name)
}

// Send writes one frame.
func (c *FrameClient) Send(text string) {
	c.t.Helper()
	if err := protocol.WriteFrame(c.Conn, text); err != nil {
		c.t.Fatalf("%s: failed to send %q: %v", c.Name, text, err)
	}
}

// Receive reads the next trio, failing the test after DefaultTimeout.
func (c *FrameClient) Receive() protocol.Envelope {
	c.t.Helper()

	env, err := c.TryReceive(DefaultTimeout)
	if err != nil {
		c.t.Fatalf("%s: failed to receive: %v", c.Name, err)
	}
	return env
}

// TryReceive reads the next trio within timeout.
func (c *FrameClient) TryReceive(timeout time.Duration) (protocol.Envelope, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.Envelope{}, err
	}
	return protocol.ReadEnvelope(c.Conn)
}

// ReceiveKind skips trios until one of the given kind arrives.
func (c *FrameClient) ReceiveKind(kind protocol.Kind) protocol.Envelope {
	c.t.Helper()

	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		env, err := c.TryReceive(time.Until(deadline))
		if err != nil {
			c.t.Fatalf("%s: waiting for %s trio: %v", c.Name, kind, err)
		}
		if env.Kind == kind {
			return env
		}
	}
	c.t.Fatalf("%s: no %s trio within %s", c.Name, kind, DefaultTimeout)
	return protocol.Envelope{}
}

// ExpectNothing asserts that no trio arrives within d. A partial read would
// desynchronize the stream, so d should be short and the sender quiet.
func (c *FrameClient) ExpectNothing(d time.Duration) {
	c.t.Helper()

	env, err := c.TryReceive(d)
	if err == nil {
		c.t.Fatalf("%s: expected no message, got %+v", c.Name, env)
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		c.t.Fatalf("%s: expected read timeout, got %v", c.Name, err)
	}
}

// ExpectClosed asserts that the server closes the connection.
func (c *FrameClient) ExpectClosed() {
	c.t.Helper()

	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		_, err := c.TryReceive(time.Until(deadline))
		if err == nil {
			continue
		}
		if transport.IsClosed(err) {
			return
		}
		c.t.Fatalf("%s: expected closed connection, got %v", c.Name, err)
	}
	c.t.Fatalf("%s: connection still open after %s", c.Name, DefaultTimeout)
}

// Eventually polls cond until it returns true or DefaultTimeout passes.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(DefaultTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %s: %s", DefaultTimeout, msg)
}
