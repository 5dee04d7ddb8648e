// Package client implements the terminal chat client: it sends the identity
// frame, then runs an outbound worker for typed lines and an inbound worker
// that renders everything the server relays.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/framechat/internal/protocol"
	"github.com/Tyrowin/framechat/internal/transport"
)

// ErrDisconnected is returned by Run when the server closes the connection.
var ErrDisconnected = errors.New("disconnected from server")

// Client is one connection to a chat server.
type Client struct {
	conn  transport.Transport
	name  string
	print *printer
	log   *zap.Logger

	exited    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to addr (host:port), over WebSocket when useWebSocket is set.
func Dial(ctx context.Context, addr string, useWebSocket bool, out io.Writer, logger *zap.Logger) (*Client, error) {
	conn, err := transport.Dial(ctx, addr, useWebSocket)
	if err != nil {
		return nil, err
	}
	return New(conn, out, logger), nil
}

// New wraps an established connection. Output is written to out.
func New(conn transport.Transport, out io.Writer, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		conn:  conn,
		print: newPrinter(out),
		log:   logger,
	}
}

// Join sends the identity frame.
func (c *Client) Join(name string) error {
	if err := protocol.WriteFrame(c.conn, name); err != nil {
		return fmt.Errorf("send name: %w", err)
	}
	c.name = name
	c.log.Debug("Joined", zap.String("name", name), zap.String("server", c.conn.RemoteAddr().String()))
	c.print.println("Welcome to the chat-room, " + name + "!")
	return nil
}

// Send writes one line as a frame and echoes it. Sending #exit closes the
// client.
func (c *Client) Send(text string) error {
	if text == protocol.TokenExit {
		return c.Close()
	}
	if err := protocol.WriteFrame(c.conn, text); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	c.print.println("You: " + text)
	return nil
}

// Close sends #exit and closes the connection. It is safe to call more than
// once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.exited.Store(true)
		if err := protocol.WriteFrame(c.conn, protocol.TokenExit); err != nil {
			c.log.Debug("Exit frame not sent", zap.Error(err))
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// Run reads lines from in and relays server traffic until the user exits,
// in is exhausted, ctx is cancelled or the server disconnects.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	done := make(chan struct{})
	defer close(done)
	lines := scanLines(in, done)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.sendLoop(gctx, lines)
	})
	g.Go(c.receiveLoop)
	return g.Wait()
}

func (c *Client) sendLoop(ctx context.Context, lines <-chan string) error {
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if line == "" {
				continue
			}
			if line == protocol.TokenExit {
				return nil
			}
			if err := c.Send(line); err != nil {
				if c.exited.Load() {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Client) receiveLoop() error {
	for {
		env, err := protocol.ReadEnvelope(c.conn)
		if err != nil {
			if c.exited.Load() {
				return nil
			}
			if transport.IsClosed(err) {
				return ErrDisconnected
			}
			return fmt.Errorf("receive: %w", err)
		}
		c.print.render(env)
	}
}

// scanLines feeds trimmed input lines to the returned channel until in is
// exhausted or done is closed.
func scanLines(in io.Reader, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimRight(scanner.Text(), "\r"):
			case <-done:
				return
			}
		}
	}()
	return lines
}
