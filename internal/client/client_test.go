package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/framechat/internal/protocol"
	"github.com/Tyrowin/framechat/internal/testhelpers"
)

// syncBuffer is written by the client workers and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// connect returns a client wired to the server side of a loopback TCP
// connection.
func connect(t *testing.T) (*Client, net.Conn, *syncBuffer) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
		close(accepted)
	}()

	out := &syncBuffer{}
	c, err := Dial(context.Background(), ln.Addr().String(), false, out, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	server, ok := <-accepted
	require.True(t, ok, "accept failed")
	t.Cleanup(func() { _ = server.Close() })
	return c, server, out
}

func readFrame(t *testing.T, conn net.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testhelpers.DefaultTimeout)))
	frame, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	return frame
}

func runAsync(ctx context.Context, c *Client, in io.Reader) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, in)
	}()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(testhelpers.DefaultTimeout):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestJoinSendsIdentityFrame(t *testing.T) {
	c, server, out := connect(t)

	require.NoError(t, c.Join("alice"))

	assert.Equal(t, "alice", readFrame(t, server))
	assert.Contains(t, out.String(), "Welcome to the chat-room, alice!")
}

func TestRunSendsLinesAndExits(t *testing.T) {
	c, server, out := connect(t)

	done := runAsync(context.Background(), c, strings.NewReader("hello\n\n#gc\n#exit\nnever sent\n"))

	assert.Equal(t, "hello", readFrame(t, server))
	assert.Equal(t, protocol.TokenList, readFrame(t, server))
	assert.Equal(t, protocol.TokenExit, readFrame(t, server))
	require.NoError(t, waitRun(t, done))

	assert.Contains(t, out.String(), "You: hello\n")
	assert.NotContains(t, out.String(), "never sent")
}

func TestRunRendersTrios(t *testing.T) {
	c, server, out := connect(t)

	in, inWriter := io.Pipe()
	done := runAsync(context.Background(), c, in)

	for _, env := range []protocol.Envelope{
		protocol.Chat("bob", 2, "hi there"),
		protocol.Notice(3, "carol has joined the party"),
		protocol.Reply(1, "Active Members:\nID: 1, Name: alice\nID: 2, Name: bob\n"),
	} {
		require.NoError(t, protocol.WriteEnvelope(server, env))
	}

	want := "bob: hi there\n" +
		"carol has joined the party\n" +
		"Active Members:\n" +
		"ID: 1, Name: alice\n" +
		"ID: 2, Name: bob\n"
	testhelpers.Eventually(t, func() bool {
		return out.String() == want
	}, "rendered output")

	require.NoError(t, inWriter.Close())
	assert.Equal(t, protocol.TokenExit, readFrame(t, server))
	require.NoError(t, waitRun(t, done))
}

func TestRunContextCancelSendsExit(t *testing.T) {
	c, server, _ := connect(t)

	in, inWriter := io.Pipe()
	defer inWriter.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, c, in)
	cancel()

	assert.Equal(t, protocol.TokenExit, readFrame(t, server))
	require.NoError(t, waitRun(t, done))
}

func TestRunServerDisconnect(t *testing.T) {
	c, server, _ := connect(t)

	in, inWriter := io.Pipe()
	defer inWriter.Close()

	done := runAsync(context.Background(), c, in)
	require.NoError(t, server.Close())

	assert.ErrorIs(t, waitRun(t, done), ErrDisconnected)
}

func TestCloseIsIdempotent(t *testing.T) {
	c, server, _ := connect(t)

	require.NoError(t, c.Close())
	assert.Equal(t, protocol.TokenExit, readFrame(t, server))
	assert.NoError(t, c.Close())
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, lipgloss.Color("1"), colorFor(0))
	assert.Equal(t, lipgloss.Color("2"), colorFor(1))
	assert.Equal(t, lipgloss.Color("6"), colorFor(5))
	assert.Equal(t, lipgloss.Color("2"), colorFor(7))
	assert.Equal(t, lipgloss.Color("6"), colorFor(-1))
}
