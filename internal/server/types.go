// Package server defines the client record shared by the registry, the
// broadcast engine and the connection handler.
package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/framechat/internal/transport"
)

var (
	// ErrPeerClosed is returned when writing to a peer that has been unregistered.
	ErrPeerClosed = errors.New("server: peer closed")
	// ErrServerClosed is returned after shutdown has begun.
	ErrServerClosed = errors.New("server: closed")
)

// placeholderName is the display name of a client that has not sent its
// identity frame yet.
const placeholderName = "anonymous"

// ClientInfo is a point-in-time copy of one registry record.
type ClientInfo struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Addr     string    `json:"addr"`
	Session  string    `json:"session"`
	JoinedAt time.Time `json:"joined_at"`
}

// Peer is the registry's handle on one connected client. Writes to a peer are
// serialized so that trios from different senders never interleave on the
// same socket.
type Peer struct {
	id       int
	addr     string
	session  uuid.UUID
	joinedAt time.Time
	conn     transport.Transport

	// name is guarded by the owning Registry's lock.
	name string

	writeTimeout time.Duration
	writeMu      sync.Mutex
	closed       atomic.Bool
	closeOnce    sync.Once
	done         chan struct{}
}

func newPeer(id int, conn transport.Transport, writeTimeout time.Duration) *Peer {
	addr := ""
	if ra := conn.RemoteAddr(); ra != nil {
		addr = ra.String()
	}
	return &Peer{
		id:           id,
		addr:         addr,
		session:      uuid.New(),
		joinedAt:     time.Now(),
		conn:         conn,
		name:         placeholderName,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
}

// ID returns the id assigned at registration.
func (p *Peer) ID() int {
	return p.id
}

// Addr returns the remote address of the connection.
func (p *Peer) Addr() string {
	return p.addr
}

// Session returns the session handle id used to correlate log lines.
func (p *Peer) Session() string {
	return p.session.String()
}

// Done is closed once the peer has been unregistered.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Send writes raw bytes to the peer in a single call.
func (p *Peer) Send(b []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if p.closed.Load() {
		return ErrPeerClosed
	}

	if p.writeTimeout > 0 {
		if err := p.conn.SetWriteDeadline(time.Now().Add(p.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := p.conn.Write(b)
	return err
}

// close marks the peer closed, closes its connection and waits for any
// in-flight write to return. It is safe to call more than once.
func (p *Peer) close() error {
	var err error
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.done)
		err = p.conn.Close()

		p.writeMu.Lock()
		defer p.writeMu.Unlock()
	})
	return err
}
