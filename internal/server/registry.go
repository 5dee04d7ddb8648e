// Package server tracks connected clients in the Registry, which assigns ids
// and guards every record behind a single lock.
package server

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/framechat/internal/transport"
)

// Registry is the ordered set of connected clients. Ids are assigned from a
// counter that only grows, so an id is never reused while the process runs.
type Registry struct {
	mu           sync.RWMutex
	peers        []*Peer
	nextID       int
	closed       bool
	writeTimeout time.Duration
	log          *zap.Logger
}

// NewRegistry returns an empty registry. writeTimeout is applied to every
// write made through a registered Peer.
func NewRegistry(writeTimeout time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		writeTimeout: writeTimeout,
		log:          logger,
	}
}

// Register inserts a record for conn with the placeholder display name and
// returns its handle.
func (r *Registry) Register(conn transport.Transport) (*Peer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrServerClosed
	}

	r.nextID++
	p := newPeer(r.nextID, conn, r.writeTimeout)
	r.peers = append(r.peers, p)
	return p, nil
}

// SetName records the display name for id. It returns false when id is not
// registered.
func (r *Registry) SetName(id int, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.peers {
		if p.id == id {
			p.name = name
			return true
		}
	}
	return false
}

// Unregister removes id and closes its connection, which ends the owning
// session's blocked read. Removing an id that is already gone is a no-op and
// returns false.
func (r *Registry) Unregister(id int) bool {
	r.mu.Lock()
	var removed *Peer
	for i, p := range r.peers {
		if p.id == id {
			removed = p
			r.peers = append(r.peers[:i:i], r.peers[i+1:]...)
			break
		}
	}
	count := len(r.peers)
	r.mu.Unlock()

	if removed == nil {
		return false
	}

	if err := removed.close(); err != nil && !transport.IsClosed(err) {
		r.log.Debug("Error closing client connection", zap.Int("id", id), zap.Error(err))
	}
	r.log.Info("Client unregistered",
		zap.Int("id", id),
		zap.String("addr", removed.addr),
		zap.Int("clients", count))
	return true
}

// All returns a copy of every record in registry order.
func (r *Registry) All() []ClientInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ClientInfo, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, ClientInfo{
			ID:       p.id,
			Name:     p.name,
			Addr:     p.addr,
			Session:  p.session.String(),
			JoinedAt: p.joinedAt,
		})
	}
	return out
}

// FindByName returns the first client, in registry order, whose display name
// is name.
func (r *Registry) FindByName(name string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.peers {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// peersExcept returns a snapshot of every peer other than excludeID, in
// registry order.
func (r *Registry) peersExcept(excludeID int) []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.id != excludeID {
			out = append(out, p)
		}
	}
	return out
}

// CloseAll unregisters every client and refuses further registrations.
func (r *Registry) CloseAll() int {
	r.mu.Lock()
	r.closed = true
	peers := r.peers
	r.peers = nil
	r.mu.Unlock()

	for _, p := range peers {
		if err := p.close(); err != nil && !transport.IsClosed(err) {
			r.log.Debug("Error closing client connection", zap.Int("id", p.id), zap.Error(err))
		}
	}

	r.log.Info("Closed client connections", zap.Int("count", len(peers)))
	return len(peers)
}
