// Package server fans messages out to every registered client except the
// sender via the Broadcaster type.
package server

import (
	"errors"

	"go.uber.org/zap"

	"github.com/Tyrowin/framechat/internal/protocol"
	"github.com/Tyrowin/framechat/internal/transport"
)

// Broadcaster delivers frames to every registered client except an excluded
// sender. The registry lock is only held while taking the recipient snapshot;
// writes happen after it is released.
type Broadcaster struct {
	registry *Registry
	metrics  *metrics
	log      *zap.Logger
}

// NewBroadcaster returns a Broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{registry: registry, log: logger}
}

// Broadcast sends payload as one fixed-size frame to everyone but excludeID.
// It returns the number of peers written to successfully.
func (b *Broadcaster) Broadcast(payload string, excludeID int) int {
	return b.fanOut(protocol.EncodeFrame(payload), excludeID)
}

// BroadcastID sends id as a binary id frame to everyone but excludeID.
func (b *Broadcaster) BroadcastID(id, excludeID int) int {
	return b.fanOut(protocol.EncodeID(id), excludeID)
}

// BroadcastEnvelope sends a whole trio to everyone but excludeID. Each
// recipient receives the trio in one write, so concurrent senders cannot
// interleave their frames.
func (b *Broadcaster) BroadcastEnvelope(env protocol.Envelope, excludeID int) int {
	return b.fanOut(env.Bytes(), excludeID)
}

// fanOut keeps going after a failed write. The failed peer stays registered;
// its own session notices the dead connection on its next read and cleans up.
func (b *Broadcaster) fanOut(raw []byte, excludeID int) int {
	peers := b.registry.peersExcept(excludeID)
	delivered := 0

	for _, p := range peers {
		if err := p.Send(raw); err != nil {
			b.metrics.broadcastFailed()
			if transport.IsClosed(err) || errors.Is(err, ErrPeerClosed) {
				b.log.Debug("Skipping closed peer during broadcast", zap.Int("id", p.id), zap.Error(err))
			} else {
				b.log.Warn("Broadcast write failed", zap.Int("id", p.id), zap.String("addr", p.addr), zap.Error(err))
			}
			continue
		}
		delivered++
	}

	b.log.Debug("Broadcast complete",
		zap.Int("exclude", excludeID),
		zap.Int("targets", len(peers)),
		zap.Int("delivered", delivered))
	return delivered
}
