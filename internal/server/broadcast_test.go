package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/framechat/internal/protocol"
)

func registerFakes(t *testing.T, r *Registry, n int) []*fakeConn {
	t.Helper()

	conns := make([]*fakeConn, n)
	for i := range conns {
		conns[i] = newFakeConn(6000 + i)
		_, err := r.Register(conns[i])
		require.NoError(t, err)
	}
	return conns
}

// TestBroadcastExcludesSender verifies every peer but the excluded one
// receives the trio.
func TestBroadcastExcludesSender(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))
	conns := registerFakes(t, r, 3)

	delivered := b.BroadcastEnvelope(protocol.Chat("client2", 2, "hello"), 2)
	assert.Equal(t, 2, delivered)

	want := []protocol.Envelope{protocol.Chat("client2", 2, "hello")}
	assert.Equal(t, want, conns[0].envelopes(t))
	assert.Empty(t, conns[1].written())
	assert.Equal(t, want, conns[2].envelopes(t))
}

// TestBroadcastContinuesAfterFailure verifies a dead peer does not stop
// delivery to later peers and is not evicted by the broadcaster.
func TestBroadcastContinuesAfterFailure(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))
	b.metrics = newMetrics()
	conns := registerFakes(t, r, 4)

	conns[0].failWrites = true
	conns[1].closed = true

	delivered := b.Broadcast("ping", 4)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, protocol.EncodeFrame("ping"), conns[2].written())
	assert.Empty(t, conns[3].written())

	assert.Equal(t, 4, r.Len(), "failed peers stay registered until their own session ends")
}

// TestBroadcastIDWritesBinaryFrame checks the raw id frame fan-out.
func TestBroadcastIDWritesBinaryFrame(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))
	conns := registerFakes(t, r, 2)

	assert.Equal(t, 1, b.BroadcastID(1, 1))
	assert.Empty(t, conns[0].written())
	assert.Equal(t, protocol.EncodeID(1), conns[1].written())
}

// TestBroadcastSkipsUnregistered ensures removed peers are never written to.
func TestBroadcastSkipsUnregistered(t *testing.T) {
	r := newTestRegistry(t)
	b := NewBroadcaster(r, zaptest.NewLogger(t))
	conns := registerFakes(t, r, 2)

	require.True(t, r.Unregister(1))
	b.Broadcast("after removal", 0)

	assert.Empty(t, conns[0].written())
	assert.Equal(t, protocol.EncodeFrame("after removal"), conns[1].written())
}
