// Package server runs one session per connection: it reads the identity
// frame, then classifies each following frame as a control command or chat.
package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/framechat/internal/protocol"
	"github.com/Tyrowin/framechat/internal/recency"
	"github.com/Tyrowin/framechat/internal/transport"
)

type sessionState int

const (
	stateAwaitingIdentity sessionState = iota
	stateActive
	stateClosing
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingIdentity:
		return "awaiting_identity"
	case stateActive:
		return "active"
	default:
		return "closing"
	}
}

const (
	targetNotFound = "Target not found"
	privatePrefix  = "You are now chatting separately with "
)

// session is the connection handler for one client.
type session struct {
	peer        *Peer
	name        string
	state       sessionState
	registry    *Registry
	cache       *recency.Cache
	broadcaster *Broadcaster
	limiter     *rateLimiter
	idleTimeout time.Duration
	metrics     *metrics
	log         *zap.Logger
}

func (s *session) run() {
	for s.state != stateClosing {
		switch s.state {
		case stateAwaitingIdentity:
			s.state = s.awaitIdentity()
		case stateActive:
			s.state = s.handleNext()
		}
	}
	s.close()
}

// read blocks for the next frame.
func (s *session) read() (string, error) {
	if s.idleTimeout > 0 {
		if err := s.peer.conn.SetReadDeadline(time.Now().Add(s.idleTimeout)); err != nil {
			return "", err
		}
	}
	return protocol.ReadFrame(s.peer.conn)
}

func (s *session) awaitIdentity() sessionState {
	name, err := s.read()
	if err != nil {
		s.handleReadError(err)
		return stateClosing
	}

	s.name = name
	s.registry.SetName(s.peer.id, name)
	s.log = s.log.With(zap.String("name", name))

	welcome := name + " has joined the party"
	s.log.Info(welcome)
	s.broadcaster.BroadcastEnvelope(protocol.Notice(s.peer.id, welcome), s.peer.id)
	return stateActive
}

func (s *session) handleNext() sessionState {
	frame, err := s.read()
	if err != nil {
		s.handleReadError(err)
		return stateClosing
	}

	cmd := protocol.Classify(frame)
	s.metrics.command(cmd)

	switch cmd {
	case protocol.CommandExit:
		return s.handleExit()
	case protocol.CommandList:
		s.reply(formatClients(s.registry.All()))
		return stateActive
	case protocol.CommandPrivate:
		return s.handlePrivate()
	case protocol.CommandReplay:
		s.reply(formatHistory(s.cache))
		return stateActive
	default:
		s.handleChat(frame)
		return stateActive
	}
}

func (s *session) handleExit() sessionState {
	bye := s.name + " has left"
	s.log.Info(bye)
	s.broadcaster.BroadcastEnvelope(protocol.Notice(s.peer.id, bye), s.peer.id)
	s.registry.Unregister(s.peer.id)
	return stateClosing
}

func (s *session) handlePrivate() sessionState {
	s.log.Info(s.name + " requested private chat")

	target, err := s.read()
	if err != nil {
		s.handleReadError(err)
		return stateClosing
	}

	peer, ok := s.registry.FindByName(target)
	if !ok {
		s.log.Info("Private chat target not found for "+s.name, zap.String("target", target))
		s.reply(targetNotFound)
		return stateActive
	}

	notice := protocol.Notice(s.peer.id, privatePrefix+s.name)
	if err := peer.Send(notice.Bytes()); err != nil {
		s.log.Warn("Private chat notice failed", zap.Int("target_id", peer.id), zap.Error(err))
		return stateActive
	}
	s.log.Info(s.name+" started private chat with "+target, zap.Int("target_id", peer.id))
	return stateActive
}

func (s *session) handleChat(msg string) {
	if !s.limiter.allow() {
		s.log.Warn("Rate limit exceeded; discarding message")
		return
	}

	s.cache.Put(strconv.Itoa(s.peer.id), msg)
	s.broadcaster.BroadcastEnvelope(protocol.Chat(s.name, s.peer.id, msg), s.peer.id)
	s.log.Info(s.name + ": " + msg)
}

// reply answers the requesting client only.
func (s *session) reply(body string) {
	if err := s.peer.Send(protocol.Reply(s.peer.id, body).Bytes()); err != nil {
		s.log.Debug("Reply failed", zap.Error(err))
	}
}

// handleReadError logs a failed read at a level that matches its cause.
func (s *session) handleReadError(err error) {
	switch {
	case errors.Is(err, ErrPeerClosed):
	case transport.IsClosed(err):
		s.log.Debug("Client connection closed", zap.Error(err))
	case errors.Is(err, protocol.ErrShortFrame):
		s.log.Warn("Client sent a partial frame", zap.Error(err))
	case isTimeout(err):
		s.log.Info("Client idle timeout reached", zap.Duration("idle_timeout", s.idleTimeout))
	default:
		s.log.Warn("Client read error", zap.Error(err))
	}
}

// close runs the closing state: deregister, which is a no-op after #exit.
func (s *session) close() {
	if s.registry.Unregister(s.peer.id) {
		s.log.Info(fmt.Sprintf("Client disconnected: %s (ID: %d)", s.name, s.peer.id))
	}
	s.metrics.clientLeft()
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func formatClients(clients []ClientInfo) string {
	var b strings.Builder
	b.WriteString("Active Members:\n")
	for _, c := range clients {
		fmt.Fprintf(&b, "ID: %d, Name: %s\n", c.ID, c.Name)
	}
	return b.String()
}

func formatHistory(cache *recency.Cache) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Last %d messages:\n", cache.Capacity())
	for _, e := range cache.Snapshot() {
		fmt.Fprintf(&b, "ID: %s msg: %s\n", e.Key, e.Value)
	}
	return b.String()
}
