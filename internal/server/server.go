// Package server constructs and runs the chat service: the TCP accept loop,
// the optional HTTP surface, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/framechat/internal/recency"
	"github.com/Tyrowin/framechat/internal/transport"
)

// Server owns the registry, the recency cache and the broadcaster, and runs
// one session goroutine per connected client.
type Server struct {
	cfg         Config
	log         *zap.Logger
	registry    *Registry
	cache       *recency.Cache
	broadcaster *Broadcaster
	metrics     *metrics
	upgrader    websocket.Upgrader

	mu         sync.Mutex
	listener   net.Listener
	httpLn     net.Listener
	httpServer *http.Server
	closed     bool
	quit       chan struct{}
	sessions   sync.WaitGroup
}

// New creates a Server from cfg. A nil logger discards all output.
func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = sanitizeConfig(cfg)

	m := newMetrics()
	registry := NewRegistry(cfg.WriteTimeout, logger.Named("registry"))
	broadcaster := NewBroadcaster(registry, logger.Named("broadcast"))
	broadcaster.metrics = m

	s := &Server{
		cfg:         cfg,
		log:         logger,
		registry:    registry,
		cache:       recency.New(cfg.HistorySize),
		broadcaster: broadcaster,
		metrics:     m,
		quit:        make(chan struct{}),
	}

	origins := newOriginPolicy(cfg.AllowedOrigins, logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}
	return s
}

// Listen binds the TCP listener and, when configured, the HTTP listener.
// Errors here are setup failures and should end the process.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.ListenAddr, err)
	}

	var httpLn net.Listener
	if s.cfg.HTTPAddr != "" {
		httpLn, err = net.Listen("tcp", s.cfg.HTTPAddr)
		if err != nil {
			_ = ln.Close()
			return fmt.Errorf("listen on %s: %w", s.cfg.HTTPAddr, err)
		}
	}

	s.mu.Lock()
	s.listener = ln
	s.httpLn = httpLn
	if httpLn != nil {
		s.httpServer = CreateServer(s.cfg.HTTPAddr, s.Routes())
	}
	s.mu.Unlock()

	s.log.Info("Server is listening", zap.String("addr", ln.Addr().String()))
	if httpLn != nil {
		s.log.Info("HTTP surface is listening", zap.String("addr", httpLn.Addr().String()))
	}
	return nil
}

// Addr returns the bound TCP address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// HTTPAddr returns the bound HTTP address, or nil when disabled.
func (s *Server) HTTPAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// Serve accepts connections until ctx is cancelled or the listener fails,
// then shuts everything down and waits for sessions to finish.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln, httpLn, httpServer := s.listener, s.httpLn, s.httpServer
	s.mu.Unlock()
	if ln == nil {
		return errors.New("server: Serve called before Listen")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.acceptLoop(ln)
	})

	if httpServer != nil {
		g.Go(func() error {
			if err := httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return s.Shutdown(s.cfg.ShutdownTimeout)
		case <-s.quit:
			return nil
		}
	})

	return g.Wait()
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// acceptLoop hands every accepted connection to ServeConn. Transient accept
// errors are logged and retried with backoff; a closed listener ends the loop.
func (s *Server) acceptLoop(ln net.Listener) error {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			s.log.Warn("Accept error", zap.Error(err), zap.Duration("retry_in", delay))
			time.Sleep(delay)
			continue
		}
		delay = 0

		if err := s.ServeConn(conn); err != nil && !errors.Is(err, ErrServerClosed) {
			s.log.Warn("Connection rejected", zap.String("addr", conn.RemoteAddr().String()), zap.Error(err))
		}
	}
}

// ServeConn registers conn and starts its session. It returns once the
// session is running; the connection is closed when the session ends.
func (s *Server) ServeConn(conn transport.Transport) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return ErrServerClosed
	}
	s.sessions.Add(1)
	s.mu.Unlock()

	if s.cfg.MaxClients > 0 && s.registry.Len() >= s.cfg.MaxClients {
		s.sessions.Done()
		s.metrics.connectionRejected()
		_ = conn.Close()
		return fmt.Errorf("client limit of %d reached", s.cfg.MaxClients)
	}

	peer, err := s.registry.Register(conn)
	if err != nil {
		s.sessions.Done()
		_ = conn.Close()
		return err
	}
	s.metrics.clientJoined()

	logger := s.log.With(zap.Int("id", peer.id), zap.String("session", peer.Session()))
	logger.Info("New connection",
		zap.String("addr", peer.addr),
		zap.Int("clients", s.registry.Len()))

	sess := &session{
		peer:        peer,
		name:        placeholderName,
		state:       stateAwaitingIdentity,
		registry:    s.registry,
		cache:       s.cache,
		broadcaster: s.broadcaster,
		limiter:     newRateLimiter(s.cfg.RateLimit.Burst, s.cfg.RateLimit.RefillInterval),
		idleTimeout: s.cfg.IdleTimeout,
		metrics:     s.metrics,
		log:         logger,
	}

	go func() {
		defer s.sessions.Done()
		sess.run()
	}()
	return nil
}

// Clients returns the current registry snapshot.
func (s *Server) Clients() []ClientInfo {
	return s.registry.All()
}

// History returns the current recency cache contents.
func (s *Server) History() []recency.Entry {
	return s.cache.Snapshot()
}

// Registry exposes the client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Shutdown stops accepting, closes every client connection and waits up to
// timeout for the sessions to return. It is safe to call more than once.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.quit)
	ln, httpServer := s.listener, s.httpServer
	s.mu.Unlock()

	s.log.Info("Initiating server shutdown...")

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.log.Warn("Error closing listener", zap.Error(err))
		}
	}

	if httpServer != nil {
		if err := ShutdownServer(httpServer, timeout, s.log); err != nil {
			s.log.Warn("HTTP server shutdown error", zap.Error(err))
		}
	}

	s.registry.CloseAll()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Server shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		s.log.Warn("Server shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
