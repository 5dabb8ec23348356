package server

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/frameecho/internal/observability"
	"github.com/danmuck/frameecho/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrListenAddrRequired = errors.New("server: listen address required")

const (
	DefaultListenAddr = "127.0.0.1:13337"

	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// ServiceConfig configures the echo listener.
type ServiceConfig struct {
	ListenAddr string
	Session    session.Config
	// Logger is the logging sink; nil uses the global zerolog logger.
	Logger *zerolog.Logger
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		ListenAddr: DefaultListenAddr,
		Session:    session.DefaultConfig(),
	}
}

// Status is a point-in-time view of the listener.
type Status struct {
	ListenAddr     string `json:"listen_addr"`
	FrameSize      int    `json:"frame_size"`
	ActiveSessions int64  `json:"active_sessions"`
	AcceptedTotal  uint64 `json:"accepted_total"`
}

// Service accepts connections and echoes fixed-size frames back to peers.
type Service struct {
	cfg ServiceConfig
	log zerolog.Logger

	wg sync.WaitGroup

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}

	addrMu    sync.RWMutex
	boundAddr string

	active   atomic.Int64
	accepted atomic.Uint64
}

func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

func NewServiceWithConfig(cfg ServiceConfig) *Service {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	cfg.Session = cfg.Session.WithDefaults()
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Service{
		cfg:   cfg,
		log:   logger.With().Str("component", "server").Logger(),
		conns: make(map[net.Conn]struct{}),
	}
}

// Run binds the listener and serves until ctx is done. A bind failure is
// returned; everything after that is contained per session.
func (s *Service) Run(ctx context.Context) error {
	if err := s.cfg.Session.Validate(); err != nil {
		return err
	}
	ln, err := s.Listen()
	if err != nil {
		s.log.Error().Err(err).Str("addr", s.cfg.ListenAddr).
			Msg("server.Run unexpected error while trying to initialize listener")
		return err
	}
	s.log.Info().Str("addr", ln.Addr().String()).Int("frame_size", s.cfg.Session.FrameSize).
		Msg("server.Run listening")
	return s.Serve(ctx, ln)
}

func (s *Service) Listen() (net.Listener, error) {
	addr := strings.TrimSpace(s.cfg.ListenAddr)
	if addr == "" {
		return nil, ErrListenAddrRequired
	}
	return net.Listen("tcp", addr)
}

// Serve runs the accept loop on ln. Each connection gets its own session
// goroutine. On cancellation the listener is closed and Serve waits for
// sessions to finish, force-closing stragglers after ShutdownGrace.
func (s *Service) Serve(ctx context.Context, ln net.Listener) error {
	s.setBoundAddr(ln.Addr().String())
	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer func() {
		stop()
		_ = ln.Close()
		s.drain()
	}()

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			kind := session.ClassifyError(err)
			observability.RecordIOError(observability.RoleServer, "accept", kind.String())
			s.log.Error().Err(err).Msg("server.Serve unexpected error while accepting a client")
			delay = nextAcceptDelay(delay)
			if !sleepCtx(ctx, delay) {
				return nil
			}
			continue
		}
		delay = 0
		s.accepted.Add(1)
		s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("server.Serve accepted a client")

		s.trackConn(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

func (s *Service) Status() Status {
	s.addrMu.RLock()
	addr := s.boundAddr
	s.addrMu.RUnlock()
	if addr == "" {
		addr = s.cfg.ListenAddr
	}
	return Status{
		ListenAddr:     addr,
		FrameSize:      s.cfg.Session.FrameSize,
		ActiveSessions: s.active.Load(),
		AcceptedTotal:  s.accepted.Load(),
	}
}

func (s *Service) setBoundAddr(addr string) {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	s.boundAddr = addr
}

func (s *Service) drain() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.cfg.Session.ShutdownGrace)
	defer timer.Stop()
	select {
	case <-done:
		return
	case <-timer.C:
	}
	s.log.Warn().Int64("active_sessions", s.active.Load()).
		Msg("server.drain shutdown grace elapsed, interrupting remaining sessions")
	s.interruptAllConns()
	<-done
}

func (s *Service) trackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	s.conns[conn] = struct{}{}
}

func (s *Service) untrackConn(conn net.Conn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// interruptAllConns unblocks every tracked session. Sessions still close
// their own conn on the way out.
func (s *Service) interruptAllConns() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		_ = conn.SetDeadline(time.Unix(1, 0))
	}
}

func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return minAcceptDelay
	}
	prev *= 2
	if prev > maxAcceptDelay {
		return maxAcceptDelay
	}
	return prev
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
