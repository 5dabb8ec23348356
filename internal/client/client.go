// Package client drives echo sessions against a frameecho server: it
// connects, sends one probe frame, and logs every frame read back. A
// dropped or refused connection is retried with bounded backoff.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/frameecho/internal/observability"
	"github.com/danmuck/frameecho/internal/protocol/frame"
	"github.com/danmuck/frameecho/internal/protocol/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrAddressRequired          = errors.New("client: server address required")
	ErrConnectAttemptsExhausted = errors.New("client: connect attempts exhausted")
)

const DefaultAddress = "127.0.0.1:13337"

type Config struct {
	Address string
	// ProbeByte fills the first frame sent on every session.
	ProbeByte byte
	// MaxConnectAttempts bounds consecutive failed connects; 0 retries forever.
	MaxConnectAttempts int
	Session            session.Config
	// Logger is the logging sink; nil uses the global zerolog logger.
	Logger *zerolog.Logger
	// OnFrame, when set, sees every non-canceled read on the session
	// goroutine. p aliases the session buffer and is only valid during the call.
	OnFrame func(res frame.Result, p []byte)
}

func DefaultConfig() Config {
	return Config{
		Address: DefaultAddress,
		Session: session.DefaultConfig(),
	}
}

// Status is a point-in-time view of the client.
type Status struct {
	Address        string `json:"address"`
	Connected      bool   `json:"connected"`
	Sessions       uint64 `json:"sessions"`
	FramesComplete uint64 `json:"frames_complete"`
	FramesPartial  uint64 `json:"frames_partial"`
}

type Client struct {
	cfg Config
	log zerolog.Logger
	rng *rand.Rand

	connected      atomic.Bool
	sessions       atomic.Uint64
	framesComplete atomic.Uint64
	framesPartial  atomic.Uint64
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Session.Validate(); err != nil {
		return nil, err
	}
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Client{
		cfg: cfg,
		log: logger.With().Str("component", "client").Logger(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Run connects and drives sessions until ctx is done. It only returns an
// error when MaxConnectAttempts consecutive connects have failed.
func (c *Client) Run(ctx context.Context) error {
	failures := 0
	for ctx.Err() == nil {
		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			kind := session.ClassifyError(err)
			observability.RecordConnectAttempt(kind.String())
			switch kind {
			case session.KindRefused:
				c.log.Warn().Str("addr", c.cfg.Address).Int("attempt", failures+1).
					Msg("client.Run unable to connect to server")
			case session.KindTimeout:
				c.log.Warn().Err(err).Str("addr", c.cfg.Address).Int("attempt", failures+1).
					Dur("connect_timeout", c.cfg.Session.ConnectTimeout).
					Msg("client.Run timed out connecting to server")
			default:
				c.log.Error().Err(err).Str("addr", c.cfg.Address).Int("attempt", failures+1).
					Msg("client.Run unexpected error while trying to connect")
			}
			failures++
			if !c.shouldRetry(failures) {
				return fmt.Errorf("%w: attempts=%d: %w", ErrConnectAttemptsExhausted, failures, err)
			}
			if err := c.sleepBackoff(ctx, failures); err != nil {
				return nil
			}
			continue
		}

		failures = 0
		observability.RecordConnectAttempt("connected")
		c.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("client.Run connected to server")
		c.operate(ctx, conn)

		// A server that accepts and drops straight away must not turn this
		// into a hot loop.
		if err := c.sleepBackoff(ctx, 1); err != nil {
			return nil
		}
	}
	return nil
}

func (c *Client) Status() Status {
	return Status{
		Address:        c.cfg.Address,
		Connected:      c.connected.Load(),
		Sessions:       c.sessions.Load(),
		FramesComplete: c.framesComplete.Load(),
		FramesPartial:  c.framesPartial.Load(),
	}
}

func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	return dialer.DialContext(ctx, "tcp", c.cfg.Address)
}

func (c *Client) shouldRetry(failures int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return failures < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := session.NextBackoffDelay(c.cfg.Session.Backoff, attempt, c.rng)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
