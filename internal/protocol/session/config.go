package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/frameecho/internal/protocol/frame"
)

var ErrInvalidFrameSize = errors.New("session: invalid frame size")

// MaxFrameSize caps the per-session buffer.
const MaxFrameSize = 64 * 1024

// BackoffConfig defines retry backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines per-session framing and reliability settings.
type Config struct {
	FrameSize      int
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	ShutdownGrace  time.Duration
	// MaxEmptyReads is the number of consecutive end-of-stream reads a
	// session tolerates before it ends. 1 ends on the first one.
	MaxEmptyReads int
	Backoff       BackoffConfig
}

// DefaultConfig returns the stock 24-byte frame setup.
func DefaultConfig() Config {
	return Config{
		FrameSize:      frame.DefaultSize,
		ConnectTimeout: 5 * time.Second,
		WriteTimeout:   15 * time.Second,
		ShutdownGrace:  5 * time.Second,
		MaxEmptyReads:  1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.FrameSize <= 0 {
		c.FrameSize = def.FrameSize
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = def.ShutdownGrace
	}
	if c.MaxEmptyReads <= 0 {
		c.MaxEmptyReads = def.MaxEmptyReads
	}
	if c.Backoff == (BackoffConfig{}) {
		c.Backoff = def.Backoff
	}
	return c
}

func (c Config) Validate() error {
	if c.FrameSize <= 0 || c.FrameSize > MaxFrameSize {
		return fmt.Errorf("%w: %d", ErrInvalidFrameSize, c.FrameSize)
	}
	return nil
}
