package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/frameecho/internal/protocol/session"
	"github.com/pelletier/go-toml/v2"
)

var ErrUnknownKind = errors.New("config: unknown kind")

const (
	KindServer = "server"
	KindClient = "client"
)

// ServerFile is the on-disk shape of an echod config. Durations are Go
// duration strings.
type ServerFile struct {
	ListenAddr      string `toml:"listen_addr"`
	AdminListenAddr string `toml:"admin_listen_addr"`
	FrameSize       int    `toml:"frame_size"`
	WriteTimeout    string `toml:"write_timeout"`
	ShutdownGrace   string `toml:"shutdown_grace"`
	MaxEmptyReads   int    `toml:"max_empty_reads"`
}

// ClientFile is the on-disk shape of an echoctl config.
type ClientFile struct {
	Address            string      `toml:"address"`
	AdminListenAddr    string      `toml:"admin_listen_addr"`
	FrameSize          int         `toml:"frame_size"`
	ProbeByte          int         `toml:"probe_byte"`
	MaxConnectAttempts int         `toml:"max_connect_attempts"`
	ConnectTimeout     string      `toml:"connect_timeout"`
	WriteTimeout       string      `toml:"write_timeout"`
	MaxEmptyReads      int         `toml:"max_empty_reads"`
	Backoff            BackoffFile `toml:"backoff"`
}

type BackoffFile struct {
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// ParseDuration parses raw as a strictly positive Go duration, naming field
// in the error.
func ParseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("parse %s: duration must be positive, got %s", field, raw)
	}
	return d, nil
}

// RequirePositive rejects an explicitly set count that is zero or negative.
func RequirePositive(field string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %d", field, v)
	}
	return nil
}

// Validate strictly decodes the file at path as kind. Unknown keys and
// out-of-range values are errors.
func Validate(kind, path string) error {
	switch normalizeKind(kind) {
	case KindServer:
		var cfg ServerFile
		if err := loadStrict(path, &cfg); err != nil {
			return err
		}
		return ValidateServerFile(cfg)
	case KindClient:
		var cfg ClientFile
		if err := loadStrict(path, &cfg); err != nil {
			return err
		}
		return ValidateClientFile(cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func ValidateServerFile(cfg ServerFile) error {
	if cfg.FrameSize < 0 || cfg.FrameSize > session.MaxFrameSize {
		return fmt.Errorf("server config frame_size out of range: %d", cfg.FrameSize)
	}
	if cfg.MaxEmptyReads < 0 {
		return fmt.Errorf("server config max_empty_reads must not be negative")
	}
	if err := validateDurations(map[string]string{
		"write_timeout":  cfg.WriteTimeout,
		"shutdown_grace": cfg.ShutdownGrace,
	}); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	return nil
}

func ValidateClientFile(cfg ClientFile) error {
	if cfg.FrameSize < 0 || cfg.FrameSize > session.MaxFrameSize {
		return fmt.Errorf("client config frame_size out of range: %d", cfg.FrameSize)
	}
	if cfg.ProbeByte < 0 || cfg.ProbeByte > 0xFF {
		return fmt.Errorf("client config probe_byte out of range: %d", cfg.ProbeByte)
	}
	if cfg.MaxConnectAttempts < 0 {
		return fmt.Errorf("client config max_connect_attempts must not be negative")
	}
	if cfg.MaxEmptyReads < 0 {
		return fmt.Errorf("client config max_empty_reads must not be negative")
	}
	if cfg.Backoff.Multiplier < 0 {
		return fmt.Errorf("client config backoff.multiplier must not be negative")
	}
	if err := validateDurations(map[string]string{
		"connect_timeout":       cfg.ConnectTimeout,
		"write_timeout":         cfg.WriteTimeout,
		"backoff.initial_delay": cfg.Backoff.InitialDelay,
		"backoff.max_delay":     cfg.Backoff.MaxDelay,
	}); err != nil {
		return fmt.Errorf("client config: %w", err)
	}
	return nil
}

func validateDurations(fields map[string]string) error {
	for field, raw := range fields {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := ParseDuration(field, raw); err != nil {
			return err
		}
	}
	return nil
}

func loadStrict(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
