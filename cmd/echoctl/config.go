package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/frameecho/internal/client"
	"github.com/danmuck/frameecho/internal/config"
)

type ctlConfig struct {
	Client          client.Config
	AdminListenAddr string
}

func defaultCtlConfig() ctlConfig {
	return ctlConfig{Client: client.DefaultConfig()}
}

func loadCtlConfig(path string) (ctlConfig, error) {
	cfg := defaultCtlConfig()

	var raw config.ClientFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return ctlConfig{}, fmt.Errorf("load echoctl config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return ctlConfig{}, fmt.Errorf("load echoctl config: unknown key %q", undecoded[0].String())
	}
	if err := config.ValidateClientFile(raw); err != nil {
		return ctlConfig{}, err
	}

	if meta.IsDefined("address") {
		if addr := strings.TrimSpace(raw.Address); addr != "" {
			cfg.Client.Address = addr
		}
	}

	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}

	if meta.IsDefined("frame_size") {
		if err := config.RequirePositive("frame_size", raw.FrameSize); err != nil {
			return ctlConfig{}, err
		}
		cfg.Client.Session.FrameSize = raw.FrameSize
	}

	if meta.IsDefined("probe_byte") {
		cfg.Client.ProbeByte = byte(raw.ProbeByte)
	}

	if meta.IsDefined("max_connect_attempts") {
		cfg.Client.MaxConnectAttempts = raw.MaxConnectAttempts
	}

	if meta.IsDefined("max_empty_reads") {
		if err := config.RequirePositive("max_empty_reads", raw.MaxEmptyReads); err != nil {
			return ctlConfig{}, err
		}
		cfg.Client.Session.MaxEmptyReads = raw.MaxEmptyReads
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"connect_timeout", raw.ConnectTimeout, &cfg.Client.Session.ConnectTimeout},
		{"write_timeout", raw.WriteTimeout, &cfg.Client.Session.WriteTimeout},
		{"backoff.initial_delay", raw.Backoff.InitialDelay, &cfg.Client.Session.Backoff.InitialDelay},
		{"backoff.max_delay", raw.Backoff.MaxDelay, &cfg.Client.Session.Backoff.MaxDelay},
	}
	for _, d := range durations {
		if !meta.IsDefined(strings.Split(d.key, ".")...) {
			continue
		}
		v, err := config.ParseDuration(d.key, d.raw)
		if err != nil {
			return ctlConfig{}, err
		}
		*d.dst = v
	}

	if meta.IsDefined("backoff", "multiplier") {
		cfg.Client.Session.Backoff.Multiplier = raw.Backoff.Multiplier
	}

	if meta.IsDefined("backoff", "jitter") {
		cfg.Client.Session.Backoff.Jitter = raw.Backoff.Jitter
	}

	return cfg, nil
}
