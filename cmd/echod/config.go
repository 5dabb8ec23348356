package main

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/frameecho/internal/config"
	"github.com/danmuck/frameecho/internal/server"
)

type daemonConfig struct {
	Service         server.ServiceConfig
	AdminListenAddr string
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{Service: server.DefaultServiceConfig()}
}

func loadDaemonConfig(path string) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	var raw config.ServerFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return daemonConfig{}, fmt.Errorf("load echod config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return daemonConfig{}, fmt.Errorf("load echod config: unknown key %q", undecoded[0].String())
	}
	if err := config.ValidateServerFile(raw); err != nil {
		return daemonConfig{}, err
	}

	if meta.IsDefined("listen_addr") {
		if addr := strings.TrimSpace(raw.ListenAddr); addr != "" {
			cfg.Service.ListenAddr = addr
		}
	}

	if meta.IsDefined("admin_listen_addr") {
		cfg.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}

	if meta.IsDefined("frame_size") {
		if err := config.RequirePositive("frame_size", raw.FrameSize); err != nil {
			return daemonConfig{}, err
		}
		cfg.Service.Session.FrameSize = raw.FrameSize
	}

	if meta.IsDefined("write_timeout") {
		d, err := config.ParseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return daemonConfig{}, err
		}
		cfg.Service.Session.WriteTimeout = d
	}

	if meta.IsDefined("shutdown_grace") {
		d, err := config.ParseDuration("shutdown_grace", raw.ShutdownGrace)
		if err != nil {
			return daemonConfig{}, err
		}
		cfg.Service.Session.ShutdownGrace = d
	}

	if meta.IsDefined("max_empty_reads") {
		if err := config.RequirePositive("max_empty_reads", raw.MaxEmptyReads); err != nil {
			return daemonConfig{}, err
		}
		cfg.Service.Session.MaxEmptyReads = raw.MaxEmptyReads
	}

	return cfg, nil
}
