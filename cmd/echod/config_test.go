package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/frameecho/internal/config"
	"github.com/danmuck/frameecho/internal/server"
	"github.com/danmuck/frameecho/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDaemonConfigFromTemplate(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.WriteTemplate(path, config.KindServer, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cfg, err := loadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Service.ListenAddr != server.DefaultListenAddr {
		t.Fatalf("unexpected listen addr: %q", cfg.Service.ListenAddr)
	}
	if cfg.AdminListenAddr != "" {
		t.Fatalf("admin should be disabled by the template, got %q", cfg.AdminListenAddr)
	}
	if cfg.Service.Session.FrameSize != 24 {
		t.Fatalf("unexpected frame size: %d", cfg.Service.Session.FrameSize)
	}
	if cfg.Service.Session.WriteTimeout != 15*time.Second {
		t.Fatalf("unexpected write timeout: %v", cfg.Service.Session.WriteTimeout)
	}
	if cfg.Service.Session.ShutdownGrace != 5*time.Second {
		t.Fatalf("unexpected shutdown grace: %v", cfg.Service.Session.ShutdownGrace)
	}
}

func TestLoadDaemonConfigOverlaysOnlyDefinedKeys(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `admin_listen_addr = "127.0.0.1:7010"
frame_size = 48
max_empty_reads = 3
`)
	cfg, err := loadDaemonConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	defaults := server.DefaultServiceConfig()
	if cfg.Service.ListenAddr != defaults.ListenAddr {
		t.Fatalf("listen addr should keep default, got %q", cfg.Service.ListenAddr)
	}
	if cfg.AdminListenAddr != "127.0.0.1:7010" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminListenAddr)
	}
	if cfg.Service.Session.FrameSize != 48 || cfg.Service.Session.MaxEmptyReads != 3 {
		t.Fatalf("unexpected session config: %+v", cfg.Service.Session)
	}
	if cfg.Service.Session.WriteTimeout != defaults.Session.WriteTimeout {
		t.Fatalf("write timeout should keep default, got %v", cfg.Service.Session.WriteTimeout)
	}
}

func TestLoadDaemonConfigRejectsBadInput(t *testing.T) {
	testlog.Start(t)

	for name, body := range map[string]string{
		"bad duration": "write_timeout = \"later\"\n",
		"zero grace":   "shutdown_grace = \"0s\"\n",
		"zero frame":   "frame_size = 0\n",
		"zero reads":   "max_empty_reads = 0\n",
		"unknown key":  "listen = \"127.0.0.1:1\"\n",
		"frame size":   "frame_size = 100000\n",
		"bad toml":     "listen_addr = \n",
	} {
		if _, err := loadDaemonConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestResolveConfigFlagsOverrideFile(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, "listen_addr = \"127.0.0.1:2000\"\nframe_size = 32\n")
	cmd := rootCmd()
	if err := cmd.ParseFlags([]string{"--config", path, "--frame-size", "16", "--admin-addr", "127.0.0.1:7010"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	opts := options{}
	opts.configPath, _ = cmd.Flags().GetString("config")
	opts.addr, _ = cmd.Flags().GetString("addr")
	opts.adminAddr, _ = cmd.Flags().GetString("admin-addr")
	opts.frameSize, _ = cmd.Flags().GetInt("frame-size")

	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		t.Fatalf("resolve config: %v", err)
	}
	if cfg.Service.ListenAddr != "127.0.0.1:2000" {
		t.Fatalf("file listen addr should survive unset flag, got %q", cfg.Service.ListenAddr)
	}
	if cfg.Service.Session.FrameSize != 16 {
		t.Fatalf("flag should override frame size, got %d", cfg.Service.Session.FrameSize)
	}
	if cfg.AdminListenAddr != "127.0.0.1:7010" {
		t.Fatalf("unexpected admin addr: %q", cfg.AdminListenAddr)
	}
}

func TestResolveConfigRejectsNonPositiveFrameSize(t *testing.T) {
	testlog.Start(t)

	for _, raw := range []string{"-5", "0"} {
		cmd := rootCmd()
		if err := cmd.ParseFlags([]string{"--frame-size", raw}); err != nil {
			t.Fatalf("parse flags: %v", err)
		}
		opts := options{}
		opts.frameSize, _ = cmd.Flags().GetInt("frame-size")
		if _, err := resolveConfig(cmd, opts); err == nil {
			t.Fatalf("--frame-size %s: expected error", raw)
		}
	}
}
