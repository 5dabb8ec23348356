package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/frameecho/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplatesValidate(t *testing.T) {
	testlog.Start(t)

	for _, kind := range []string{KindServer, KindClient} {
		path := filepath.Join(t.TempDir(), kind+".toml")
		if err := WriteTemplate(path, kind, false); err != nil {
			t.Fatalf("%s: write template: %v", kind, err)
		}
		if err := Validate(kind, path); err != nil {
			t.Fatalf("%s: template does not validate: %v", kind, err)
		}
	}
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	testlog.Start(t)

	path := writeFile(t, "listen_addr = \"127.0.0.1:1\"\n")
	if err := WriteTemplate(path, KindServer, false); err == nil {
		t.Fatalf("expected existing file to be kept")
	}
	if err := WriteTemplate(path, KindServer, true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(data), "13337") {
		t.Fatalf("template not written: %s", data)
	}
}

func TestUnknownKind(t *testing.T) {
	testlog.Start(t)

	if _, err := Template("ghost"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
	if err := Validate("ghost", "unused.toml"); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	testlog.Start(t)

	path := writeFile(t, "listen_addr = \"127.0.0.1:13337\"\nlisten_port = 1\n")
	err := Validate(KindServer, path)
	if err == nil || !strings.Contains(err.Error(), "listen_port") {
		t.Fatalf("expected unknown key error naming listen_port, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		name string
		kind string
		body string
	}{
		{"oversized frame", KindServer, "frame_size = 70000\n"},
		{"bad duration", KindServer, "write_timeout = \"soon\"\n"},
		{"zero duration", KindServer, "shutdown_grace = \"0s\"\n"},
		{"probe byte", KindClient, "probe_byte = 256\n"},
		{"negative attempts", KindClient, "max_connect_attempts = -1\n"},
		{"bad backoff", KindClient, "[backoff]\nmax_delay = \"-1s\"\n"},
	}
	for _, tc := range cases {
		if err := Validate(tc.kind, writeFile(t, tc.body)); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateMissingFile(t *testing.T) {
	testlog.Start(t)

	if err := Validate(KindClient, filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
