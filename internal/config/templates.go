package config

import (
	"fmt"
	"os"
)

func Template(kind string) (string, error) {
	switch normalizeKind(kind) {
	case KindServer:
		return serverTemplate, nil
	case KindClient:
		return clientTemplate, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const serverTemplate = `listen_addr = "127.0.0.1:13337"
# admin_listen_addr = "127.0.0.1:7010"
frame_size = 24
write_timeout = "15s"
shutdown_grace = "5s"
max_empty_reads = 1
`

const clientTemplate = `address = "127.0.0.1:13337"
# admin_listen_addr = "127.0.0.1:7011"
frame_size = 24
probe_byte = 0
max_connect_attempts = 0
connect_timeout = "5s"
write_timeout = "15s"
max_empty_reads = 1

[backoff]
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true
`
