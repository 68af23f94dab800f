package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "watch":
		return watchTemplate, nil
	case "gateway":
		return gatewayTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
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

const watchTemplate = `name = "gatectl"
heartbeat_seconds = 30

[gateway]
url = "ws://127.0.0.1:18789"
token_file = "/etc/gatectl/token"
client_id = "gatectl"
client_mode = "cli"
auto_reconnect = true
reconnect_delay_seconds = 10

[admin]
addr = "127.0.0.1:9200"
cors_origins = ["http://localhost:3000"]
`

const gatewayTemplate = `url = "ws://127.0.0.1:18789"
token_file = "/etc/gatectl/token"
client_id = "gatectl"
client_mode = "cli"
auto_reconnect = true
reconnect_delay_seconds = 10
`
