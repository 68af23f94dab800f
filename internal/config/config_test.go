package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/gatectl/internal/auth"
	"github.com/danmuck/gatectl/internal/testutil/testlog"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadWatchConfigDefaultsAndOverrides(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
name = "edge-watch"

[gateway]
url = "wss://gateway.internal:18789"
token = "secret"
reconnect_delay_seconds = 5

[admin]
addr = "127.0.0.1:9300"
cors_origins = ["http://localhost:3000"]
`)

	cfg, err := LoadWatchConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Name != "edge-watch" {
		t.Fatalf("unexpected name: %q", cfg.Name)
	}
	if cfg.Gateway.URL != "wss://gateway.internal:18789" {
		t.Fatalf("unexpected url: %q", cfg.Gateway.URL)
	}
	if !cfg.Gateway.AutoReconnect {
		t.Fatalf("expected auto reconnect to default on")
	}
	if cfg.Gateway.ReconnectDelaySeconds != 5 {
		t.Fatalf("unexpected reconnect delay: %d", cfg.Gateway.ReconnectDelaySeconds)
	}
	if cfg.Gateway.ClientID != "gatectl" {
		t.Fatalf("unexpected client id: %q", cfg.Gateway.ClientID)
	}
	if cfg.Admin.Addr != "127.0.0.1:9300" {
		t.Fatalf("unexpected admin addr: %q", cfg.Admin.Addr)
	}
	if len(cfg.Admin.CorsOrigins) != 1 {
		t.Fatalf("unexpected cors origins: %+v", cfg.Admin.CorsOrigins)
	}
	if cfg.HeartbeatSeconds != 30 {
		t.Fatalf("unexpected heartbeat default: %d", cfg.HeartbeatSeconds)
	}
}

func TestLoadGatewayConfig(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvGatewayURL, "")

	path := writeConfig(t, `
url = "wss://gateway.internal:18789"
token_file = "/tmp/token"
client_mode = "watch"
`)

	cfg, err := LoadGatewayConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.URL != "wss://gateway.internal:18789" {
		t.Fatalf("unexpected url: %q", cfg.URL)
	}
	if cfg.TokenFile != "/tmp/token" {
		t.Fatalf("unexpected token file: %q", cfg.TokenFile)
	}
	if cfg.ClientMode != "watch" {
		t.Fatalf("unexpected client mode: %q", cfg.ClientMode)
	}
	if cfg.ClientID != "gatectl" {
		t.Fatalf("unexpected client id default: %q", cfg.ClientID)
	}
}

func TestLoadWatchConfigAutoReconnectOverride(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
[gateway]
url = "ws://127.0.0.1:18789"
auto_reconnect = false
`)

	cfg, err := LoadWatchConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Gateway.AutoReconnect {
		t.Fatalf("expected auto reconnect disabled")
	}
}

func TestLoadWatchConfigRejectsBadScheme(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
[gateway]
url = "http://127.0.0.1:18789"
`)

	if _, err := LoadWatchConfig(path); err == nil {
		t.Fatalf("expected scheme validation error")
	}
}

func TestLoadWatchConfigMissingFile(t *testing.T) {
	testlog.Start(t)

	if _, err := LoadWatchConfig(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestGatewayFromEnv(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvGatewayURL, "ws://10.0.0.7:18789")

	cfg := GatewayFromEnv()
	if cfg.URL != "ws://10.0.0.7:18789" {
		t.Fatalf("unexpected url: %q", cfg.URL)
	}
	if !cfg.AutoReconnect {
		t.Fatalf("expected auto reconnect to default on")
	}
}

func TestGatewayFromEnvDefault(t *testing.T) {
	testlog.Start(t)
	t.Setenv(EnvGatewayURL, "")

	if cfg := GatewayFromEnv(); cfg.URL != DefaultGatewayURL {
		t.Fatalf("unexpected url: %q", cfg.URL)
	}
}

func TestClientConfigConversion(t *testing.T) {
	testlog.Start(t)
	t.Setenv(auth.EnvToken, "")
	t.Setenv(auth.EnvTokenFile, "")

	g := GatewayConfig{
		URL:                   "ws://127.0.0.1:18789",
		Token:                 "secret",
		ClientID:              "watcher",
		ClientMode:            "watch",
		AutoReconnect:         true,
		ReconnectDelaySeconds: 3,
	}

	cfg, err := g.ClientConfig()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cfg.Token != "secret" {
		t.Fatalf("unexpected token: %q", cfg.Token)
	}
	if cfg.Client.ID != "watcher" || cfg.Client.Mode != "watch" {
		t.Fatalf("unexpected client info: %+v", cfg.Client)
	}
	if cfg.Reconnect.InitialDelay != 3*time.Second || cfg.Reconnect.MaxDelay != 3*time.Second {
		t.Fatalf("unexpected reconnect policy: %+v", cfg.Reconnect)
	}
	if cfg.ConnectTimeout != 10*time.Second {
		t.Fatalf("unexpected connect timeout: %v", cfg.ConnectTimeout)
	}
}

func TestClientConfigRequiresToken(t *testing.T) {
	testlog.Start(t)
	t.Setenv(auth.EnvToken, "")
	t.Setenv(auth.EnvTokenFile, "")

	g := GatewayConfig{URL: "ws://127.0.0.1:18789"}
	if _, err := g.ClientConfig(); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "watch.toml")
	if err := WriteTemplate(path, "watch", false); err != nil {
		t.Fatalf("write template: %v", err)
	}

	cfg, err := LoadWatchConfig(path)
	if err != nil {
		t.Fatalf("template should load: %v", err)
	}
	if cfg.Gateway.URL != DefaultGatewayURL {
		t.Fatalf("unexpected url: %q", cfg.Gateway.URL)
	}
	if !cfg.Gateway.AutoReconnect {
		t.Fatalf("expected auto reconnect enabled in template")
	}

	if err := WriteTemplate(path, "watch", false); err == nil {
		t.Fatalf("expected overwrite refusal")
	}
	if err := WriteTemplate(path, "watch", true); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	gwPath := filepath.Join(dir, "gateway.toml")
	if err := WriteTemplate(gwPath, "gateway", false); err != nil {
		t.Fatalf("write gateway template: %v", err)
	}
	if _, err := LoadGatewayConfig(gwPath); err != nil {
		t.Fatalf("gateway template should load: %v", err)
	}
}

func TestTemplateUnknownKind(t *testing.T) {
	testlog.Start(t)

	if _, err := Template("bogus"); err == nil {
		t.Fatalf("expected unknown kind error")
	}
}
