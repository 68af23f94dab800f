package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/danmuck/gatectl/internal/auth"
)

const (
	EnvGatewayURL = "GATECTL_GATEWAY_URL"

	DefaultGatewayURL = "ws://127.0.0.1:18789"
	DefaultAdminAddr  = "127.0.0.1:9200"
)

// GatewayConfig selects the Gateway endpoint and credential for a client.
type GatewayConfig struct {
	URL        string `toml:"url"`
	Token      string `toml:"token"`
	TokenFile  string `toml:"token_file"`
	ClientID   string `toml:"client_id"`
	ClientMode string `toml:"client_mode"`

	AutoReconnect         bool `toml:"auto_reconnect"`
	ReconnectDelaySeconds int  `toml:"reconnect_delay_seconds"`
}

// AdminConfig selects the local admin surface for watch mode.
type AdminConfig struct {
	Addr        string   `toml:"addr"`
	CorsOrigins []string `toml:"cors_origins"`
}

// WatchConfig is the full watch-service configuration.
type WatchConfig struct {
	Name             string        `toml:"name"`
	HeartbeatSeconds int           `toml:"heartbeat_seconds"`
	Gateway          GatewayConfig `toml:"gateway"`
	Admin            AdminConfig   `toml:"admin"`
}

// DefaultWatchConfig seeds the values a config file overrides. Fields absent
// from the file keep these, which is how auto_reconnect defaults to on.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Name:             "gatectl",
		HeartbeatSeconds: 30,
		Gateway: GatewayConfig{
			URL:           DefaultGatewayURL,
			ClientID:      "gatectl",
			ClientMode:    "cli",
			AutoReconnect: true,
		},
		Admin: AdminConfig{
			Addr: DefaultAdminAddr,
		},
	}
}

func LoadWatchConfig(path string) (WatchConfig, error) {
	cfg := DefaultWatchConfig()
	if err := loadToml(path, &cfg); err != nil {
		return WatchConfig{}, err
	}
	if err := ValidateWatchConfig(cfg); err != nil {
		return WatchConfig{}, err
	}
	return cfg, nil
}

// LoadGatewayConfig loads a flat gateway selection file, the layout written
// by the "gateway" template kind.
func LoadGatewayConfig(path string) (GatewayConfig, error) {
	cfg := GatewayFromEnv()
	if err := loadToml(path, &cfg); err != nil {
		return GatewayConfig{}, err
	}
	if err := ValidateGatewayConfig(cfg); err != nil {
		return GatewayConfig{}, err
	}
	return cfg, nil
}

// GatewayFromEnv builds a gateway selection purely from the environment,
// falling back to the loopback default endpoint.
func GatewayFromEnv() GatewayConfig {
	cfg := DefaultWatchConfig().Gateway
	if v := strings.TrimSpace(os.Getenv(EnvGatewayURL)); v != "" {
		cfg.URL = v
	}
	return cfg
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateWatchConfig(cfg WatchConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("watch config missing name")
	}
	if cfg.HeartbeatSeconds < 0 {
		return fmt.Errorf("heartbeat_seconds must not be negative")
	}
	if err := ValidateGatewayConfig(cfg.Gateway); err != nil {
		return fmt.Errorf("gateway invalid: %w", err)
	}
	return nil
}

func ValidateGatewayConfig(cfg GatewayConfig) error {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url invalid: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("url scheme must be ws or wss, got %q", u.Scheme)
	}
	if cfg.ReconnectDelaySeconds < 0 {
		return fmt.Errorf("reconnect_delay_seconds must not be negative")
	}
	return nil
}

// ResolveToken resolves the credential for cfg through the shared
// resolution order.
func (g GatewayConfig) ResolveToken() (string, error) {
	return auth.ResolveToken(g.Token, g.TokenFile)
}
