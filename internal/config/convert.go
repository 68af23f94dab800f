package config

import (
	"fmt"
	"time"

	"github.com/danmuck/gatectl/internal/gateway"
)

// ClientConfig turns a gateway selection into a runnable client config with
// the credential resolved. The credential must resolve to something.
func (g GatewayConfig) ClientConfig() (gateway.Config, error) {
	token, err := g.ResolveToken()
	if err != nil {
		return gateway.Config{}, err
	}
	if token == "" {
		return gateway.Config{}, fmt.Errorf("no gateway token configured")
	}

	cfg := gateway.DefaultConfig()
	cfg.URL = g.URL
	cfg.Token = token
	cfg.AutoReconnect = g.AutoReconnect
	if g.ClientID != "" {
		cfg.Client.ID = g.ClientID
	}
	if g.ClientMode != "" {
		cfg.Client.Mode = g.ClientMode
	}
	if g.ReconnectDelaySeconds > 0 {
		delay := time.Duration(g.ReconnectDelaySeconds) * time.Second
		cfg.Reconnect.InitialDelay = delay
		cfg.Reconnect.MaxDelay = delay
	}
	return cfg, nil
}
