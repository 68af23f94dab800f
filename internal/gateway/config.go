package gateway

import (
	"fmt"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/gatectl/internal/protocol"
)

// DefaultGatewayURL is the loopback endpoint a freshly installed Gateway
// listens on.
const DefaultGatewayURL = "ws://127.0.0.1:18789"

// RetryPolicy shapes reconnect delay growth. The defaults give a fixed 10s
// delay; Multiplier and Jitter allow exponential backoff where operators
// want it.
type RetryPolicy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config carries endpoint, credential, and session tuning for one Client.
type Config struct {
	URL    string
	Token  string
	Client protocol.ClientInfo

	// ConnectTimeout bounds one whole attempt, dial through handshake.
	ConnectTimeout time.Duration
	// CallTimeout bounds each correlated request.
	CallTimeout  time.Duration
	WriteTimeout time.Duration

	AutoReconnect bool
	Reconnect     RetryPolicy

	// Logger overrides the process-global logger when set.
	Logger *zerolog.Logger
}

// DefaultConfig returns the documented client defaults: loopback Gateway,
// 10s connect window, 30s per-call window, reconnect enabled on a fixed 10s
// delay.
func DefaultConfig() Config {
	return Config{
		URL:            DefaultGatewayURL,
		Client:         DefaultClientInfo(),
		ConnectTimeout: 10 * time.Second,
		CallTimeout:    30 * time.Second,
		WriteTimeout:   15 * time.Second,
		AutoReconnect:  true,
		Reconnect: RetryPolicy{
			InitialDelay: 10 * time.Second,
			Multiplier:   1.0,
			MaxDelay:     10 * time.Second,
		},
	}
}

// DefaultClientInfo identifies this client in the connect handshake.
func DefaultClientInfo() protocol.ClientInfo {
	return protocol.ClientInfo{
		ID:       "gatectl",
		Version:  "0.0.1",
		Platform: runtime.GOOS,
		Mode:     "cli",
	}
}

// WithDefaults fills zero fields from DefaultConfig. Booleans keep their
// value; start from DefaultConfig to get reconnect enabled.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.URL) == "" {
		c.URL = def.URL
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.Reconnect.InitialDelay <= 0 {
		c.Reconnect.InitialDelay = def.Reconnect.InitialDelay
	}
	if c.Reconnect.Multiplier < 1.0 {
		c.Reconnect.Multiplier = def.Reconnect.Multiplier
	}
	if c.Reconnect.MaxDelay <= 0 {
		c.Reconnect.MaxDelay = def.Reconnect.MaxDelay
	}
	if strings.TrimSpace(c.Client.ID) == "" {
		c.Client.ID = def.Client.ID
	}
	if strings.TrimSpace(c.Client.Version) == "" {
		c.Client.Version = def.Client.Version
	}
	if strings.TrimSpace(c.Client.Platform) == "" {
		c.Client.Platform = def.Client.Platform
	}
	if strings.TrimSpace(c.Client.Mode) == "" {
		c.Client.Mode = def.Client.Mode
	}
	return c
}

// Validate checks the fields a connection attempt requires.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return ErrURLRequired
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}
	if strings.TrimSpace(c.Token) == "" {
		return ErrTokenRequired
	}
	return nil
}
