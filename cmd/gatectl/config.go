package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/gatectl/internal/config"
	"github.com/danmuck/gatectl/internal/gateway"
)

// runConfig collects everything one gatectl invocation needs.
type runConfig struct {
	Gateway        config.GatewayConfig
	ConnectTimeout time.Duration
	CallTimeout    time.Duration
	WriteTimeout   time.Duration
}

// gatectl config.toml key mapping to run settings.
type fileConfig struct {
	URL            string `toml:"url"`
	Token          string `toml:"token"`
	TokenFile      string `toml:"token_file"`
	ClientID       string `toml:"client_id"`
	ClientMode     string `toml:"client_mode"`
	AutoReconnect  bool   `toml:"auto_reconnect"`
	ReconnectDelay int    `toml:"reconnect_delay_seconds"`
	ConnectTimeout string `toml:"connect_timeout"`
	CallTimeout    string `toml:"call_timeout"`
	WriteTimeout   string `toml:"write_timeout"`
}

func defaultRunConfig() runConfig {
	defaults := gateway.DefaultConfig()
	return runConfig{
		Gateway:        config.DefaultWatchConfig().Gateway,
		ConnectTimeout: defaults.ConnectTimeout,
		CallTimeout:    defaults.CallTimeout,
		WriteTimeout:   defaults.WriteTimeout,
	}
}

// gatectl loader for TOML config with default overlay. Only keys present in
// the file override compiled defaults.
func loadRunConfig(path string) (runConfig, error) {
	cfg := defaultRunConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return runConfig{}, fmt.Errorf("load gatectl config: %w", err)
	}

	if meta.IsDefined("url") {
		if v := strings.TrimSpace(raw.URL); v != "" {
			cfg.Gateway.URL = v
		}
	}
	if meta.IsDefined("token") {
		cfg.Gateway.Token = strings.TrimSpace(raw.Token)
	}
	if meta.IsDefined("token_file") {
		cfg.Gateway.TokenFile = strings.TrimSpace(raw.TokenFile)
	}
	if meta.IsDefined("client_id") {
		cfg.Gateway.ClientID = strings.TrimSpace(raw.ClientID)
	}
	if meta.IsDefined("client_mode") {
		cfg.Gateway.ClientMode = strings.TrimSpace(raw.ClientMode)
	}
	if meta.IsDefined("auto_reconnect") {
		cfg.Gateway.AutoReconnect = raw.AutoReconnect
	}
	if meta.IsDefined("reconnect_delay_seconds") {
		cfg.Gateway.ReconnectDelaySeconds = raw.ReconnectDelay
	}

	if meta.IsDefined("connect_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.ConnectTimeout))
		if err != nil {
			return runConfig{}, fmt.Errorf("parse connect_timeout: %w", err)
		}
		cfg.ConnectTimeout = d
	}
	if meta.IsDefined("call_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.CallTimeout))
		if err != nil {
			return runConfig{}, fmt.Errorf("parse call_timeout: %w", err)
		}
		cfg.CallTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return runConfig{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}
	return cfg, nil
}

// clientConfig converts one run configuration into a session config.
func (rc runConfig) clientConfig() (gateway.Config, error) {
	cfg, err := rc.Gateway.ClientConfig()
	if err != nil {
		return gateway.Config{}, err
	}
	cfg.ConnectTimeout = rc.ConnectTimeout
	cfg.CallTimeout = rc.CallTimeout
	cfg.WriteTimeout = rc.WriteTimeout
	return cfg, nil
}
