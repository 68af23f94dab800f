package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/danmuck/gatectl/internal/config"
	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/logging"
	"github.com/danmuck/gatectl/internal/watch"
)

type options struct {
	mode       string
	configPath string
	url        string
	token      string
	tokenFile  string
	method     string
	params     string
	timeout    time.Duration
}

func main() {
	opts := parseFlags()
	logging.ConfigureRuntime("gatectl")
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "gatectl: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.mode, "mode", "status", "mode: status | call | sessions | describe | watch")
	flag.StringVar(&opts.configPath, "config", "", "config file path (watch mode expects the watch layout)")
	flag.StringVar(&opts.url, "url", "", "gateway websocket url override")
	flag.StringVar(&opts.token, "token", "", "gateway token override")
	flag.StringVar(&opts.tokenFile, "token-file", "", "gateway token file override")
	flag.StringVar(&opts.method, "method", "", "rpc method (call mode)")
	flag.StringVar(&opts.params, "params", "", "json params (call mode)")
	flag.DurationVar(&opts.timeout, "timeout", 0, "per-call timeout override")
	flag.Parse()
	return opts
}

func run(opts options) error {
	if opts.mode == "watch" {
		return runWatch(opts)
	}

	rc, err := resolveRunConfig(opts)
	if err != nil {
		return err
	}

	switch opts.mode {
	case "status":
		return runStatus(rc)
	case "call":
		return runCall(rc, opts.method, opts.params)
	case "sessions":
		return runSessions(rc)
	case "describe":
		return runDescribe(rc)
	default:
		return fmt.Errorf("unknown mode %q (supported: status, call, sessions, describe, watch)", opts.mode)
	}
}

// resolveRunConfig layers compiled defaults, the optional config file, the
// environment, and finally flags.
func resolveRunConfig(opts options) (runConfig, error) {
	rc := defaultRunConfig()
	if path := strings.TrimSpace(opts.configPath); path != "" {
		loaded, err := loadRunConfig(path)
		if err != nil {
			return runConfig{}, err
		}
		rc = loaded
	}
	if v := strings.TrimSpace(os.Getenv(config.EnvGatewayURL)); v != "" {
		rc.Gateway.URL = v
	}
	if v := strings.TrimSpace(opts.url); v != "" {
		rc.Gateway.URL = v
	}
	if v := strings.TrimSpace(opts.token); v != "" {
		rc.Gateway.Token = v
	}
	if v := strings.TrimSpace(opts.tokenFile); v != "" {
		rc.Gateway.TokenFile = v
	}
	if opts.timeout > 0 {
		rc.CallTimeout = opts.timeout
	}
	return rc, nil
}

func runWatch(opts options) error {
	cfg := config.DefaultWatchConfig()
	if path := strings.TrimSpace(opts.configPath); path != "" {
		loaded, err := config.LoadWatchConfig(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if v := strings.TrimSpace(os.Getenv(config.EnvGatewayURL)); v != "" {
		cfg.Gateway.URL = v
	}
	if v := strings.TrimSpace(opts.url); v != "" {
		cfg.Gateway.URL = v
	}
	if v := strings.TrimSpace(opts.token); v != "" {
		cfg.Gateway.Token = v
	}
	if v := strings.TrimSpace(opts.tokenFile); v != "" {
		cfg.Gateway.TokenFile = v
	}

	svc, err := watch.NewService(cfg)
	if err != nil {
		return err
	}
	return svc.Run()
}

// oneShotClient builds a session client with the reconnect policy off.
func oneShotClient(rc runConfig) (*gateway.Client, error) {
	cfg, err := rc.clientConfig()
	if err != nil {
		return nil, err
	}
	cfg.AutoReconnect = false
	return gateway.New(cfg)
}

func runStatus(rc runConfig) error {
	client, err := oneShotClient(rc)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	start := time.Now()
	if err := client.Connect(context.Background()); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Gateway Status")
	fmt.Printf("  endpoint:  %s\n", client.Endpoint())
	fmt.Printf("  state:     %s\n", client.State())
	fmt.Printf("  connect:   %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runCall(rc runConfig, method string, params string) error {
	method = strings.TrimSpace(method)
	if method == "" {
		return errors.New("call mode requires -method")
	}
	var body json.RawMessage
	if strings.TrimSpace(params) != "" {
		if !json.Valid([]byte(params)) {
			return errors.New("params must be valid JSON")
		}
		body = json.RawMessage(params)
	}

	client, err := oneShotClient(rc)
	if err != nil {
		return err
	}
	defer client.Disconnect()
	if err := client.Connect(context.Background()); err != nil {
		return err
	}

	payload, err := client.Call(context.Background(), method, body)
	if err != nil {
		return err
	}
	return printJSON(payload)
}

func runSessions(rc runConfig) error {
	client, err := oneShotClient(rc)
	if err != nil {
		return err
	}
	defer client.Disconnect()
	if err := client.Connect(context.Background()); err != nil {
		return err
	}

	payload, err := client.ListSessions(context.Background())
	if err != nil {
		return err
	}
	return printJSON(payload)
}

func runDescribe(rc runConfig) error {
	client, err := oneShotClient(rc)
	if err != nil {
		return err
	}
	defer client.Disconnect()
	if err := client.Connect(context.Background()); err != nil {
		return err
	}

	payload, err := client.DescribeNode(context.Background())
	if err != nil {
		return err
	}
	return printJSON(payload)
}

func printJSON(payload json.RawMessage) error {
	if len(payload) == 0 {
		fmt.Println("null")
		return nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		fmt.Println(string(payload))
		return nil
	}
	fmt.Println(buf.String())
	return nil
}
