// Package watch runs a persistent Gateway session as a foreground service.
//
// The service owns one gateway.Client, writes every server event to stdout
// as a JSON line, logs a periodic session heartbeat, and optionally exposes
// the local admin surface from internal/admin.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatectl/internal/admin"
	"github.com/danmuck/gatectl/internal/config"
	"github.com/danmuck/gatectl/internal/gateway"
)

// Service supervises one Gateway session plus its local admin surface.
type Service struct {
	cfg    config.WatchConfig
	client *gateway.Client
	admin  *admin.Server
	out    io.Writer
	log    zerolog.Logger
}

func NewService(cfg config.WatchConfig) (*Service, error) {
	if err := config.ValidateWatchConfig(cfg); err != nil {
		return nil, err
	}
	clientCfg, err := cfg.Gateway.ClientConfig()
	if err != nil {
		return nil, err
	}
	client, err := gateway.New(clientCfg)
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:    cfg,
		client: client,
		out:    os.Stdout,
		log:    log.With().Str("component", "watch").Str("name", cfg.Name).Logger(),
	}
	if strings.TrimSpace(cfg.Admin.Addr) != "" {
		svc.admin = admin.New(admin.Config{
			Name:        cfg.Name,
			Addr:        cfg.Admin.Addr,
			CorsOrigins: cfg.Admin.CorsOrigins,
		}, client)
	}
	return svc, nil
}

// Client exposes the underlying session client.
func (s *Service) Client() *gateway.Client {
	return s.client
}

// Run connects and serves until SIGINT or SIGTERM.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.serve(ctx)
}

func (s *Service) serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	unsubscribe := s.client.OnAny(s.writeEvent)
	defer unsubscribe()
	defer s.client.Disconnect()

	adminErr := make(chan error, 1)
	if s.admin != nil {
		go func() {
			adminErr <- s.admin.Run(ctx)
		}()
	}

	// Drops after this point are the reconnect policy's problem; a failed
	// first connect is fatal so the operator sees it immediately.
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("watch connect: %w", err)
	}
	s.log.Info().Str("endpoint", s.client.Endpoint()).Msg("watch session established")

	ticker := time.NewTicker(s.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("watch shutdown")
			return nil
		case err := <-adminErr:
			if err != nil {
				return fmt.Errorf("admin server: %w", err)
			}
		case <-ticker.C:
			s.log.Info().
				Str("state", s.client.State().String()).
				Int("pending", s.client.PendingCalls()).
				Msg("session heartbeat")
		}
	}
}

func (s *Service) heartbeatInterval() time.Duration {
	if s.cfg.HeartbeatSeconds > 0 {
		return time.Duration(s.cfg.HeartbeatSeconds) * time.Second
	}
	return 30 * time.Second
}

// writeEvent renders one event as a single JSON line. It runs on the frame
// loop, so it stays write-only and quick.
func (s *Service) writeEvent(n gateway.Notification) {
	line := struct {
		Time    string          `json:"time"`
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{
		Time:    time.Now().UTC().Format(time.RFC3339),
		Event:   n.Name,
		Payload: n.Payload,
	}
	data, err := json.Marshal(line)
	if err != nil {
		s.log.Warn().Err(err).Str("event", n.Name).Msg("event encode failed")
		return
	}
	fmt.Fprintln(s.out, string(data))
}
