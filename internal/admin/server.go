// Package admin serves the local observability surface for watch mode:
// health, readiness, Prometheus metrics, and a session status snapshot.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gatectl/internal/gateway"
	"github.com/danmuck/gatectl/internal/observability"
)

// Config selects the listen address and CORS scope of the admin surface.
type Config struct {
	Name        string
	Addr        string
	CorsOrigins []string
}

// Status is the snapshot served by /status.
type Status struct {
	Component string `json:"component"`
	Endpoint  string `json:"endpoint"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	Pending   int    `json:"pending"`
	Uptime    string `json:"uptime"`
	Version   string `json:"version"`
}

// Server exposes one gateway client's state over local HTTP.
type Server struct {
	cfg      Config
	client   *gateway.Client
	router   *gin.Engine
	appeared time.Time
}

func New(cfg Config, client *gateway.Client) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		client:   client,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.Name,
			"version": "0.0.1",
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.client.IsConnected()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.Name,
			"version": "0.0.1",
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.Snapshot())
	})
}

// Snapshot builds the current status document.
func (s *Server) Snapshot() Status {
	return Status{
		Component: s.cfg.Name,
		Endpoint:  s.client.Endpoint(),
		State:     s.client.State().String(),
		Connected: s.client.IsConnected(),
		Pending:   s.client.PendingCalls(),
		Uptime:    time.Since(s.appeared).String(),
		Version:   "0.0.1",
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", s.cfg.Addr).Msg("admin server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
