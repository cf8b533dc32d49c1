package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port         int
	Path         string // metrics path
	CheckTimeout time.Duration
}

// Server serves metrics, health, and debug endpoints.
type Server struct {
	cfg    ServerConfig
	logger *slog.Logger
	engine *gin.Engine
	checks map[string]Check
	stats  func() any
}

// NewServer creates a Server. stats, when non-nil, backs /debug/stats.
func NewServer(cfg ServerConfig, reg *prometheus.Registry, checks map[string]Check, stats func() any, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "/metrics"
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		cfg:    cfg,
		logger: logger.With("component", "http"),
		engine: gin.New(),
		checks: checks,
		stats:  stats,
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET(cfg.Path, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	s.engine.GET("/health", s.health)
	s.engine.GET("/debug/stats", s.debugStats)
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr, "metrics_path", s.cfg.Path)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.CheckTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

func (s *Server) debugStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no stats source"})
		return
	}
	c.JSON(http.StatusOK, s.stats())
}
