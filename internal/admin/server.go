// Package admin exposes a small loopback HTTP surface next to an echo
// engine: liveness, a JSON status snapshot, and prometheus metrics.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/frameecho/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrListenAddrRequired = errors.New("admin: listen address required")

const shutdownTimeout = 5 * time.Second

// StatusFunc returns the value rendered by GET /status.
type StatusFunc func() any

type Config struct {
	// Name labels request metrics and the health payload.
	Name       string
	ListenAddr string
	Status     StatusFunc
	Logger     *zerolog.Logger
}

type Server struct {
	cfg      Config
	log      zerolog.Logger
	router   *gin.Engine
	appeared time.Time
}

func New(cfg Config) *Server {
	observability.RegisterMetrics()
	logger := log.Logger
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", "admin").Str("owner", cfg.Name).Logger()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observeRequests(cfg.Name, logger))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		log:      logger,
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.appeared).String(),
			"component": s.cfg.Name,
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		if s.cfg.Status == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "status not available"})
			return
		}
		c.JSON(http.StatusOK, s.cfg.Status())
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.ListenAddr == "" {
		return ErrListenAddrRequired
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve owns ln and closes it on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("admin.Serve listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn().Err(err).Msg("admin.Serve shutdown did not complete cleanly")
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info().Msg("admin.Serve stopped")
	return nil
}
