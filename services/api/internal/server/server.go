package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"daystohire/services/api/internal/config"
	"daystohire/services/api/internal/handler"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	router *gin.Engine
	server *http.Server
	logger *zap.Logger
	config *config.Config
}

// NewRouter builds the engine with standard middleware and every route.
func NewRouter(cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry, dth *handler.DaysToHireHandler, health *handler.HealthHandler) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggerMiddleware(logger))
	router.Use(MetricsMiddleware(reg))

	v1 := router.Group("/api/v1")
	v1.GET("/days-to-hire", dth.Get)
	v1.GET("/health", health.Get)

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return router
}

func NewServer(cfg *config.Config, logger *zap.Logger, router *gin.Engine) *Server {
	return &Server{
		router: router,
		server: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		logger: logger,
		config: cfg,
	}
}

// Serve accepts connections on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Starting HTTP server",
		zap.String("address", ln.Addr().String()),
		zap.String("version", s.config.ServiceVersion))

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server", zap.Duration("timeout", s.config.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped gracefully")
	return nil
}

// RegisterLifecycle binds the listener on start so address errors fail the
// application start, then serves in the background.
func (s *Server) RegisterLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", s.server.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
			}
			go func() {
				if err := s.Serve(ln); err != nil {
					s.logger.Error("HTTP server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: s.Shutdown,
	})
}
