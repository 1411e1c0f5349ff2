package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// HealthHandler reports unhealthy when the database does not answer. The
// cache is reported but never fails the check since lookups fall back to the
// database.
type HealthHandler struct {
	database Pinger
	cache    Pinger
	timeout  time.Duration
	logger   *zap.Logger
}

// NewHealthHandler returns a health handler. cache may be nil.
func NewHealthHandler(database, cache Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{database: database, cache: cache, timeout: 2 * time.Second, logger: logger}
}

func (h *HealthHandler) Get(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	services := map[string]string{"database": "ok"}
	if err := h.database.Ping(ctx); err != nil {
		h.logger.Error("health check failed", zap.String("service", "database"), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Detail: "One or more services are unavailable"})
		return
	}

	if h.cache != nil {
		services["cache"] = "ok"
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("cache unavailable", zap.Error(err))
			services["cache"] = "unavailable"
		}
	}

	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Services: services})
}
