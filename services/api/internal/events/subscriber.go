package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"daystohire/common/events"
	"daystohire/common/statsstore"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Invalidator drops cached statistics rows.
type Invalidator interface {
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type Handler struct {
	logger  *zap.Logger
	nc      *nats.Conn
	tracer  trace.Tracer
	cache   Invalidator
	timeout time.Duration
	sub     *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, cache Invalidator) *Handler {
	return &Handler{
		logger:  logger,
		nc:      nc,
		tracer:  tracer,
		cache:   cache,
		timeout: 5 * time.Second,
	}
}

// RegisterSubscriptions subscribes without a queue group, so every API
// instance sees each event.
func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.Subscribe(events.RunCompletedSubject, h.handleRunCompleted)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", events.RunCompletedSubject, err)
	}

	h.sub = sub
	h.logger.Info("Registered NATS subscriptions", zap.String("subject", events.RunCompletedSubject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.sub.Unsubscribe()
		},
	})
	return nil
}

func (h *Handler) handleRunCompleted(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	ctx, span := h.tracer.Start(ctx, "handleRunCompleted")
	defer span.End()

	var event events.RunCompleted
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		span.RecordError(err)
		h.logger.Error("Failed to decode run completed event", zap.String("subject", msg.Subject), zap.Error(err))
		return
	}

	if err := h.invalidate(ctx, event); err != nil {
		span.RecordError(err)
		h.logger.Warn("Failed to invalidate cached statistics",
			zap.String("run_id", event.RunID),
			zap.Error(err))
	}
}

func (h *Handler) invalidate(ctx context.Context, event events.RunCompleted) error {
	if event.Truncated {
		n, err := h.cache.DeletePrefix(ctx, statsstore.CacheKeyPrefix)
		if err != nil {
			return err
		}
		h.logger.Info("Dropped all cached statistics", zap.String("run_id", event.RunID), zap.Int("keys", n))
		return nil
	}

	if len(event.ChangedKeys) == 0 {
		return nil
	}
	if err := h.cache.Delete(ctx, event.ChangedKeys...); err != nil {
		return err
	}
	h.logger.Debug("Invalidated cached statistics",
		zap.String("run_id", event.RunID),
		zap.Int("keys", len(event.ChangedKeys)))
	return nil
}
