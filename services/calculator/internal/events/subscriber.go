package events

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"

	"daystohire/common/errors"
	"daystohire/common/events"
	"daystohire/services/calculator/internal/scheduler"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Runner executes one statistics run.
type Runner interface {
	RunOnce(ctx context.Context, threshold int) (*scheduler.Summary, error)
}

type recomputeReply struct {
	Accepted bool   `json:"accepted"`
	RunID    string `json:"run_id,omitempty"`
	Written  int    `json:"written"`
	Deleted  int    `json:"deleted"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

type Handler struct {
	logger *zap.Logger
	nc     *nats.Conn
	tracer trace.Tracer
	runner Runner
	sub    *nats.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, tracer trace.Tracer, runner Runner) *Handler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		logger: logger,
		nc:     nc,
		tracer: tracer,
		runner: runner,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.QueueSubscribe(events.RecomputeSubject, events.RecomputeQueue, h.handleRecompute)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", events.RecomputeSubject, err)
	}

	h.sub = sub
	h.logger.Info("Registered NATS subscriptions", zap.String("subject", events.RecomputeSubject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := h.sub.Unsubscribe()
			h.Shutdown()
			return err
		},
	})

	return nil
}

// Shutdown cancels in-flight runs started from messages and waits for them.
func (h *Handler) Shutdown() {
	h.cancel()
	h.wg.Wait()
}

func parseRecompute(data []byte) (events.RecomputeRequest, error) {
	var req events.RecomputeRequest
	if len(data) == 0 {
		return req, nil
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, errors.InvalidInput("malformed recompute request", err)
	}
	if req.MinPostingsThreshold != nil && *req.MinPostingsThreshold < 1 {
		return req, errors.InvalidInput(fmt.Sprintf("min_postings_threshold must be at least 1, got %d", *req.MinPostingsThreshold), nil)
	}
	return req, nil
}

// handleRecompute starts the run in the background so the subscription keeps
// draining; the reply, when requested, is sent once the run finishes.
func (h *Handler) handleRecompute(msg *nats.Msg) {
	req, err := parseRecompute(msg.Data)
	if err != nil {
		h.logger.Warn("Rejected recompute request", zap.String("subject", msg.Subject), zap.Error(err))
		h.reply(msg, recomputeReply{Error: err.Error()})
		return
	}

	threshold := 0
	if req.MinPostingsThreshold != nil {
		threshold = *req.MinPostingsThreshold
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.recompute(msg, req, threshold)
	}()
}

func (h *Handler) recompute(msg *nats.Msg, req events.RecomputeRequest, threshold int) {
	ctx, span := h.tracer.Start(h.ctx, "handleRecompute")
	defer span.End()

	h.logger.Info("Recompute requested",
		zap.String("requested_by", req.RequestedBy),
		zap.Int("threshold_override", threshold))

	summary, err := h.runner.RunOnce(ctx, threshold)
	if err != nil {
		span.RecordError(err)
		if stderrors.Is(err, scheduler.ErrRunInProgress) {
			h.logger.Info("Recompute skipped, run already in progress")
		} else {
			h.logger.Error("Recompute failed", zap.Error(err))
		}
		h.reply(msg, recomputeReply{Error: err.Error()})
		return
	}

	h.reply(msg, recomputeReply{
		Accepted: true,
		RunID:    summary.RunID,
		Written:  summary.Written,
		Deleted:  summary.Deleted,
		Failed:   summary.Failed,
	})
}

func (h *Handler) reply(msg *nats.Msg, body recomputeReply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("Failed to encode recompute reply", zap.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		h.logger.Warn("Failed to reply to recompute request", zap.Error(err))
	}
}
