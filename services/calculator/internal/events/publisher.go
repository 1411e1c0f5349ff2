package events

import (
	"context"
	"encoding/json"

	"daystohire/common/errors"
	"daystohire/common/events"
	"daystohire/common/telemetry"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("daystohire/calculator/events")

type Publisher struct {
	publish func(subject string, data []byte) error
	logger  *zap.Logger
}

func NewPublisher(nc *nats.Conn, logger *zap.Logger) *Publisher {
	return &Publisher{publish: nc.Publish, logger: logger}
}

func (p *Publisher) PublishRunCompleted(ctx context.Context, event events.RunCompleted) error {
	_, span := tracer.Start(ctx, "PublishRunCompleted")
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling run completed event", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", events.RunCompletedSubject),
		telemetry.Int("message.size", len(data)),
	)

	if err := p.publish(events.RunCompletedSubject, data); err != nil {
		span.RecordError(err)
		return errors.Unavailable("publishing run completed event", err)
	}

	p.logger.Debug("published run completed event",
		zap.String("run_id", event.RunID),
		zap.Int("changed_keys", len(event.ChangedKeys)),
		zap.Bool("truncated", event.Truncated))
	return nil
}
