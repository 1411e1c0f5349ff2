package persister

import (
	"context"
	"fmt"
	"time"

	"daystohire/common/cache"
	"daystohire/common/database"
	"daystohire/common/models"
	"daystohire/common/statsstore"
	"daystohire/common/telemetry"
	"daystohire/services/calculator/internal/stats"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("daystohire/calculator/persister")

// Store is the subset of statsstore.Store the persister writes through.
type Store interface {
	Upsert(ctx context.Context, row models.StatsRow, version uint64) error
	Delete(ctx context.Context, key models.Key, version uint64) error
	List(ctx context.Context) ([]models.StatsRow, error)
}

type Action int

const (
	// ActionSkipped: the group had no values, nothing was touched.
	ActionSkipped Action = iota
	// ActionWritten: the row was inserted or replaced.
	ActionWritten
	// ActionUnchanged: the stored row already matches.
	ActionUnchanged
	// ActionDeleted: the group fell below the threshold and its old row was removed.
	ActionDeleted
	// ActionDiscarded: the group is below the threshold and had no row.
	ActionDiscarded
)

func (a Action) String() string {
	switch a {
	case ActionSkipped:
		return "skipped"
	case ActionWritten:
		return "written"
	case ActionUnchanged:
		return "unchanged"
	case ActionDeleted:
		return "deleted"
	case ActionDiscarded:
		return "discarded"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Changed reports whether the action altered what readers see.
func (a Action) Changed() bool {
	return a == ActionWritten || a == ActionDeleted
}

type Options struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxRetries:      3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

type Persister struct {
	store  Store
	cache  cache.Cache
	logger *zap.Logger
	opts   Options
}

// New returns a persister writing to store. c may be nil when no read cache is
// deployed.
func New(store Store, c cache.Cache, logger *zap.Logger, opts Options) *Persister {
	return &Persister{store: store, cache: c, logger: logger, opts: opts}
}

// Batch applies the results of one run against the rows that were live when
// the run began. Its methods are safe for concurrent use since the snapshot
// is never written after Begin.
type Batch struct {
	p        *Persister
	snapshot map[models.Key]models.StatsRow
}

// Begin loads the currently stored rows so that Apply can skip rewrites of
// identical statistics and knows which keys have a row to delete.
func (p *Persister) Begin(ctx context.Context) (*Batch, error) {
	ctx, span := tracer.Start(ctx, "Persister.Begin")
	defer span.End()

	var rows []models.StatsRow
	err := p.retry(ctx, func() error {
		var err error
		rows, err = p.store.List(ctx)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load stored statistics: %w", err)
	}

	snapshot := make(map[models.Key]models.StatsRow, len(rows))
	for _, row := range rows {
		snapshot[row.Key] = row
	}
	span.SetAttributes(telemetry.Int("rows.live", len(snapshot)))

	return &Batch{p: p, snapshot: snapshot}, nil
}

// Live returns the number of rows in the snapshot.
func (b *Batch) Live() int {
	return len(b.snapshot)
}

// Apply persists the outcome of one group.
func (b *Batch) Apply(ctx context.Context, key models.Key, res stats.Result, outcome stats.Outcome, version uint64) (Action, error) {
	existing, hasRow := b.snapshot[key]

	switch outcome {
	case stats.OutcomeAccepted:
		row := models.StatsRow{
			Key:              key,
			MinDays:          res.MinDays,
			AvgDays:          res.AvgDays,
			MaxDays:          res.MaxDays,
			JobPostingsCount: res.Count,
		}
		if hasRow && existing.SameStats(row) {
			return ActionUnchanged, nil
		}
		if err := b.p.write(ctx, key, func() error { return b.p.store.Upsert(ctx, row, version) }); err != nil {
			return ActionSkipped, err
		}
		return ActionWritten, nil

	case stats.OutcomeBelowThreshold:
		b.p.logger.Info("discarding statistics below threshold",
			zap.String("standard_job_id", key.StandardJobID),
			zap.String("scope", key.Scope.String()),
			zap.Int("kept", res.Count),
			zap.Int("total", res.TotalCount),
			zap.Bool("had_row", hasRow))
		if !hasRow {
			return ActionDiscarded, nil
		}
		if err := b.p.write(ctx, key, func() error { return b.p.store.Delete(ctx, key, version) }); err != nil {
			return ActionSkipped, err
		}
		return ActionDeleted, nil

	default:
		return ActionSkipped, nil
	}
}

func (p *Persister) write(ctx context.Context, key models.Key, op func() error) error {
	if err := p.retry(ctx, op); err != nil {
		return err
	}

	if p.cache != nil {
		if err := p.cache.Delete(ctx, statsstore.CacheKey(key)); err != nil {
			p.logger.Warn("failed to invalidate cached statistics",
				zap.String("key", key.String()),
				zap.Error(err))
		}
	}
	return nil
}

// retry runs op until it succeeds, returns a non-transient error, or the
// retry budget is spent.
func (p *Persister) retry(ctx context.Context, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.opts.InitialInterval
	eb.MaxInterval = p.opts.MaxInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, p.opts.MaxRetries), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !database.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		p.logger.Warn("retrying statistics store operation",
			zap.Duration("wait", wait),
			zap.Error(err))
	})
}
