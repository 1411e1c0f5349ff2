package scheduler

import (
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"time"

	"daystohire/common/errors"
	"daystohire/common/events"
	"daystohire/common/models"
	"daystohire/common/statsstore"
	"daystohire/common/telemetry"
	"daystohire/services/calculator/internal/aggregator"
	"daystohire/services/calculator/internal/config"
	"daystohire/services/calculator/internal/metrics"
	"daystohire/services/calculator/internal/persister"
	"daystohire/services/calculator/internal/source"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("daystohire/calculator/scheduler")

// ErrRunInProgress is returned when a run is requested while another one is
// still executing in this process.
var ErrRunInProgress = stderrors.New("statistics run already in progress")

// RunPublisher announces finished runs.
type RunPublisher interface {
	PublishRunCompleted(ctx context.Context, event events.RunCompleted) error
}

type Summary struct {
	RunID      string
	Version    uint64
	Threshold  int
	StartedAt  time.Time
	FinishedAt time.Time

	Postings int
	Rejected int

	Groups    int
	Written   int
	Unchanged int
	Deleted   int
	Discarded int
	Skipped   int
	Failed    int

	// FailedKeys and ChangedKeys are sorted by key.
	FailedKeys  []models.Key
	ChangedKeys []models.Key
}

// Result classifies the run for metrics: "ok" when every group was handled,
// "partial" otherwise.
func (s *Summary) Result() string {
	if s.Failed > 0 {
		return "partial"
	}
	return "ok"
}

func (s *Summary) event() events.RunCompleted {
	ev := events.RunCompleted{
		RunID:      s.RunID,
		Version:    s.Version,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Threshold:  s.Threshold,
		Groups:     s.Groups,
		Written:    s.Written,
		Unchanged:  s.Unchanged,
		Deleted:    s.Deleted,
		Discarded:  s.Discarded,
		Failed:     s.Failed,
	}

	keys := s.ChangedKeys
	if len(keys) > events.MaxChangedKeys {
		keys = keys[:events.MaxChangedKeys]
		ev.Truncated = true
	}
	for _, key := range keys {
		ev.ChangedKeys = append(ev.ChangedKeys, statsstore.CacheKey(key))
	}
	return ev
}

type JobScheduler struct {
	source    source.PostingSource
	persister *persister.Persister
	publisher RunPublisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	config    *config.Config

	runMu    sync.Mutex
	mutex    sync.Mutex
	isActive bool
	now      func() time.Time
}

// NewJobScheduler wires a scheduler. publisher may be nil.
func NewJobScheduler(src source.PostingSource, p *persister.Persister, publisher RunPublisher, m *metrics.Metrics, logger *zap.Logger, config *config.Config) *JobScheduler {
	return &JobScheduler{
		source:    src,
		persister: p,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// Start runs statistics on the configured interval until ctx is done. A zero
// interval disables periodic runs; RunOnStart still applies.
func (s *JobScheduler) Start(ctx context.Context) error {
	s.mutex.Lock()
	if s.isActive {
		s.mutex.Unlock()
		return nil
	}
	s.isActive = true
	s.mutex.Unlock()
	defer s.Stop()

	if s.config.RunOnStart {
		s.scheduledRun(ctx, "initial")
	}

	if s.config.RunInterval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(s.config.RunInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.scheduledRun(ctx, "periodic")
		}
	}
}

func (s *JobScheduler) Stop() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.isActive = false
}

func (s *JobScheduler) scheduledRun(ctx context.Context, kind string) {
	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	_, err := s.RunOnce(ctx, 0)
	switch {
	case stderrors.Is(err, ErrRunInProgress):
		s.logger.Info("skipping run, previous run still in progress", zap.String("trigger", kind))
	case err != nil:
		s.logger.Error("statistics run failed", zap.String("trigger", kind), zap.Error(err))
	}
}

// RunOnce recomputes every group and persists the results. threshold <= 0
// uses the configured minimum. A returned error means the run could not
// start or read its input; per-group failures are reported in the summary.
func (s *JobScheduler) RunOnce(ctx context.Context, threshold int) (*Summary, error) {
	if !s.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.runMu.Unlock()

	if threshold <= 0 {
		threshold = s.config.MinPostingsThreshold
	}

	started := s.now()
	summary := &Summary{
		RunID:     uuid.New().String(),
		Version:   uint64(started.UnixNano()),
		Threshold: threshold,
		StartedAt: started,
	}

	ctx, span := tracer.Start(ctx, "JobScheduler.RunOnce")
	defer span.End()
	span.SetAttributes(
		telemetry.String("run.id", summary.RunID),
		telemetry.Int("run.threshold", threshold),
	)

	logger := s.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("starting statistics run", zap.Int("threshold", threshold), zap.Uint64("version", summary.Version))

	batch, err := s.persister.Begin(ctx)
	if err != nil {
		return nil, s.abort(span, summary, errors.Unavailable("loading stored statistics", err))
	}

	grouper := aggregator.NewGrouper()
	err = s.source.Each(ctx, func(p models.Posting) error {
		summary.Postings++
		grouper.Add(p)
		return nil
	})
	if err != nil {
		return nil, s.abort(span, summary, errors.Unavailable("reading job postings", err))
	}
	summary.Rejected = grouper.Rejected()
	s.metrics.PostingsRejected.Add(float64(summary.Rejected))

	groups := grouper.Groups()
	summary.Groups = len(groups)
	span.SetAttributes(telemetry.Int("run.groups", len(groups)))

	pool := &workerPool{
		size:      s.config.AggregatorWorkers,
		batch:     batch,
		threshold: threshold,
		version:   summary.Version,
		logger:    logger,
	}
	for res := range pool.run(ctx, groups) {
		summary.record(res)
		if res.err != nil {
			s.metrics.GroupFailures.Inc()
		} else {
			s.metrics.ObserveGroup(res.action.String())
		}
	}

	slices.SortFunc(summary.FailedKeys, aggregator.CompareKeys)
	slices.SortFunc(summary.ChangedKeys, aggregator.CompareKeys)

	summary.FinishedAt = s.now()
	s.metrics.ObserveRun(summary.Result(), summary.FinishedAt.Sub(started), summary.FinishedAt)
	span.SetAttributes(
		telemetry.Int("run.written", summary.Written),
		telemetry.Int("run.deleted", summary.Deleted),
		telemetry.Int("run.failed", summary.Failed),
	)

	s.logSummary(logger, summary)
	s.publish(ctx, logger, summary)

	return summary, nil
}

func (s *JobScheduler) abort(span trace.Span, summary *Summary, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	summary.FinishedAt = s.now()
	s.metrics.ObserveRun("failed", summary.FinishedAt.Sub(summary.StartedAt), summary.FinishedAt)
	return err
}

func (s *Summary) record(res groupResult) {
	if res.err != nil {
		s.Failed++
		s.FailedKeys = append(s.FailedKeys, res.key)
		return
	}

	switch res.action {
	case persister.ActionWritten:
		s.Written++
	case persister.ActionUnchanged:
		s.Unchanged++
	case persister.ActionDeleted:
		s.Deleted++
	case persister.ActionDiscarded:
		s.Discarded++
	default:
		s.Skipped++
	}
	if res.action.Changed() {
		s.ChangedKeys = append(s.ChangedKeys, res.key)
	}
}

func (s *JobScheduler) logSummary(logger *zap.Logger, summary *Summary) {
	fields := []zap.Field{
		zap.Int("postings", summary.Postings),
		zap.Int("rejected", summary.Rejected),
		zap.Int("groups", summary.Groups),
		zap.Int("written", summary.Written),
		zap.Int("unchanged", summary.Unchanged),
		zap.Int("deleted", summary.Deleted),
		zap.Int("discarded", summary.Discarded),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)),
	}

	if summary.Failed == 0 {
		logger.Info("completed statistics run", fields...)
		return
	}

	failed := make([]string, len(summary.FailedKeys))
	for i, key := range summary.FailedKeys {
		failed[i] = key.String()
	}
	fields = append(fields, zap.String("failed_keys", strings.Join(failed, ",")))
	logger.Warn("completed statistics run with failures", fields...)
}

func (s *JobScheduler) publish(ctx context.Context, logger *zap.Logger, summary *Summary) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRunCompleted(ctx, summary.event()); err != nil {
		logger.Warn("failed to publish run completion", zap.Error(err))
	}
}
