package scheduler

import (
	"context"
	"sync"

	"daystohire/common/models"
	"daystohire/services/calculator/internal/aggregator"
	"daystohire/services/calculator/internal/persister"
	"daystohire/services/calculator/internal/stats"

	"go.uber.org/zap"
)

type groupResult struct {
	key     models.Key
	outcome stats.Outcome
	action  persister.Action
	err     error
}

type workerPool struct {
	size      int
	batch     *persister.Batch
	threshold int
	version   uint64
	logger    *zap.Logger
}

// run fans groups out to the pool and returns a channel that yields one
// result per group and is closed after the last one.
func (w *workerPool) run(ctx context.Context, groups []aggregator.Group) <-chan groupResult {
	groupChan := make(chan aggregator.Group)
	results := make(chan groupResult, w.size)

	var wg sync.WaitGroup
	for i := 0; i < w.size; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for group := range groupChan {
				results <- w.process(ctx, group)
			}
		}()
	}

	go func() {
		defer close(groupChan)
		for _, group := range groups {
			groupChan <- group
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (w *workerPool) process(ctx context.Context, group aggregator.Group) groupResult {
	if err := ctx.Err(); err != nil {
		return groupResult{key: group.Key, err: err}
	}

	res, outcome := stats.Compute(group.Values, w.threshold)
	action, err := w.batch.Apply(ctx, group.Key, res, outcome, w.version)
	if err != nil {
		w.logger.Error("failed to persist statistics",
			zap.String("standard_job_id", group.Key.StandardJobID),
			zap.String("scope", group.Key.Scope.String()),
			zap.Error(err))
		return groupResult{key: group.Key, outcome: outcome, err: err}
	}

	w.logger.Debug("processed group",
		zap.String("standard_job_id", group.Key.StandardJobID),
		zap.String("scope", group.Key.Scope.String()),
		zap.Stringer("outcome", outcome),
		zap.Stringer("action", action),
		zap.Int("total", res.TotalCount),
		zap.Int("kept", res.Count),
		zap.Float64("p10", res.P10),
		zap.Float64("p90", res.P90))

	return groupResult{key: group.Key, outcome: outcome, action: action}
}
