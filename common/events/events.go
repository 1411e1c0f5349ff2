// Package events defines the NATS subjects and payloads exchanged between the
// calculator and the API.
package events

import "time"

const (
	// RecomputeSubject triggers a statistics run on one calculator instance.
	RecomputeSubject = "stats.recompute"
	// RunCompletedSubject announces the outcome of a finished run.
	RunCompletedSubject = "stats.run.completed"

	RecomputeQueue = "days-to-hire-calculator"

	// MaxChangedKeys bounds the cache keys carried by one RunCompleted event.
	MaxChangedKeys = 500
)

type RecomputeRequest struct {
	// MinPostingsThreshold overrides the configured threshold for one run.
	MinPostingsThreshold *int   `json:"min_postings_threshold,omitempty"`
	RequestedBy          string `json:"requested_by,omitempty"`
}

type RunCompleted struct {
	RunID      string    `json:"run_id"`
	Version    uint64    `json:"version"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Threshold  int       `json:"threshold"`

	Groups    int `json:"groups"`
	Written   int `json:"written"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Discarded int `json:"discarded"`
	Failed    int `json:"failed"`

	// ChangedKeys are cache keys of rows written or deleted by the run. When
	// Truncated is set the list is incomplete and readers should drop every
	// cached row.
	ChangedKeys []string `json:"changed_keys,omitempty"`
	Truncated   bool     `json:"truncated,omitempty"`
}
