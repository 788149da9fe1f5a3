// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Robert-T119/Paper-Finder/internal/observability"
	"github.com/Robert-T119/Paper-Finder/internal/progress"
)

// RunContext carries the state of one run. It is created when the run
// starts and dropped when it ends; nothing in it outlives the run.
type RunContext struct {
	ID      string
	Started time.Time
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Publisher is set once the total estimate is known.
	Publisher *progress.Publisher
}

// NewRunContext starts a run with a fresh ID and metrics registry.
func NewRunContext(logger zerolog.Logger) *RunContext {
	id := uuid.NewString()
	return &RunContext{
		ID:      id,
		Started: time.Now(),
		Logger:  observability.WithRun(logger, id),
		Metrics: observability.NewMetrics(),
	}
}

// StartProgress fixes the progress denominator and opens the event stream.
func (rc *RunContext) StartProgress(total int64, buffer int) *progress.Publisher {
	rc.Publisher = progress.NewPublisher(progress.NewTracker(total), buffer)
	return rc.Publisher
}

// Snapshot returns the current progress, or a zero snapshot before
// StartProgress.
func (rc *RunContext) Snapshot() progress.Snapshot {
	if rc.Publisher == nil {
		return progress.Snapshot{}
	}
	return rc.Publisher.Tracker().Snapshot()
}
