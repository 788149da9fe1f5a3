// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

const namespace = "paper_finder"

// Fetch unit outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeSkipped = "skipped"
	OutcomeRetried = "retried"
	OutcomeFailed  = "failed"
)

// Exclusion reasons.
const (
	ReasonIrrelevant = "irrelevant"
	ReasonStage1     = "stage1_negative"
	ReasonDegenerate = "degenerate_embedding"
	ReasonDuplicate  = "duplicate"
)

// Metrics holds the counters of one run. Every run gets its own registry.
// All methods are safe on a nil *Metrics.
type Metrics struct {
	Registry *prometheus.Registry

	// PapersFetched counts normalized records returned by fetch units.
	PapersFetched prometheus.Counter

	// FetchUnits counts finished fetch units by outcome.
	FetchUnits *prometheus.CounterVec

	// Classifications counts labels by stage and label.
	Classifications *prometheus.CounterVec

	// Excluded counts papers dropped from the result, by reason.
	Excluded *prometheus.CounterVec

	// StageDuration observes wall time per pipeline stage.
	StageDuration *prometheus.HistogramVec
}

// NewMetrics creates a fresh registry with every run metric registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		PapersFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Records returned by completed fetch units",
		}),
		FetchUnits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_units_total",
			Help:      "Fetch units finished, by outcome",
		}, []string{"outcome"}),
		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Labels produced by the classification cascade",
		}, []string{"stage", "label"}),
		Excluded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_excluded_total",
			Help:      "Papers dropped before the final result, by reason",
		}, []string{"reason"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"stage"}),
	}
}

// RecordFetched counts n fetched papers.
func (m *Metrics) RecordFetched(n int) {
	if m == nil {
		return
	}
	m.PapersFetched.Add(float64(n))
}

// RecordUnit counts one finished fetch unit.
func (m *Metrics) RecordUnit(outcome string) {
	if m == nil {
		return
	}
	m.FetchUnits.WithLabelValues(outcome).Inc()
}

// RecordLabels counts the labels a stage produced.
func (m *Metrics) RecordLabels(stage string, labels []types.Label) {
	if m == nil {
		return
	}
	for _, l := range labels {
		m.Classifications.WithLabelValues(stage, string(l)).Inc()
	}
}

// RecordExcluded counts n papers dropped for reason.
func (m *Metrics) RecordExcluded(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Excluded.WithLabelValues(reason).Add(float64(n))
}

// ObserveStage records the time since start for stage.
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes the registry in Prometheus text format, for the
// node exporter's textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
