// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress tracks records fetched against an up-front estimate and
// delivers percentage snapshots to a single consumer over a bounded channel.
package progress

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrNegativeAdvance is returned when Advance is called with n < 0.
var ErrNegativeAdvance = errors.New("progress cannot move backwards")

// ErrClosed is returned by Publisher.Complete after Close.
var ErrClosed = errors.New("progress publisher closed")

// Snapshot is the state of a fetch at one point in time.
type Snapshot struct {
	Fetched int64   `json:"fetched"`
	Total   int64   `json:"total"`
	Percent float64 `json:"percent"`
}

// String renders the snapshot as "fetched/total (pct%)".
func (s Snapshot) String() string {
	return fmt.Sprintf("%d/%d (%.0f%%)", s.Fetched, s.Total, s.Percent)
}

// Percent returns 100*fetched/total clamped to [0, 100]. With a zero total
// the result is 0 until the first fetch attempt completes and 100 after.
func Percent(fetched, total int64, attempted bool) float64 {
	if total <= 0 {
		if attempted {
			return 100
		}
		return 0
	}
	pct := 100 * float64(fetched) / float64(total)
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		// The estimate is computed once up front and may undercount.
		return 100
	}
	return pct
}

// Tracker is a monotonically increasing counter of fetched records paired
// with a fixed total. It is safe for concurrent use.
type Tracker struct {
	total    int64
	fetched  atomic.Int64
	attempts atomic.Int64
}

// NewTracker fixes the total estimate. Negative totals are treated as zero.
func NewTracker(total int64) *Tracker {
	if total < 0 {
		total = 0
	}
	return &Tracker{total: total}
}

// Advance adds n to the fetched counter and returns the snapshot that
// includes this update. Concurrent advances never lose updates.
func (t *Tracker) Advance(n int64) (Snapshot, error) {
	if n < 0 {
		return t.Snapshot(), fmt.Errorf("advance by %d: %w", n, ErrNegativeAdvance)
	}
	fetched := t.fetched.Add(n)
	t.attempts.Add(1)
	return Snapshot{
		Fetched: fetched,
		Total:   t.total,
		Percent: Percent(fetched, t.total, true),
	}, nil
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	fetched := t.fetched.Load()
	return Snapshot{
		Fetched: fetched,
		Total:   t.total,
		Percent: Percent(fetched, t.total, t.attempts.Load() > 0),
	}
}

// Total returns the fixed estimate.
func (t *Tracker) Total() int64 { return t.total }

// Publisher turns tracker updates into an ordered event stream. Each
// Complete call advances the tracker and enqueues exactly one snapshot;
// the pair is serialized so the consumer sees Fetched never decrease.
type Publisher struct {
	tracker *Tracker

	mu     sync.Mutex
	events chan Snapshot
	closed bool
}

// NewPublisher creates a publisher with a channel of the given capacity.
func NewPublisher(tracker *Tracker, buffer int) *Publisher {
	if buffer < 0 {
		buffer = 0
	}
	return &Publisher{
		tracker: tracker,
		events:  make(chan Snapshot, buffer),
	}
}

// Events returns the channel the single consumer reads from.
func (p *Publisher) Events() <-chan Snapshot { return p.events }

// Tracker returns the underlying tracker.
func (p *Publisher) Tracker() *Tracker { return p.tracker }

// Complete records one finished fetch unit of n records and publishes the
// resulting snapshot. It blocks while the channel is full and returns
// ctx.Err() if the context ends first; the counter has already advanced.
func (p *Publisher) Complete(ctx context.Context, n int64) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return p.tracker.Snapshot(), ErrClosed
	}
	snap, err := p.tracker.Advance(n)
	if err != nil {
		return snap, err
	}
	select {
	case p.events <- snap:
		return snap, nil
	case <-ctx.Done():
		return snap, ctx.Err()
	}
}

// Close closes the event channel. Later Complete calls return ErrClosed.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
}

// Sink receives progress snapshots.
type Sink interface {
	Report(Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Snapshot)

// Report calls f.
func (f SinkFunc) Report(s Snapshot) { f(s) }

// Consume forwards events to sink until the channel closes. It returns the
// last snapshot delivered. Cancelling ctx stops delivery early.
func Consume(ctx context.Context, events <-chan Snapshot, sink Sink) Snapshot {
	var last Snapshot
	for {
		select {
		case snap, ok := <-events:
			if !ok {
				return last
			}
			last = snap
			if sink != nil {
				sink.Report(snap)
			}
		case <-ctx.Done():
			return last
		}
	}
}
