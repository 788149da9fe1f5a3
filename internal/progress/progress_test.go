// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercent(t *testing.T) {
	tests := []struct {
		name      string
		fetched   int64
		total     int64
		attempted bool
		want      float64
	}{
		{"start", 0, 10, false, 0},
		{"partial", 3, 10, true, 30},
		{"complete", 10, 10, true, 100},
		{"overshoot clamps", 15, 10, true, 100},
		{"zero total before attempt", 0, 0, false, 0},
		{"zero total after attempt", 0, 0, true, 100},
		{"zero total with records", 7, 0, true, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Percent(tt.fetched, tt.total, tt.attempted), 1e-9)
		})
	}
}

func TestPercent_AlwaysInBounds(t *testing.T) {
	for total := int64(0); total <= 50; total += 7 {
		for fetched := int64(0); fetched <= 120; fetched += 3 {
			for _, attempted := range []bool{false, true} {
				p := Percent(fetched, total, attempted)
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 100.0)
			}
		}
	}
}

func TestTracker_BatchesReportThirtySixtyHundred(t *testing.T) {
	tr := NewTracker(10)

	var got []float64
	for _, n := range []int64{3, 3, 4} {
		snap, err := tr.Advance(n)
		require.NoError(t, err)
		got = append(got, snap.Percent)
	}
	assert.Equal(t, []float64{30, 60, 100}, got)

	final := tr.Snapshot()
	assert.Equal(t, int64(10), final.Fetched)
	assert.Equal(t, int64(10), final.Total)
}

func TestTracker_NegativeAdvance(t *testing.T) {
	tr := NewTracker(10)
	_, err := tr.Advance(4)
	require.NoError(t, err)

	snap, err := tr.Advance(-1)
	require.ErrorIs(t, err, ErrNegativeAdvance)
	assert.Equal(t, int64(4), snap.Fetched, "counter must not move on a rejected advance")
}

func TestTracker_ZeroTotal(t *testing.T) {
	tr := NewTracker(0)
	assert.Equal(t, 0.0, tr.Snapshot().Percent)

	snap, err := tr.Advance(0)
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Percent)
}

func TestTracker_ConcurrentAdvanceLosesNothing(t *testing.T) {
	tr := NewTracker(1000)
	const workers = 16
	const perWorker = 250

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := tr.Advance(n)
				assert.NoError(t, err)
			}
		}(int64(w % 3))
	}
	wg.Wait()

	var want int64
	for w := 0; w < workers; w++ {
		want += int64(w%3) * perWorker
	}
	assert.Equal(t, want, tr.Snapshot().Fetched)
}

func TestTracker_TwoConcurrentAdvances(t *testing.T) {
	for _, pair := range [][2]int64{{0, 0}, {1, 2}, {5, 0}, {100, 250}} {
		tr := NewTracker(50)
		var wg sync.WaitGroup
		for _, n := range pair {
			wg.Add(1)
			go func(n int64) {
				defer wg.Done()
				_, _ = tr.Advance(n)
			}(n)
		}
		wg.Wait()
		assert.Equal(t, pair[0]+pair[1], tr.Snapshot().Fetched)
	}
}

func TestPublisher_OrderedMonotonicEvents(t *testing.T) {
	tr := NewTracker(200)
	pub := NewPublisher(tr, 4)

	var got []Snapshot
	done := make(chan struct{})
	go func() {
		defer close(done)
		Consume(context.Background(), pub.Events(), SinkFunc(func(s Snapshot) {
			got = append(got, s)
		}))
	}()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			_, err := pub.Complete(context.Background(), n)
			assert.NoError(t, err)
		}(int64(i % 5))
	}
	wg.Wait()
	pub.Close()
	<-done

	require.Len(t, got, 20, "one snapshot per completed unit")
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i].Fetched, got[i-1].Fetched)
	}
	assert.Equal(t, tr.Snapshot().Fetched, got[len(got)-1].Fetched)
}

func TestPublisher_CompleteAfterClose(t *testing.T) {
	pub := NewPublisher(NewTracker(1), 1)
	pub.Close()
	pub.Close()

	_, err := pub.Complete(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPublisher_BlockedSendHonoursContext(t *testing.T) {
	pub := NewPublisher(NewTracker(10), 0)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	snap, err := pub.Complete(ctx, 2)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, int64(2), snap.Fetched, "counter advanced even though delivery was abandoned")
}

func TestConsume_ReturnsLastSnapshot(t *testing.T) {
	ch := make(chan Snapshot, 3)
	ch <- Snapshot{Fetched: 1, Total: 3, Percent: 33}
	ch <- Snapshot{Fetched: 3, Total: 3, Percent: 100}
	close(ch)

	last := Consume(context.Background(), ch, nil)
	assert.Equal(t, int64(3), last.Fetched)
}

func TestBarSink(t *testing.T) {
	var buf bytes.Buffer
	sink := BarSink{W: &buf, Width: 10}

	sink.Report(Snapshot{Fetched: 3, Total: 10, Percent: 30})
	assert.Contains(t, buf.String(), "[###.......]  30% 3/10")
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))

	sink.Report(Snapshot{Fetched: 10, Total: 10, Percent: 100})
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestLogSinkAndMulti(t *testing.T) {
	var logBuf, barBuf bytes.Buffer
	sink := Multi{
		LogSink{Logger: zerolog.New(&logBuf)},
		BarSink{W: &barBuf},
	}
	sink.Report(Snapshot{Fetched: 6, Total: 10, Percent: 60})

	assert.Contains(t, logBuf.String(), `"fetched":6`)
	assert.Contains(t, logBuf.String(), `"percent":60`)
	assert.Contains(t, barBuf.String(), "60%")
}
