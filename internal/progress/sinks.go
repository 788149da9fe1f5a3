// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// LogSink writes each snapshot as a structured log line.
type LogSink struct {
	Logger zerolog.Logger
}

// Report logs the snapshot at info level.
func (s LogSink) Report(snap Snapshot) {
	s.Logger.Info().
		Int64("fetched", snap.Fetched).
		Int64("total", snap.Total).
		Float64("percent", snap.Percent).
		Msg("fetch progress")
}

// BarSink draws a one-line text progress bar, rewriting the line in place.
type BarSink struct {
	W     io.Writer
	Width int
}

// Report redraws the bar.
func (s BarSink) Report(snap Snapshot) {
	width := s.Width
	if width <= 0 {
		width = 40
	}
	filled := int(snap.Percent * float64(width) / 100)
	if filled > width {
		filled = width
	}
	fmt.Fprintf(s.W, "\r[%s%s] %3d%% %d/%d",
		strings.Repeat("#", filled), strings.Repeat(".", width-filled),
		int(snap.Percent), snap.Fetched, snap.Total)
	if snap.Percent >= 100 {
		fmt.Fprintln(s.W)
	}
}

// Multi fans a snapshot out to several sinks in order.
type Multi []Sink

// Report forwards to every sink.
func (m Multi) Report(snap Snapshot) {
	for _, s := range m {
		s.Report(snap)
	}
}
