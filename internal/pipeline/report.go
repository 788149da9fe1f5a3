// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/Robert-T119/Paper-Finder/internal/progress"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Report summarizes a run. The estimate is fixed before fetching and is
// never revised, so it may differ from the fetched count; both are kept.
type Report struct {
	RunID    string
	Range    types.DateRange
	Concepts []string
	Target   string
	Policy   types.FetchPolicy

	Estimate int64
	// Fetched counts records returned by fetch units, before dedup.
	Fetched    int64
	Unique     int
	Duplicates int

	Irrelevant     int
	Stage1Negative int
	Results        int

	// Skipped lists units dropped under the skip policy.
	Skipped []*types.FetchError
	// Excluded lists papers dropped for zero-norm embeddings.
	Excluded []*types.DegenerateEmbeddingError

	// Progress is the last progress state reached.
	Progress progress.Snapshot
	Duration time.Duration
}

// Write prints the report for humans.
func (r Report) Write(w io.Writer) {
	fmt.Fprintf(w, "run %s  %s  concepts: %d\n", r.RunID, r.Range, len(r.Concepts))
	fmt.Fprintf(w, "estimated: %d  fetched: %d  unique: %d  duplicates: %d\n",
		r.Estimate, r.Fetched, r.Unique, r.Duplicates)
	if r.Estimate != r.Fetched {
		fmt.Fprintf(w, "note: estimate differs from fetched count by %d\n", r.Fetched-r.Estimate)
	}
	fmt.Fprintf(w, "irrelevant: %d  stage-1 negative: %d  degenerate: %d  ranked: %d\n",
		r.Irrelevant, r.Stage1Negative, len(r.Excluded), r.Results)
	for _, fe := range r.Skipped {
		fmt.Fprintf(w, "skipped: %v\n", fe)
	}
	for _, de := range r.Excluded {
		fmt.Fprintf(w, "excluded: %v\n", de)
	}
	fmt.Fprintf(w, "progress: %s  duration: %s\n", r.Progress, r.Duration.Round(time.Millisecond))
}
