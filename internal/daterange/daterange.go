// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package daterange splits a publication date interval into fixed-size,
// non-overlapping buckets. OpenAlex caps results per query, so every
// (concept, bucket) pair is fetched separately.
package daterange

import (
	"iter"
	"strings"
	"time"

	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Parse validates two YYYY-MM-DD dates and returns the inclusive range.
func Parse(from, to string) (types.DateRange, error) {
	start, err := time.Parse(types.DateLayout, strings.TrimSpace(from))
	if err != nil {
		return types.DateRange{}, &types.InvalidRangeError{From: from, To: to, Reason: "malformed start date, want YYYY-MM-DD"}
	}
	end, err := time.Parse(types.DateLayout, strings.TrimSpace(to))
	if err != nil {
		return types.DateRange{}, &types.InvalidRangeError{From: from, To: to, Reason: "malformed end date, want YYYY-MM-DD"}
	}
	if start.After(end) {
		return types.DateRange{}, &types.InvalidRangeError{From: from, To: to, Reason: "start is after end"}
	}
	return types.DateRange{Start: start, End: end}, nil
}

// Partition yields consecutive buckets of the given width in days covering
// r inclusively, in chronological order. The last bucket is clipped to
// r.End. A width below 1 is treated as 1. The sequence is lazy and may be
// ranged over any number of times.
func Partition(r types.DateRange, days int) iter.Seq[types.DateRange] {
	if days < 1 {
		days = 1
	}
	return func(yield func(types.DateRange) bool) {
		if r.Start.After(r.End) {
			return
		}
		for start := r.Start; !start.After(r.End); start = start.AddDate(0, 0, days) {
			end := start.AddDate(0, 0, days-1)
			if end.After(r.End) {
				end = r.End
			}
			if !yield(types.DateRange{Start: start, End: end}) {
				return
			}
		}
	}
}

// Count returns the number of buckets Partition yields.
func Count(r types.DateRange, days int) int {
	if days < 1 {
		days = 1
	}
	if r.Start.After(r.End) {
		return 0
	}
	return (r.Days() + days - 1) / days
}
