// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrInvalidRange        = errors.New("invalid date range")
	ErrFetch               = errors.New("fetch failed")
	ErrClassification      = errors.New("classification failed")
	ErrEmbedding           = errors.New("embedding failed")
	ErrDegenerateEmbedding = errors.New("degenerate embedding")
)

// InvalidRangeError reports malformed or inverted date bounds. It is raised
// before any fetch starts.
type InvalidRangeError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid date range %q..%q: %s", e.From, e.To, e.Reason)
}

func (e *InvalidRangeError) Unwrap() error { return ErrInvalidRange }

// FetchError reports a backend failure for one (concept, date range) unit.
// The driver decides whether to skip, retry, or abort.
type FetchError struct {
	Concept string
	Range   DateRange
	// Page is the zero-based page that failed; -1 for count queries.
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	if e.Page < 0 {
		return fmt.Sprintf("counting concept %s for %s: %v", e.Concept, e.Range, e.Err)
	}
	return fmt.Sprintf("fetching concept %s for %s (page %d): %v", e.Concept, e.Range, e.Page, e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying cause, so
// errors.Is works for ErrFetch as well as for context.DeadlineExceeded.
func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Err} }

// ClassificationError reports a failed classification batch. It halts the
// run: a partially classified set cannot be ranked.
type ClassificationError struct {
	Stage    string
	ModelID  string
	PaperIDs []string
	Err      error
}

func (e *ClassificationError) Error() string {
	ids := e.PaperIDs
	suffix := ""
	if len(ids) > 3 {
		suffix = fmt.Sprintf(" and %d more", len(ids)-3)
		ids = ids[:3]
	}
	return fmt.Sprintf("classifying %s with model %s (papers %s%s): %v",
		e.Stage, e.ModelID, strings.Join(ids, ", "), suffix, e.Err)
}

func (e *ClassificationError) Unwrap() []error { return []error{ErrClassification, e.Err} }

// EmbeddingError reports a failed embedding call for a paper or for the
// target phrase (PaperID empty).
type EmbeddingError struct {
	PaperID string
	Err     error
}

func (e *EmbeddingError) Error() string {
	if e.PaperID == "" {
		return fmt.Sprintf("embedding target phrase: %v", e.Err)
	}
	return fmt.Sprintf("embedding paper %s: %v", e.PaperID, e.Err)
}

func (e *EmbeddingError) Unwrap() []error { return []error{ErrEmbedding, e.Err} }

// DegenerateEmbeddingError reports a zero-norm embedding. The affected paper
// is excluded from ranking; the run continues.
type DegenerateEmbeddingError struct {
	PaperID string
}

func (e *DegenerateEmbeddingError) Error() string {
	if e.PaperID == "" {
		return "target phrase has a zero-norm embedding"
	}
	return fmt.Sprintf("paper %s has a zero-norm embedding", e.PaperID)
}

func (e *DegenerateEmbeddingError) Unwrap() error { return ErrDegenerateEmbedding }
