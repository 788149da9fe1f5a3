// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch drains a paged search backend for one concept and date
// bucket at a time and normalizes every record into a types.Paper.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/Robert-T119/Paper-Finder/internal/textproc"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Query selects the records of one concept published within Range.
type Query struct {
	Concept string
	Range   types.DateRange
	// PerPage is the requested page size; backends may clamp it.
	PerPage int
}

// Page is one page of backend results.
type Page struct {
	Records []types.RawWork
	// NextCursor continues the listing; empty when there is nothing more.
	NextCursor string
	HasMore    bool
	// Total is the backend's count of matching records, if it reports one.
	Total int
}

// Backend is a paged search capability. Its transport is irrelevant here.
// An empty cursor requests the first page.
type Backend interface {
	Count(ctx context.Context, q Query) (int, error)
	SearchPage(ctx context.Context, q Query, cursor string) (Page, error)
}

// Unit identifies one fetch unit in the (concept x bucket) grid.
type Unit struct {
	ConceptIndex int
	BucketIndex  int
	Concept      string
	Range        types.DateRange
}

// String renders the unit for logs.
func (u Unit) String() string {
	return fmt.Sprintf("%s@%s", u.Concept, u.Range)
}

// Fetcher drains pages for a unit. It never retries; the caller decides
// what a FetchError means for the run.
type Fetcher struct {
	Backend Backend

	// PerPage is the page size requested from the backend.
	PerPage int

	// Cap bounds the number of records returned for one unit. Zero means
	// no cap.
	Cap int

	// PageTimeout bounds each backend call. Zero disables it.
	PageTimeout time.Duration
}

// Fetch returns every record of the unit in backend order, stopping when
// the backend reports no more results or Cap records have been collected.
// Any page failure fails the whole unit with a *types.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, u Unit) ([]types.Paper, error) {
	q := Query{Concept: u.Concept, Range: u.Range, PerPage: f.PerPage}

	var papers []types.Paper
	cursor := ""
	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &types.FetchError{Concept: u.Concept, Range: u.Range, Page: page, Err: err}
		}

		p, err := f.searchPage(ctx, q, cursor)
		if err != nil {
			return nil, &types.FetchError{Concept: u.Concept, Range: u.Range, Page: page, Err: err}
		}

		for _, raw := range p.Records {
			papers = append(papers, Normalize(raw))
			if f.Cap > 0 && len(papers) >= f.Cap {
				return papers, nil
			}
		}

		if !p.HasMore || p.NextCursor == "" || len(p.Records) == 0 {
			return papers, nil
		}
		cursor = p.NextCursor
	}
}

func (f *Fetcher) searchPage(ctx context.Context, q Query, cursor string) (Page, error) {
	if f.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.PageTimeout)
		defer cancel()
	}
	return f.Backend.SearchPage(ctx, q, cursor)
}

// CountForPeriod asks the backend how many records of concept fall within
// r, without fetching them.
func (f *Fetcher) CountForPeriod(ctx context.Context, r types.DateRange, concept string) (int, error) {
	if f.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.PageTimeout)
		defer cancel()
	}
	n, err := f.Backend.Count(ctx, Query{Concept: concept, Range: r, PerPage: 1})
	if err != nil {
		return 0, &types.FetchError{Concept: concept, Range: r, Page: -1, Err: err}
	}
	return n, nil
}

// EstimateTotal sums CountForPeriod over concepts for the whole range. It
// runs once before fetching starts and is never revised. A failed count
// fails the estimate unless skip, when non-nil, returns true for it; the
// concept is then left out of the total.
func (f *Fetcher) EstimateTotal(ctx context.Context, concepts []string, r types.DateRange, skip func(concept string, err error) bool) (int64, error) {
	var total int64
	for _, c := range concepts {
		n, err := f.CountForPeriod(ctx, r, c)
		if err != nil {
			if skip != nil && skip(c, err) {
				continue
			}
			return 0, err
		}
		total += int64(n)
	}
	return total, nil
}

// Normalize converts a raw record into a Paper: the abstract is rebuilt from
// its inverted index when needed and stripped of non-printable characters.
// An unparseable publication date is left zero.
func Normalize(raw types.RawWork) types.Paper {
	p := types.Paper{
		ID:       raw.ID,
		DOI:      raw.DOI,
		Title:    textproc.StripNonPrintable(raw.Title),
		Authors:  append([]string(nil), raw.Authors...),
		Abstract: textproc.AbstractText(raw),
		Concepts: append([]string(nil), raw.Concepts...),
	}
	if p.ID == "" {
		p.ID = raw.DOI
	}
	if t, err := time.Parse(types.DateLayout, raw.PublicationDate); err == nil {
		p.PublicationDate = t
	}
	return p
}
