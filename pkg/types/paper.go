// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-finder pipeline:
// raw search records, normalized papers, date ranges, classification labels,
// ranked results, configuration, and the error kinds each stage reports.
package types

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used on the command line, in
// configuration, and in OpenAlex filters.
const DateLayout = "2006-01-02"

// RawWork is one record as returned by a search backend, before normalization.
// The abstract arrives either as linear text or as a sparse positional index
// mapping each token to the word positions where it occurs.
type RawWork struct {
	// ID is the backend's own identifier (e.g. "https://openalex.org/W2741809807").
	ID string `json:"id" yaml:"id"`

	// DOI is the bare DOI without resolver prefix. May be empty.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors" yaml:"authors"`

	// PublicationDate is the date string as the backend reported it.
	PublicationDate string `json:"publication_date" yaml:"publication_date"`

	// Concepts lists the concept identifiers attached to the work.
	Concepts []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`

	// Abstract is the linear abstract text, if the backend supplied one.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// AbstractIndex is the inverted form: token -> positions.
	AbstractIndex map[string][]int `json:"abstract_inverted_index,omitempty" yaml:"abstract_inverted_index,omitempty"`
}

// Paper is a normalized search record. It is created by the fetch stage and
// never modified afterwards; later stages wrap it instead.
type Paper struct {
	// ID is the backend work identifier. Always set.
	ID string `json:"id" yaml:"id"`

	// DOI is the bare DOI. May be empty.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	Title           string    `json:"title" yaml:"title"`
	Authors         []string  `json:"authors" yaml:"authors"`
	PublicationDate time.Time `json:"publication_date" yaml:"publication_date"`

	// Abstract is the linear abstract with non-printable characters removed.
	Abstract string `json:"abstract" yaml:"abstract"`

	Concepts []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`

	// Seq is the first-seen position of the paper in the merged fetch output.
	// Ranking ties are broken on it.
	Seq int `json:"seq" yaml:"seq"`
}

// Identifier returns the DOI when present and the work ID otherwise.
func (p Paper) Identifier() string {
	if p.DOI != "" {
		return p.DOI
	}
	return p.ID
}

// DateRange is an inclusive range of calendar dates. Start <= End.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Days returns the number of calendar days covered, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// String renders a single day as "2023-01-02" and longer ranges as
// "2023-01-02..2023-01-05".
func (r DateRange) String() string {
	if r.Start.Equal(r.End) {
		return r.Start.Format(DateLayout)
	}
	return fmt.Sprintf("%s..%s", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}
