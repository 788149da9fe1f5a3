// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Label is a categorical value produced by one classification stage.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
)

// String returns the label text.
func (l Label) String() string { return string(l) }

// ClassifiedPaper is a Paper plus the fields derived downstream of fetching.
// Stage labels are nil when the paper never reached that stage.
type ClassifiedPaper struct {
	Paper

	// Cleaned is the case-folded abstract used by the classifiers.
	Cleaned string `json:"cleaned_abstract" yaml:"cleaned_abstract"`

	// Tokens is the stopword-free, lemmatized token list.
	Tokens []string `json:"tokens,omitempty" yaml:"tokens,omitempty"`

	Stage1 *Label `json:"stage1,omitempty" yaml:"stage1,omitempty"`
	Stage2 *Label `json:"stage2,omitempty" yaml:"stage2,omitempty"`
}

// WithStage1 returns a copy of p carrying the stage-1 label.
func (p ClassifiedPaper) WithStage1(l Label) ClassifiedPaper {
	p.Stage1 = &l
	return p
}

// WithStage2 returns a copy of p carrying the stage-2 label.
func (p ClassifiedPaper) WithStage2(l Label) ClassifiedPaper {
	p.Stage2 = &l
	return p
}

// RankedPaper is a classified paper with its similarity to the target phrase.
type RankedPaper struct {
	ClassifiedPaper

	// Score is the cosine similarity to the target embedding, in [-1, 1].
	Score float64 `json:"similarity_score" yaml:"similarity_score"`
}

// ResultRow is one row of the terminal result set.
type ResultRow struct {
	Identifier string  `json:"identifier" yaml:"identifier"`
	Title      string  `json:"title" yaml:"title"`
	Stage1     string  `json:"stage1_label" yaml:"stage1_label"`
	Stage2     string  `json:"stage2_label" yaml:"stage2_label"`
	Score      float64 `json:"similarity_score" yaml:"similarity_score"`
}

// Row flattens a ranked paper into a result row. Absent labels become "".
func (r RankedPaper) Row() ResultRow {
	row := ResultRow{
		Identifier: r.Identifier(),
		Title:      r.Title,
		Score:      r.Score,
	}
	if r.Stage1 != nil {
		row.Stage1 = r.Stage1.String()
	}
	if r.Stage2 != nil {
		row.Stage2 = r.Stage2.String()
	}
	return row
}

// Rows flattens ranked papers, preserving order.
func Rows(ranked []RankedPaper) []ResultRow {
	rows := make([]ResultRow, len(ranked))
	for i, r := range ranked {
		rows[i] = r.Row()
	}
	return rows
}
