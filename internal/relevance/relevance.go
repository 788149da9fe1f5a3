// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relevance implements the cheap domain gate that runs before the
// classification cascade.
package relevance

import (
	"slices"
	"strings"

	"github.com/Robert-T119/Paper-Finder/internal/textproc"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Classifier decides whether a cleaned abstract belongs to the domain.
// Implementations must be pure.
type Classifier interface {
	IsRelevant(cleaned string) bool
}

// KeywordClassifier accepts abstracts mentioning at least MinMatches
// distinct terms. Terms may be single words or phrases; they match whole
// tokens, and singular and plural forms match each other.
type KeywordClassifier struct {
	terms      [][]string
	minMatches int
}

// NewKeywordClassifier compiles the terms. Blank and duplicate terms are
// dropped; minMatches below 1 is treated as 1.
func NewKeywordClassifier(terms []string, minMatches int) *KeywordClassifier {
	if minMatches < 1 {
		minMatches = 1
	}
	k := &KeywordClassifier{minMatches: minMatches}
	seen := make(map[string]bool, len(terms))
	for _, term := range terms {
		toks := textproc.Lemmatize(textproc.Tokenize(textproc.Clean(term)))
		if len(toks) == 0 {
			continue
		}
		key := strings.Join(toks, " ")
		if seen[key] {
			continue
		}
		seen[key] = true
		k.terms = append(k.terms, toks)
	}
	return k
}

// FromConfig builds a KeywordClassifier from configuration, falling back to
// the default term set when none is configured.
func FromConfig(cfg types.RelevanceConfig) *KeywordClassifier {
	terms := cfg.Terms
	if len(terms) == 0 {
		terms = types.DefaultRelevanceTerms
	}
	return NewKeywordClassifier(terms, cfg.MinMatches)
}

// Terms returns the number of compiled terms.
func (k *KeywordClassifier) Terms() int { return len(k.terms) }

// IsRelevant reports whether cleaned mentions enough distinct terms. An
// empty abstract is never relevant.
func (k *KeywordClassifier) IsRelevant(cleaned string) bool {
	if strings.TrimSpace(cleaned) == "" || len(k.terms) == 0 {
		return false
	}
	toks := textproc.Lemmatize(textproc.Tokenize(textproc.Fold(cleaned)))
	matches := 0
	for _, term := range k.terms {
		if containsRun(toks, term) {
			matches++
			if matches >= k.minMatches {
				return true
			}
		}
	}
	return false
}

// containsRun reports whether needle occurs as a contiguous run in hay.
func containsRun(hay, needle []string) bool {
	if len(needle) > len(hay) {
		return false
	}
	for i := 0; i+len(needle) <= len(hay); i++ {
		if slices.Equal(hay[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

// Filter splits papers into those c accepts and those it drops, preserving
// order in both.
func Filter(papers []types.ClassifiedPaper, c Classifier) (kept, dropped []types.ClassifiedPaper) {
	for _, p := range papers {
		if c.IsRelevant(p.Cleaned) {
			kept = append(kept, p)
		} else {
			dropped = append(dropped, p)
		}
	}
	return kept, dropped
}
