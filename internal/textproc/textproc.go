// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package textproc cleans abstracts for classification. The pipeline is
// fixed: strip non-printable characters, rebuild inverted-index abstracts,
// case-fold, tokenize, drop stopwords, lemmatize. Every step is pure.
package textproc

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Normalized is the output of Normalize.
type Normalized struct {
	// Cleaned is the printable, case-folded abstract (steps 1-3).
	Cleaned string
	// Tokens is the stopword-free, lemmatized token list (steps 4-6).
	Tokens []string
}

// Normalizer runs the full cleaning pipeline. The zero value uses the
// built-in English stopword set.
type Normalizer struct {
	// Stopwords overrides the reference stopword set when non-nil.
	Stopwords map[string]struct{}
}

// Normalize cleans text and derives its token list.
func (n Normalizer) Normalize(text string) Normalized {
	cleaned := Clean(text)
	stop := n.Stopwords
	if stop == nil {
		stop = englishStopwords
	}
	tokens := Lemmatize(RemoveStopwords(Tokenize(cleaned), stop))
	return Normalized{Cleaned: cleaned, Tokens: tokens}
}

// Clean applies steps 1-3: strip, fold, compose. Clean(Clean(s)) == Clean(s).
func Clean(s string) string {
	return norm.NFC.String(Fold(StripNonPrintable(s)))
}

// AbstractText returns the linear abstract of a raw record, rebuilding it
// from the inverted index when no linear text is present, with
// non-printable characters removed.
func AbstractText(w types.RawWork) string {
	text := w.Abstract
	if text == "" && len(w.AbstractIndex) > 0 {
		text = ReconstructAbstract(w.AbstractIndex)
	}
	return StripNonPrintable(text)
}

// StripNonPrintable removes control and other non-printable runes, turns
// every run of whitespace into a single space, trims the ends, and returns
// the NFC form.
func StripNonPrintable(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
			continue
		case !unicode.IsPrint(r):
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// ReconstructAbstract converts an inverted index (word -> positions) back to
// linear text. Each word is placed at every recorded position; a run of
// positions no word covers becomes one extra space, however long the run.
// When two words claim the same position the lexically smaller one wins.
// Negative positions are ignored.
func ReconstructAbstract(index map[string][]int) string {
	if len(index) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range index {
		for _, pos := range positions {
			if pos >= 0 {
				pairs = append(pairs, posWord{pos: pos, word: word})
			}
		}
	}
	if len(pairs) == 0 {
		return ""
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].pos != pairs[j].pos {
			return pairs[i].pos < pairs[j].pos
		}
		return pairs[i].word < pairs[j].word
	})

	var b strings.Builder
	last := -1
	for _, p := range pairs {
		if p.pos == last {
			continue
		}
		if last >= 0 {
			b.WriteByte(' ')
			if p.pos > last+1 {
				b.WriteByte(' ')
			}
		} else if p.pos > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.word)
		last = p.pos
	}
	return b.String()
}

// Fold lowercases s with the language-neutral Unicode mapping.
// Fold(Fold(s)) == Fold(s) for every input.
func Fold(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Lower(language.Und).String(s)
}

// Tokenize splits text on word boundaries. A token is a run of letters,
// digits, or combining marks; an apostrophe or hyphen is kept when it joins
// two word characters, and a period is kept between two digits ("0.5").
func Tokenize(s string) []string {
	runes := []rune(s)
	var tokens []string
	start := -1
	for i, r := range runes {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && isJoiner(runes, i) {
			continue
		}
		if start >= 0 {
			tokens = append(tokens, string(runes[start:i]))
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, string(runes[start:]))
	}
	return tokens
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// isJoiner reports whether runes[i] is punctuation inside a word.
func isJoiner(runes []rune, i int) bool {
	if i == 0 || i+1 >= len(runes) {
		return false
	}
	prev, next := runes[i-1], runes[i+1]
	switch runes[i] {
	case '\'', '’', '-':
		return isWordRune(prev) && isWordRune(next)
	case '.':
		return unicode.IsDigit(prev) && unicode.IsDigit(next)
	}
	return false
}

// RemoveStopwords drops tokens present in stop. Order is preserved.
func RemoveStopwords(tokens []string, stop map[string]struct{}) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := stop[tok]; ok {
			continue
		}
		out = append(out, tok)
	}
	return out
}
