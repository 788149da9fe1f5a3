// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package textproc

import (
	"strings"
	"unicode/utf8"
)

// englishStopwords is the reference stopword set (the NLTK English list).
var englishStopwords = toSet(`
i me my myself we our ours ourselves you you're you've you'll you'd your
yours yourself yourselves he him his himself she she's her hers herself it
it's its itself they them their theirs themselves what which who whom this
that that'll these those am is are was were be been being have has had
having do does did doing a an the and but if or because as until while of
at by for with about against between into through during before after above
below to from up down in out on off over under again further then once here
there when where why how all any both each few more most other some such no
nor not only own same so than too very s t can will just don don't should
should've now d ll m o re ve y ain aren aren't couldn couldn't didn didn't
doesn doesn't hadn hadn't hasn hasn't haven haven't isn isn't ma mightn
mightn't mustn mustn't needn needn't shan shan't shouldn shouldn't wasn
wasn't weren weren't won won't wouldn wouldn't
`)

func toSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}

// irregularLemmas maps inflected forms whose base form no suffix rule recovers.
var irregularLemmas = map[string]string{
	"analyses":   "analysis",
	"syntheses":  "synthesis",
	"hypotheses": "hypothesis",
	"theses":     "thesis",
	"bases":      "basis",
	"crises":     "crisis",
	"indices":    "index",
	"matrices":   "matrix",
	"vertices":   "vertex",
	"appendices": "appendix",
	"phenomena":  "phenomenon",
	"criteria":   "criterion",
	"spectra":    "spectrum",
	"maxima":     "maximum",
	"minima":     "minimum",
	"media":      "medium",
	"nuclei":     "nucleus",
	"stimuli":    "stimulus",
	"radii":      "radius",
	"foci":       "focus",
	"loci":       "locus",
	"formulae":   "formula",
	"men":        "man",
	"women":      "woman",
	"children":   "child",
	"mice":       "mouse",
	"feet":       "foot",
	"teeth":      "tooth",
	"geese":      "goose",
	"people":     "person",
	"leaves":     "leaf",
	"halves":     "half",
	"lives":      "life",
	"knives":     "knife",
	"shelves":    "shelf",
}

// invariantLemmas end in "s" but are already base forms.
var invariantLemmas = toSet(`
series species means news physics mathematics economics electronics
optics dynamics kinetics thermodynamics mechanics statistics gas lens bias
always perhaps whereas thus various previous numerous continuous
`)

// Lemmatize maps each token to its dictionary base form. Tokens are treated
// as nouns: plurals are reduced to the singular and other forms are left
// unchanged.
func Lemmatize(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = Lemma(tok)
	}
	return out
}

// Lemma returns the base form of a single lowercase token.
func Lemma(tok string) string {
	if lemma, ok := irregularLemmas[tok]; ok {
		return lemma
	}
	if _, ok := invariantLemmas[tok]; ok {
		return tok
	}
	if utf8.RuneCountInString(tok) <= 3 || !strings.HasSuffix(tok, "s") {
		return tok
	}
	switch {
	case strings.HasSuffix(tok, "ss"), strings.HasSuffix(tok, "us"), strings.HasSuffix(tok, "is"):
		return tok
	case strings.HasSuffix(tok, "sses"):
		return strings.TrimSuffix(tok, "es")
	case strings.HasSuffix(tok, "ies") && len(tok) > 4:
		return strings.TrimSuffix(tok, "ies") + "y"
	case strings.HasSuffix(tok, "ches"), strings.HasSuffix(tok, "shes"),
		strings.HasSuffix(tok, "xes"), strings.HasSuffix(tok, "zes"):
		return strings.TrimSuffix(tok, "es")
	}
	return strings.TrimSuffix(tok, "s")
}
