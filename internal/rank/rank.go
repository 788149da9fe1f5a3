// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rank scores papers by cosine similarity between their abstract
// embedding and a target phrase embedding, and sorts them.
package rank

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Robert-T119/Paper-Finder/internal/embed"
	"github.com/Robert-T119/Paper-Finder/internal/observability"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

var (
	// ErrZeroNorm is returned by Cosine when either vector has zero norm.
	ErrZeroNorm = errors.New("zero-norm vector")

	// ErrDimensionMismatch is returned by Cosine for vectors of different length.
	ErrDimensionMismatch = errors.New("vector dimensions differ")

	// ErrNonFinite is returned by Cosine for vectors holding NaN or Inf.
	ErrNonFinite = errors.New("non-finite vector component")
)

const defaultConcurrency = 4

// Cosine returns dot(a,b) / (|a| |b|), clamped to [-1, 1]. Each vector is
// scaled by its largest magnitude first, so very large or very small
// components neither overflow nor underflow.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	sa, sb := maxAbs(a), maxAbs(b)
	if !isFinite(sa) || !isFinite(sb) {
		return 0, ErrNonFinite
	}
	if sa == 0 || sb == 0 {
		return 0, ErrZeroNorm
	}
	var dot, na, nb float64
	for i := range a {
		x, y := a[i]/sa, b[i]/sb
		dot += x * y
		na += x * x
		nb += y * y
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if !isFinite(c) {
		return 0, ErrNonFinite
	}
	return math.Max(-1, math.Min(1, c)), nil
}

// maxAbs returns the largest |x| in v, or NaN if v holds a NaN.
func maxAbs(v []float64) float64 {
	var m float64
	for _, x := range v {
		if math.IsNaN(x) {
			return x
		}
		m = math.Max(m, math.Abs(x))
	}
	return m
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Ranker embeds papers and orders them by similarity to a target phrase.
type Ranker struct {
	Embedder    embed.Embedder
	Concurrency int

	// Timeout bounds each embedding call. Zero disables it.
	Timeout time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Ranking is the terminal result of a run.
type Ranking struct {
	// Ranked is sorted by score, descending; equal scores keep input order.
	Ranked []types.RankedPaper

	// Excluded lists papers dropped for a zero-norm embedding.
	Excluded []*types.DegenerateEmbeddingError
}

// Rank embeds target once and each paper's original abstract, then scores
// and sorts. Papers must be given in fetch order. A paper whose embedding
// has zero norm is excluded with a warning; a zero-norm target fails the
// run. Embedding failures return a *types.EmbeddingError.
func (r *Ranker) Rank(ctx context.Context, target string, papers []types.ClassifiedPaper) (Ranking, error) {
	defer r.Metrics.ObserveStage("rank", time.Now())

	targetVec, err := r.embed(ctx, target)
	if err != nil {
		return Ranking{}, &types.EmbeddingError{Err: err}
	}
	if !isFinite(maxAbs(targetVec)) {
		return Ranking{}, &types.EmbeddingError{Err: ErrNonFinite}
	}
	if isZero(targetVec) {
		return Ranking{}, &types.DegenerateEmbeddingError{}
	}

	vecs, err := r.embedAll(ctx, papers)
	if err != nil {
		return Ranking{}, err
	}

	var out Ranking
	out.Ranked = make([]types.RankedPaper, 0, len(papers))
	for i, p := range papers {
		if vecs[i] == nil {
			out.Excluded = append(out.Excluded, r.exclude(p))
			continue
		}
		score, err := Cosine(targetVec, vecs[i])
		switch {
		case errors.Is(err, ErrZeroNorm):
			out.Excluded = append(out.Excluded, r.exclude(p))
			continue
		case err != nil:
			return Ranking{}, &types.EmbeddingError{PaperID: p.Identifier(), Err: err}
		}
		out.Ranked = append(out.Ranked, types.RankedPaper{ClassifiedPaper: p, Score: score})
	}

	slices.SortStableFunc(out.Ranked, func(a, b types.RankedPaper) int {
		return cmp.Compare(b.Score, a.Score)
	})
	r.Metrics.RecordExcluded(observability.ReasonDegenerate, len(out.Excluded))
	return out, nil
}

// embedAll embeds every paper concurrently. Papers without abstract text
// get a nil vector and no remote call.
func (r *Ranker) embedAll(ctx context.Context, papers []types.ClassifiedPaper) ([][]float64, error) {
	limit := r.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	vecs := make([][]float64, len(papers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range papers {
		if strings.TrimSpace(p.Abstract) == "" {
			continue
		}
		g.Go(func() error {
			vec, err := r.embed(gctx, p.Abstract)
			if err != nil {
				return &types.EmbeddingError{PaperID: p.Identifier(), Err: err}
			}
			vecs[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vecs, nil
}

func (r *Ranker) embed(ctx context.Context, text string) ([]float64, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	return r.Embedder.Embed(ctx, text)
}

func (r *Ranker) exclude(p types.ClassifiedPaper) *types.DegenerateEmbeddingError {
	err := &types.DegenerateEmbeddingError{PaperID: p.Identifier()}
	r.Logger.Warn().Str("paper", p.Identifier()).Msg("excluding paper with zero-norm embedding")
	return err
}

func isZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
