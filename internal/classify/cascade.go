// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify runs the two-stage classification cascade over cleaned
// abstracts.
package classify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Robert-T119/Paper-Finder/internal/observability"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Stage names used in errors, logs, and metrics.
const (
	Stage1 = "stage1"
	Stage2 = "stage2"
)

const (
	defaultBatchSize   = 20
	defaultConcurrency = 4
)

// Backend labels a batch of texts with one model. It must return exactly
// one label per input, in input order.
type Backend interface {
	Classify(ctx context.Context, modelID string, inputs []string) ([]types.Label, error)
}

// Cascade runs stage 1 on every paper and stage 2 only on papers whose
// stage-1 label equals Positive.
type Cascade struct {
	Backend Backend
	Stages  types.StageModels

	// Positive is the stage-1 label that admits a paper to stage 2.
	Positive types.Label

	BatchSize   int
	Concurrency int

	// Timeout bounds each batch call. Zero disables it.
	Timeout time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Result is the outcome of a cascade run.
type Result struct {
	// Stage1 holds every input paper with its stage-1 label, in input order.
	Stage1 []types.ClassifiedPaper

	// Passed holds the stage-1-positive papers with both labels, in input
	// order. It is the set that continues to ranking.
	Passed []types.ClassifiedPaper
}

// Run classifies papers. Any failed batch fails the run with a
// *types.ClassificationError; no partial result is returned.
func (c *Cascade) Run(ctx context.Context, papers []types.ClassifiedPaper) (Result, error) {
	if len(papers) == 0 {
		return Result{}, nil
	}

	labels1, err := c.runStage(ctx, Stage1, c.Stages.Stage1, papers)
	if err != nil {
		return Result{}, err
	}

	res := Result{Stage1: make([]types.ClassifiedPaper, len(papers))}
	var positives []types.ClassifiedPaper
	for i, p := range papers {
		res.Stage1[i] = p.WithStage1(labels1[i])
		if labels1[i] == c.positive() {
			positives = append(positives, res.Stage1[i])
		}
	}
	c.Metrics.RecordExcluded(observability.ReasonStage1, len(papers)-len(positives))
	c.Logger.Info().
		Int("papers", len(papers)).
		Int("positive", len(positives)).
		Msg("stage 1 classified")

	if len(positives) == 0 {
		return res, nil
	}

	labels2, err := c.runStage(ctx, Stage2, c.Stages.Stage2, positives)
	if err != nil {
		return Result{}, err
	}
	res.Passed = make([]types.ClassifiedPaper, len(positives))
	for i, p := range positives {
		res.Passed[i] = p.WithStage2(labels2[i])
	}
	c.Logger.Info().Int("papers", len(positives)).Msg("stage 2 classified")
	return res, nil
}

// runStage labels papers with model, dispatching batches concurrently.
// Labels are written by index, so batching never changes a paper's label.
func (c *Cascade) runStage(ctx context.Context, stage, model string, papers []types.ClassifiedPaper) ([]types.Label, error) {
	defer c.Metrics.ObserveStage(stage, time.Now())

	size := c.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	limit := c.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}

	labels := make([]types.Label, len(papers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for off := 0; off < len(papers); off += size {
		batch := papers[off:min(off+size, len(papers))]
		g.Go(func() error {
			inputs := make([]string, len(batch))
			for i, p := range batch {
				inputs[i] = p.Cleaned
			}
			out, err := c.classify(gctx, model, inputs)
			if err == nil && len(out) != len(inputs) {
				err = fmt.Errorf("backend returned %d labels for %d inputs", len(out), len(inputs))
			}
			if err != nil {
				return &types.ClassificationError{Stage: stage, ModelID: model, PaperIDs: paperIDs(batch), Err: err}
			}
			copy(labels[off:], out)
			c.Logger.Debug().Str("stage", stage).Int("offset", off).Int("size", len(batch)).Msg("batch classified")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.Metrics.RecordLabels(stage, labels)
	return labels, nil
}

func (c *Cascade) classify(ctx context.Context, model string, inputs []string) ([]types.Label, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return c.Backend.Classify(ctx, model, inputs)
}

func (c *Cascade) positive() types.Label {
	if c.Positive == "" {
		return types.LabelPositive
	}
	return c.Positive
}

func paperIDs(papers []types.ClassifiedPaper) []string {
	ids := make([]string, len(papers))
	for i, p := range papers {
		ids[i] = p.Identifier()
	}
	return ids
}
