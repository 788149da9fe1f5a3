// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline drives one retrieval-and-ranking run: partition the
// date range, fetch every (concept, bucket) unit on a worker pool, merge,
// normalize, filter, classify, and rank.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Robert-T119/Paper-Finder/internal/classify"
	"github.com/Robert-T119/Paper-Finder/internal/daterange"
	"github.com/Robert-T119/Paper-Finder/internal/fetch"
	"github.com/Robert-T119/Paper-Finder/internal/observability"
	"github.com/Robert-T119/Paper-Finder/internal/progress"
	"github.com/Robert-T119/Paper-Finder/internal/rank"
	"github.com/Robert-T119/Paper-Finder/internal/relevance"
	"github.com/Robert-T119/Paper-Finder/internal/store"
	"github.com/Robert-T119/Paper-Finder/internal/textproc"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// RunStore records runs and their results. *store.Store implements it.
type RunStore interface {
	StartRun(ctx context.Context, r store.Run) error
	FinishRun(ctx context.Context, id string, o store.Outcome) error
	SaveResults(ctx context.Context, runID string, rows []types.ResultRow) error
}

// Request selects what a run fetches and ranks against.
type Request struct {
	// Concepts are OpenAlex concept IDs, in selection order.
	Concepts []string
	From     string
	To       string
	// Target is the phrase papers are ranked against.
	Target string
}

// Driver runs the pipeline. Cascade and Ranker are copied per run so each
// run logs and counts into its own RunContext.
type Driver struct {
	Fetcher    *fetch.Fetcher
	Normalizer textproc.Normalizer
	Relevance  relevance.Classifier
	Cascade    *classify.Cascade
	Ranker     *rank.Ranker

	Config types.PipelineConfig

	// Store is optional.
	Store RunStore

	// Sink receives one progress snapshot per finished fetch unit.
	Sink progress.Sink

	// MetricsTextfile, when set, receives the run's metrics at the end.
	MetricsTextfile string

	// RetryDelay is the pause before re-fetching a failed unit under the
	// retry policy; it doubles per attempt.
	RetryDelay time.Duration

	Logger zerolog.Logger
}

// Result is the output of a run. On failure it still carries the report of
// what was done before the error.
type Result struct {
	Ranked []types.RankedPaper
	// Stage1 lists every classified paper with its stage-1 label.
	Stage1 []types.ClassifiedPaper
	Report Report
}

// Rows flattens the ranked papers for the result sink.
func (r *Result) Rows() []types.ResultRow {
	return types.Rows(r.Ranked)
}

// Run executes one pipeline run. An invalid range fails before any
// backend call. The run record, when a store is configured, is finished
// with status failed and the progress reached so far on any error.
func (d *Driver) Run(ctx context.Context, req Request) (*Result, error) {
	r, err := daterange.Parse(req.From, req.To)
	if err != nil {
		return nil, err
	}
	if len(req.Concepts) == 0 {
		return nil, errors.New("no concepts selected")
	}
	if req.Target == "" {
		return nil, errors.New("target phrase is required")
	}

	rc := NewRunContext(d.Logger)
	res := &Result{Report: Report{
		RunID:    rc.ID,
		Range:    r,
		Concepts: req.Concepts,
		Target:   req.Target,
		Policy:   d.policy(),
	}}
	rc.Logger.Info().
		Strs("concepts", req.Concepts).
		Str("range", r.String()).
		Str("policy", string(res.Report.Policy)).
		Msg("run started")

	d.startRun(ctx, rc, req, r)
	err = d.run(ctx, rc, req, r, res)
	res.Report.Progress = rc.Snapshot()
	res.Report.Duration = time.Since(rc.Started)
	d.finishRun(ctx, rc, res, err)

	if werr := rc.Metrics.WriteTextfile(d.MetricsTextfile); werr != nil {
		rc.Logger.Warn().Err(werr).Str("path", d.MetricsTextfile).Msg("writing metrics textfile")
	}
	if err != nil {
		rc.Logger.Error().Err(err).Msg("run failed")
		return res, err
	}
	rc.Logger.Info().
		Int("results", len(res.Ranked)).
		Dur("duration", res.Report.Duration).
		Msg("run completed")
	return res, nil
}

func (d *Driver) run(ctx context.Context, rc *RunContext, req Request, r types.DateRange, res *Result) error {
	estimate, err := d.estimate(ctx, rc, req.Concepts, r)
	if err != nil {
		return err
	}
	res.Report.Estimate = estimate

	papers, err := d.fetchAll(ctx, rc, req.Concepts, r, &res.Report)
	if err != nil {
		return err
	}

	start := time.Now()
	classified := make([]types.ClassifiedPaper, len(papers))
	for i, p := range papers {
		n := d.Normalizer.Normalize(p.Abstract)
		classified[i] = types.ClassifiedPaper{Paper: p, Cleaned: n.Cleaned, Tokens: n.Tokens}
	}
	kept, dropped := relevance.Filter(classified, d.Relevance)
	res.Report.Irrelevant = len(dropped)
	rc.Metrics.RecordExcluded(observability.ReasonIrrelevant, len(dropped))
	rc.Metrics.ObserveStage("normalize", start)
	rc.Logger.Info().Int("relevant", len(kept)).Int("irrelevant", len(dropped)).Msg("relevance filter applied")

	if err := ctx.Err(); err != nil {
		return err
	}

	cascade := *d.Cascade
	cascade.Logger, cascade.Metrics = rc.Logger, rc.Metrics
	if d.Config.ClassifyTimeout > 0 {
		cascade.Timeout = d.Config.ClassifyTimeout
	}
	cres, err := cascade.Run(ctx, kept)
	if err != nil {
		return err
	}
	res.Stage1 = cres.Stage1
	res.Report.Stage1Negative = len(cres.Stage1) - len(cres.Passed)

	// Every paper is classified before any paper is embedded.
	ranker := *d.Ranker
	ranker.Logger, ranker.Metrics = rc.Logger, rc.Metrics
	if d.Config.EmbedTimeout > 0 {
		ranker.Timeout = d.Config.EmbedTimeout
	}
	ranking, err := ranker.Rank(ctx, req.Target, cres.Passed)
	if err != nil {
		return err
	}
	res.Ranked = ranking.Ranked
	res.Report.Excluded = ranking.Excluded
	res.Report.Results = len(ranking.Ranked)
	return nil
}

// estimate sums the per-concept counts once, before fetching. Under the
// abort policy a failed count fails the run; otherwise the concept
// contributes nothing to the estimate.
func (d *Driver) estimate(ctx context.Context, rc *RunContext, concepts []string, r types.DateRange) (int64, error) {
	total, err := d.Fetcher.EstimateTotal(ctx, concepts, r, func(concept string, err error) bool {
		if d.policy() == types.FetchAbort || ctx.Err() != nil {
			return false
		}
		rc.Logger.Warn().Err(err).Str("concept", concept).Msg("count failed; estimate excludes concept")
		return true
	})
	if err != nil {
		return 0, err
	}
	rc.Logger.Info().Int64("estimate", total).Msg("total estimated")
	return total, nil
}

// fetchAll runs every unit on a bounded pool and merges the results in
// (concept, bucket) order, dropping repeated work IDs and assigning Seq.
func (d *Driver) fetchAll(ctx context.Context, rc *RunContext, concepts []string, r types.DateRange, rep *Report) ([]types.Paper, error) {
	defer rc.Metrics.ObserveStage("fetch", time.Now())

	units := Units(concepts, r, d.Config.BucketDays)
	pub := rc.StartProgress(rep.Estimate, d.Config.ProgressBuffer)

	done := make(chan progress.Snapshot, 1)
	go func() {
		// Keeps draining after cancellation so the last snapshot survives.
		done <- progress.Consume(context.WithoutCancel(ctx), pub.Events(), d.Sink)
	}()

	workers := d.Config.FetchWorkers
	if workers <= 0 {
		workers = 1
	}
	perUnit := make([][]types.Paper, len(units))
	skipped := make([]*types.FetchError, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range units {
		g.Go(func() error {
			papers, err := d.fetchUnit(gctx, rc, u)
			if err != nil {
				var fe *types.FetchError
				if d.policy() != types.FetchSkip || gctx.Err() != nil || !errors.As(err, &fe) {
					rc.Metrics.RecordUnit(observability.OutcomeFailed)
					return err
				}
				skipped[i] = fe
				rc.Metrics.RecordUnit(observability.OutcomeSkipped)
				ul := observability.WithUnit(rc.Logger, u.Concept, u.Range)
				ul.Warn().Err(err).Msg("skipping unit")
			}
			perUnit[i] = papers
			rc.Metrics.RecordFetched(len(papers))
			_, err = pub.Complete(gctx, int64(len(papers)))
			return err
		})
	}
	err := g.Wait()
	pub.Close()
	<-done

	for _, fe := range skipped {
		if fe != nil {
			rep.Skipped = append(rep.Skipped, fe)
		}
	}
	if err != nil {
		return nil, err
	}

	var merged []types.Paper
	seen := make(map[string]bool)
	for _, papers := range perUnit {
		rep.Fetched += int64(len(papers))
		for _, p := range papers {
			key := p.ID
			if key == "" {
				key = p.DOI
			}
			if key != "" && seen[key] {
				rep.Duplicates++
				continue
			}
			seen[key] = true
			p.Seq = len(merged)
			merged = append(merged, p)
		}
	}
	rep.Unique = len(merged)
	rc.Metrics.RecordExcluded(observability.ReasonDuplicate, rep.Duplicates)
	rc.Logger.Info().
		Int64("fetched", rep.Fetched).
		Int("unique", rep.Unique).
		Int("skipped_units", len(rep.Skipped)).
		Msg("fetch complete")
	return merged, nil
}

// fetchUnit fetches one unit, retrying under the retry policy.
func (d *Driver) fetchUnit(ctx context.Context, rc *RunContext, u fetch.Unit) ([]types.Paper, error) {
	logger := observability.WithUnit(rc.Logger, u.Concept, u.Range)
	delay := d.RetryDelay
	for attempt := 0; ; attempt++ {
		logger.Info().Int("attempt", attempt+1).Msg("fetching papers")
		papers, err := d.Fetcher.Fetch(ctx, u)
		if err == nil {
			if attempt > 0 {
				rc.Metrics.RecordUnit(observability.OutcomeRetried)
			}
			rc.Metrics.RecordUnit(observability.OutcomeOK)
			logger.Debug().Int("papers", len(papers)).Msg("unit fetched")
			return papers, nil
		}
		if d.policy() != types.FetchRetry || attempt >= d.Config.FetchRetries || ctx.Err() != nil {
			return nil, err
		}
		logger.Warn().Err(err).Int("attempt", attempt+1).Msg("fetch failed; retrying")
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (d *Driver) policy() types.FetchPolicy {
	if d.Config.FetchPolicy == "" {
		return types.FetchAbort
	}
	return d.Config.FetchPolicy
}

// Units lists the fetch units of a run ordered by concept, then bucket.
func Units(concepts []string, r types.DateRange, days int) []fetch.Unit {
	var units []fetch.Unit
	for ci, c := range concepts {
		bi := 0
		for b := range daterange.Partition(r, days) {
			units = append(units, fetch.Unit{ConceptIndex: ci, BucketIndex: bi, Concept: c, Range: b})
			bi++
		}
	}
	return units
}

func (d *Driver) startRun(ctx context.Context, rc *RunContext, req Request, r types.DateRange) {
	if d.Store == nil {
		return
	}
	err := d.Store.StartRun(context.WithoutCancel(ctx), store.Run{
		ID:        rc.ID,
		StartedAt: rc.Started,
		Concepts:  req.Concepts,
		From:      r.Start.Format(types.DateLayout),
		To:        r.End.Format(types.DateLayout),
		Target:    req.Target,
	})
	if err != nil {
		rc.Logger.Warn().Err(err).Msg("recording run start")
	}
}

func (d *Driver) finishRun(ctx context.Context, rc *RunContext, res *Result, runErr error) {
	if d.Store == nil {
		return
	}
	// The run record is written even when ctx was cancelled.
	ctx = context.WithoutCancel(ctx)

	status := store.StatusCompleted
	if runErr != nil {
		status = store.StatusFailed
	} else if err := d.Store.SaveResults(ctx, rc.ID, res.Rows()); err != nil {
		rc.Logger.Warn().Err(err).Msg("saving results")
	}

	skipped := make([]string, len(res.Report.Skipped))
	for i, fe := range res.Report.Skipped {
		skipped[i] = fmt.Sprintf("%s@%s", fe.Concept, fe.Range)
	}
	err := d.Store.FinishRun(ctx, rc.ID, store.Outcome{
		Status:   status,
		Estimate: res.Report.Estimate,
		Fetched:  res.Report.Progress.Fetched,
		Results:  res.Report.Results,
		Skipped:  skipped,
		Err:      runErr,
	})
	if err != nil {
		rc.Logger.Warn().Err(err).Msg("recording run finish")
	}
}
