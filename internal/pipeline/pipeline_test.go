// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Robert-T119/Paper-Finder/internal/classify"
	"github.com/Robert-T119/Paper-Finder/internal/fetch"
	"github.com/Robert-T119/Paper-Finder/internal/progress"
	"github.com/Robert-T119/Paper-Finder/internal/rank"
	"github.com/Robert-T119/Paper-Finder/internal/relevance"
	"github.com/Robert-T119/Paper-Finder/internal/store"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// fakeSearch serves fixed records per concept and day.
type fakeSearch struct {
	mu    sync.Mutex
	data  map[string]map[string][]types.RawWork
	fails map[string]int // concept@day -> failures left; -1 fails forever
	extra int            // added to every count
	// countFail names a concept whose count query fails.
	countFail string
	calls     int
}

func (f *fakeSearch) records(q fetch.Query) []types.RawWork {
	var out []types.RawWork
	for d := q.Range.Start; !d.After(q.Range.End); d = d.AddDate(0, 0, 1) {
		out = append(out, f.data[q.Concept][d.Format(types.DateLayout)]...)
	}
	return out
}

func (f *fakeSearch) Count(_ context.Context, q fetch.Query) (int, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if q.Concept == f.countFail {
		return 0, errors.New("count unavailable")
	}
	return len(f.records(q)) + f.extra, nil
}

func (f *fakeSearch) SearchPage(ctx context.Context, q fetch.Query, _ string) (fetch.Page, error) {
	f.mu.Lock()
	f.calls++
	key := q.Concept + "@" + q.Range.String()
	left, ok := f.fails[key]
	if ok && left != 0 {
		if left > 0 {
			f.fails[key] = left - 1
		}
		f.mu.Unlock()
		return fetch.Page{}, errors.New("backend unavailable")
	}
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fetch.Page{}, err
	}
	return fetch.Page{Records: f.records(q)}, nil
}

// keywordLabels labels positive when the input contains the model's word.
type keywordLabels struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (k *keywordLabels) Classify(_ context.Context, model string, inputs []string) ([]types.Label, error) {
	k.mu.Lock()
	k.calls++
	k.mu.Unlock()
	if k.fail {
		return nil, errors.New("model unavailable")
	}
	word := map[string]string{"m1": "cathode", "m2": "perovskite"}[model]
	out := make([]types.Label, len(inputs))
	for i, in := range inputs {
		out[i] = types.LabelNegative
		if strings.Contains(in, word) {
			out[i] = types.LabelPositive
		}
	}
	return out, nil
}

// axisEmbedder points "perovskite" texts and the target along x, the rest
// along y, and returns a zero vector for texts containing "void".
type axisEmbedder struct {
	mu    sync.Mutex
	calls int
}

func (e *axisEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	switch {
	case strings.Contains(text, "void"):
		return []float64{0, 0}, nil
	case text == "target" || strings.Contains(strings.ToLower(text), "perovskite"):
		return []float64{1, 0}, nil
	default:
		return []float64{0, 1}, nil
	}
}

func work(id, abstract string) types.RawWork {
	return types.RawWork{ID: id, DOI: "10.1/" + strings.ToLower(id), Title: "Title " + id, Abstract: abstract}
}

// corpus: two concepts over three days; W3 appears under both concepts.
func corpus() map[string]map[string][]types.RawWork {
	return map[string]map[string][]types.RawWork{
		"C1": {
			"2023-01-01": {work("W1", "Solid oxide fuel cell cathode study")},
			"2023-01-02": {work("W2", "Protein folding"), work("W3", "SOFC cathode with Perovskite layers")},
			"2023-01-03": {{ID: "W4", AbstractIndex: map[string][]int{"sofc": {0}, "anode": {1}}}},
		},
		"C2": {
			"2023-01-02": {work("W3", "SOFC cathode with Perovskite layers")},
			"2023-01-03": {work("W5", "perovskite cathode for solid oxide cells"), work("W6", "sofc cathode void")},
		},
	}
}

type harness struct {
	search    *fakeSearch
	labels    *keywordLabels
	embedder  *axisEmbedder
	store     *store.Store
	snapshots []progress.Snapshot
	driver    *Driver
}

func newHarness(t *testing.T, policy types.FetchPolicy) *harness {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "pf.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	h := &harness{
		search:   &fakeSearch{data: corpus(), fails: map[string]int{}},
		labels:   &keywordLabels{},
		embedder: &axisEmbedder{},
		store:    st,
	}
	h.driver = &Driver{
		Fetcher:   &fetch.Fetcher{Backend: h.search, PerPage: 10},
		Relevance: relevance.FromConfig(types.RelevanceConfig{}),
		Cascade: &classify.Cascade{
			Backend:   h.labels,
			Stages:    types.StageModels{Stage1: "m1", Stage2: "m2"},
			BatchSize: 2,
		},
		Ranker: &rank.Ranker{Embedder: h.embedder},
		Config: types.PipelineConfig{
			FetchWorkers:   3,
			BucketDays:     1,
			FetchPolicy:    policy,
			FetchRetries:   2,
			ProgressBuffer: 1,
		},
		Store:      st,
		Sink:       progress.SinkFunc(func(s progress.Snapshot) { h.snapshots = append(h.snapshots, s) }),
		RetryDelay: time.Millisecond,
		Logger:     zerolog.Nop(),
	}
	return h
}

var request = Request{Concepts: []string{"C1", "C2"}, From: "2023-01-01", To: "2023-01-03", Target: "target"}

func rankedIDs(res *Result) []string {
	var ids []string
	for _, r := range res.Ranked {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t, types.FetchAbort)

	res, err := h.driver.Run(context.Background(), request)
	require.NoError(t, err)

	// W3 and W5 score 1, W1 scores 0; W6 is degenerate.
	assert.Equal(t, []string{"W3", "W5", "W1"}, rankedIDs(res))
	assert.InDelta(t, 1.0, res.Ranked[0].Score, 1e-12)
	assert.InDelta(t, 0.0, res.Ranked[2].Score, 1e-12)
	require.NotNil(t, res.Ranked[0].Stage2)
	assert.Equal(t, types.LabelPositive, *res.Ranked[0].Stage2)
	assert.Equal(t, types.LabelNegative, *res.Ranked[2].Stage2)

	rep := res.Report
	assert.Equal(t, int64(7), rep.Estimate)
	assert.Equal(t, int64(7), rep.Fetched)
	assert.Equal(t, 6, rep.Unique)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, 1, rep.Irrelevant, "protein folding")
	assert.Equal(t, 1, rep.Stage1Negative, "W4 has no cathode")
	require.Len(t, rep.Excluded, 1)
	assert.Equal(t, "10.1/w6", rep.Excluded[0].PaperID)
	assert.Equal(t, 3, rep.Results)

	// One snapshot per unit, monotonic, ending at 100%.
	require.Len(t, h.snapshots, 6)
	for i := 1; i < len(h.snapshots); i++ {
		assert.GreaterOrEqual(t, h.snapshots[i].Fetched, h.snapshots[i-1].Fetched)
	}
	assert.Equal(t, 100.0, h.snapshots[5].Percent)

	stored, err := h.store.GetRun(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, stored.Status)
	assert.Equal(t, int64(7), stored.Fetched)
	rows, err := h.store.Results(context.Background(), rep.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Rows(), rows)
}

func TestRun_SeqFollowsConceptThenBucket(t *testing.T) {
	h := newHarness(t, types.FetchAbort)
	res, err := h.driver.Run(context.Background(), request)
	require.NoError(t, err)

	seq := map[string]int{}
	for _, p := range res.Stage1 {
		seq[p.ID] = p.Seq
	}
	assert.Less(t, seq["W1"], seq["W3"])
	assert.Less(t, seq["W3"], seq["W4"])
	assert.Less(t, seq["W4"], seq["W5"])
}

func TestRun_InvalidRangeFailsBeforeFetching(t *testing.T) {
	h := newHarness(t, types.FetchAbort)
	req := request
	req.From, req.To = "2023-01-05", "2023-01-01"

	res, err := h.driver.Run(context.Background(), req)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, types.ErrInvalidRange)
	assert.Zero(t, h.search.calls)

	runs, err := h.store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRun_AbortPolicy(t *testing.T) {
	h := newHarness(t, types.FetchAbort)
	h.search.fails["C2@2023-01-03"] = -1

	res, err := h.driver.Run(context.Background(), request)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrFetch)

	var fe *types.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "C2", fe.Concept)
	assert.Equal(t, "2023-01-03", fe.Range.String())

	require.NotNil(t, res)
	assert.Empty(t, res.Ranked)
	assert.Zero(t, h.labels.calls, "nothing is classified after an abort")

	stored, err := h.store.GetRun(context.Background(), res.Report.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "C2")
	assert.Equal(t, res.Report.Progress.Fetched, stored.Fetched, "partial progress is kept")
}

func TestRun_SkipPolicy(t *testing.T) {
	h := newHarness(t, types.FetchSkip)
	h.search.fails["C2@2023-01-03"] = -1

	res, err := h.driver.Run(context.Background(), request)
	require.NoError(t, err)

	require.Len(t, res.Report.Skipped, 1)
	assert.Equal(t, "C2", res.Report.Skipped[0].Concept)
	assert.Equal(t, []string{"W3", "W1"}, rankedIDs(res))
	assert.Len(t, h.snapshots, 6, "skipped units still report progress")

	stored, err := h.store.GetRun(context.Background(), res.Report.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"C2@2023-01-03"}, stored.Skipped)
}

func TestRun_RetryPolicy(t *testing.T) {
	h := newHarness(t, types.FetchRetry)
	h.search.fails["C1@2023-01-01"] = 2

	res, err := h.driver.Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, []string{"W3", "W5", "W1"}, rankedIDs(res))
	assert.Empty(t, res.Report.Skipped)

	h = newHarness(t, types.FetchRetry)
	h.search.fails["C1@2023-01-01"] = 3
	_, err = h.driver.Run(context.Background(), request)
	assert.ErrorIs(t, err, types.ErrFetch, "retries exhausted")
}

func TestRun_ClassificationErrorHalts(t *testing.T) {
	h := newHarness(t, types.FetchAbort)
	h.labels.fail = true

	res, err := h.driver.Run(context.Background(), request)
	assert.ErrorIs(t, err, types.ErrClassification)
	assert.Zero(t, h.embedder.calls, "no embedding before classification completes")
	assert.Equal(t, int64(7), res.Report.Fetched)
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t, types.FetchSkip)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.driver.Run(ctx, request)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)

	stored, err := h.store.GetRun(context.Background(), res.Report.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, stored.Status)
}

func TestRun_EstimateDrift(t *testing.T) {
	h := newHarness(t, types.FetchAbort)
	h.search.extra = -2

	res, err := h.driver.Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Report.Estimate, "two concepts, each undercounted by 2")
	assert.Equal(t, int64(7), res.Report.Fetched)
	assert.Equal(t, 100.0, res.Report.Progress.Percent, "percent clamps at 100")
}

func TestRun_CountFailureFollowsPolicy(t *testing.T) {
	h := newHarness(t, types.FetchSkip)
	h.search.countFail = "C2"

	res, err := h.driver.Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Report.Estimate, "C2 left out of the estimate")
	assert.Equal(t, int64(7), res.Report.Fetched)
	assert.Equal(t, 100.0, res.Report.Progress.Percent)

	h = newHarness(t, types.FetchAbort)
	h.search.countFail = "C2"
	_, err = h.driver.Run(context.Background(), request)
	var fe *types.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "C2", fe.Concept)
	assert.Equal(t, -1, fe.Page)
}

func TestRun_RequestValidation(t *testing.T) {
	h := newHarness(t, types.FetchAbort)

	req := request
	req.Concepts = nil
	_, err := h.driver.Run(context.Background(), req)
	assert.ErrorContains(t, err, "no concepts")

	req = request
	req.Target = ""
	_, err = h.driver.Run(context.Background(), req)
	assert.ErrorContains(t, err, "target")
}

func TestUnits(t *testing.T) {
	r := types.DateRange{
		Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	units := Units([]string{"C1", "C2"}, r, 2)
	require.Len(t, units, 6)

	var got []string
	for _, u := range units {
		got = append(got, u.String())
	}
	assert.Equal(t, []string{
		"C1@2023-01-01..2023-01-02", "C1@2023-01-03..2023-01-04", "C1@2023-01-05",
		"C2@2023-01-01..2023-01-02", "C2@2023-01-03..2023-01-04", "C2@2023-01-05",
	}, got)
	assert.Equal(t, 1, units[4].ConceptIndex)
	assert.Equal(t, 1, units[4].BucketIndex)
}
