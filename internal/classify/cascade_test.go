// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Robert-T119/Paper-Finder/internal/observability"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// keywordBackend labels an input positive when it contains the model's
// keyword, and records every call.
type keywordBackend struct {
	mu       sync.Mutex
	keywords map[string]string
	calls    map[string][][]string
	fail     string
	short    bool
	delay    time.Duration
}

func (b *keywordBackend) Classify(ctx context.Context, model string, inputs []string) ([]types.Label, error) {
	b.mu.Lock()
	if b.calls == nil {
		b.calls = map[string][][]string{}
	}
	b.calls[model] = append(b.calls[model], inputs)
	b.mu.Unlock()

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if model == b.fail {
		return nil, errors.New("model overloaded")
	}
	labels := make([]types.Label, len(inputs))
	for i, in := range inputs {
		labels[i] = types.LabelNegative
		if strings.Contains(in, b.keywords[model]) {
			labels[i] = types.LabelPositive
		}
	}
	if b.short {
		labels = labels[:len(labels)-1]
	}
	return labels, nil
}

func (b *keywordBackend) inputs(model string) []string {
	var out []string
	for _, batch := range b.calls[model] {
		out = append(out, batch...)
	}
	return out
}

var stages = types.StageModels{Stage1: "m1", Stage2: "m2"}

func papers(texts ...string) []types.ClassifiedPaper {
	out := make([]types.ClassifiedPaper, len(texts))
	for i, s := range texts {
		out[i] = types.ClassifiedPaper{Paper: types.Paper{ID: fmt.Sprintf("W%d", i)}, Cleaned: s}
	}
	return out
}

func newCascade(b Backend) *Cascade {
	return &Cascade{Backend: b, Stages: stages, BatchSize: 2, Concurrency: 3, Logger: zerolog.Nop()}
}

func TestCascade_Stage2OnlyOnPositives(t *testing.T) {
	b := &keywordBackend{keywords: map[string]string{"m1": "sofc", "m2": "cathode"}}
	c := newCascade(b)
	c.Metrics = observability.NewMetrics()

	in := papers("sofc cathode", "battery", "sofc anode", "pem cathode", "sofc cathode stack")
	res, err := c.Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Stage1, 5)
	for i, p := range res.Stage1 {
		require.NotNil(t, p.Stage1)
		assert.Nil(t, p.Stage2, "stage-1 view carries no stage-2 label")
		assert.Equal(t, in[i].ID, p.ID, "input order preserved")
	}
	assert.Equal(t, types.LabelNegative, *res.Stage1[1].Stage1)

	assert.ElementsMatch(t, []string{"sofc cathode", "sofc anode", "sofc cathode stack"}, b.inputs("m2"),
		"stage 2 sees only stage-1 positives")

	require.Len(t, res.Passed, 3)
	assert.Equal(t, []string{"W0", "W2", "W4"}, []string{res.Passed[0].ID, res.Passed[1].ID, res.Passed[2].ID})
	assert.Equal(t, types.LabelPositive, *res.Passed[0].Stage2)
	assert.Equal(t, types.LabelNegative, *res.Passed[1].Stage2)
	assert.Equal(t, "sofc anode", res.Passed[1].Cleaned, "text is kept")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Metrics.Excluded.WithLabelValues(observability.ReasonStage1)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Metrics.Classifications.WithLabelValues(Stage1, "positive")))
}

func TestCascade_BatchingDoesNotChangeLabels(t *testing.T) {
	texts := make([]string, 23)
	for i := range texts {
		texts[i] = fmt.Sprintf("paper %d", i)
		if i%3 == 0 {
			texts[i] += " sofc"
		}
	}
	run := func(batch, conc int) []types.Label {
		b := &keywordBackend{keywords: map[string]string{"m1": "sofc", "m2": "paper"}}
		c := newCascade(b)
		c.BatchSize, c.Concurrency = batch, conc
		res, err := c.Run(context.Background(), papers(texts...))
		require.NoError(t, err)
		out := make([]types.Label, len(res.Stage1))
		for i, p := range res.Stage1 {
			out[i] = *p.Stage1
		}
		return out
	}

	want := run(1, 1)
	for _, tc := range [][2]int{{2, 4}, {5, 2}, {23, 1}, {100, 8}} {
		assert.Equal(t, want, run(tc[0], tc[1]), "batch=%d concurrency=%d", tc[0], tc[1])
	}
}

func TestCascade_NoPositivesSkipsStage2(t *testing.T) {
	b := &keywordBackend{keywords: map[string]string{"m1": "sofc"}}
	res, err := newCascade(b).Run(context.Background(), papers("a", "b", "c"))
	require.NoError(t, err)
	assert.Len(t, res.Stage1, 3)
	assert.Empty(t, res.Passed)
	assert.Empty(t, b.calls["m2"])
}

func TestCascade_EmptyInput(t *testing.T) {
	b := &keywordBackend{}
	res, err := newCascade(b).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Stage1)
	assert.Empty(t, b.calls)
}

func TestCascade_Errors(t *testing.T) {
	tests := []struct {
		name      string
		backend   *keywordBackend
		wantStage string
		wantModel string
	}{
		{"stage 1 failure", &keywordBackend{keywords: map[string]string{"m1": "x"}, fail: "m1"}, Stage1, "m1"},
		{"stage 2 failure", &keywordBackend{keywords: map[string]string{"m1": "x"}, fail: "m2"}, Stage2, "m2"},
		{"length mismatch", &keywordBackend{keywords: map[string]string{"m1": "x"}, short: true}, Stage1, "m1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newCascade(tt.backend).Run(context.Background(), papers("x1", "x2", "x3"))
			require.Error(t, err)
			assert.Empty(t, res.Stage1, "no partial result")
			assert.ErrorIs(t, err, types.ErrClassification)

			var ce *types.ClassificationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantStage, ce.Stage)
			assert.Equal(t, tt.wantModel, ce.ModelID)
			assert.NotEmpty(t, ce.PaperIDs)
		})
	}
}

func TestCascade_BatchTimeout(t *testing.T) {
	b := &keywordBackend{keywords: map[string]string{"m1": "x"}, delay: 200 * time.Millisecond}
	c := newCascade(b)
	c.Timeout = 10 * time.Millisecond

	_, err := c.Run(context.Background(), papers("x"))
	assert.ErrorIs(t, err, types.ErrClassification)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCascade_CustomPositive(t *testing.T) {
	b := &keywordBackend{keywords: map[string]string{"m1": "x", "m2": "x"}}
	c := newCascade(b)
	c.Positive = types.LabelNegative

	res, err := c.Run(context.Background(), papers("x", "y"))
	require.NoError(t, err)
	require.Len(t, res.Passed, 1)
	assert.Equal(t, "W1", res.Passed[0].ID)
}
