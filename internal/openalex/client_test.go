// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package openalex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Robert-T119/Paper-Finder/internal/fetch"
	"github.com/Robert-T119/Paper-Finder/internal/httputil"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

func day(s string) time.Time {
	t, _ := time.Parse(types.DateLayout, s)
	return t
}

func testQuery() fetch.Query {
	return fetch.Query{
		Concept: "https://openalex.org/C192562407",
		Range:   types.DateRange{Start: day("2023-01-01"), End: day("2023-01-03")},
		PerPage: 2,
	}
}

const pageOne = `{
  "meta": {"count": 3, "per_page": 2, "next_cursor": "abc"},
  "results": [
    {
      "id": "https://openalex.org/W1",
      "doi": "https://doi.org/10.1000/one",
      "title": "First",
      "publication_date": "2023-01-03",
      "authorships": [{"author": {"display_name": "Ada Lovelace"}}, {"author": {"display_name": ""}}],
      "concepts": [{"id": "https://openalex.org/C192562407", "display_name": "Materials science"}],
      "abstract_inverted_index": {"hello": [0], "world": [1]}
    },
    {
      "id": "https://openalex.org/W2",
      "doi": null,
      "title": null,
      "display_name": "Second",
      "publication_date": "2023-01-02"
    }
  ]
}`

const pageTwo = `{
  "meta": {"count": 3, "per_page": 2, "next_cursor": null},
  "results": [{"id": "https://openalex.org/W3", "title": "Third", "publication_date": "2023-01-01"}]
}`

func TestSearchPage_RequestAndDecode(t *testing.T) {
	var got url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works", r.URL.Path)
		assert.Equal(t, "paper-finder/test", r.Header.Get("User-Agent"))
		got = r.URL.Query()
		w.Write([]byte(pageOne))
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), BaseURL: ts.URL, Email: "me@example.org", UserAgent: "paper-finder/test"}
	page, err := c.SearchPage(context.Background(), testQuery(), "")
	require.NoError(t, err)

	assert.Equal(t, "concept.id:C192562407,from_publication_date:2023-01-01,to_publication_date:2023-01-03", got.Get("filter"))
	assert.Equal(t, "*", got.Get("cursor"))
	assert.Equal(t, "2", got.Get("per_page"))
	assert.Equal(t, "publication_date:desc", got.Get("sort"))
	assert.Equal(t, "me@example.org", got.Get("mailto"))

	assert.True(t, page.HasMore)
	assert.Equal(t, "abc", page.NextCursor)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Records, 2)

	first := page.Records[0]
	assert.Equal(t, "https://openalex.org/W1", first.ID)
	assert.Equal(t, "10.1000/one", first.DOI)
	assert.Equal(t, []string{"Ada Lovelace"}, first.Authors)
	assert.Equal(t, []string{"C192562407"}, first.Concepts)
	assert.Equal(t, map[string][]int{"hello": {0}, "world": {1}}, first.AbstractIndex)

	second := page.Records[1]
	assert.Empty(t, second.DOI)
	assert.Equal(t, "Second", second.Title, "display_name backs a missing title")
}

func TestSearchPage_DrainedThroughFetcher(t *testing.T) {
	var cursors []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		if cursor == "*" {
			w.Write([]byte(pageOne))
			return
		}
		w.Write([]byte(pageTwo))
	}))
	defer ts.Close()

	f := &fetch.Fetcher{Backend: &Client{HTTP: ts.Client(), BaseURL: ts.URL}, PerPage: 2}
	q := testQuery()
	papers, err := f.Fetch(context.Background(), fetch.Unit{Concept: q.Concept, Range: q.Range})
	require.NoError(t, err)

	assert.Equal(t, []string{"*", "abc"}, cursors)
	require.Len(t, papers, 3)
	assert.Equal(t, "hello world", papers[0].Abstract)
	assert.Equal(t, "Third", papers[2].Title)
}

func TestCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		assert.Empty(t, r.URL.Query().Get("cursor"))
		w.Write([]byte(`{"meta": {"count": 1234}, "results": [{"id": "W1"}]}`))
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), BaseURL: ts.URL}
	n, err := c.Count(context.Background(), testQuery())
	require.NoError(t, err)
	assert.Equal(t, 1234, n)
}

func TestGet_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "boom", "HTTP 500: boom"},
		{"bad json", http.StatusOK, "{not json", "parsing OpenAlex response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			c := &Client{HTTP: ts.Client(), BaseURL: ts.URL}
			_, err := c.SearchPage(context.Background(), testQuery(), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGet_RetriesRateLimited(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(pageTwo))
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), BaseURL: ts.URL, MaxRetries: 2, Limiter: rate.NewLimiter(rate.Inf, 1)}
	page, err := c.SearchPage(context.Background(), testQuery(), "")
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.False(t, page.HasMore)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGet_LimiterHonoursContext(t *testing.T) {
	c := &Client{HTTP: http.DefaultClient, BaseURL: "http://127.0.0.1:0", Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}
	require.True(t, c.Limiter.Allow(), "drain the single token")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Count(ctx, testQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestNew(t *testing.T) {
	cfg := types.DefaultConfig().OpenAlex
	cfg.BaseURL = "https://example.org/api/"
	c := New(cfg)
	assert.Equal(t, "https://example.org/api", c.BaseURL)
	require.NotNil(t, c.Limiter)
	assert.Equal(t, rate.Limit(10), c.Limiter.Limit())

	cfg.RateLimit = 0
	cfg.BaseURL = ""
	c = New(cfg)
	assert.Nil(t, c.Limiter)
	assert.Equal(t, types.DefaultOpenAlexBaseURL, c.BaseURL)
}

func TestClampPerPage(t *testing.T) {
	assert.Equal(t, 25, clampPerPage(0))
	assert.Equal(t, 50, clampPerPage(50))
	assert.Equal(t, 200, clampPerPage(500))
}
