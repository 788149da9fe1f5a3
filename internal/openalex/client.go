// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package openalex implements the fetch.Backend interface against the
// OpenAlex Works API: concept and publication-date filters, cursor paging,
// and count-only queries.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/Robert-T119/Paper-Finder/internal/fetch"
	"github.com/Robert-T119/Paper-Finder/internal/httputil"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

const (
	// maxPerPage is the largest page size OpenAlex accepts.
	maxPerPage = 200

	doiPrefix = "https://doi.org/"

	// maxBody bounds how much of a response we decode.
	maxBody = 32 << 20
)

// Client queries the OpenAlex API.
type Client struct {
	HTTP    *http.Client
	BaseURL string

	// Email is sent as the mailto parameter for polite pool access.
	Email     string
	UserAgent string

	// Limiter paces requests. Nil disables pacing.
	Limiter *rate.Limiter

	// MaxRetries bounds retries on 429/503; zero uses the httputil default.
	MaxRetries int
}

var _ fetch.Backend = (*Client)(nil)

// New builds a client from configuration.
func New(cfg types.OpenAlexConfig) *Client {
	c := &Client{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		Email:      cfg.Email,
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
	}
	if c.BaseURL == "" {
		c.BaseURL = types.DefaultOpenAlexBaseURL
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// Count returns meta.count for the query without fetching records.
func (c *Client) Count(ctx context.Context, q fetch.Query) (int, error) {
	params := c.baseParams(q)
	params.Set("per_page", "1")
	params.Set("select", "id")

	var resp worksResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return 0, err
	}
	return resp.Meta.Count, nil
}

// SearchPage returns one page of works. An empty cursor starts a new
// listing.
func (c *Client) SearchPage(ctx context.Context, q fetch.Query, cursor string) (fetch.Page, error) {
	params := c.baseParams(q)
	params.Set("sort", "publication_date:desc")
	params.Set("per_page", strconv.Itoa(clampPerPage(q.PerPage)))
	if cursor == "" {
		cursor = "*"
	}
	params.Set("cursor", cursor)

	var resp worksResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return fetch.Page{}, err
	}

	page := fetch.Page{
		Records:    make([]types.RawWork, 0, len(resp.Results)),
		NextCursor: resp.Meta.NextCursor,
		Total:      resp.Meta.Count,
	}
	for _, w := range resp.Results {
		page.Records = append(page.Records, w.toRaw())
	}
	page.HasMore = page.NextCursor != "" && len(resp.Results) > 0
	return page, nil
}

func (c *Client) baseParams(q fetch.Query) url.Values {
	params := url.Values{}
	params.Set("filter", buildFilter(q))
	if c.Email != "" {
		params.Set("mailto", c.Email)
	}
	return params
}

// buildFilter renders the concept and inclusive publication-date filter.
func buildFilter(q fetch.Query) string {
	filters := []string{"concept.id:" + NormalizeConceptID(q.Concept)}
	if !q.Range.Start.IsZero() {
		filters = append(filters, "from_publication_date:"+q.Range.Start.Format(types.DateLayout))
	}
	if !q.Range.End.IsZero() {
		filters = append(filters, "to_publication_date:"+q.Range.End.Format(types.DateLayout))
	}
	return strings.Join(filters, ",")
}

func clampPerPage(n int) int {
	switch {
	case n <= 0:
		return 25
	case n > maxPerPage:
		return maxPerPage
	}
	return n
}

func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	reqURL := c.BaseURL + "/works?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.HTTP, req, c.MaxRetries)
	if err != nil {
		return fmt.Errorf("OpenAlex API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("OpenAlex API returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
		return fmt.Errorf("parsing OpenAlex response: %w", err)
	}
	return nil
}

// OpenAlex API JSON structures.
type worksResponse struct {
	Meta    worksMeta `json:"meta"`
	Results []work    `json:"results"`
}

type worksMeta struct {
	Count      int    `json:"count"`
	PerPage    int    `json:"per_page"`
	NextCursor string `json:"next_cursor"`
}

type work struct {
	ID                    string           `json:"id"`
	DOI                   string           `json:"doi"`
	Title                 string           `json:"title"`
	DisplayName           string           `json:"display_name"`
	PublicationDate       string           `json:"publication_date"`
	Authorships           []authorship     `json:"authorships"`
	Concepts              []concept        `json:"concepts"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

type authorship struct {
	Author struct {
		ID          string `json:"id"`
		DisplayName string `json:"display_name"`
	} `json:"author"`
}

type concept struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

func (w work) toRaw() types.RawWork {
	raw := types.RawWork{
		ID:              w.ID,
		DOI:             strings.TrimPrefix(w.DOI, doiPrefix),
		Title:           w.Title,
		PublicationDate: w.PublicationDate,
		AbstractIndex:   w.AbstractInvertedIndex,
	}
	if raw.Title == "" {
		raw.Title = w.DisplayName
	}
	for _, a := range w.Authorships {
		if a.Author.DisplayName != "" {
			raw.Authors = append(raw.Authors, a.Author.DisplayName)
		}
	}
	for _, c := range w.Concepts {
		if c.ID != "" {
			raw.Concepts = append(raw.Concepts, NormalizeConceptID(c.ID))
		}
	}
	return raw
}
