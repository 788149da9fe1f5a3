// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns text into embedding vectors through an
// OpenAI-compatible /embeddings endpoint, with an optional SQLite cache.
package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Robert-T119/Paper-Finder/internal/httputil"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// Embedder maps a text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Client calls an OpenAI-compatible embeddings API.
type Client struct {
	HTTP       *http.Client
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
}

var _ Embedder = (*Client)(nil)

// NewClient builds a client from configuration.
func NewClient(cfg types.EmbeddingConfig, timeout time.Duration) *Client {
	return &Client{
		HTTP:       &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed returns the embedding of text. Newlines are replaced with spaces
// before the request.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	req := embeddingRequest{Model: c.Model, Input: strings.ReplaceAll(text, "\n", " ")}

	var resp embeddingResponse
	if err := httputil.PostJSON(ctx, c.HTTP, c.BaseURL+"/embeddings", c.APIKey, req, &resp, c.MaxRetries); err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data in response")
	}
	return resp.Data[0].Embedding, nil
}

// Cache stores vectors keyed by model and text. *store.Store implements it.
type Cache interface {
	GetEmbedding(ctx context.Context, model, text string) ([]float64, bool, error)
	PutEmbedding(ctx context.Context, model, text string, vec []float64) error
}

// CachedEmbedder consults Cache before calling Next and stores fresh
// vectors. Cache failures are logged and never fail the embedding.
type CachedEmbedder struct {
	Next   Embedder
	Cache  Cache
	Model  string
	Logger zerolog.Logger
}

// Embed returns the cached vector for text or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vec, ok, err := c.Cache.GetEmbedding(ctx, c.Model, text)
	if err != nil {
		c.Logger.Warn().Err(err).Msg("embedding cache read failed")
	} else if ok {
		return vec, nil
	}

	vec, err = c.Next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.PutEmbedding(ctx, c.Model, text, vec); err != nil {
		c.Logger.Warn().Err(err).Msg("embedding cache write failed")
	}
	return vec, nil
}
