// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Robert-T119/Paper-Finder/internal/httputil"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// CompletionsClient classifies with fine-tuned completion models behind an
// OpenAI-compatible /completions endpoint. Each prompt is the input text
// followed by Separator; the model answers with a single label token.
type CompletionsClient struct {
	HTTP       *http.Client
	BaseURL    string
	APIKey     string
	Separator  string
	MaxRetries int
}

var _ Backend = (*CompletionsClient)(nil)

// NewCompletionsClient builds a client from configuration.
func NewCompletionsClient(cfg types.ClassifyConfig, timeout time.Duration) *CompletionsClient {
	return &CompletionsClient{
		HTTP:       &http.Client{Timeout: timeout},
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:     cfg.APIKey,
		Separator:  cfg.Separator,
		MaxRetries: cfg.MaxRetries,
	}
}

type completionRequest struct {
	Model       string   `json:"model"`
	Prompt      []string `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature float64  `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Index int    `json:"index"`
		Text  string `json:"text"`
	} `json:"choices"`
}

// Classify sends all inputs as one batched completion request.
func (c *CompletionsClient) Classify(ctx context.Context, modelID string, inputs []string) ([]types.Label, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	prompts := make([]string, len(inputs))
	for i, in := range inputs {
		prompts[i] = in + c.Separator
	}

	var resp completionResponse
	req := completionRequest{Model: modelID, Prompt: prompts, MaxTokens: 1}
	if err := httputil.PostJSON(ctx, c.HTTP, c.BaseURL+"/completions", c.APIKey, req, &resp, c.MaxRetries); err != nil {
		return nil, fmt.Errorf("completions request: %w", err)
	}

	if len(resp.Choices) != len(inputs) {
		return nil, fmt.Errorf("completions returned %d choices for %d prompts", len(resp.Choices), len(inputs))
	}
	labels := make([]types.Label, len(inputs))
	seen := make([]bool, len(inputs))
	for _, ch := range resp.Choices {
		if ch.Index < 0 || ch.Index >= len(inputs) || seen[ch.Index] {
			return nil, fmt.Errorf("completions returned unexpected choice index %d", ch.Index)
		}
		seen[ch.Index] = true
		labels[ch.Index] = types.Label(strings.TrimSpace(ch.Text))
	}
	return labels, nil
}
