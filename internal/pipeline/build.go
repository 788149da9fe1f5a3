// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/Robert-T119/Paper-Finder/internal/classify"
	"github.com/Robert-T119/Paper-Finder/internal/embed"
	"github.com/Robert-T119/Paper-Finder/internal/fetch"
	"github.com/Robert-T119/Paper-Finder/internal/openalex"
	"github.com/Robert-T119/Paper-Finder/internal/rank"
	"github.com/Robert-T119/Paper-Finder/internal/relevance"
	"github.com/Robert-T119/Paper-Finder/internal/store"
	"github.com/Robert-T119/Paper-Finder/pkg/types"
)

// NewFetcher builds the OpenAlex-backed fetcher.
func NewFetcher(cfg types.FinderConfig) *fetch.Fetcher {
	return &fetch.Fetcher{
		Backend:     openalex.New(cfg.OpenAlex),
		PerPage:     cfg.OpenAlex.PerPage,
		Cap:         cfg.OpenAlex.UnitCap,
		PageTimeout: cfg.Pipeline.FetchTimeout,
	}
}

// NewDriver wires the remote backends from configuration. st may be nil,
// in which case runs are not recorded and embeddings are not cached.
func NewDriver(cfg types.FinderConfig, st *store.Store, logger zerolog.Logger) *Driver {
	classifier := classify.NewCompletionsClient(cfg.Classify, cfg.Pipeline.ClassifyTimeout)

	var embedder embed.Embedder = embed.NewClient(cfg.Embedding, cfg.Pipeline.EmbedTimeout)
	if st != nil && cfg.Embedding.Cache {
		embedder = &embed.CachedEmbedder{
			Next:   embedder,
			Cache:  st,
			Model:  cfg.Embedding.Model,
			Logger: logger,
		}
	}

	d := &Driver{
		Fetcher:   NewFetcher(cfg),
		Relevance: relevance.FromConfig(cfg.Relevance),
		Cascade: &classify.Cascade{
			Backend:     classifier,
			Stages:      cfg.Classify.Stages,
			Positive:    types.Label(cfg.Classify.Positive),
			BatchSize:   cfg.Classify.BatchSize,
			Concurrency: cfg.Classify.Concurrency,
		},
		Ranker: &rank.Ranker{
			Embedder:    embedder,
			Concurrency: cfg.Embedding.Concurrency,
		},
		Config:          cfg.Pipeline,
		MetricsTextfile: cfg.Metrics.Textfile,
		RetryDelay:      time.Second,
		Logger:          logger,
	}
	if st != nil {
		d.Store = st
	}
	return d
}
