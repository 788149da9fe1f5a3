// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DefaultSetter is the part of *viper.Viper that SetDefaults needs.
type DefaultSetter interface {
	SetDefault(key string, value any)
}

// SetDefaults registers every DefaultConfig value under its configuration
// key. Keys must be registered for environment variables to reach
// Unmarshal, so empty credentials are registered too.
func SetDefaults(v DefaultSetter) {
	d := DefaultConfig()

	v.SetDefault("openalex.timeout", d.OpenAlex.Timeout)
	v.SetDefault("openalex.user_agent", d.OpenAlex.UserAgent)
	v.SetDefault("openalex.base_url", d.OpenAlex.BaseURL)
	v.SetDefault("openalex.email", d.OpenAlex.Email)
	v.SetDefault("openalex.per_page", d.OpenAlex.PerPage)
	v.SetDefault("openalex.unit_cap", d.OpenAlex.UnitCap)
	v.SetDefault("openalex.rate_limit", d.OpenAlex.RateLimit)
	v.SetDefault("openalex.burst", d.OpenAlex.Burst)
	v.SetDefault("openalex.max_retries", d.OpenAlex.MaxRetries)

	v.SetDefault("classify.base_url", d.Classify.BaseURL)
	v.SetDefault("classify.api_key", d.Classify.APIKey)
	v.SetDefault("classify.max_retries", d.Classify.MaxRetries)
	v.SetDefault("classify.stages.stage1", d.Classify.Stages.Stage1)
	v.SetDefault("classify.stages.stage2", d.Classify.Stages.Stage2)
	v.SetDefault("classify.positive", d.Classify.Positive)
	v.SetDefault("classify.separator", d.Classify.Separator)
	v.SetDefault("classify.batch_size", d.Classify.BatchSize)
	v.SetDefault("classify.concurrency", d.Classify.Concurrency)

	v.SetDefault("embedding.base_url", d.Embedding.BaseURL)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)
	v.SetDefault("embedding.max_retries", d.Embedding.MaxRetries)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.concurrency", d.Embedding.Concurrency)
	v.SetDefault("embedding.cache", d.Embedding.Cache)

	v.SetDefault("relevance.terms", d.Relevance.Terms)
	v.SetDefault("relevance.min_matches", d.Relevance.MinMatches)

	v.SetDefault("pipeline.fetch_workers", d.Pipeline.FetchWorkers)
	v.SetDefault("pipeline.bucket_days", d.Pipeline.BucketDays)
	v.SetDefault("pipeline.fetch_policy", string(d.Pipeline.FetchPolicy))
	v.SetDefault("pipeline.fetch_retries", d.Pipeline.FetchRetries)
	v.SetDefault("pipeline.fetch_timeout", d.Pipeline.FetchTimeout)
	v.SetDefault("pipeline.classify_timeout", d.Pipeline.ClassifyTimeout)
	v.SetDefault("pipeline.embed_timeout", d.Pipeline.EmbedTimeout)
	v.SetDefault("pipeline.progress_buffer", d.Pipeline.ProgressBuffer)

	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.format", d.Output.Format)

	v.SetDefault("store.enabled", d.Store.Enabled)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}
