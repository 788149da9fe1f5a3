package types

import (
	"fmt"
	"time"
)

// Defaults shared by DefaultConfig and the CLI's viper defaults.
const (
	DefaultUserAgent       = "paper-finder/0.1"
	DefaultHTTPTimeout     = 60 * time.Second
	DefaultOpenAlexBaseURL = "https://api.openalex.org"
	DefaultPerPage         = 200
	DefaultUnitCap         = 100000
	DefaultOpenAIBaseURL   = "https://api.openai.com/v1"
	DefaultEmbeddingModel  = "text-embedding-ada-002"
	DefaultStage1Model     = "ada:ft-personal-2023-07-29-19-02-14"
	DefaultStage2Model     = "ada:ft-personal-2023-07-27-12-26-20"
	DefaultPromptSeparator = "\n\n###\n\n"
	DefaultOutputPath      = "output.csv"
	DefaultStorePath       = "paper-finder.db"
)

// HTTPConfig holds shared HTTP settings used by every remote backend.
type HTTPConfig struct {
	// Timeout is the HTTP client timeout for a single request.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `mapstructure:"user_agent" json:"user_agent" yaml:"user_agent"`
}

// OpenAlexConfig holds settings for the search backend.
type OpenAlexConfig struct {
	HTTPConfig `mapstructure:",squash" yaml:",inline"`

	BaseURL string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`

	// Email is sent as the mailto parameter for polite pool access.
	Email string `mapstructure:"email" json:"email,omitempty" yaml:"email,omitempty"`

	// PerPage is the page size requested from the API (max 200).
	PerPage int `mapstructure:"per_page" json:"per_page" yaml:"per_page"`

	// UnitCap bounds the number of records fetched for one concept and date bucket.
	UnitCap int `mapstructure:"unit_cap" json:"unit_cap" yaml:"unit_cap"`

	// RateLimit is the sustained request rate in requests per second.
	RateLimit float64 `mapstructure:"rate_limit" json:"rate_limit" yaml:"rate_limit"`
	Burst     int     `mapstructure:"burst" json:"burst" yaml:"burst"`

	// MaxRetries bounds retries on HTTP 429/503.
	MaxRetries int `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
}

// AIConfig holds settings for an OpenAI-compatible API.
type AIConfig struct {
	BaseURL    string `mapstructure:"base_url" json:"base_url" yaml:"base_url"`
	APIKey     string `mapstructure:"api_key" json:"api_key,omitempty" yaml:"api_key,omitempty"`
	MaxRetries int    `mapstructure:"max_retries" json:"max_retries" yaml:"max_retries"`
}

// StageModels maps each cascade stage to the model that runs it.
type StageModels struct {
	Stage1 string `mapstructure:"stage1" json:"stage1" yaml:"stage1"`
	Stage2 string `mapstructure:"stage2" json:"stage2" yaml:"stage2"`
}

// ClassifyConfig holds settings for the classification cascade.
type ClassifyConfig struct {
	AIConfig `mapstructure:",squash" yaml:",inline"`

	Stages StageModels `mapstructure:"stages" json:"stages" yaml:"stages"`

	// Positive is the stage-1 label that admits a paper to stage 2.
	Positive string `mapstructure:"positive" json:"positive" yaml:"positive"`

	// Separator is appended to every prompt; fine-tuned classifiers were
	// trained with it as the end-of-prompt marker.
	Separator string `mapstructure:"separator" json:"separator" yaml:"separator"`

	BatchSize   int `mapstructure:"batch_size" json:"batch_size" yaml:"batch_size"`
	Concurrency int `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency"`
}

// EmbeddingConfig holds settings for the embedding backend.
type EmbeddingConfig struct {
	AIConfig `mapstructure:",squash" yaml:",inline"`

	Model       string `mapstructure:"model" json:"model" yaml:"model"`
	Concurrency int    `mapstructure:"concurrency" json:"concurrency" yaml:"concurrency"`

	// Cache stores embeddings in the SQLite store keyed by model and text.
	Cache bool `mapstructure:"cache" json:"cache" yaml:"cache"`
}

// RelevanceConfig configures the keyword relevance gate.
type RelevanceConfig struct {
	Terms      []string `mapstructure:"terms" json:"terms" yaml:"terms"`
	MinMatches int      `mapstructure:"min_matches" json:"min_matches" yaml:"min_matches"`
}

// FetchPolicy selects what the driver does with a failed fetch unit.
type FetchPolicy string

const (
	FetchAbort FetchPolicy = "abort"
	FetchSkip  FetchPolicy = "skip"
	FetchRetry FetchPolicy = "retry"
)

// PipelineConfig holds settings for the pipeline driver.
type PipelineConfig struct {
	// FetchWorkers bounds concurrent fetch units.
	FetchWorkers int `mapstructure:"fetch_workers" json:"fetch_workers" yaml:"fetch_workers"`

	// BucketDays is the partition granularity in days.
	BucketDays int `mapstructure:"bucket_days" json:"bucket_days" yaml:"bucket_days"`

	FetchPolicy  FetchPolicy `mapstructure:"fetch_policy" json:"fetch_policy" yaml:"fetch_policy"`
	FetchRetries int         `mapstructure:"fetch_retries" json:"fetch_retries" yaml:"fetch_retries"`

	// Per-call timeouts. Zero disables the timeout.
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout" json:"fetch_timeout" yaml:"fetch_timeout"`
	ClassifyTimeout time.Duration `mapstructure:"classify_timeout" json:"classify_timeout" yaml:"classify_timeout"`
	EmbedTimeout    time.Duration `mapstructure:"embed_timeout" json:"embed_timeout" yaml:"embed_timeout"`

	// ProgressBuffer is the capacity of the progress event channel.
	ProgressBuffer int `mapstructure:"progress_buffer" json:"progress_buffer" yaml:"progress_buffer"`
}

// OutputConfig selects the export file.
type OutputConfig struct {
	Path string `mapstructure:"path" json:"path" yaml:"path"`
	// Format is csv, json, or yaml; empty means infer from the extension.
	Format string `mapstructure:"format" json:"format" yaml:"format"`
}

// StoreConfig configures the SQLite run store.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" json:"path" yaml:"path"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	// Level is trace, debug, info, warn, or error.
	Level string `mapstructure:"level" json:"level" yaml:"level"`
	// Format is json or console.
	Format string `mapstructure:"format" json:"format" yaml:"format"`
	// Output is stdout or stderr.
	Output string `mapstructure:"output" json:"output" yaml:"output"`
}

// MetricsConfig configures run metrics output.
type MetricsConfig struct {
	// Textfile, when set, receives the run's metrics in Prometheus text format.
	Textfile string `mapstructure:"textfile" json:"textfile,omitempty" yaml:"textfile,omitempty"`
}

// FinderConfig groups all configuration for one paper-finder run.
type FinderConfig struct {
	OpenAlex  OpenAlexConfig  `mapstructure:"openalex" json:"openalex" yaml:"openalex"`
	Classify  ClassifyConfig  `mapstructure:"classify" json:"classify" yaml:"classify"`
	Embedding EmbeddingConfig `mapstructure:"embedding" json:"embedding" yaml:"embedding"`
	Relevance RelevanceConfig `mapstructure:"relevance" json:"relevance" yaml:"relevance"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" json:"pipeline" yaml:"pipeline"`
	Output    OutputConfig    `mapstructure:"output" json:"output" yaml:"output"`
	Store     StoreConfig     `mapstructure:"store" json:"store" yaml:"store"`
	Logging   LoggingConfig   `mapstructure:"logging" json:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
}

// DefaultRelevanceTerms targets solid oxide fuel cell research.
var DefaultRelevanceTerms = []string{
	"solid oxide",
	"fuel cell",
	"sofc",
	"electrolyte",
	"cathode",
	"anode",
	"perovskite",
	"electrochemical",
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() FinderConfig {
	return FinderConfig{
		OpenAlex: OpenAlexConfig{
			HTTPConfig: HTTPConfig{Timeout: DefaultHTTPTimeout, UserAgent: DefaultUserAgent},
			BaseURL:    DefaultOpenAlexBaseURL,
			PerPage:    DefaultPerPage,
			UnitCap:    DefaultUnitCap,
			RateLimit:  10,
			Burst:      10,
			MaxRetries: 5,
		},
		Classify: ClassifyConfig{
			AIConfig:    AIConfig{BaseURL: DefaultOpenAIBaseURL, MaxRetries: 3},
			Stages:      StageModels{Stage1: DefaultStage1Model, Stage2: DefaultStage2Model},
			Positive:    string(LabelPositive),
			Separator:   DefaultPromptSeparator,
			BatchSize:   20,
			Concurrency: 4,
		},
		Embedding: EmbeddingConfig{
			AIConfig:    AIConfig{BaseURL: DefaultOpenAIBaseURL, MaxRetries: 3},
			Model:       DefaultEmbeddingModel,
			Concurrency: 4,
			Cache:       true,
		},
		Relevance: RelevanceConfig{
			Terms:      append([]string(nil), DefaultRelevanceTerms...),
			MinMatches: 1,
		},
		Pipeline: PipelineConfig{
			FetchWorkers:    4,
			BucketDays:      1,
			FetchPolicy:     FetchAbort,
			FetchRetries:    2,
			FetchTimeout:    2 * time.Minute,
			ClassifyTimeout: 2 * time.Minute,
			EmbedTimeout:    time.Minute,
			ProgressBuffer:  16,
		},
		Output:  OutputConfig{Path: DefaultOutputPath},
		Store:   StoreConfig{Enabled: true, Path: DefaultStorePath},
		Logging: LoggingConfig{Level: "info", Format: "console", Output: "stderr"},
	}
}

// Validate reports configuration values the pipeline cannot run with.
func (c FinderConfig) Validate() error {
	if c.Classify.Stages.Stage1 == "" || c.Classify.Stages.Stage2 == "" {
		return fmt.Errorf("classify.stages: both stage1 and stage2 model IDs are required")
	}
	if c.Classify.Positive == "" {
		return fmt.Errorf("classify.positive: label must not be empty")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model: required")
	}
	switch c.Pipeline.FetchPolicy {
	case FetchAbort, FetchSkip, FetchRetry:
	default:
		return fmt.Errorf("pipeline.fetch_policy %q: use abort, skip, or retry", c.Pipeline.FetchPolicy)
	}
	if c.Pipeline.BucketDays < 1 {
		return fmt.Errorf("pipeline.bucket_days must be at least 1, got %d", c.Pipeline.BucketDays)
	}
	if c.OpenAlex.PerPage < 1 || c.OpenAlex.PerPage > 200 {
		return fmt.Errorf("openalex.per_page must be between 1 and 200, got %d", c.OpenAlex.PerPage)
	}
	return nil
}
