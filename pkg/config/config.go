package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"aidigest/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Fetch struct {
		Timeout      time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Per-request timeout for source fetches"`
		Lookback     time.Duration `yaml:"lookback" json:"lookback" jsonschema:"default=24h,description=Articles older than this are dropped"`
		MaxPerSource int           `yaml:"max_per_source" json:"max_per_source" jsonschema:"default=10,description=Maximum articles kept per source after date filtering"`
		MaxWorkers   int           `yaml:"max_workers" json:"max_workers" jsonschema:"default=5,description=Maximum concurrent source fetches"`
		UserAgent    string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=AIDigest/1.0,description=User agent for HTTP requests"`
	} `yaml:"fetch" json:"fetch" jsonschema:"description=Fetch orchestrator configuration"`

	Sources []domain.Source `yaml:"sources" json:"sources" jsonschema:"description=Content sources to fetch"`

	Categories      []domain.CategoryDef `yaml:"categories" json:"categories" jsonschema:"description=Category definitions with priority and keywords"`
	DefaultCategory string               `yaml:"default_category" json:"default_category" jsonschema:"description=Category used when no definition scores above zero"`

	Dedup struct {
		DSN          string        `yaml:"dsn" json:"dsn" jsonschema:"default=file:aidigest.db?cache=shared&mode=rwc,description=SQLite connection string for the dedup store"`
		Retention    time.Duration `yaml:"retention" json:"retention" jsonschema:"default=720h,description=Seen-article records older than this may be purged"`
		MaxOpenConns int           `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=4,description=Maximum open database connections"`
	} `yaml:"dedup" json:"dedup" jsonschema:"description=Deduplication store configuration"`

	Summary SummaryConfig `yaml:"summary" json:"summary" jsonschema:"description=Summarization and translation configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Full content extraction configuration"`

	Digest struct {
		Title      string `yaml:"title" json:"title" jsonschema:"default=AI News Digest,description=Digest title"`
		OutputPath string `yaml:"output_path" json:"output_path" jsonschema:"default=digest.html,description=Path where the rendered digest is written"`
	} `yaml:"digest" json:"digest" jsonschema:"description=Digest output configuration"`
}

// SummaryConfig holds summarization provider settings. The endpoint accepts
// any OpenAI-compatible API.
type SummaryConfig struct {
	Endpoint       string        `yaml:"endpoint" json:"endpoint" jsonschema:"default=https://api.deepseek.com/v1,description=OpenAI-compatible API endpoint"`
	APIKey         string        `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	Model          string        `yaml:"model" json:"model" jsonschema:"default=deepseek-chat,description=Model name"`
	Language       string        `yaml:"language" json:"language" jsonschema:"default=Spanish,description=Target language for generated summaries"`
	BatchSize      int           `yaml:"batch_size" json:"batch_size" jsonschema:"default=5,minimum=1,description=Articles summarized per batch"`
	Pacing         time.Duration `yaml:"pacing" json:"pacing" jsonschema:"default=1s,description=Delay between batches to respect provider throughput"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries" jsonschema:"default=3,description=Attempts per article on rate-limit responses"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" json:"retry_base_delay" jsonschema:"default=2s,description=Base delay for linear retry backoff"`
	MaxPromptChars int           `yaml:"max_prompt_chars" json:"max_prompt_chars" jsonschema:"default=1500,description=Character budget for article text in the prompt"`
	Temperature    float64       `yaml:"temperature" json:"temperature" jsonschema:"default=0.3,description=Temperature for response generation"`
	MaxTokens      int           `yaml:"max_tokens" json:"max_tokens" jsonschema:"default=300,description=Maximum tokens in response"`
	Timeout        time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Request timeout"`
}

// ExtractionConfig holds content extraction settings
type ExtractionConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Enable full content extraction before summarization"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=Extraction timeout per article"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent" jsonschema:"default=5,description=Maximum concurrent extractions"`
	MinTextLength int           `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum text length to consider valid"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent" jsonschema:"default=AIDigest/1.0,description=User agent for extraction requests"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// setDefaults fills zero-value fields with sensible defaults
func (c *Config) setDefaults() {
	// fetch defaults
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 30 * time.Second
	}
	if c.Fetch.Lookback == 0 {
		c.Fetch.Lookback = 24 * time.Hour
	}
	if c.Fetch.MaxPerSource == 0 {
		c.Fetch.MaxPerSource = 10
	}
	if c.Fetch.MaxWorkers == 0 {
		c.Fetch.MaxWorkers = 5
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "AIDigest/1.0"
	}

	// dedup defaults
	if c.Dedup.DSN == "" {
		c.Dedup.DSN = "file:aidigest.db?cache=shared&mode=rwc"
	}
	if c.Dedup.Retention == 0 {
		c.Dedup.Retention = 30 * 24 * time.Hour
	}
	if c.Dedup.MaxOpenConns == 0 {
		c.Dedup.MaxOpenConns = 4
	}

	// summary defaults
	if c.Summary.Endpoint == "" {
		c.Summary.Endpoint = "https://api.deepseek.com/v1"
	}
	if c.Summary.Model == "" {
		c.Summary.Model = "deepseek-chat"
	}
	if c.Summary.Language == "" {
		c.Summary.Language = "Spanish"
	}
	if c.Summary.BatchSize == 0 {
		c.Summary.BatchSize = 5
	}
	if c.Summary.Pacing == 0 {
		c.Summary.Pacing = time.Second
	}
	if c.Summary.MaxRetries == 0 {
		c.Summary.MaxRetries = 3
	}
	if c.Summary.RetryBaseDelay == 0 {
		c.Summary.RetryBaseDelay = 2 * time.Second
	}
	if c.Summary.MaxPromptChars == 0 {
		c.Summary.MaxPromptChars = 1500
	}
	if c.Summary.Temperature == 0 {
		c.Summary.Temperature = 0.3
	}
	if c.Summary.MaxTokens == 0 {
		c.Summary.MaxTokens = 300
	}
	if c.Summary.Timeout == 0 {
		c.Summary.Timeout = 30 * time.Second
	}

	// extraction defaults
	if c.Extraction.Timeout == 0 {
		c.Extraction.Timeout = 30 * time.Second
	}
	if c.Extraction.MaxConcurrent == 0 {
		c.Extraction.MaxConcurrent = 5
	}
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}
	if c.Extraction.UserAgent == "" {
		c.Extraction.UserAgent = c.Fetch.UserAgent
	}

	// digest defaults
	if c.Digest.Title == "" {
		c.Digest.Title = "AI News Digest"
	}
	if c.Digest.OutputPath == "" {
		c.Digest.OutputPath = "digest.html"
	}

	// without an explicit default category fall back to the first definition
	if c.DefaultCategory == "" && len(c.Categories) > 0 {
		c.DefaultCategory = c.Categories[0].Name
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("at least one source is required")
	}

	kinds := map[domain.SourceKind]bool{
		domain.KindFeed: true, domain.KindAPI: true,
		domain.KindScrape: true, domain.KindCustom: true,
	}
	names := map[string]bool{}
	for i, src := range cfg.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if names[src.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, src.Name)
		}
		names[src.Name] = true
		if !kinds[src.Kind] {
			return fmt.Errorf("source %q: unknown kind %q", src.Name, src.Kind)
		}
		if src.Kind == domain.KindFeed && src.FeedURL == "" && src.URL == "" {
			return fmt.Errorf("source %q: feed source needs feed_url or url", src.Name)
		}
		if src.Kind == domain.KindScrape && src.Selectors.Item == "" {
			return fmt.Errorf("source %q: scrape source needs selectors.item", src.Name)
		}
	}

	if len(cfg.Categories) == 0 {
		return fmt.Errorf("at least one category is required")
	}
	catNames := map[string]bool{}
	for i, cat := range cfg.Categories {
		if cat.Name == "" {
			return fmt.Errorf("categories[%d]: name is required", i)
		}
		if catNames[cat.Name] {
			return fmt.Errorf("categories[%d]: duplicate category name %q", i, cat.Name)
		}
		catNames[cat.Name] = true
	}
	if !catNames[cfg.DefaultCategory] {
		return fmt.Errorf("default_category %q is not a defined category", cfg.DefaultCategory)
	}

	// dedup records must outlive the lookback window, otherwise articles
	// inside the window could be re-delivered after a purge
	if cfg.Dedup.Retention < cfg.Fetch.Lookback {
		return fmt.Errorf("dedup retention %v is shorter than fetch lookback %v", cfg.Dedup.Retention, cfg.Fetch.Lookback)
	}

	if cfg.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch timeout must be at least 1 second")
	}
	if cfg.Summary.BatchSize < 1 {
		return fmt.Errorf("summary.batch_size must be at least 1")
	}
	if cfg.Summary.Temperature < 0 || cfg.Summary.Temperature > 2 {
		return fmt.Errorf("summary.temperature must be between 0 and 2")
	}
	if cfg.Extraction.Enabled && cfg.Extraction.Timeout < time.Second {
		return fmt.Errorf("extraction timeout must be at least 1 second")
	}

	return nil
}

// EnabledSources returns configured sources with the enabled flag set
func (c *Config) EnabledSources() []domain.Source {
	res := make([]domain.Source, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled {
			res = append(res, s)
		}
	}
	return res
}

// GetExtractionConfig returns content extraction configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}

// GetSummaryConfig returns summarization configuration
func (c *Config) GetSummaryConfig() SummaryConfig {
	return c.Summary
}
