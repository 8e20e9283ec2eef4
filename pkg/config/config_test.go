package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidigest/pkg/domain"
)

const minimalYAML = `
sources:
  - name: "Test Feed"
    kind: feed
    feed_url: "https://example.com/feed.xml"
    enabled: true
categories:
  - name: "Industry"
    priority: 1
    keywords: ["funding"]
default_category: "Industry"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MinimalWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.Fetch.Lookback)
	assert.Equal(t, 10, cfg.Fetch.MaxPerSource)
	assert.Equal(t, 5, cfg.Fetch.MaxWorkers)
	assert.Equal(t, "AIDigest/1.0", cfg.Fetch.UserAgent)

	assert.Equal(t, 30*24*time.Hour, cfg.Dedup.Retention)
	assert.Equal(t, "deepseek-chat", cfg.Summary.Model)
	assert.Equal(t, "Spanish", cfg.Summary.Language)
	assert.Equal(t, 5, cfg.Summary.BatchSize)
	assert.Equal(t, time.Second, cfg.Summary.Pacing)
	assert.Equal(t, 3, cfg.Summary.MaxRetries)
	assert.Equal(t, 1500, cfg.Summary.MaxPromptChars)

	assert.Equal(t, "digest.html", cfg.Digest.OutputPath)
	assert.False(t, cfg.Extraction.Enabled)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_AIDIGEST_KEY", "secret-key-value")

	yaml := minimalYAML + `
summary:
  api_key: "${TEST_AIDIGEST_KEY}"
`
	cfg, err := Load(writeConfig(t, yaml))
	require.NoError(t, err)
	assert.Equal(t, "secret-key-value", cfg.Summary.APIKey)
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `
fetch:
  timeout: 15s
  lookback: 48h
  max_per_source: 5
sources:
  - name: "Feed One"
    kind: feed
    feed_url: "https://a.com/rss"
    category: "Industry"
    enabled: true
  - name: "Scraper One"
    kind: scrape
    url: "https://b.com/"
    enabled: true
    selectors:
      item: "article"
      title: "h2"
categories:
  - name: "Industry"
    priority: 1
    keywords: ["funding", "startup"]
    sources: ["TechCrunch"]
  - name: "Research"
    priority: 2
default_category: "Industry"
dedup:
  retention: 96h
digest:
  title: "My Digest"
  output_path: "out/d.html"
`
	cfg, err := Load(writeConfig(t, yaml))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 48*time.Hour, cfg.Fetch.Lookback)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, domain.KindScrape, cfg.Sources[1].Kind)
	assert.Equal(t, "article", cfg.Sources[1].Selectors.Item)
	require.Len(t, cfg.Categories, 2)
	assert.Equal(t, []string{"funding", "startup"}, cfg.Categories[0].Keywords)
	assert.Equal(t, "My Digest", cfg.Digest.Title)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			"no sources",
			`
categories:
  - name: "Industry"
default_category: "Industry"
`,
			"at least one source",
		},
		{
			"duplicate source name",
			`
sources:
  - name: "Same"
    kind: feed
    feed_url: "https://a.com/rss"
  - name: "Same"
    kind: feed
    feed_url: "https://b.com/rss"
categories:
  - name: "Industry"
default_category: "Industry"
`,
			"duplicate source name",
		},
		{
			"unknown kind",
			`
sources:
  - name: "Odd"
    kind: telepathy
    url: "https://a.com"
categories:
  - name: "Industry"
default_category: "Industry"
`,
			"unknown kind",
		},
		{
			"feed without url",
			`
sources:
  - name: "NoURL"
    kind: feed
categories:
  - name: "Industry"
default_category: "Industry"
`,
			"needs feed_url or url",
		},
		{
			"scrape without selector",
			`
sources:
  - name: "NoSel"
    kind: scrape
    url: "https://a.com"
categories:
  - name: "Industry"
default_category: "Industry"
`,
			"needs selectors.item",
		},
		{
			"no categories",
			`
sources:
  - name: "Feed"
    kind: feed
    feed_url: "https://a.com/rss"
`,
			"at least one category",
		},
		{
			"unknown default category",
			`
sources:
  - name: "Feed"
    kind: feed
    feed_url: "https://a.com/rss"
categories:
  - name: "Industry"
default_category: "Ghost"
`,
			"not a defined category",
		},
		{
			"retention below lookback",
			`
fetch:
  lookback: 48h
sources:
  - name: "Feed"
    kind: feed
    feed_url: "https://a.com/rss"
categories:
  - name: "Industry"
default_category: "Industry"
dedup:
  retention: 24h
`,
			"shorter than fetch lookback",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "sources: [unclosed"))
	require.Error(t, err)
}

func TestConfig_EnabledSources(t *testing.T) {
	cfg := &Config{Sources: []domain.Source{
		{Name: "on", Enabled: true},
		{Name: "off", Enabled: false},
		{Name: "on2", Enabled: true},
	}}
	enabled := cfg.EnabledSources()
	require.Len(t, enabled, 2)
	assert.Equal(t, "on", enabled[0].Name)
	assert.Equal(t, "on2", enabled[1].Name)
}

func TestGenerateSchema(t *testing.T) {
	schema, err := GenerateSchema()
	require.NoError(t, err)

	data, err := json.Marshal(schema)
	require.NoError(t, err)
	assert.Contains(t, string(data), "$schema")
	assert.Contains(t, string(data), "sources")
}
