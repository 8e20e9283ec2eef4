package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article represents a single news article flowing through the pipeline.
// Category is assigned by the classifier, LocalizedSummary by the summarizer;
// both start empty. A zero Published time means the source did not supply a
// parseable date.
type Article struct {
	ID               string
	Title            string
	URL              string
	Source           string
	Category         string
	Published        time.Time
	Summary          string
	Content          string
	Author           string
	LocalizedSummary string
}

// SourceKind identifies how a source is fetched
type SourceKind string

const (
	KindFeed   SourceKind = "feed"
	KindAPI    SourceKind = "api"
	KindScrape SourceKind = "scrape"
	KindCustom SourceKind = "custom"
)

// Source describes one configured content origin
type Source struct {
	Name     string     `yaml:"name" json:"name"`
	Kind     SourceKind `yaml:"kind" json:"kind"`
	URL      string     `yaml:"url" json:"url"`
	FeedURL  string     `yaml:"feed_url,omitempty" json:"feed_url,omitempty"`
	Category string     `yaml:"category,omitempty" json:"category,omitempty"`
	Enabled  bool       `yaml:"enabled" json:"enabled"`

	// CSS selectors for scrape sources, ignored for other kinds
	Selectors ScrapeSelectors `yaml:"selectors,omitempty" json:"selectors,omitempty"`
}

// ScrapeSelectors holds the CSS selectors used to pull articles out of a page
type ScrapeSelectors struct {
	Item    string `yaml:"item" json:"item"`
	Title   string `yaml:"title" json:"title"`
	Link    string `yaml:"link,omitempty" json:"link,omitempty"`
	Summary string `yaml:"summary,omitempty" json:"summary,omitempty"`
}

// CategoryDef defines one topical bucket. Lower priority rank means earlier
// display position and wins categorization ties.
type CategoryDef struct {
	Name     string   `yaml:"name" json:"name"`
	Priority int      `yaml:"priority" json:"priority"`
	Keywords []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Sources  []string `yaml:"sources,omitempty" json:"sources,omitempty"`
}

// MakeID derives a stable article id from URL and title, so re-fetching the
// same logical article always yields the same id
func MakeID(url, title string) string {
	h := sha256.Sum256([]byte(url + ":" + title))
	return hex.EncodeToString(h[:16])
}
