package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"aidigest/pkg/domain"
)

// StateStore persists tracker state between runs. Implemented by the dedup
// store; every Set commits immediately.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
}

// Tracker watches provider changelog pages (custom source kind) and emits an
// article when a page shows an entry not seen in a previous run. Seen entries
// live in an explicit state store scoped to the run, not a package global.
type Tracker struct {
	client    *http.Client
	state     StateStore
	userAgent string
	now       func() time.Time
}

// trackerMaxEntries bounds how many page entries are examined per provider
const trackerMaxEntries = 3

// NewTracker creates a changelog tracker backed by the given state store
func NewTracker(timeout time.Duration, userAgent string, state StateStore) *Tracker {
	return &Tracker{
		client:    &http.Client{Timeout: timeout},
		state:     state,
		userAgent: userAgent,
		now:       time.Now,
	}
}

// Fetch scrapes the provider changelog page and returns articles for entries
// that have not been recorded in the state store yet
func (t *Tracker) Fetch(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	doc, err := t.fetchDocument(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	selector := src.Selectors.Item
	if selector == "" {
		selector = "article, .changelog-entry, .release, h2, h3"
	}

	var entries []string
	doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := cleanSpace(sel.Text())
		if text != "" {
			entries = append(entries, truncate(text, 200))
		}
		return len(entries) < trackerMaxEntries
	})

	if len(entries) == 0 {
		lgr.Printf("[WARN] tracker %s: no changelog entries found at %s", src.Name, src.URL)
		return nil, nil
	}

	var articles []domain.Article
	for _, entry := range entries {
		key := stateKey(src.Name, entry)

		_, seen, err := t.state.GetState(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("read tracker state for %s: %w", src.Name, err)
		}
		if seen {
			continue
		}

		if err := t.state.SetState(ctx, key, t.now().UTC().Format(time.RFC3339)); err != nil {
			return nil, fmt.Errorf("save tracker state for %s: %w", src.Name, err)
		}

		articles = append(articles, domain.Article{
			ID:        domain.MakeID(src.URL, entry),
			Title:     fmt.Sprintf("%s: %s", src.Name, truncate(entry, 80)),
			URL:       src.URL,
			Source:    src.Name,
			Category:  src.Category,
			Published: t.now(),
			Summary:   entry,
		})
	}

	if len(articles) > 0 {
		lgr.Printf("[INFO] tracker %s: %d new entries", src.Name, len(articles))
	}
	return articles, nil
}

// fetchDocument loads and parses the changelog page
func (t *Tracker) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", t.userAgent)
	addBrowserHeaders(req)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch changelog %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse changelog %s: %w", pageURL, err)
	}
	return doc, nil
}

// stateKey builds a provider-scoped key from the entry text hash
func stateKey(provider, entry string) string {
	h := sha256.Sum256([]byte(entry))
	return provider + ":" + hex.EncodeToString(h[:8])
}
