package fetcher

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"aidigest/pkg/domain"
)

// summaryLimit caps source-supplied summaries to keep prompts bounded
const summaryLimit = 500

// FeedFetcher fetches RSS/Atom feeds via HTTP
type FeedFetcher struct {
	client    *http.Client
	parser    *gofeed.Parser
	sanitizer *bluemonday.Policy
	userAgent string
}

// NewFeedFetcher creates a feed fetcher with the given per-request timeout
func NewFeedFetcher(timeout time.Duration, userAgent string) *FeedFetcher {
	return &FeedFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		parser:    gofeed.NewParser(),
		sanitizer: bluemonday.StrictPolicy(),
		userAgent: userAgent,
	}
}

// Fetch retrieves and parses a feed, converting entries to articles
func (f *FeedFetcher) Fetch(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	feedURL := src.FeedURL
	if feedURL == "" {
		feedURL = src.URL
	}

	body, err := f.get(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feedURL, err)
	}
	defer body.Close()

	feed, err := f.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		a := domain.Article{
			ID:       domain.MakeID(item.Link, item.Title),
			Title:    strings.TrimSpace(item.Title),
			URL:      item.Link,
			Source:   src.Name,
			Category: src.Category,
			Summary:  truncate(f.cleanText(pickDescription(item)), summaryLimit),
			Content:  f.cleanText(item.Content),
		}

		if item.Author != nil {
			a.Author = item.Author.Name
		}

		// published time with updated as fallback; absence stays explicit
		if item.PublishedParsed != nil {
			a.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			a.Published = *item.UpdatedParsed
		}

		articles = append(articles, a)
	}

	return articles, nil
}

// get fetches the feed body with browser-like headers
func (f *FeedFetcher) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	addBrowserHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// cleanText strips markup from feed-supplied HTML and collapses whitespace
func (f *FeedFetcher) cleanText(s string) string {
	if s == "" {
		return ""
	}
	cleaned := html.UnescapeString(f.sanitizer.Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}

// truncate bounds a string to max runes
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// pickDescription returns the first non-empty of description and content
func pickDescription(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}
