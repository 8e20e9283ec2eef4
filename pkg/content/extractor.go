package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/sync/errgroup"

	"aidigest/pkg/domain"
)

// Extractor pulls full article text from URLs using trafilatura
type Extractor struct {
	client        *http.Client
	userAgent     string
	minTextLength int
	maxConcurrent int
}

// Params configures the extractor
type Params struct {
	Timeout       time.Duration
	UserAgent     string
	MinTextLength int
	MaxConcurrent int
}

// NewExtractor creates a content extractor
func NewExtractor(p Params) *Extractor {
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	if p.MinTextLength == 0 {
		p.MinTextLength = 100
	}
	if p.MaxConcurrent == 0 {
		p.MaxConcurrent = 5
	}
	return &Extractor{
		client:        &http.Client{Timeout: p.Timeout},
		userAgent:     p.UserAgent,
		minTextLength: p.MinTextLength,
		maxConcurrent: p.MaxConcurrent,
	}
}

// EnrichAll fills Content for articles that arrived without one, so the
// summarizer has more than a one-line feed description to work with.
// Extraction failures are logged and leave the article unchanged.
func (e *Extractor) EnrichAll(ctx context.Context, articles []domain.Article) []domain.Article {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i := range articles {
		if articles[i].Content != "" || articles[i].URL == "" {
			continue
		}
		g.Go(func() error {
			text, err := e.Extract(gctx, articles[i].URL)
			if err != nil {
				lgr.Printf("[DEBUG] extraction failed for %s: %v", articles[i].URL, err)
				return nil // enrichment is best effort
			}
			articles[i].Content = text
			return nil
		})
	}

	_ = g.Wait()
	return articles
}

// Extract retrieves and extracts text content from the given URL
func (e *Extractor) Extract(ctx context.Context, urlStr string) (string, error) {
	// validate URL
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", urlStr)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, urlStr)
	}

	// configure trafilatura options
	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsedURL,
	}

	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", urlStr, err)
	}
	if result == nil {
		return "", fmt.Errorf("no content extracted from %s", urlStr)
	}

	text := strings.TrimSpace(result.ContentText)
	if len(text) < e.minTextLength {
		return "", fmt.Errorf("extracted content too short (%d chars) from %s", len(text), urlStr)
	}

	return text, nil
}
