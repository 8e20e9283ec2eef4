package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"aidigest/pkg/config"
	"aidigest/pkg/domain"
)

// Clock abstracts time for pacing and backoff so tests run without real
// wall-clock delays
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

// realClock is the production clock
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Summarizer produces localized summaries for articles, pacing requests
// under the provider's rate limit. A nil provider means the documented
// degraded mode: every article falls through to its original summary.
type Summarizer struct {
	provider Provider
	cfg      config.SummaryConfig
	clock    Clock
}

// NewSummarizer creates a summarizer; provider may be nil for pass-through mode
func NewSummarizer(provider Provider, cfg config.SummaryConfig) *Summarizer {
	return &Summarizer{provider: provider, cfg: cfg, clock: realClock{}}
}

// WithClock replaces the clock, used by tests
func (s *Summarizer) WithClock(c Clock) *Summarizer {
	s.clock = c
	return s
}

// SummarizeAll fills LocalizedSummary on every article. Articles are
// processed in batches with a fixed pacing delay between batches. A failure
// on one article never aborts the rest; after this call LocalizedSummary is
// set for every article that had any source text.
func (s *Summarizer) SummarizeAll(ctx context.Context, articles []domain.Article) []domain.Article {
	if len(articles) == 0 {
		return articles
	}

	if s.provider == nil {
		lgr.Printf("[WARN] no summarization provider configured, falling back to source summaries")
		for i := range articles {
			articles[i].LocalizedSummary = fallbackText(articles[i])
		}
		return articles
	}

	fallbacks := 0
	for start := 0; start < len(articles); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(articles) {
			end = len(articles)
		}

		for i := start; i < end; i++ {
			text, err := s.summarizeOne(ctx, articles[i])
			if err != nil {
				lgr.Printf("[WARN] summarize %q failed: %v", articles[i].Title, err)
				text = fallbackText(articles[i])
				fallbacks++
			}
			articles[i].LocalizedSummary = text
		}

		// fixed pacing between batches, even without a throttling signal
		if end < len(articles) {
			s.clock.Sleep(ctx, s.cfg.Pacing)
		}
	}

	lgr.Printf("[INFO] summarized %d articles, %d fell back to source text", len(articles), fallbacks)
	return articles
}

// summarizeOne calls the provider with bounded retries. Rate-limit errors
// back off linearly (attempt x base delay); any other error fails
// immediately and the caller falls back.
func (s *Summarizer) summarizeOne(ctx context.Context, a domain.Article) (string, error) {
	prompt := s.buildPrompt(a)

	var lastErr error
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		text, err := s.provider.Generate(ctx, prompt)
		if err == nil {
			if text == "" {
				return "", fmt.Errorf("provider returned empty summary")
			}
			return text, nil
		}

		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}

		lastErr = err
		if attempt < s.cfg.MaxRetries {
			delay := time.Duration(attempt) * s.cfg.RetryBaseDelay
			lgr.Printf("[DEBUG] rate limited by %s, retry %d/%d in %v", s.provider.Name(), attempt, s.cfg.MaxRetries, delay)
			s.clock.Sleep(ctx, delay)
		}

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("rate limited after %d attempts: %w", s.cfg.MaxRetries, lastErr)
}

// buildPrompt assembles the summarization prompt from the article, with the
// body text truncated to the configured character budget
func (s *Summarizer) buildPrompt(a domain.Article) string {
	body := a.Content
	if body == "" {
		body = a.Summary
	}
	if body == "" {
		body = a.Title
	}
	body = truncate(body, s.cfg.MaxPromptChars)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Summarize the following article in 2-3 concise sentences, in %s.\n", s.cfg.Language))
	sb.WriteString("Keep technical and product names in their original form.\n")
	sb.WriteString("Focus on what is new and important.\n\n")
	sb.WriteString("Title: " + a.Title + "\n")
	sb.WriteString("Source: " + a.Source + "\n\n")
	sb.WriteString("Content:\n" + body + "\n\n")
	sb.WriteString(fmt.Sprintf("Respond with the %s summary only, no prefixes or explanations.", s.cfg.Language))
	return sb.String()
}

// fallbackText is the degraded summary: original summary, then title.
// Never empty while the article has any source text.
func fallbackText(a domain.Article) string {
	if a.Summary != "" {
		return a.Summary
	}
	return a.Title
}

// truncate bounds a string to max runes
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
