package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-pkgz/lgr"

	"aidigest/pkg/domain"
)

// ScrapeFetcher pulls articles out of plain HTML pages using the CSS
// selectors attached to the source descriptor. Selector drift on the target
// site degrades to an empty result; that condition is logged as a warning so
// it stays distinguishable from "no new content".
type ScrapeFetcher struct {
	client    *http.Client
	userAgent string
	maxItems  int
}

// NewScrapeFetcher creates a scrape fetcher
func NewScrapeFetcher(timeout time.Duration, userAgent string, maxItems int) *ScrapeFetcher {
	if maxItems <= 0 {
		maxItems = 10
	}
	return &ScrapeFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		maxItems:  maxItems,
	}
}

// Fetch loads the source page and extracts articles via the configured selectors
func (s *ScrapeFetcher) Fetch(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	if src.Selectors.Item == "" {
		return nil, fmt.Errorf("source %s has no item selector", src.Name)
	}

	doc, err := s.fetchDocument(ctx, src.URL)
	if err != nil {
		return nil, err
	}

	var articles []domain.Article
	matched := 0
	doc.Find(src.Selectors.Item).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		matched++

		title, link := s.titleAndLink(sel, src)
		if title == "" || link == "" {
			return true
		}

		a := domain.Article{
			ID:       domain.MakeID(link, title),
			Title:    title,
			URL:      link,
			Source:   src.Name,
			Category: src.Category,
		}

		if src.Selectors.Summary != "" {
			a.Summary = truncate(cleanSpace(sel.Find(src.Selectors.Summary).First().Text()), summaryLimit)
		}

		articles = append(articles, a)
		return len(articles) < s.maxItems
	})

	if matched == 0 {
		// selector drift and genuinely empty pages look the same to us,
		// surface it so a layout change does not go unnoticed
		lgr.Printf("[WARN] scrape %s: selector %q matched no elements at %s", src.Name, src.Selectors.Item, src.URL)
	}

	return articles, nil
}

// titleAndLink extracts the title text and an absolute article URL
func (s *ScrapeFetcher) titleAndLink(sel *goquery.Selection, src domain.Source) (title, link string) {
	titleSel := sel
	if src.Selectors.Title != "" {
		titleSel = sel.Find(src.Selectors.Title).First()
	}
	title = cleanSpace(titleSel.Text())

	linkSel := titleSel
	if src.Selectors.Link != "" {
		linkSel = sel.Find(src.Selectors.Link).First()
	}
	href, ok := linkSel.Attr("href")
	if !ok {
		// selector may point at a wrapper, look for the first anchor inside
		href, _ = linkSel.Find("a").First().Attr("href")
	}
	if href == "" {
		return title, ""
	}

	return title, absoluteURL(src.URL, href)
}

// fetchDocument loads and parses an HTML page
func (s *ScrapeFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	addBrowserHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", pageURL, err)
	}
	return doc, nil
}

// absoluteURL resolves href against the page URL when relative
func absoluteURL(pageURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// cleanSpace collapses runs of whitespace to single spaces
func cleanSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
