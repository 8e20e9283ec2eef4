package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"aidigest/pkg/domain"
)

// APIFetcher handles structured API sources: the paginated arXiv Atom API and
// the Hugging Face JSON endpoints. The handler is picked by the source URL.
type APIFetcher struct {
	client     *http.Client
	parser     *gofeed.Parser
	userAgent  string
	maxResults int
	pageSize   int

	hostOverride string // tests redirect requests here, dispatch still keys off the source URL
}

// NewAPIFetcher creates an API fetcher; maxResults bounds the total entries
// pulled from paginated endpoints
func NewAPIFetcher(timeout time.Duration, userAgent string, maxResults int) *APIFetcher {
	if maxResults <= 0 {
		maxResults = 20
	}
	return &APIFetcher{
		client:     &http.Client{Timeout: timeout},
		parser:     gofeed.NewParser(),
		userAgent:  userAgent,
		maxResults: maxResults,
		pageSize:   20,
	}
}

// Fetch dispatches to the endpoint-specific handler
func (f *APIFetcher) Fetch(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url %s: %w", src.URL, err)
	}

	switch {
	case strings.Contains(u.Host, "arxiv.org"):
		return f.fetchArxiv(ctx, src)
	case strings.Contains(u.Host, "huggingface.co") && strings.Contains(u.Path, "daily_papers"):
		return f.fetchHFPapers(ctx, src)
	case strings.Contains(u.Host, "huggingface.co") && strings.Contains(u.Path, "models"):
		return f.fetchHFModels(ctx, src)
	default:
		return nil, fmt.Errorf("no API handler for %s", src.URL)
	}
}

// fetchArxiv pages through the arXiv query API. The source URL carries the
// search query; paging and sort parameters are appended here. Pages are
// walked until maxResults entries are collected or a short page signals the
// end of results.
func (f *APIFetcher) fetchArxiv(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	// without a query the arxiv API answers with an empty feed, which would
	// look like a quiet day instead of a broken config
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse arxiv url: %w", err)
	}
	q := u.Query()
	if q.Get("search_query") == "" && q.Get("id_list") == "" {
		return nil, fmt.Errorf("arxiv source %s: url must carry search_query or id_list", src.Name)
	}

	var articles []domain.Article

	for start := 0; start < f.maxResults; start += f.pageSize {
		pageURL, err := arxivPageURL(src.URL, start, f.pageSize)
		if err != nil {
			return nil, err
		}

		feed, err := f.getAtom(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("arxiv page at offset %d: %w", start, err)
		}

		for _, item := range feed.Items {
			if item.Link == "" {
				continue
			}
			a := domain.Article{
				ID:       domain.MakeID(item.Link, item.Title),
				Title:    strings.Join(strings.Fields(item.Title), " "),
				URL:      item.Link,
				Source:   src.Name,
				Category: src.Category,
				Summary:  truncate(strings.Join(strings.Fields(item.Description), " "), summaryLimit),
				Content:  strings.Join(strings.Fields(item.Description), " "),
				Author:   arxivAuthors(item),
			}
			if item.PublishedParsed != nil {
				a.Published = *item.PublishedParsed
			}
			articles = append(articles, a)
			if len(articles) >= f.maxResults {
				return articles, nil
			}
		}

		if len(feed.Items) < f.pageSize {
			break // short page, no more results
		}
	}

	return articles, nil
}

// hfPaper mirrors the relevant parts of the daily_papers response
type hfPaper struct {
	Paper struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Summary string `json:"summary"`
		Authors []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"paper"`
	PublishedAt time.Time `json:"publishedAt"`
}

// fetchHFPapers pulls the Hugging Face daily papers listing
func (f *APIFetcher) fetchHFPapers(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	var papers []hfPaper
	if err := f.getJSON(ctx, src.URL, &papers); err != nil {
		return nil, fmt.Errorf("daily papers: %w", err)
	}

	articles := make([]domain.Article, 0, len(papers))
	for _, p := range papers {
		if p.Paper.ID == "" {
			continue
		}
		paperURL := "https://huggingface.co/papers/" + p.Paper.ID
		names := make([]string, 0, 3)
		for i, a := range p.Paper.Authors {
			if i == 3 {
				break
			}
			names = append(names, a.Name)
		}
		author := strings.Join(names, ", ")
		if len(p.Paper.Authors) > 3 {
			author += " et al."
		}

		articles = append(articles, domain.Article{
			ID:        domain.MakeID(paperURL, p.Paper.Title),
			Title:     p.Paper.Title,
			URL:       paperURL,
			Source:    src.Name,
			Category:  src.Category,
			Published: p.PublishedAt,
			Summary:   truncate(p.Paper.Summary, summaryLimit),
			Content:   p.Paper.Summary,
			Author:    author,
		})
		if len(articles) >= f.maxResults {
			break
		}
	}

	return articles, nil
}

// hfModel mirrors the relevant parts of the models listing response
type hfModel struct {
	ID          string    `json:"id"`
	Downloads   int       `json:"downloads"`
	CreatedAt   time.Time `json:"createdAt"`
	PipelineTag string    `json:"pipeline_tag"`
	Tags        []string  `json:"tags"`
}

// fetchHFModels pulls recently created models with some download traction
func (f *APIFetcher) fetchHFModels(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse models url: %w", err)
	}
	q := u.Query()
	q.Set("sort", "createdAt")
	q.Set("direction", "-1")
	q.Set("limit", strconv.Itoa(f.maxResults*2)) // fetch extra, popularity filter below
	u.RawQuery = q.Encode()

	var models []hfModel
	if err := f.getJSON(ctx, u.String(), &models); err != nil {
		return nil, fmt.Errorf("models listing: %w", err)
	}

	var articles []domain.Article
	for _, m := range models {
		if m.ID == "" || m.Downloads < 100 {
			continue
		}
		modelURL := "https://huggingface.co/" + m.ID
		tags := m.Tags
		if len(tags) > 3 {
			tags = tags[:3]
		}
		author := ""
		if idx := strings.Index(m.ID, "/"); idx > 0 {
			author = m.ID[:idx]
		}

		articles = append(articles, domain.Article{
			ID:        domain.MakeID(modelURL, m.ID),
			Title:     "New model: " + m.ID,
			URL:       modelURL,
			Source:    src.Name,
			Category:  src.Category,
			Published: m.CreatedAt,
			Summary:   fmt.Sprintf("Pipeline: %s. Tags: %s. Downloads: %d", m.PipelineTag, strings.Join(tags, ", "), m.Downloads),
			Author:    author,
		})
		if len(articles) >= f.maxResults {
			break
		}
	}

	return articles, nil
}

// rewrite redirects a request to hostOverride when set, keeping path and query
func (f *APIFetcher) rewrite(reqURL string) string {
	if f.hostOverride == "" {
		return reqURL
	}
	u, err := url.Parse(reqURL)
	if err != nil {
		return reqURL
	}
	base, err := url.Parse(f.hostOverride)
	if err != nil {
		return reqURL
	}
	u.Scheme = base.Scheme
	u.Host = base.Host
	return u.String()
}

// getAtom fetches a URL and parses the body as an Atom/RSS feed
func (f *APIFetcher) getAtom(ctx context.Context, pageURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.rewrite(pageURL), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse atom response: %w", err)
	}
	return feed, nil
}

// getJSON fetches a URL and decodes the JSON body into out
func (f *APIFetcher) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.rewrite(reqURL), http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode json response: %w", err)
	}
	return nil
}

// arxivAuthors joins up to three entry authors
func arxivAuthors(item *gofeed.Item) string {
	if len(item.Authors) == 0 {
		return ""
	}
	names := make([]string, 0, 3)
	for i, a := range item.Authors {
		if i == 3 {
			break
		}
		names = append(names, a.Name)
	}
	res := strings.Join(names, ", ")
	if len(item.Authors) > 3 {
		res += fmt.Sprintf(" et al. (%d authors)", len(item.Authors))
	}
	return res
}

// arxivPageURL appends paging and sort parameters to the configured query URL
func arxivPageURL(base string, start, pageSize int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse arxiv url: %w", err)
	}
	q := u.Query()
	q.Set("start", strconv.Itoa(start))
	q.Set("max_results", strconv.Itoa(pageSize))
	q.Set("sortBy", "submittedDate")
	q.Set("sortOrder", "descending")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
