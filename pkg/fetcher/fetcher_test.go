package fetcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aidigest/pkg/domain"
)

// fakeFetcher returns canned articles or an error per source name
type fakeFetcher struct {
	articles map[string][]domain.Article
	errs     map[string]error
	delay    time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, src domain.Source) ([]domain.Article, error) {
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if err, ok := f.errs[src.Name]; ok {
		return nil, err
	}
	return f.articles[src.Name], nil
}

func TestOrchestrator_FetchAllIsolatesFailures(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	fake := &fakeFetcher{
		articles: map[string][]domain.Article{
			"good-a": {{ID: "a1", Title: "a1", URL: "https://a/1", Source: "good-a", Published: now}},
			"good-b": {{ID: "b1", Title: "b1", URL: "https://b/1", Source: "good-b", Published: now}},
		},
		errs: map[string]error{"bad": fmt.Errorf("connection refused")},
	}

	o := NewOrchestrator(map[domain.SourceKind]Fetcher{domain.KindFeed: fake}, Params{
		Timeout: time.Second, Lookback: 24 * time.Hour, MaxPerSource: 10, MaxWorkers: 3,
		Now: func() time.Time { return now },
	})

	sources := []domain.Source{
		{Name: "good-a", Kind: domain.KindFeed, Enabled: true},
		{Name: "bad", Kind: domain.KindFeed, Enabled: true},
		{Name: "good-b", Kind: domain.KindFeed, Enabled: true},
	}

	res := o.FetchAll(context.Background(), sources)
	assert.Len(t, res.Articles, 2, "failed source contributes nothing")
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors["bad"].Error(), "connection refused")
}

func TestOrchestrator_FetchAllSkipsDisabled(t *testing.T) {
	now := time.Now()
	fake := &fakeFetcher{articles: map[string][]domain.Article{
		"on":  {{ID: "1", Title: "one", URL: "https://a/1", Source: "on", Published: now}},
		"off": {{ID: "2", Title: "two", URL: "https://a/2", Source: "off", Published: now}},
	}}

	o := NewOrchestrator(map[domain.SourceKind]Fetcher{domain.KindFeed: fake}, Params{})
	res := o.FetchAll(context.Background(), []domain.Source{
		{Name: "on", Kind: domain.KindFeed, Enabled: true},
		{Name: "off", Kind: domain.KindFeed, Enabled: false},
	})

	require.Len(t, res.Articles, 1)
	assert.Equal(t, "on", res.Articles[0].Source)
	assert.Empty(t, res.Errors)
}

func TestOrchestrator_FetchAllUnknownKind(t *testing.T) {
	o := NewOrchestrator(map[domain.SourceKind]Fetcher{}, Params{})
	res := o.FetchAll(context.Background(), []domain.Source{
		{Name: "mystery", Kind: domain.KindScrape, Enabled: true},
	})
	assert.Empty(t, res.Articles)
	assert.Empty(t, res.Errors, "unregistered kind is skipped, not failed")
}

func TestOrchestrator_FilterLookbackAndCap(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	articles := []domain.Article{
		{ID: "fresh", Published: now.Add(-time.Hour)},
		{ID: "stale", Published: now.Add(-48 * time.Hour)},
		{ID: "undated"}, // zero date treated as fresh
		{ID: "edge", Published: now.Add(-23 * time.Hour)},
	}

	o := NewOrchestrator(nil, Params{
		Lookback: 24 * time.Hour, MaxPerSource: 10,
		Now: func() time.Time { return now },
	})

	kept := o.filter(articles)
	ids := make([]string, 0, len(kept))
	for _, a := range kept {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"fresh", "undated", "edge"}, ids)
}

func TestOrchestrator_FilterCapKeepsNewest(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	var articles []domain.Article
	for i := 0; i < 5; i++ {
		articles = append(articles, domain.Article{
			ID:        fmt.Sprintf("a%d", i),
			Published: now.Add(-time.Duration(i) * time.Hour),
		})
	}

	o := NewOrchestrator(nil, Params{
		Lookback: 24 * time.Hour, MaxPerSource: 2,
		Now: func() time.Time { return now },
	})

	kept := o.filter(articles)
	require.Len(t, kept, 2)
	assert.Equal(t, "a0", kept[0].ID)
	assert.Equal(t, "a1", kept[1].ID)
}

func TestOrchestrator_FilterCapKeepsUndatedAsFresh(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	articles := []domain.Article{
		{ID: "oldest", Published: now.Add(-3 * time.Hour)},
		{ID: "newest", Published: now.Add(-time.Hour)},
		{ID: "undated"},
	}

	o := NewOrchestrator(nil, Params{
		Lookback: 24 * time.Hour, MaxPerSource: 2,
		Now: func() time.Time { return now },
	})

	// undated counts as fresh, so over the cap it outranks dated articles
	kept := o.filter(articles)
	require.Len(t, kept, 2)
	assert.Equal(t, "undated", kept[0].ID)
	assert.Equal(t, "newest", kept[1].ID)
}

func TestOrchestrator_FetchAllRespectsTimeout(t *testing.T) {
	fake := &fakeFetcher{delay: 500 * time.Millisecond}

	o := NewOrchestrator(map[domain.SourceKind]Fetcher{domain.KindFeed: fake}, Params{
		Timeout: 50 * time.Millisecond,
	})

	res := o.FetchAll(context.Background(), []domain.Source{
		{Name: "slow", Kind: domain.KindFeed, Enabled: true},
	})
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors["slow"], context.DeadlineExceeded)
}
