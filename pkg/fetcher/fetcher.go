package fetcher

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"aidigest/pkg/domain"
)

// Fetcher retrieves articles for a single source descriptor
type Fetcher interface {
	Fetch(ctx context.Context, src domain.Source) ([]domain.Article, error)
}

// Result holds the outcome of a full fetch cycle. Errors maps source name to
// the failure for that source; failed sources contribute zero articles.
type Result struct {
	Articles []domain.Article
	Errors   map[string]error
}

// Params configures the orchestrator
type Params struct {
	Timeout      time.Duration // per-source fetch timeout
	Lookback     time.Duration // articles older than now-lookback are dropped
	MaxPerSource int           // cap on articles kept per source
	MaxWorkers   int           // concurrent fetch limit
	Now          func() time.Time
}

// Orchestrator fans out over all enabled sources, isolating per-source
// failures so one broken source never affects the rest of the run
type Orchestrator struct {
	fetchers map[domain.SourceKind]Fetcher
	params   Params
}

// NewOrchestrator creates an orchestrator dispatching each source kind to its fetcher
func NewOrchestrator(fetchers map[domain.SourceKind]Fetcher, params Params) *Orchestrator {
	if params.Timeout == 0 {
		params.Timeout = 30 * time.Second
	}
	if params.Lookback == 0 {
		params.Lookback = 24 * time.Hour
	}
	if params.MaxPerSource == 0 {
		params.MaxPerSource = 10
	}
	if params.MaxWorkers == 0 {
		params.MaxWorkers = 5
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Orchestrator{fetchers: fetchers, params: params}
}

// FetchAll fetches every enabled source concurrently and returns the union of
// results. Sources are grouped by kind in the output, but no ordering is
// guaranteed across sources; downstream stages must not rely on fetch order.
func (o *Orchestrator) FetchAll(ctx context.Context, sources []domain.Source) Result {
	res := Result{Errors: map[string]error{}}

	type sourceArticles struct {
		src      domain.Source
		articles []domain.Article
		err      error
	}

	collected := make([]sourceArticles, len(sources))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.params.MaxWorkers)

	for i, src := range sources {
		if !src.Enabled {
			continue
		}
		f, ok := o.fetchers[src.Kind]
		if !ok {
			lgr.Printf("[WARN] no fetcher registered for source %s (kind %s)", src.Name, src.Kind)
			continue
		}

		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, o.params.Timeout)
			defer cancel()

			articles, err := f.Fetch(fctx, src)
			if err != nil {
				lgr.Printf("[ERROR] fetch %s failed: %v", src.Name, err)
				mu.Lock()
				collected[i] = sourceArticles{src: src, err: err}
				mu.Unlock()
				return nil // per-source failures never cancel siblings
			}

			kept := o.filter(articles)
			lgr.Printf("[INFO] fetched %s: %d articles, %d kept after filtering", src.Name, len(articles), len(kept))
			mu.Lock()
			collected[i] = sourceArticles{src: src, articles: kept}
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait() // workers never return errors, isolation handled above

	for _, c := range collected {
		if c.src.Name == "" {
			continue
		}
		if c.err != nil {
			res.Errors[c.src.Name] = c.err
			continue
		}
		res.Articles = append(res.Articles, c.articles...)
	}

	return res
}

// filter drops stale articles and applies the per-source cap. Articles with
// no parseable date are treated as fresh rather than dropped.
func (o *Orchestrator) filter(articles []domain.Article) []domain.Article {
	cutoff := o.params.Now().Add(-o.params.Lookback)

	fresh := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		if !a.Published.IsZero() && a.Published.Before(cutoff) {
			continue
		}
		fresh = append(fresh, a)
	}

	if len(fresh) <= o.params.MaxPerSource {
		return fresh
	}

	// keep the newest articles when over the cap; undated ones count as
	// fresh, so they sort ahead of dated ones instead of being trimmed first
	sort.SliceStable(fresh, func(i, j int) bool {
		if fresh[i].Published.IsZero() != fresh[j].Published.IsZero() {
			return fresh[i].Published.IsZero()
		}
		return fresh[i].Published.After(fresh[j].Published)
	})
	return fresh[:o.params.MaxPerSource]
}
