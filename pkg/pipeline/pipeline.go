// Package pipeline wires the full digest run: fetch, dedup, classify,
// enrich, summarize, render, record. Stages run strictly in order; a stage
// starts only after the previous one fully completed.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"aidigest/pkg/classify"
	"aidigest/pkg/config"
	"aidigest/pkg/content"
	"aidigest/pkg/dedup"
	"aidigest/pkg/digest"
	"aidigest/pkg/domain"
	"aidigest/pkg/fetcher"
	"aidigest/pkg/summary"
)

// Pipeline runs one full digest cycle
type Pipeline struct {
	cfg        *config.Config
	orch       *fetcher.Orchestrator
	store      *dedup.Store
	classifier *classify.Classifier
	extractor  *content.Extractor
	summarizer *summary.Summarizer
	assembler  *digest.Assembler
	dryRun     bool
}

// Report summarizes one run for logging and exit-status decisions
type Report struct {
	Fetched      int
	SourceErrors map[string]error
	Unique       int
	Summarized   int
	Groups       int
	Delivered    int
	Purged       int64
	Took         time.Duration
}

// New assembles a pipeline from configuration. The dedup store failing to
// open is fatal: without it duplicate delivery cannot be ruled out.
func New(cfg *config.Config) (*Pipeline, error) {
	store, err := dedup.NewStore(dedup.Config{
		DSN:          cfg.Dedup.DSN,
		MaxOpenConns: cfg.Dedup.MaxOpenConns,
		Lookback:     cfg.Fetch.Lookback,
	})
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}

	fetchers := map[domain.SourceKind]fetcher.Fetcher{
		domain.KindFeed:   fetcher.NewFeedFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent),
		domain.KindAPI:    fetcher.NewAPIFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxPerSource),
		domain.KindScrape: fetcher.NewScrapeFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, cfg.Fetch.MaxPerSource),
		domain.KindCustom: fetcher.NewTracker(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, store),
	}

	orch := fetcher.NewOrchestrator(fetchers, fetcher.Params{
		Timeout:      cfg.Fetch.Timeout,
		Lookback:     cfg.Fetch.Lookback,
		MaxPerSource: cfg.Fetch.MaxPerSource,
		MaxWorkers:   cfg.Fetch.MaxWorkers,
	})

	var extractor *content.Extractor
	if cfg.Extraction.Enabled {
		extractor = content.NewExtractor(content.Params{
			Timeout:       cfg.Extraction.Timeout,
			UserAgent:     cfg.Extraction.UserAgent,
			MinTextLength: cfg.Extraction.MinTextLength,
			MaxConcurrent: cfg.Extraction.MaxConcurrent,
		})
	}

	var provider summary.Provider
	if cfg.Summary.APIKey != "" {
		provider = summary.NewOpenAIProvider(cfg.Summary)
	} else {
		lgr.Printf("[WARN] summary api key not set, digest will use source summaries")
	}

	assembler, err := digest.NewAssembler(cfg.Digest.Title, languageTag(cfg.Summary.Language))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create digest assembler: %w", err)
	}

	return &Pipeline{
		cfg:        cfg,
		orch:       orch,
		store:      store,
		classifier: classify.New(cfg.Categories, cfg.DefaultCategory),
		extractor:  extractor,
		summarizer: summary.NewSummarizer(provider, cfg.Summary),
		assembler:  assembler,
	}, nil
}

// SetDryRun disables delivery recording and cleanup, so a run can be
// repeated without consuming the articles
func (p *Pipeline) SetDryRun(dry bool) {
	p.dryRun = dry
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Run executes one digest cycle. Per-source fetch failures are tolerated and
// reported; store failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	rep := &Report{}

	// stage 1: fetch all enabled sources
	sources := p.cfg.EnabledSources()
	lgr.Printf("[INFO] fetching %d sources", len(sources))
	fetched := p.orch.FetchAll(ctx, sources)
	rep.Fetched = len(fetched.Articles)
	rep.SourceErrors = fetched.Errors
	if len(fetched.Errors) > 0 {
		lgr.Printf("[WARN] %d of %d sources failed", len(fetched.Errors), len(sources))
	}
	if len(fetched.Errors) == len(sources) && len(sources) > 0 {
		return rep, fmt.Errorf("all %d sources failed", len(sources))
	}

	// stage 2: drop articles delivered in earlier runs
	unique, err := p.store.FilterDuplicates(ctx, fetched.Articles)
	if err != nil {
		return rep, fmt.Errorf("filter duplicates: %w", err)
	}
	rep.Unique = len(unique)

	if len(unique) == 0 {
		lgr.Printf("[INFO] no new articles, skipping digest")
		if !p.dryRun {
			rep.Purged = p.cleanup(ctx)
		}
		rep.Took = time.Since(started)
		return rep, nil
	}

	// stage 3: optional full-text enrichment for better summaries
	if p.extractor != nil {
		unique = p.extractor.EnrichAll(ctx, unique)
	}

	// stage 4: localized summaries, falling back per article on failure
	unique = p.summarizer.SummarizeAll(ctx, unique)
	rep.Summarized = len(unique)

	// stage 5: categorize and order for display
	groups := p.classifier.GroupByCategory(unique)
	rep.Groups = len(groups)

	// stage 6: render the digest
	if err := p.assembler.WriteFile(p.cfg.Digest.OutputPath, groups); err != nil {
		return rep, fmt.Errorf("write digest: %w", err)
	}

	// stage 7: record delivery only after the digest is safely on disk
	if !p.dryRun {
		if err := p.store.MarkSentAll(ctx, unique); err != nil {
			return rep, fmt.Errorf("record delivered articles: %w", err)
		}
		rep.Delivered = len(unique)
		rep.Purged = p.cleanup(ctx)
	}
	rep.Took = time.Since(started)

	lgr.Printf("[INFO] run complete: fetched %d, unique %d, delivered %d in %d categories, took %v",
		rep.Fetched, rep.Unique, rep.Delivered, rep.Groups, rep.Took.Round(time.Millisecond))
	return rep, nil
}

// cleanup purges expired dedup records, best effort
func (p *Pipeline) cleanup(ctx context.Context) int64 {
	n, err := p.store.CleanupOlderThan(ctx, p.cfg.Dedup.Retention)
	if err != nil {
		lgr.Printf("[WARN] dedup cleanup failed: %v", err)
		return 0
	}
	return n
}

// languageTag maps a language name to an html lang attribute value
func languageTag(language string) string {
	tags := map[string]string{
		"spanish": "es", "english": "en", "french": "fr", "german": "de",
		"portuguese": "pt", "italian": "it", "japanese": "ja", "chinese": "zh",
	}
	if tag, ok := tags[strings.ToLower(language)]; ok {
		return tag
	}
	return "en"
}
