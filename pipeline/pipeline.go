// Package pipeline drives one complete ingestion run across all enabled
// feeds.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"newscraper/config"
	"newscraper/feed"
	"newscraper/scrape"
	"newscraper/store"
)

// Pipeline owns the per-run dedup policy and stat accounting.
type Pipeline struct {
	cfg     *config.Config
	store   *store.Store
	reader  *feed.Reader
	scraper *scrape.Scraper
	logger  *slog.Logger
	sleep   func(time.Duration)
}

// New creates a Pipeline over the given collaborators.
func New(cfg *config.Config, st *store.Store, reader *feed.Reader, scraper *scrape.Scraper, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   st,
		reader:  reader,
		scraper: scraper,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Run executes one ingestion pass: every enabled feed is fetched, each new
// entry is extracted and persisted, and the final stats are logged as a
// scrape run. Feed and extraction failures are isolated per item; only
// storage failures abort the run.
func (p *Pipeline) Run(ctx context.Context) (store.RunStats, error) {
	logger := p.logger.With("run_id", uuid.New().String())

	stats := store.RunStats{
		StartTime: time.Now().Format(time.RFC3339),
	}
	var newArticles []store.Article

	for _, feedCfg := range p.cfg.EnabledFeeds() {
		logger.Info("processing feed", "feed", feedCfg.Name, "url", feedCfg.URL)

		entries, err := p.reader.Parse(ctx, feedCfg.URL)
		if err != nil {
			logger.Warn("failed to parse feed", "feed", feedCfg.Name, "error", err)
			continue
		}

		if max := p.cfg.Settings.MaxArticlesPerFeed; len(entries) > max {
			entries = entries[:max]
		}
		stats.ArticlesFound += len(entries)

		for _, entry := range entries {
			added, err := p.processEntry(ctx, logger, entry, &stats, &newArticles)
			if err != nil {
				return stats, err
			}
			if added {
				p.sleep(p.cfg.RequestDelay())
			}
		}
	}

	stats.EndTime = time.Now().Format(time.RFC3339)
	if err := p.store.LogRun(stats); err != nil {
		return stats, fmt.Errorf("failed to log run: %w", err)
	}

	if len(newArticles) > 0 {
		dateLabel := time.Now().Format("2006-01-02")
		if err := p.store.ExportBatch(newArticles, dateLabel); err != nil {
			return stats, fmt.Errorf("failed to export articles: %w", err)
		}
	}

	logger.Info("run complete",
		"found", stats.ArticlesFound,
		"new", stats.ArticlesNew,
		"skipped_duplicate", stats.ArticlesSkippedDuplicate,
		"skipped_domain", stats.ArticlesSkippedDomain)

	return stats, nil
}

// processEntry applies the dedup policy to one entry and, when it survives,
// extracts and persists it. The returned bool reports whether extraction
// succeeded, which is what gates the politeness delay. Only storage errors
// are returned.
func (p *Pipeline) processEntry(
	ctx context.Context,
	logger *slog.Logger,
	entry feed.Entry,
	stats *store.RunStats,
	newArticles *[]store.Article,
) (bool, error) {
	if entry.Link == "" {
		return false, nil
	}

	exists, err := p.store.URLExists(entry.Link)
	if err != nil {
		return false, fmt.Errorf("failed to check url: %w", err)
	}
	if exists {
		stats.ArticlesSkippedDuplicate++
		return false, nil
	}

	// Domain-level skipping is a retired policy, off by default.
	if p.cfg.Settings.SkipSameDomain {
		exists, err := p.store.DomainExists(entry.Link)
		if err != nil {
			return false, fmt.Errorf("failed to check domain: %w", err)
		}
		if exists {
			stats.ArticlesSkippedDomain++
			return false, nil
		}
	}

	logger.Info("scraping article", "url", entry.Link)
	result := p.scraper.Scrape(ctx, entry.Link)
	if !result.Success {
		logger.Warn("failed to scrape article", "url", entry.Link, "error", result.Error)
		return false, nil
	}

	article := mergeEntry(entry, result)
	id, err := p.store.AddArticle(article)
	if err != nil {
		return false, fmt.Errorf("failed to store article: %w", err)
	}
	if id != 0 {
		article.ID = id
		stats.ArticlesNew++
		*newArticles = append(*newArticles, article)
	}

	return true, nil
}

// mergeEntry combines feed metadata with extraction output. Extraction wins
// on overlapping fields; the feed-supplied image fills in when extraction
// found none.
func mergeEntry(entry feed.Entry, result scrape.Result) store.Article {
	article := store.Article{
		URL:           entry.Link,
		Title:         result.Title,
		Summary:       entry.Summary,
		Author:        entry.Author,
		PublishedDate: entry.PublishedDate,
		Tags:          entry.Tags,
		Success:       result.Success,
	}

	if result.Text != "" {
		article.Text = &result.Text
	}

	imageURL := result.ImageURL
	if imageURL == "" {
		imageURL = entry.ImageFromFeed
	}
	if imageURL != "" {
		article.ImageURL = &imageURL
	}

	if result.LocalImagePath != "" {
		article.LocalImagePath = &result.LocalImagePath
	}

	return article
}
