// Package rss pulls event listings from RSS and Atom feeds.
package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/aryannaik/pitch-finder/internal/parser"
)

const sourceName = "rss"

// Fetcher reads a fixed set of feeds with a small worker pool.
type Fetcher struct {
	feeds   []string
	client  *http.Client
	workers int
	logger  *slog.Logger
}

// NewFetcher drops URLs that are not http(s). workers <= 0 means 3.
func NewFetcher(feeds []string, workers int, logger *slog.Logger) *Fetcher {
	if workers <= 0 {
		workers = 3
	}
	if logger == nil {
		logger = slog.Default()
	}

	valid := make([]string, 0, len(feeds))
	for _, f := range feeds {
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			valid = append(valid, f)
		} else {
			logger.Warn("ignoring feed with unsupported scheme", "url", f)
		}
	}

	return &Fetcher{
		feeds:   valid,
		client:  &http.Client{Timeout: 30 * time.Second},
		workers: workers,
		logger:  logger,
	}
}

// Feeds returns the configured feed URLs.
func (f *Fetcher) Feeds() []string {
	return f.feeds
}

// FetchAll fetches every feed and returns their items as search results,
// deduplicated by link. Feeds that fail are logged and skipped.
func (f *Fetcher) FetchAll(ctx context.Context) []parser.SearchResult {
	queue := make(chan string, len(f.feeds))
	for _, u := range f.feeds {
		queue <- u
	}
	close(queue)

	out := make(chan []parser.SearchResult, len(f.feeds))
	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go f.worker(ctx, queue, out, &wg)
	}
	wg.Wait()
	close(out)

	seen := make(map[string]bool)
	var results []parser.SearchResult
	for batch := range out {
		for _, r := range batch {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			results = append(results, r)
		}
	}
	return results
}

func (f *Fetcher) worker(ctx context.Context, queue <-chan string, out chan<- []parser.SearchResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case feedURL, ok := <-queue:
			if !ok {
				return
			}
			results, err := f.FetchFeed(ctx, feedURL)
			if err != nil {
				f.logger.Warn("failed to fetch feed", "url", feedURL, "error", err)
				continue
			}
			out <- results
		}
	}
}

// FetchFeed fetches and parses a single feed.
func (f *Fetcher) FetchFeed(ctx context.Context, feedURL string) ([]parser.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "pitch-finder/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status: %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	results := make([]parser.SearchResult, 0, len(feed.Items))
	for _, item := range feed.Items {
		results = append(results, toResult(item))
	}
	f.logger.Info("fetched feed", "url", feedURL, "title", feed.Title, "items", len(results))
	return results, nil
}

func toResult(item *gofeed.Item) parser.SearchResult {
	r := parser.SearchResult{
		Title:   strings.TrimSpace(item.Title),
		Snippet: parser.PlainText(item.Description),
		URL:     strings.TrimSpace(item.Link),
		Source:  sourceName,
		Score:   0.5,
	}
	if r.Snippet == "" {
		r.Snippet = parser.PlainText(item.Content)
	}
	// Full content goes through the HTML extractors; it may carry JSON-LD.
	if strings.Contains(item.Content, "<") {
		r.HTML = item.Content
	}
	return r
}
