// Package tavily searches the web for event listings through the Tavily API.
package tavily

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/aryannaik/pitch-finder/internal/cache"
	"github.com/aryannaik/pitch-finder/internal/event"
	"github.com/aryannaik/pitch-finder/internal/parser"
)

const (
	DefaultBaseURL = "https://api.tavily.com"
	sourceName     = "tavily"
)

type Client struct {
	http       *resty.Client
	maxResults int
	limiter    *rate.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.http.SetBaseURL(url) }
}

func WithMaxResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1) }
}

// WithCache stores normalized results under a key derived from the request.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.http.SetRetryWaitTime(min).SetRetryMaxWaitTime(max)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetAuthToken(apiKey).
			SetHeader("Content-Type", "application/json").
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(2 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			}),
		maxResults: 50,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs an enhanced query restricted to event platforms and returns
// the hits deduplicated by URL.
func (c *Client) Search(ctx context.Context, q event.Query) ([]parser.SearchResult, error) {
	req := searchRequest{
		Query:          EnhanceQuery(q),
		SearchDepth:    "advanced",
		MaxResults:     c.maxResults,
		IncludeDomains: EventDomains,
	}

	var key string
	if c.cache != nil {
		body, _ := json.Marshal(req)
		key = cache.Key(sourceName, string(body))
		if cached, ok := c.cachedResults(ctx, key); ok {
			return cached, nil
		}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	c.logger.Info("searching tavily", "query", req.Query)

	var out apiResponse
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(&apiErr).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	if resp.IsError() {
		if apiErr.Detail.Error != "" {
			return nil, fmt.Errorf("tavily search: status %d: %s", resp.StatusCode(), apiErr.Detail.Error)
		}
		return nil, fmt.Errorf("tavily search: status %d", resp.StatusCode())
	}

	results := Dedupe(convertResults(out.Results))
	if len(results) > c.maxResults {
		results = results[:c.maxResults]
	}
	c.logger.Info("tavily search complete", "results", len(results))

	if c.cache != nil {
		if data, err := json.Marshal(results); err == nil {
			if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
				c.logger.Warn("failed to cache search results", "error", err)
			}
		}
	}
	return results, nil
}

func (c *Client) cachedResults(ctx context.Context, key string) ([]parser.SearchResult, bool) {
	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("search cache lookup failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var results []parser.SearchResult
	if err := json.Unmarshal(data, &results); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "error", err)
		return nil, false
	}
	c.logger.Debug("search cache hit", "results", len(results))
	return results, true
}

func convertResults(in []apiResult) []parser.SearchResult {
	out := make([]parser.SearchResult, 0, len(in))
	for _, r := range in {
		score := r.Score
		if score == 0 {
			score = 0.5
		}
		out = append(out, parser.SearchResult{
			Title:   r.Title,
			Snippet: r.Content,
			URL:     r.URL,
			HTML:    r.RawContent,
			Source:  sourceName,
			Score:   score,
		})
	}
	return out
}

// Dedupe drops results without a URL and repeats of an earlier URL.
func Dedupe(results []parser.SearchResult) []parser.SearchResult {
	seen := make(map[string]bool, len(results))
	out := make([]parser.SearchResult, 0, len(results))
	for _, r := range results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}
