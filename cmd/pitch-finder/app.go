package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aryannaik/pitch-finder/internal/cache"
	"github.com/aryannaik/pitch-finder/internal/config"
	"github.com/aryannaik/pitch-finder/internal/embeddings"
	"github.com/aryannaik/pitch-finder/internal/logging"
	"github.com/aryannaik/pitch-finder/internal/metrics"
	"github.com/aryannaik/pitch-finder/internal/parser"
	"github.com/aryannaik/pitch-finder/internal/ranker"
	"github.com/aryannaik/pitch-finder/internal/rss"
	"github.com/aryannaik/pitch-finder/internal/search"
	"github.com/aryannaik/pitch-finder/internal/server"
	"github.com/aryannaik/pitch-finder/internal/tavily"
	"github.com/aryannaik/pitch-finder/internal/vectordb"
)

// app holds everything a command needs, built once from config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	cache    cache.Cache
	store    vectordb.Store
	searcher *search.Searcher
	health   server.HealthCheck
}

// openCache is swapped out in tests.
var openCache = func(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemory(512, cfg.CacheTTL), nil
	}
	rc, err := cache.NewRedis(ctx, cfg.RedisURL, "pitch-finder", cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return rc, nil
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.cache, err = openCache(ctx, cfg); err != nil {
		return nil, err
	}

	tagger, err := parser.LoadTagger(cfg.TagRulesPath)
	if err != nil {
		return nil, err
	}
	p := parser.New(parser.WithLogger(logger), parser.WithTagger(tagger))

	embedder, err := embeddings.New(embeddings.Config{
		Provider:   cfg.EmbeddingProvider,
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
		OllamaHost: cfg.OllamaHost,
	})
	if err != nil {
		return nil, err
	}
	if o, ok := embedder.(*embeddings.Ollama); ok {
		a.health = o.IsHealthy
	}

	store, err := vectordb.Open(ctx, vectordb.Options{
		Backend:     cfg.VectorDBType,
		DataDir:     cfg.DataDir,
		SQLitePath:  cfg.SQLitePath,
		PostgresDSN: cfg.PostgresDSN,
		Dimensions:  cfg.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("open vector db: %w", err)
	}
	a.store = store

	var matcher ranker.LocationMatcher
	if cfg.OpenAIAPIKey != "" {
		matcher = ranker.NewLLMMatcher(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.LLMModel, a.cache, logger)
	}
	r := ranker.New(matcher, ranker.WithLogger(logger))

	opts := []search.Option{search.WithLogger(logger), search.WithMetrics(a.metrics)}
	if cfg.TavilyAPIKey != "" {
		opts = append(opts, search.WithWebSearch(tavily.NewClient(cfg.TavilyAPIKey,
			tavily.WithMaxResults(cfg.SearchMaxResults),
			tavily.WithRateLimit(cfg.SearchRatePerSecond),
			tavily.WithCache(a.cache, cfg.CacheTTL),
			tavily.WithLogger(logger),
		)))
	}
	if len(cfg.FeedURLs) > 0 {
		opts = append(opts, search.WithFeeds(rss.NewFetcher(cfg.FeedURLs, 3, logger)))
	}
	a.searcher = search.NewSearcher(p, embedder, store, r, opts...)

	logger.Debug("app initialised",
		"embedding_provider", cfg.EmbeddingProvider,
		"vector_db", cfg.VectorDBType,
		"feeds", len(cfg.FeedURLs),
		"redis", cfg.RedisURL != "")
	return a, nil
}

// Close releases whatever newApp managed to open.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close vector db", "error", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("close cache", "error", err)
		}
	}
}
