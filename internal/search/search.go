// Package search runs the end to end pipeline: web search, parsing,
// embedding, storage, retrieval and ranking.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aryannaik/pitch-finder/internal/embeddings"
	"github.com/aryannaik/pitch-finder/internal/event"
	"github.com/aryannaik/pitch-finder/internal/metrics"
	"github.com/aryannaik/pitch-finder/internal/parser"
	"github.com/aryannaik/pitch-finder/internal/ranker"
	"github.com/aryannaik/pitch-finder/internal/vectordb"
)

const (
	parseLimit      = 10
	candidateLimit  = 20
	embedWorkers    = 4
	defaultSimilarN = 10
)

// WebSearch finds raw hits for a query.
type WebSearch interface {
	Search(ctx context.Context, q event.Query) ([]parser.SearchResult, error)
}

// FeedSource returns the current items of the configured feeds.
type FeedSource interface {
	FetchAll(ctx context.Context) []parser.SearchResult
}

var ErrNoWebSearch = errors.New("web search is not configured")

type Searcher struct {
	web      WebSearch
	feeds    FeedSource
	parser   *parser.Parser
	embedder embeddings.Embedder
	store    vectordb.Store
	ranker   *ranker.Ranker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type Option func(*Searcher)

func WithWebSearch(w WebSearch) Option {
	return func(s *Searcher) { s.web = w }
}

func WithFeeds(f FeedSource) Option {
	return func(s *Searcher) { s.feeds = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(s *Searcher) { s.now = now }
}

func NewSearcher(p *parser.Parser, embedder embeddings.Embedder, store vectordb.Store, r *ranker.Ranker, opts ...Option) *Searcher {
	s := &Searcher{
		parser:   p,
		embedder: embedder,
		store:    store,
		ranker:   r,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestStats summarises one ingest pass.
type IngestStats struct {
	Parsed   int `json:"parsed"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Stored   int `json:"stored"`
	Failed   int `json:"failed"`
}

// Search runs a web search, stores what it can parse, then ranks the
// closest stored events against the query.
func (s *Searcher) Search(ctx context.Context, q event.Query) ([]event.Ranked, error) {
	start := time.Now()
	ranked, err := s.search(ctx, q)
	if s.metrics != nil {
		s.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
		status := "ok"
		if err != nil {
			status = "error"
		}
		s.metrics.Searches.WithLabelValues(status).Inc()
	}
	return ranked, err
}

func (s *Searcher) search(ctx context.Context, q event.Query) ([]event.Ranked, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	if s.web == nil {
		return nil, ErrNoWebSearch
	}

	hits, err := s.web.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	s.logger.Info("web search returned hits", "intent", q.Intent, "hits", len(hits))
	if len(hits) == 0 {
		return []event.Ranked{}, nil
	}
	if len(hits) > parseLimit {
		hits = hits[:parseLimit]
	}

	stats, err := s.Ingest(ctx, hits)
	if err != nil {
		return nil, err
	}
	if stats.Accepted == 0 {
		return []event.Ranked{}, nil
	}

	return s.Retrieve(ctx, q)
}

// Retrieve ranks already stored events against q without searching the web.
func (s *Searcher) Retrieve(ctx context.Context, q event.Query) ([]event.Ranked, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}

	vec, err := s.embedder.Embed(ctx, embeddings.QueryText(q.Intent))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	filter := vectordb.Filter{Status: event.StatusActive}
	if q.PitchOnly {
		yes := true
		filter = vectordb.Filter{HasPitchSlots: &yes}
	}
	if q.OnlineOnly {
		filter.VenueType = event.VenueOnline
	}

	candidates, err := s.store.Search(ctx, vec, candidateLimit, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	candidates = withinDates(candidates, q.DateFrom, q.DateTo)

	ranked := s.ranker.Rank(ctx, q, candidates)
	if len(ranked) > q.MaxResults {
		ranked = ranked[:q.MaxResults]
	}
	return ranked, nil
}

func withinDates(results []vectordb.Result, from, to *time.Time) []vectordb.Result {
	if from == nil && to == nil {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if from != nil && r.Event.StartUTC.Before(*from) {
			continue
		}
		if to != nil && r.Event.StartUTC.After(*to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Ingest parses results and stores every accepted event with its summary and
// embedding. Events that fail to embed or store are logged and counted.
func (s *Searcher) Ingest(ctx context.Context, results []parser.SearchResult) (IngestStats, error) {
	var stats IngestStats
	var accepted []event.Event

	for _, res := range results {
		d := s.parser.Parse(res)
		stats.Parsed++
		if s.metrics != nil {
			s.metrics.ParseOutcomes.WithLabelValues(string(d.Outcome), d.Reason).Inc()
		}
		if !d.Accepted() {
			stats.Rejected++
			continue
		}
		accepted = append(accepted, *d.Event)
	}
	stats.Accepted = len(accepted)

	var stored, failed int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for _, ev := range accepted {
		ev := ev
		g.Go(func() error {
			if err := s.storeEvent(gctx, ev); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				atomic.AddInt64(&failed, 1)
				s.logger.Warn("failed to store event", "event_id", ev.ID, "title", ev.Title, "error", err)
				return nil
			}
			atomic.AddInt64(&stored, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("ingest: %w", err)
	}

	stats.Stored = int(stored)
	stats.Failed = int(failed)
	s.logger.Info("ingested search results",
		"parsed", stats.Parsed, "accepted", stats.Accepted, "rejected", stats.Rejected,
		"stored", stats.Stored, "failed", stats.Failed)
	return stats, nil
}

func (s *Searcher) storeEvent(ctx context.Context, ev event.Event) error {
	ev.ShortSummary = embeddings.Summary(ev)
	vec, err := s.embedder.Embed(ctx, embeddings.EmbeddingText(ev))
	if err != nil {
		if s.metrics != nil {
			s.metrics.EmbeddingFailures.Inc()
		}
		return fmt.Errorf("embed event: %w", err)
	}
	ev.EmbeddingID = ev.ID
	return s.store.Upsert(ctx, ev, vec)
}

// IngestFeeds pulls every configured feed through Ingest.
func (s *Searcher) IngestFeeds(ctx context.Context) (IngestStats, error) {
	if s.feeds == nil {
		return IngestStats{}, nil
	}
	items := s.feeds.FetchAll(ctx)
	if s.metrics != nil {
		s.metrics.FeedItems.Add(float64(len(items)))
	}
	return s.Ingest(ctx, items)
}

// Get returns a stored event.
func (s *Searcher) Get(ctx context.Context, id string) (*event.Event, error) {
	ev, _, err := s.store.Get(ctx, id)
	return ev, err
}

// FindSimilar returns the stored events closest to the event with the given ID.
func (s *Searcher) FindSimilar(ctx context.Context, id string, limit int) ([]vectordb.Result, error) {
	if limit <= 0 {
		limit = defaultSimilarN
	}

	_, vec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.Search(ctx, vec, limit, vectordb.Filter{ExcludeID: id})
}

// Prune deletes events that have already ended.
func (s *Searcher) Prune(ctx context.Context) (int, error) {
	n, err := s.store.DeleteEndedBefore(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.EventsPruned.Add(float64(n))
	}
	s.logger.Info("pruned ended events", "removed", n)
	return n, nil
}

// Count returns the number of stored events.
func (s *Searcher) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Parse runs the parser on one result without storing it.
func (s *Searcher) Parse(res parser.SearchResult) parser.Decision {
	return s.parser.Parse(res)
}
