// Package metrics holds the Prometheus collectors for the pipeline and API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Registry *prometheus.Registry

	ParseOutcomes     *prometheus.CounterVec
	Searches          *prometheus.CounterVec
	EmbeddingFailures prometheus.Counter
	PipelineDuration  prometheus.Histogram
	EventsPruned      prometheus.Counter
	FeedItems         prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ParseOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchfinder",
			Name:      "parse_outcomes_total",
			Help:      "Search results parsed, by outcome and reason",
		}, []string{"outcome", "reason"}),
		Searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchfinder",
			Name:      "searches_total",
			Help:      "Pipeline searches, by status",
		}, []string{"status"}),
		EmbeddingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pitchfinder",
			Name:      "embedding_failures_total",
			Help:      "Events skipped because embedding failed",
		}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pitchfinder",
			Name:      "pipeline_duration_seconds",
			Help:      "End to end search pipeline latency",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}),
		EventsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pitchfinder",
			Name:      "events_pruned_total",
			Help:      "Events removed because they ended",
		}),
		FeedItems: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pitchfinder",
			Name:      "feed_items_total",
			Help:      "Items read from RSS and Atom feeds",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pitchfinder",
			Name:      "http_requests_total",
			Help:      "API requests, by route and status code",
		}, []string{"route", "code"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ParseOutcomes,
		m.Searches,
		m.EmbeddingFailures,
		m.PipelineDuration,
		m.EventsPruned,
		m.FeedItems,
		m.HTTPRequests,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
