// Package prometheus records pipeline metrics with Prometheus collectors and
// exposes them for scraping.
package prometheus

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/custodia-labs/brief-cli/internal/core/domain"
	"github.com/custodia-labs/brief-cli/internal/core/ports/driven"
)

// namespace prefixes every metric name.
const namespace = "brief"

// Ensure Recorder implements the interface.
var _ driven.MetricsRecorder = (*Recorder)(nil)

// Recorder holds the pipeline collectors on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	IngestsTotal       *prometheus.CounterVec
	IngestDuration     prometheus.Histogram
	EmbeddedTotal      prometheus.Counter
	BatchesFailed      prometheus.Counter
	RateLimitedTotal   prometheus.Counter
	SearchesTotal      *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	SearchResultsCount prometheus.Histogram

	// Set by ObserveQueryCache.
	QueryCacheHits   prometheus.CounterFunc
	QueryCacheMisses prometheus.CounterFunc
}

// New creates a recorder and registers its collectors, plus the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		IngestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingests_total",
				Help:      "Documents ingested by outcome.",
			},
			[]string{"outcome"},
		),
		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_duration_seconds",
				Help:      "Time to ingest one document.",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		EmbeddedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fragments_embedded_total",
				Help:      "Fragments stored with an embedding.",
			},
		),
		BatchesFailed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_batches_failed_total",
				Help:      "Embedding batches that failed and were skipped.",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Provider calls rejected by a rate limit.",
			},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Search calls by result type (hit, zero_result, error).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Search latency in seconds, including the query embedding.",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of results returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
	}

	r.registry.MustRegister(
		r.IngestsTotal,
		r.IngestDuration,
		r.EmbeddedTotal,
		r.BatchesFailed,
		r.RateLimitedTotal,
		r.SearchesTotal,
		r.SearchLatency,
		r.SearchResultsCount,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// IngestCompleted records one finished ingestion.
func (r *Recorder) IngestCompleted(outcome domain.IngestOutcome, elapsed time.Duration) {
	r.IngestsTotal.WithLabelValues(string(outcome)).Inc()
	r.IngestDuration.Observe(elapsed.Seconds())
}

// FragmentsEmbedded records fragments that received a vector.
func (r *Recorder) FragmentsEmbedded(n int) {
	if n > 0 {
		r.EmbeddedTotal.Add(float64(n))
	}
}

// BatchFailed records an embedding batch that failed.
func (r *Recorder) BatchFailed() {
	r.BatchesFailed.Inc()
}

// RateLimited records a call rejected by a rate limit.
func (r *Recorder) RateLimited() {
	r.RateLimitedTotal.Inc()
}

// SearchCompleted records one search call.
func (r *Recorder) SearchCompleted(results int, elapsed time.Duration, err error) {
	switch {
	case err != nil:
		r.SearchesTotal.WithLabelValues("error").Inc()
		return
	case results == 0:
		r.SearchesTotal.WithLabelValues("zero_result").Inc()
	default:
		r.SearchesTotal.WithLabelValues("hit").Inc()
	}
	r.SearchLatency.Observe(elapsed.Seconds())
	r.SearchResultsCount.Observe(float64(results))
}

// ObserveQueryCache exports the query cache hit and miss counters read from stats
// at scrape time. It can be called once per recorder.
func (r *Recorder) ObserveQueryCache(stats func() (hits, misses int64)) error {
	hits := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_hits_total",
			Help:      "Query embeddings served from the cache.",
		},
		func() float64 {
			h, _ := stats()
			return float64(h)
		},
	)
	misses := prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_cache_misses_total",
			Help:      "Query embeddings not found in the cache.",
		},
		func() float64 {
			_, m := stats()
			return float64(m)
		},
	)
	if err := r.registry.Register(hits); err != nil {
		return fmt.Errorf("registering cache hits: %w", err)
	}
	if err := r.registry.Register(misses); err != nil {
		r.registry.Unregister(hits)
		return fmt.Errorf("registering cache misses: %w", err)
	}
	r.QueryCacheHits = hits
	r.QueryCacheMisses = misses
	return nil
}

// Handler returns the scrape handler for this recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
