// Package metrics defines the Prometheus metric collectors used across the
// platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal      *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	HTTPRequestsInFlight   prometheus.Gauge
	HTTPResponseBytes      *prometheus.HistogramVec
	DigestsComputedTotal   *prometheus.CounterVec
	DigestDuration         prometheus.Histogram
	DigestChunks           prometheus.Histogram
	SimilarityRequests     *prometheus.CounterVec
	SimilarityScores       prometheus.Histogram
	CacheHitsTotal         prometheus.Counter
	CacheMissesTotal       prometheus.Counter
	CorpusDocuments        prometheus.Gauge
	CorpusFingerprints     prometheus.Gauge
	DigestStoreWritesTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates all metrics and registers them with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		HTTPResponseBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response body size in bytes.",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8),
			},
			[]string{"method", "path"},
		),
		DigestsComputedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fbhash_digests_computed_total",
				Help: "Total digests computed by source (computed, cache, store).",
			},
			[]string{"source"},
		),
		DigestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fbhash_digest_duration_seconds",
				Help:    "Time to chunk, hash and weight one document.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		DigestChunks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fbhash_digest_chunks",
				Help:    "Number of chunks per digested document.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 12),
			},
		),
		SimilarityRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fbhash_similarity_requests_total",
				Help: "Similarity requests by result (scored, invalid, error).",
			},
			[]string{"result"},
		),
		SimilarityScores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fbhash_similarity_score",
				Help:    "Distribution of similarity scores in percent.",
				Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 99, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of digest cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of digest cache misses.",
			},
		),
		CorpusDocuments: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fbhash_corpus_documents",
				Help: "Number of documents in the reference corpus.",
			},
		),
		CorpusFingerprints: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "fbhash_corpus_fingerprints",
				Help: "Number of distinct fingerprints in the reference corpus.",
			},
		),
		DigestStoreWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fbhash_digest_store_writes_total",
				Help: "Digest store writes by status.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.HTTPResponseBytes,
		m.DigestsComputedTotal,
		m.DigestDuration,
		m.DigestChunks,
		m.SimilarityRequests,
		m.SimilarityScores,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CorpusDocuments,
		m.CorpusFingerprints,
		m.DigestStoreWritesTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
