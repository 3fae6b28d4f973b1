// Package metrics defines the Prometheus metric collectors used across the
// electoral map core and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the boundary and cache
// subsystems.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	BoundaryLoadsTotal   *prometheus.CounterVec
	BoundaryLoadSeconds  prometheus.Histogram
	BoundaryFeatures     prometheus.Gauge
	BoundaryLevelUnits   *prometheus.GaugeVec
	JoinsTotal           *prometheus.CounterVec
	JoinDuration         prometheus.Histogram
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	InvalidationsTotal   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
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
		BoundaryLoadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boundary_loads_total",
				Help: "Total boundary index load attempts by outcome (ok, unavailable, invalid).",
			},
			[]string{"outcome"},
		),
		BoundaryLoadSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boundary_load_seconds",
				Help:    "Wall time of a full boundary payload load and index build.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		BoundaryFeatures: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "boundary_features",
				Help: "Number of leaf features held by the boundary index.",
			},
		),
		BoundaryLevelUnits: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "boundary_level_units",
				Help: "Number of distinct administrative units per level.",
			},
			[]string{"level"},
		),
		JoinsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "choropleth_joins_total",
				Help: "Total choropleth joins by kind (join, boundaries_only) and outcome (ok, not_loaded, rejected).",
			},
			[]string{"kind", "outcome"},
		),
		JoinDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "choropleth_join_seconds",
				Help:    "Choropleth join latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total cache hits by tier (memory, persistent).",
			},
			[]string{"tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total cache misses by tier (memory, persistent).",
			},
			[]string{"tier"},
		),
		InvalidationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_invalidations_total",
				Help: "Total cache invalidation operations.",
			},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.BoundaryLoadsTotal,
		m.BoundaryLoadSeconds,
		m.BoundaryFeatures,
		m.BoundaryLevelUnits,
		m.JoinsTotal,
		m.JoinDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.InvalidationsTotal,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
