package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus collectors exported on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	// BuildDuration observes graph builds that missed the cache
	BuildDuration prometheus.Histogram

	// GraphVertices and GraphArcs hold the size of the last graph served
	GraphVertices prometheus.Gauge
	GraphArcs     prometheus.Gauge

	// DPStates tracks the number of DP states of the last build
	DPStates prometheus.Gauge

	// ExtractionsTotal counts solution extractions by result
	ExtractionsTotal *prometheus.CounterVec

	// CacheLookupsTotal counts graph cache lookups by result
	CacheLookupsTotal *prometheus.CounterVec

	// RequestsTotal counts HTTP requests by route and status
	RequestsTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "arcflow_build_duration_seconds",
				Help:    "Time spent building arc-flow graphs",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		GraphVertices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arcflow_graph_vertices",
				Help: "Number of vertices of the last graph served",
			},
		),
		GraphArcs: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arcflow_graph_arcs",
				Help: "Number of arcs of the last graph served",
			},
		),
		DPStates: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "arcflow_dp_states",
				Help: "Number of DP states explored by the last build",
			},
		),
		ExtractionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcflow_extractions_total",
				Help: "Total number of solution extractions",
			},
			[]string{"result"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcflow_cache_lookups_total",
				Help: "Total number of graph cache lookups",
			},
			[]string{"result"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "arcflow_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}

	m.registry.MustRegister(
		m.BuildDuration,
		m.GraphVertices,
		m.GraphArcs,
		m.DPStates,
		m.ExtractionsTotal,
		m.CacheLookupsTotal,
		m.RequestsTotal,
	)
	return m
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
