// Package metrics collects search pipeline metrics behind a small
// interface so callers can run with a no-op collector in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records pipeline observations.
type Collector interface {
	ObserveStage(stage string, d time.Duration)
	IncSearch(status string)
	IncDegraded(reason string)
	IncCache(outcome string)
}

// PrometheusCollector is the production Collector backed by a private
// registry.
type PrometheusCollector struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	searchesTotal *prometheus.CounterVec
	degradedTotal *prometheus.CounterVec
	cacheTotal    *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector with its own registry.
func NewPrometheusCollector() *PrometheusCollector {
	registry := prometheus.NewRegistry()

	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_stage_duration_seconds",
			Help:    "Duration of search pipeline stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 3.0},
		},
		[]string{"stage"},
	)
	searchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_requests_total",
			Help: "Total search requests by status",
		},
		[]string{"status"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_degraded_total",
			Help: "Degraded responses by reason",
		},
		[]string{"reason"},
	)
	cacheTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_total",
			Help: "Result cache outcomes",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(stageDuration, searchesTotal, degradedTotal, cacheTotal)

	return &PrometheusCollector{
		registry:      registry,
		stageDuration: stageDuration,
		searchesTotal: searchesTotal,
		degradedTotal: degradedTotal,
		cacheTotal:    cacheTotal,
	}
}

// Registry exposes the private registry for the /metrics handler.
func (c *PrometheusCollector) Registry() *prometheus.Registry { return c.registry }

func (c *PrometheusCollector) ObserveStage(stage string, d time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *PrometheusCollector) IncSearch(status string) {
	c.searchesTotal.WithLabelValues(status).Inc()
}

func (c *PrometheusCollector) IncDegraded(reason string) {
	c.degradedTotal.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) IncCache(outcome string) {
	c.cacheTotal.WithLabelValues(outcome).Inc()
}
