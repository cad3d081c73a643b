// Package middleware provides cross-cutting concerns for the leaderboard:
// Prometheus metrics and snapshot-loader decorators.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// PrometheusMetrics implements the MetricsCollector interface using Prometheus.
// Known metric names from the ports package map to dedicated instruments;
// anything else lands in the generic leaderboard_events_total and
// leaderboard_state instruments keyed by a "metric" label.
type PrometheusMetrics struct {
	requests       *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	invalidations  *prometheus.CounterVec
	anomalies      *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	cohortSize     *prometheus.GaugeVec
	filteredAgents *prometheus.HistogramVec
	tierAgents     *prometheus.GaugeVec
	events         *prometheus.CounterVec
	state          *prometheus.GaugeVec
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance and registers
// all required metrics in the global Prometheus registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusMetricsWithRegistry registers the metrics in reg.
func NewPrometheusMetricsWithRegistry(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricRequests,
				Help: "Leaderboard service calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricCacheLookups,
				Help: "Ranking cache lookups by result.",
			},
			[]string{"result"},
		),
		invalidations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricCacheInvalidations,
				Help: "Explicit ranking cache invalidations by reason.",
			},
			[]string{"reason"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: ports.MetricAnomalies,
				Help: "Out-of-range agent metric fields clamped on ingestion.",
			},
			[]string{"field"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leaderboard_operation_duration_seconds",
				Help:    "Duration of leaderboard operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "label"},
		),
		cohortSize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: ports.MetricCohortSize,
				Help: "Number of agents in the most recently loaded snapshot.",
			},
			[]string{"source"},
		),
		filteredAgents: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    ports.MetricFilteredAgents,
				Help:    "Size of the filtered cohort per computed ranking.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"sort_by"},
		),
		tierAgents: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: ports.MetricTierAgents,
				Help: "Agents per tier in the full cohort.",
			},
			[]string{"tier"},
		),
		events: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leaderboard_events_total",
				Help: "Counters without a dedicated instrument.",
			},
			[]string{"metric"},
		),
		state: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leaderboard_state",
				Help: "Gauges without a dedicated instrument.",
			},
			[]string{"metric"},
		),
	}
}

// label returns labels[key], or "unknown" when it is missing or empty.
func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

// RecordLatency implements the MetricsCollector interface. The secondary
// label is the loader "source" when present, else the request "outcome".
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	secondary := labels["source"]
	if secondary == "" {
		secondary = label(labels, "outcome")
	}
	pm.latency.WithLabelValues(operation, secondary).Observe(duration.Seconds())
}

// RecordCounter implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricRequests:
		pm.requests.WithLabelValues(label(labels, "operation"), label(labels, "outcome")).Add(value)
	case ports.MetricCacheLookups:
		pm.cacheLookups.WithLabelValues(label(labels, "result")).Add(value)
	case ports.MetricCacheInvalidations:
		pm.invalidations.WithLabelValues(label(labels, "reason")).Add(value)
	case ports.MetricAnomalies:
		pm.anomalies.WithLabelValues(label(labels, "field")).Add(value)
	default:
		pm.events.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements the MetricsCollector interface.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricCohortSize:
		pm.cohortSize.WithLabelValues(label(labels, "source")).Set(value)
	case ports.MetricTierAgents:
		pm.tierAgents.WithLabelValues(label(labels, "tier")).Set(value)
	default:
		pm.state.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram implements the MetricsCollector interface. Histograms
// without a dedicated instrument are recorded as operation latencies in
// seconds.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case ports.MetricFilteredAgents:
		pm.filteredAgents.WithLabelValues(label(labels, "sort_by")).Observe(value)
	default:
		pm.latency.WithLabelValues(metric, "unknown").Observe(value)
	}
}

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
