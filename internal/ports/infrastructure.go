package ports

import (
	"context"
	"time"
)

// CacheStore holds computed ranking results keyed by snapshot generation and
// query. It is an optimization only: ranking is a pure function of the
// snapshot and the query, so a cold or cleared store returns the same answers.
type CacheStore interface {
	// Get returns the value stored under key and whether it was present.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores value under key. A zero expiration uses the store default.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Delete drops key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Clear drops every entry. Called when the metrics source reports a change.
	Clear(ctx context.Context) error
}

// MetricsCollector receives operational measurements from the service layer.
// Metric names are the Metric* constants; labels are low-cardinality.
type MetricsCollector interface {
	// RecordLatency observes how long operation took.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter adds value to a counter such as cache lookups or anomalies.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets a point-in-time value such as the cohort size.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram observes one sample of a distribution.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
