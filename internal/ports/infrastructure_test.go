package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// Test that our interfaces can be implemented correctly

// mockLoader implements SnapshotLoader.
type mockLoader struct{ cohort []domain.AgentMetric }

func (m *mockLoader) LoadCohort(ctx context.Context) ([]domain.AgentMetric, error) {
	return m.cohort, nil
}

func (m *mockLoader) Name() string { return "mock" }

// mockCacheStore implements CacheStore interface
type mockCacheStore struct{ data map[string]any }

// newMockCacheStore creates a new mock cache store for testing.
func newMockCacheStore() *mockCacheStore {
	return &mockCacheStore{
		data: make(map[string]any),
	}
}

func (m *mockCacheStore) Get(ctx context.Context, key string) (any, bool, error) {
	val, exists := m.data[key]
	return val, exists, nil
}

func (m *mockCacheStore) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *mockCacheStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockCacheStore) Clear(ctx context.Context) error {
	clear(m.data)
	return nil
}

// mockMetrics implements MetricsCollector and records counters.
type mockMetrics struct{ counters map[string]float64 }

func (m *mockMetrics) RecordLatency(string, time.Duration, map[string]string) {}

func (m *mockMetrics) RecordCounter(metric string, value float64, _ map[string]string) {
	m.counters[metric] += value
}

func (m *mockMetrics) RecordGauge(string, float64, map[string]string) {}

func (m *mockMetrics) RecordHistogram(string, float64, map[string]string) {}

// mockNotifier implements ChangeNotifier.
type mockNotifier struct{ ch chan string }

func (m *mockNotifier) WaitForChange(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case v := <-m.ch:
		return v, nil
	}
}

func TestSnapshotLoaderInterface(t *testing.T) {
	var loader SnapshotLoader = &mockLoader{cohort: []domain.AgentMetric{{AgentID: "agt_a"}}}

	cohort, err := loader.LoadCohort(context.Background())
	require.NoError(t, err)
	assert.Len(t, cohort, 1)
	assert.Equal(t, "mock", loader.Name())
}

func TestCacheStoreInterface(t *testing.T) {
	var cache CacheStore = newMockCacheStore()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k", 1, time.Minute))
	v, ok, err := cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	require.NoError(t, cache.Delete(ctx, "k"))
	_, ok, _ = cache.Get(ctx, "k")
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "a", 1, 0))
	require.NoError(t, cache.Clear(ctx))
	_, ok, _ = cache.Get(ctx, "a")
	assert.False(t, ok)
}

func TestMetricsCollectorInterface(t *testing.T) {
	m := &mockMetrics{counters: map[string]float64{}}
	var collector MetricsCollector = m

	collector.RecordCounter("ranking_cache_hits_total", 1, nil)
	collector.RecordCounter("ranking_cache_hits_total", 2, nil)
	collector.RecordLatency("rank", time.Millisecond, nil)
	assert.Equal(t, 3.0, m.counters["ranking_cache_hits_total"])
}

func TestChangeNotifierInterface(t *testing.T) {
	n := &mockNotifier{ch: make(chan string, 1)}
	var notifier ChangeNotifier = n

	n.ch <- "agt_a"
	got, err := notifier.WaitForChange(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "agt_a", got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = notifier.WaitForChange(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
