package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// scriptedLoader returns errs in order, then succeeds.
type scriptedLoader struct {
	errs  []error
	delay time.Duration
	calls atomic.Int32
}

func (l *scriptedLoader) LoadCohort(ctx context.Context) ([]domain.AgentMetric, error) {
	n := int(l.calls.Add(1))
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= len(l.errs) {
		return nil, l.errs[n-1]
	}
	return []domain.AgentMetric{{AgentID: "agt_a"}, {AgentID: "agt_b"}}, nil
}

func (l *scriptedLoader) Name() string { return "scripted" }

func unavailable() error {
	return ports.NewLoaderError("scripted", "load", ports.ErrServiceUnavailable)
}

func TestRetry(t *testing.T) {
	t.Run("recovers from transient failures", func(t *testing.T) {
		base := &scriptedLoader{errs: []error{unavailable(), unavailable()}}
		l := Retry(3, time.Millisecond, 5*time.Millisecond)(base)

		cohort, err := l.LoadCohort(context.Background())
		require.NoError(t, err)
		assert.Len(t, cohort, 2)
		assert.Equal(t, int32(3), base.calls.Load())
		assert.Equal(t, "scripted", l.Name())
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		base := &scriptedLoader{errs: []error{unavailable(), unavailable(), unavailable()}}
		l := Retry(1, time.Millisecond, time.Millisecond)(base)

		_, err := l.LoadCohort(context.Background())
		assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
		assert.Equal(t, int32(2), base.calls.Load())
	})

	t.Run("does not retry permanent failures", func(t *testing.T) {
		base := &scriptedLoader{errs: []error{ports.NewLoaderError("scripted", "decode", ports.ErrInvalidSnapshot)}}
		l := Retry(5, time.Millisecond, time.Millisecond)(base)

		_, err := l.LoadCohort(context.Background())
		assert.ErrorIs(t, err, ports.ErrInvalidSnapshot)
		assert.Equal(t, int32(1), base.calls.Load())
	})

	t.Run("does not retry an open circuit", func(t *testing.T) {
		open := ports.NewLoaderError("scripted", "load", errors.Join(ports.ErrServiceUnavailable, ErrCircuitOpen))
		base := &scriptedLoader{errs: []error{open}}
		l := Retry(5, time.Millisecond, time.Millisecond)(base)

		_, err := l.LoadCohort(context.Background())
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, int32(1), base.calls.Load())
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		base := &scriptedLoader{errs: []error{unavailable(), unavailable()}}
		l := Retry(5, time.Hour, time.Hour)(base)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := l.LoadCohort(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, int32(1), base.calls.Load())
	})
}

func TestBackoff(t *testing.T) {
	for attempt := range 40 {
		d := backoff(attempt, 10*time.Millisecond, time.Second)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, time.Second)
	}
	// Attempt 0 stays within ±25% of the base delay.
	d := backoff(0, 100*time.Millisecond, time.Second)
	assert.GreaterOrEqual(t, d, 75*time.Millisecond)
	assert.LessOrEqual(t, d, 125*time.Millisecond)
}

func TestTimeout(t *testing.T) {
	base := &scriptedLoader{delay: time.Second}
	l := Timeout(20 * time.Millisecond)(base)

	_, err := l.LoadCohort(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrTimeout)

	var le *ports.LoaderError
	require.ErrorAs(t, err, &le)
	assert.True(t, le.IsRetryable())

	fast := Timeout(time.Second)(&scriptedLoader{})
	cohort, err := fast.LoadCohort(context.Background())
	require.NoError(t, err)
	assert.Len(t, cohort, 2)
}

func TestCircuitBreaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	failing := errors.New("down")
	assert.ErrorIs(t, cb.Call(func() error { return failing }), failing)
	assert.False(t, cb.Open())
	assert.ErrorIs(t, cb.Call(func() error { return failing }), failing)
	assert.True(t, cb.Open())

	called := false
	assert.ErrorIs(t, cb.Call(func() error { called = true; return nil }), ErrCircuitOpen)
	assert.False(t, called)

	// After the cooldown a probe goes through; a failure reopens at once.
	now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, cb.Call(func() error { return failing }), failing)
	assert.True(t, cb.Open())

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.False(t, cb.Open())
}

func TestCircuitBreaker_SingleTrialWhenHalfOpen(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { mu.Lock(); defer mu.Unlock(); return now }

	require.Error(t, cb.Call(func() error { return errors.New("down") }))
	require.True(t, cb.Open())

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Call(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	called := false
	assert.ErrorIs(t, cb.Call(func() error { called = true; return nil }), ErrCircuitOpen)
	assert.False(t, called)
	assert.True(t, cb.Open())

	close(release)
	require.NoError(t, <-done)
	assert.False(t, cb.Open())
	require.NoError(t, cb.Call(func() error { return nil }))
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)

	for range 3 {
		assert.ErrorIs(t, cb.Call(func() error { return context.Canceled }), context.Canceled)
	}
	assert.False(t, cb.Open())
}

func TestBreaker_CallerDeadlinesDoNotTrip(t *testing.T) {
	base := &scriptedLoader{delay: 50 * time.Millisecond}
	l := Chain(base, Breaker(NewCircuitBreaker(5, 30*time.Second)), Timeout(time.Second))

	for range 5 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := l.LoadCohort(ctx)
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	cohort, err := l.LoadCohort(context.Background())
	require.NoError(t, err)
	assert.Len(t, cohort, 2)
}

func TestBreaker_TimeoutInsideCounts(t *testing.T) {
	base := &scriptedLoader{delay: time.Second}
	l := Chain(base, Breaker(NewCircuitBreaker(1, time.Hour)), Timeout(10*time.Millisecond))

	_, err := l.LoadCohort(context.Background())
	assert.ErrorIs(t, err, ports.ErrTimeout)

	_, err = l.LoadCohort(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(1), base.calls.Load())
}

func TestBreaker(t *testing.T) {
	base := &scriptedLoader{errs: []error{errors.New("boom")}}
	l := Breaker(NewCircuitBreaker(1, time.Hour))(base)

	_, err := l.LoadCohort(context.Background())
	require.Error(t, err)

	_, err = l.LoadCohort(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.ErrorIs(t, err, ports.ErrServiceUnavailable)
	assert.Equal(t, int32(1), base.calls.Load())
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	base := &scriptedLoader{errs: []error{errors.New("boom")}}
	l := Tracing(tp)(base)

	_, err := l.LoadCohort(context.Background())
	require.Error(t, err)
	_, err = l.LoadCohort(context.Background())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "SnapshotLoader.LoadCohort", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.NotEqual(t, codes.Error, spans[1].Status().Code)
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) LoaderMiddleware {
		return func(next ports.SnapshotLoader) ports.SnapshotLoader {
			return loaderFunc{name: next.Name(), load: func(ctx context.Context) ([]domain.AgentMetric, error) {
				order = append(order, name)
				return next.LoadCohort(ctx)
			}}
		}
	}

	l := Chain(&scriptedLoader{}, tag("outer"), tag("inner"))
	_, err := l.LoadCohort(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, "scripted", l.Name())
}
