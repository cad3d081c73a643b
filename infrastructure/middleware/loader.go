package middleware

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a load without
// calling the data source.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// LoaderMiddleware wraps a SnapshotLoader with additional behavior.
type LoaderMiddleware func(ports.SnapshotLoader) ports.SnapshotLoader

// Chain applies middlewares to base. The first middleware is the outermost.
func Chain(base ports.SnapshotLoader, mws ...LoaderMiddleware) ports.SnapshotLoader {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}

// loaderFunc adapts a load function and a name to ports.SnapshotLoader.
type loaderFunc struct {
	name string
	load func(ctx context.Context) ([]domain.AgentMetric, error)
}

func (l loaderFunc) LoadCohort(ctx context.Context) ([]domain.AgentMetric, error) { return l.load(ctx) }
func (l loaderFunc) Name() string                                                 { return l.name }

// Timeout bounds every load with its own deadline.
func Timeout(d time.Duration) LoaderMiddleware {
	return func(next ports.SnapshotLoader) ports.SnapshotLoader {
		return loaderFunc{name: next.Name(), load: func(ctx context.Context) ([]domain.AgentMetric, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			cohort, err := next.LoadCohort(ctx)
			if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ports.NewLoaderError(next.Name(), "load", fmt.Errorf("%w after %s: %w", ports.ErrTimeout, d, err))
			}
			return cohort, err
		}}
	}
}

// Retry retries retryable load failures with exponential backoff and jitter.
// Only errors for which LoaderError.IsRetryable reports true are retried.
func Retry(maxRetries int, baseDelay, maxDelay time.Duration) LoaderMiddleware {
	return func(next ports.SnapshotLoader) ports.SnapshotLoader {
		return loaderFunc{name: next.Name(), load: func(ctx context.Context) ([]domain.AgentMetric, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				cohort, err := next.LoadCohort(ctx)
				if err == nil {
					return cohort, nil
				}
				lastErr = err

				if !retryable(err) || ctx.Err() != nil || attempt == maxRetries {
					break
				}

				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff(attempt, baseDelay, maxDelay)):
				}
			}
			return nil, lastErr
		}}
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var le *ports.LoaderError
	if errors.As(err, &le) {
		return le.IsRetryable()
	}
	return errors.Is(err, ports.ErrServiceUnavailable) || errors.Is(err, ports.ErrTimeout)
}

func backoff(attempt int, base, maxDelay time.Duration) time.Duration {
	attempt = min(max(attempt, 0), 30)
	// #nosec G115 - attempt is bounded between 0 and 30
	delay := time.Duration(float64(base) * float64(uint64(1)<<uint(attempt)))

	// ±25% jitter.
	// #nosec G404 - weak RNG is fine for jitter
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5)
	delay = delay + jitter - delay/4

	return min(delay, maxDelay)
}

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// CircuitBreaker fails loads fast after maxFailures consecutive failures.
// Once cooldown has elapsed it lets one trial call through while every other
// caller keeps failing fast; the trial's outcome closes or reopens it.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       breakerState
	trialActive bool
	failures    int
	maxFailures int
	cooldown    time.Duration
	lastFailure time.Time
	now         func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{maxFailures: max(1, maxFailures), cooldown: cooldown, now: time.Now}
}

// Open reports whether the breaker currently rejects calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case breakerOpen:
		return cb.now().Sub(cb.lastFailure) < cb.cooldown
	case breakerHalfOpen:
		return cb.trialActive
	default:
		return false
	}
}

// Call runs fn unless the circuit is open. Every error counts as a failure
// except context.Canceled, which says nothing about the data source.
func (cb *CircuitBreaker) Call(fn func() error) error {
	return cb.call(fn, func(err error) bool { return !errors.Is(err, context.Canceled) })
}

// call runs fn and counts its error against the breaker only when counts
// reports true for it.
func (cb *CircuitBreaker) call(fn func() error, counts func(error) bool) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if trial {
		cb.trialActive = false
	}
	switch {
	case err == nil:
		cb.failures = 0
		cb.state = breakerClosed
	case counts(err):
		cb.failures++
		cb.lastFailure = cb.now()
		if trial || cb.failures >= cb.maxFailures {
			cb.state = breakerOpen
		}
	}
	return err
}

// admit decides whether a call may run and whether it is the half-open trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		if cb.now().Sub(cb.lastFailure) < cb.cooldown {
			return false, ErrCircuitOpen
		}
		cb.state = breakerHalfOpen
	case breakerHalfOpen:
	default:
		return false, nil
	}

	if cb.trialActive {
		return false, ErrCircuitOpen
	}
	cb.trialActive = true
	return true, nil
}

// Breaker routes loads through cb. A load that fails because the caller
// canceled it or its own deadline passed is not held against the source; a
// Timeout placed inside the breaker still counts, since it fires while the
// caller is waiting.
func Breaker(cb *CircuitBreaker) LoaderMiddleware {
	return func(next ports.SnapshotLoader) ports.SnapshotLoader {
		return loaderFunc{name: next.Name(), load: func(ctx context.Context) ([]domain.AgentMetric, error) {
			var cohort []domain.AgentMetric
			err := cb.call(func() error {
				var err error
				cohort, err = next.LoadCohort(ctx)
				return err
			}, func(err error) bool {
				return ctx.Err() == nil && !errors.Is(err, context.Canceled)
			})
			if errors.Is(err, ErrCircuitOpen) {
				return nil, ports.NewLoaderError(next.Name(), "load", fmt.Errorf("%w: %w", ports.ErrServiceUnavailable, err))
			}
			return cohort, err
		}}
	}
}

// Tracing wraps each load in a span. A nil provider uses the global one.
func Tracing(tp trace.TracerProvider) LoaderMiddleware {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	tracer := tp.Tracer("leaderboard-loader")

	return func(next ports.SnapshotLoader) ports.SnapshotLoader {
		return loaderFunc{name: next.Name(), load: func(ctx context.Context) ([]domain.AgentMetric, error) {
			ctx, span := tracer.Start(ctx, "SnapshotLoader.LoadCohort",
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(attribute.String("loader.name", next.Name())),
			)
			defer span.End()

			cohort, err := next.LoadCohort(ctx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			span.SetAttributes(attribute.Int("cohort.size", len(cohort)))
			return cohort, nil
		}}
	}
}
