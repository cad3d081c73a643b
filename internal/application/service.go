package application

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/ports"
)

// DefaultCacheTTL is how long a cached ranking stays valid when no change
// signal arrives first.
const DefaultCacheTTL = 45 * time.Second

// DefaultMaxLimit is the largest page a caller may request.
const DefaultMaxLimit = 200

// LeaderboardService wraps the pure ranking Engine with snapshot loading,
// a short-TTL result cache keyed by the exact query, and observability.
//
// Results may come from the cache and are shared between callers.
// WARNING: Callers MUST NOT mutate returned RankingResult slices or maps.
//
// Concurrency: safe for concurrent use. Concurrent misses for the same
// query share one load-and-rank via singleflight.
type LeaderboardService struct {
	engine   *Engine
	loader   ports.SnapshotLoader
	cache    ports.CacheStore
	metrics  ports.MetricsCollector
	logger   *slog.Logger
	tracer   trace.Tracer
	cacheTTL time.Duration
	maxLimit int

	// generation is mixed into every cache key. Invalidate bumps it so that
	// a computation that started before the invalidation cannot repopulate
	// the cache with a stale result under a live key.
	generation atomic.Uint64
	sf         singleflight.Group
}

// ServiceOption configures a LeaderboardService.
type ServiceOption func(*LeaderboardService)

// WithEngine replaces the default-policy engine.
func WithEngine(e *Engine) ServiceOption {
	return func(s *LeaderboardService) { s.engine = e }
}

// WithCache enables result caching. A non-positive ttl uses DefaultCacheTTL.
func WithCache(c ports.CacheStore, ttl time.Duration) ServiceOption {
	return func(s *LeaderboardService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) ServiceOption {
	return func(s *LeaderboardService) { s.metrics = m }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *LeaderboardService) { s.logger = l }
}

// WithTracerProvider sets the provider spans are created from. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *LeaderboardService) { s.tracer = tp.Tracer("leaderboard-service") }
}

// WithMaxLimit caps the page size callers may request.
func WithMaxLimit(n int) ServiceOption {
	return func(s *LeaderboardService) { s.maxLimit = n }
}

// NewLeaderboardService creates a service reading cohorts from loader.
func NewLeaderboardService(loader ports.SnapshotLoader, opts ...ServiceOption) (*LeaderboardService, error) {
	if loader == nil {
		return nil, errors.New("snapshot loader is required")
	}

	s := &LeaderboardService{
		loader:   loader,
		metrics:  noopMetrics{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("leaderboard-service"),
		cacheTTL: DefaultCacheTTL,
		maxLimit: DefaultMaxLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		e, err := NewEngine()
		if err != nil {
			return nil, err
		}
		s.engine = e
	}
	if s.maxLimit <= 0 {
		return nil, fmt.Errorf("max limit must be positive, got %d", s.maxLimit)
	}
	return s, nil
}

// MaxLimit returns the largest accepted page size.
func (s *LeaderboardService) MaxLimit() int { return s.maxLimit }

// Rankings returns the leaderboard for q. Invalid queries fail with a
// *domain.ValidationError before the snapshot is loaded.
func (s *LeaderboardService) Rankings(ctx context.Context, q domain.RankQuery) (domain.RankingResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.Rankings",
		trace.WithAttributes(
			attribute.String("query.sort_by", string(q.SortBy)),
			attribute.String("query.filter_role", q.FilterRole),
			attribute.String("query.filter_tier", string(q.FilterTier)),
			attribute.Bool("query.search", q.SearchText != ""),
			attribute.Int("query.limit", q.Limit),
		),
	)
	defer span.End()

	if err := ValidateQuery(q, s.maxLimit); err != nil {
		s.finish(span, ports.OpRankings, start, err)
		return domain.RankingResult{}, err
	}
	q = q.Normalized()

	key, err := s.cacheKey("rankings", q)
	if err != nil {
		s.finish(span, ports.OpRankings, start, err)
		return domain.RankingResult{}, err
	}

	v, hit, err := s.cached(ctx, key, func(ctx context.Context) (any, error) {
		cohort, err := s.loadCohort(ctx)
		if err != nil {
			return nil, err
		}
		result, err := s.engine.Rank(cohort, q)
		if err != nil {
			return nil, err
		}
		s.reportAnomalies(ctx, result.Anomalies)
		s.metrics.RecordHistogram(ports.MetricFilteredAgents, float64(result.TotalAgents), map[string]string{"sort_by": string(q.SortBy)})
		if q.FilterRole == "" && q.FilterTier == "" && q.SearchText == "" {
			for _, tier := range domain.AllTiers() {
				s.metrics.RecordGauge(ports.MetricTierAgents, float64(result.TierDistribution[tier]), map[string]string{"tier": string(tier)})
			}
		}
		return result, nil
	})
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if err != nil {
		s.finish(span, ports.OpRankings, start, err)
		return domain.RankingResult{}, err
	}

	result, ok := v.(domain.RankingResult)
	if !ok {
		err := ports.NewCacheError(key, "get", ports.ErrCacheCorrupted)
		s.finish(span, ports.OpRankings, start, err)
		return domain.RankingResult{}, err
	}

	span.SetAttributes(
		attribute.Int("result.total_agents", result.TotalAgents),
		attribute.Int("result.returned", len(result.Rankings)),
	)
	s.finish(span, ports.OpRankings, start, nil)
	return result, nil
}

// AgentDetail returns one agent's scores and its composite standing in the
// full cohort. Unknown agents fail with a *domain.NotFoundError.
func (s *LeaderboardService) AgentDetail(ctx context.Context, agentID string) (domain.AgentDetail, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.AgentDetail",
		trace.WithAttributes(attribute.String("agent.id", agentID)),
	)
	defer span.End()

	key, err := s.cacheKey("agent", agentID)
	if err != nil {
		s.finish(span, ports.OpAgentDetail, start, err)
		return domain.AgentDetail{}, err
	}

	v, hit, err := s.cached(ctx, key, func(ctx context.Context) (any, error) {
		cohort, err := s.loadCohort(ctx)
		if err != nil {
			return nil, err
		}
		return s.engine.Detail(cohort, agentID)
	})
	span.SetAttributes(attribute.Bool("cache.hit", hit))
	if err != nil {
		s.finish(span, ports.OpAgentDetail, start, err)
		return domain.AgentDetail{}, err
	}

	detail, ok := v.(domain.AgentDetail)
	if !ok {
		err := ports.NewCacheError(key, "get", ports.ErrCacheCorrupted)
		s.finish(span, ports.OpAgentDetail, start, err)
		return domain.AgentDetail{}, err
	}
	s.finish(span, ports.OpAgentDetail, start, nil)
	return detail, nil
}

// Invalidate drops every cached result. Rankings computed afterwards read a
// fresh snapshot.
func (s *LeaderboardService) Invalidate(ctx context.Context, reason string) error {
	s.generation.Add(1)
	s.metrics.RecordCounter(ports.MetricCacheInvalidations, 1, map[string]string{"reason": reason})
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Clear(ctx); err != nil {
		return ports.NewCacheError("*", "clear", err)
	}
	s.logger.InfoContext(ctx, "ranking cache invalidated", "reason", reason)
	return nil
}

// WatchChanges invalidates the cache every time notifier reports a change.
// It blocks until ctx is done, returning nil, or until the notifier fails.
func (s *LeaderboardService) WatchChanges(ctx context.Context, notifier ports.ChangeNotifier) error {
	for {
		payload, err := notifier.WaitForChange(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("watch metric changes: %w", err)
		}
		s.logger.DebugContext(ctx, "agent metrics changed", "payload", payload)
		if err := s.Invalidate(ctx, "change_notification"); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate ranking cache", "error", err)
		}
	}
}

// cached returns the value under key, computing and storing it on a miss.
// Cache backend failures degrade to a recomputation and are only logged.
//
// Concurrent misses on one key share a single computation. It runs detached
// from the cancellation of whichever caller started it (the loader chain
// bounds it with its own timeout), and each caller stops waiting when its own
// ctx is done.
func (s *LeaderboardService) cached(
	ctx context.Context,
	key string,
	compute func(context.Context) (any, error),
) (any, bool, error) {
	if s.cache != nil {
		v, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.WarnContext(ctx, "ranking cache lookup failed", "key", key, "error", err)
		case ok:
			s.metrics.RecordCounter(ports.MetricCacheLookups, 1, map[string]string{"result": "hit"})
			return v, true, nil
		}
		s.metrics.RecordCounter(ports.MetricCacheLookups, 1, map[string]string{"result": "miss"})
	}

	shared := context.WithoutCancel(ctx)
	ch := s.sf.DoChan(key, func() (any, error) {
		v, err := compute(shared)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.Set(shared, key, v, s.cacheTTL); err != nil {
				s.logger.WarnContext(shared, "ranking cache store failed", "key", key, "error", err)
			}
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, false, res.Err
	}
}

// cacheKey hashes the current generation, a kind tag and the normalized
// request so that identical requests share an entry.
func (s *LeaderboardService) cacheKey(kind string, req any) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode cache key: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(s.generation.Load(), 10)))
	h.Write([]byte{0})
	h.Write(payload)
	return kind + ":" + hex.EncodeToString(h.Sum(nil)), nil
}

// loadCohort reads a snapshot and rejects duplicate agent IDs, which would
// make the agentId tie-break ambiguous.
func (s *LeaderboardService) loadCohort(ctx context.Context) ([]domain.AgentMetric, error) {
	start := time.Now()
	labels := map[string]string{"source": s.loader.Name()}

	cohort, err := s.loader.LoadCohort(ctx)
	s.metrics.RecordLatency(ports.OpLoadCohort, time.Since(start), labels)
	if err != nil {
		var le *ports.LoaderError
		if errors.As(err, &le) {
			return nil, err
		}
		return nil, ports.NewLoaderError(s.loader.Name(), "load", err)
	}

	seen := make(map[string]struct{}, len(cohort))
	for _, m := range cohort {
		if _, dup := seen[m.AgentID]; dup {
			return nil, ports.NewLoaderError(s.loader.Name(), "validate",
				fmt.Errorf("%w: duplicate agent id %q", ports.ErrInvalidSnapshot, m.AgentID))
		}
		seen[m.AgentID] = struct{}{}
	}

	s.metrics.RecordGauge(ports.MetricCohortSize, float64(len(cohort)), labels)
	return cohort, nil
}

func (s *LeaderboardService) reportAnomalies(ctx context.Context, anomalies []domain.Anomaly) {
	if len(anomalies) == 0 {
		return
	}
	for _, a := range anomalies {
		s.metrics.RecordCounter(ports.MetricAnomalies, 1, map[string]string{"field": a.Field})
		s.logger.WarnContext(ctx, "clamped out-of-range agent metric",
			"agent_id", a.AgentID,
			"field", a.Field,
			"raw", strconv.FormatFloat(a.Raw, 'g', -1, 64),
			"clamped", a.Clamped,
		)
	}
}

// finish records the request outcome on the span and in metrics.
func (s *LeaderboardService) finish(span trace.Span, op string, start time.Time, err error) {
	outcome := outcomeOf(err)
	s.metrics.RecordLatency(op, time.Since(start), map[string]string{"outcome": outcome})
	s.metrics.RecordCounter(ports.MetricRequests, 1, map[string]string{"operation": op, "outcome": outcome})

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	switch outcome {
	case ports.OutcomeError:
		s.logger.Error("leaderboard request failed", "operation", op, "error", err)
	case ports.OutcomeCanceled:
		s.logger.Debug("leaderboard request canceled by caller", "operation", op)
	}
}

func outcomeOf(err error) string {
	var verr *domain.ValidationError
	switch {
	case err == nil:
		return ports.OutcomeOK
	case errors.As(err, &verr):
		return ports.OutcomeInvalid
	case errors.Is(err, domain.ErrAgentNotFound):
		return ports.OutcomeNotFound
	case errors.Is(err, context.Canceled):
		return ports.OutcomeCanceled
	default:
		return ports.OutcomeError
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordLatency(string, time.Duration, map[string]string) {}
func (noopMetrics) RecordCounter(string, float64, map[string]string)       {}
func (noopMetrics) RecordGauge(string, float64, map[string]string)         {}
func (noopMetrics) RecordHistogram(string, float64, map[string]string)     {}
