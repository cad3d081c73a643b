package application

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/scoring"
)

// Engine turns a cohort snapshot and a RankQuery into a RankingResult.
// It owns no state beyond the scoring policy: every call is a pure function
// of its inputs, so identical snapshots and queries produce identical results.
//
// Pipeline: validate the query, score the full cohort, filter, sort with a
// deterministic agentId tie-break, assign ranks and percentiles, count tiers,
// then truncate.
//
// Concurrency: safe for concurrent use.
type Engine struct {
	scorer *scoring.CompositeScorer
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	policy domain.ScoringPolicy
}

// WithPolicy overrides the default scoring policy.
func WithPolicy(p domain.ScoringPolicy) EngineOption {
	return func(o *engineOptions) { o.policy = p }
}

// NewEngine creates a ranking engine. It returns an error if the configured
// policy is invalid.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	o := engineOptions{policy: domain.DefaultScoringPolicy()}
	for _, opt := range opts {
		opt(&o)
	}

	scorer, err := scoring.NewCompositeScorer(o.policy)
	if err != nil {
		return nil, fmt.Errorf("failed to create ranking engine: %w", err)
	}
	return &Engine{scorer: scorer}, nil
}

// Scorer exposes the composite scorer backing this engine.
func (e *Engine) Scorer() *scoring.CompositeScorer { return e.scorer }

// Rank computes the leaderboard for cohort under query. The query is
// validated before any computation; an invalid query yields a
// *domain.ValidationError and no partial result. An empty cohort yields an
// empty, well-formed result.
func (e *Engine) Rank(cohort []domain.AgentMetric, query domain.RankQuery) (domain.RankingResult, error) {
	if err := ValidateQuery(query, 0); err != nil {
		return domain.RankingResult{}, err
	}
	q := query.Normalized()

	if len(cohort) == 0 {
		return domain.EmptyRankingResult(q.SortBy), nil
	}

	// Normalization happens against the whole cohort so that an agent's
	// composite score does not depend on the filters of the current view.
	scored := e.scorer.ScoreCohort(cohort)

	filtered := filterAgents(scored.Agents, q)
	sortAgents(filtered, q.SortBy)

	result := domain.RankingResult{
		Rankings:         make([]domain.RankingEntry, 0, min(len(filtered), q.Limit)),
		TotalAgents:      len(filtered),
		TierDistribution: domain.NewTierDistribution(),
		SortBy:           q.SortBy,
		Anomalies:        scored.Anomalies,
	}

	for _, a := range filtered {
		result.TierDistribution[a.Tier]++
	}

	rep := e.scorer.Reputation()
	forEachStanding(filtered, q.SortBy, func(i, rank int, percentile float64) bool {
		if i >= q.Limit {
			return false
		}
		result.Rankings = append(result.Rankings, newRankingEntry(filtered[i], rank, percentile, q.SortBy, rep))
		return true
	})

	return result, nil
}

// Detail scores the cohort and returns agentID's standing on the composite
// key across the full, unfiltered cohort. An unknown ID yields a
// *domain.NotFoundError carrying the closest known IDs.
func (e *Engine) Detail(cohort []domain.AgentMetric, agentID string) (domain.AgentDetail, error) {
	scored := e.scorer.ScoreCohort(cohort)
	agents := scored.Agents
	sortAgents(agents, domain.SortComposite)

	var (
		detail domain.AgentDetail
		found  bool
	)
	forEachStanding(agents, domain.SortComposite, func(i, rank int, percentile float64) bool {
		if agents[i].Metric.AgentID != agentID {
			return true
		}
		a := agents[i]
		detail = domain.AgentDetail{
			Agent:              a.Metric,
			Reputation:         a.Reputation,
			Composite:          a.Composite,
			Tier:               a.Tier,
			Rank:               rank,
			Percentile:         percentile,
			CohortSize:         len(agents),
			SuspensionEligible: e.scorer.Reputation().SuspensionEligible(a.Reputation),
		}
		found = true
		return false
	})

	if !found {
		known := make([]string, len(agents))
		for i, a := range agents {
			known[i] = a.Metric.AgentID
		}
		return domain.AgentDetail{}, &domain.NotFoundError{
			AgentID:     agentID,
			Suggestions: suggestAgentIDs(agentID, known),
		}
	}
	return detail, nil
}

// filterAgents applies the role, tier and search filters. The search text
// is matched case-insensitively as a substring of name or agent ID.
func filterAgents(agents []domain.ScoredAgent, q domain.RankQuery) []domain.ScoredAgent {
	// cases.Caser is stateful; one per call.
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(q.SearchText))

	out := make([]domain.ScoredAgent, 0, len(agents))
	for _, a := range agents {
		if q.FilterRole != "" && !a.Metric.HasRole(q.FilterRole) {
			continue
		}
		if q.FilterTier != "" && a.Tier != q.FilterTier {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(a.Metric.Name), needle) &&
			!strings.Contains(fold.String(a.Metric.AgentID), needle) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// sortAgents orders agents by key descending, breaking ties by agentId
// ascending. The stable sort keeps input order for duplicate IDs.
func sortAgents(agents []domain.ScoredAgent, key domain.SortKey) {
	slices.SortStableFunc(agents, func(a, b domain.ScoredAgent) int {
		if c := cmp.Compare(key.Value(b), key.Value(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.Metric.AgentID, b.Metric.AgentID)
	})
}

// forEachStanding walks sorted agents and reports each one's 1-based rank
// and percentile. The percentile is the share of agents with a strictly
// lower sort value, so tied agents share a percentile. Ranks stay sequential
// through ties. Iteration stops when fn returns false.
func forEachStanding(sorted []domain.ScoredAgent, key domain.SortKey, fn func(i, rank int, percentile float64) bool) {
	n := len(sorted)
	for start := 0; start < n; {
		v := key.Value(sorted[start])
		end := start + 1
		for end < n && key.Value(sorted[end]) == v {
			end++
		}
		percentile := 100 * float64(n-end) / float64(n)
		for i := start; i < end; i++ {
			if !fn(i, i+1, percentile) {
				return
			}
		}
		start = end
	}
}

func newRankingEntry(a domain.ScoredAgent, rank int, percentile float64, key domain.SortKey, rep *scoring.ReputationScorer) domain.RankingEntry {
	m := a.Metric
	return domain.RankingEntry{
		AgentID:                   m.AgentID,
		Rank:                      rank,
		CompositeScore:            a.Composite,
		Tier:                      a.Tier,
		Percentile:                percentile,
		Name:                      m.Name,
		Status:                    m.Status,
		Roles:                     m.Roles,
		Reputation:                a.Reputation,
		TasksCompleted:            m.TasksCompleted,
		TasksFailed:               m.TasksFailed,
		KnowledgePackagesApproved: m.KnowledgePackagesApproved,
		CompletedTrades:           m.CompletedTrades,
		TotalEarnedCredits:        m.TotalEarnedCredits,
		SortValue:                 key.Value(a),
		SuspensionEligible:        rep.SuspensionEligible(a.Reputation),
	}
}
