package scoring

import (
	"fmt"
	"math"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// CohortStats holds the cohort-wide maxima that activity signals are
// normalized against. It is computed once per snapshot, before any filter is
// applied, so that scores stay comparable across filtered views.
type CohortStats struct {
	Size              int
	MaxTasksCompleted int64
	MaxKnowledge      int64
	MaxEarnings       float64
}

// NewCohortStats scans the cohort once. Metrics are sanitized before use so
// out-of-range values cannot distort the maxima.
func NewCohortStats(cohort []domain.AgentMetric) CohortStats {
	stats := CohortStats{Size: len(cohort)}
	for _, raw := range cohort {
		m, _ := domain.Sanitize(raw)
		stats.observe(m)
	}
	return stats
}

func (c *CohortStats) observe(m domain.AgentMetric) {
	c.MaxTasksCompleted = max(c.MaxTasksCompleted, m.TasksCompleted)
	c.MaxKnowledge = max(c.MaxKnowledge, m.KnowledgeActivity())
	c.MaxEarnings = max(c.MaxEarnings, m.TotalEarnedCredits)
}

// ActivitySignals are one agent's normalized activity inputs, each in [0,1].
type ActivitySignals struct {
	Tasks     float64 `json:"tasks"`
	Knowledge float64 `json:"knowledge"`
	Earnings  float64 `json:"earnings"`
}

// CompositeScorer blends the reputation score with task, knowledge-trading
// and earnings activity normalized against the cohort:
//
//	taskNorm      = tasksCompleted / max(1, cohortMaxTasks)
//	knowledgeNorm = (approved + trades) / max(1, cohortMax(approved + trades))
//	earningsNorm  = log1p(earned) / max(ε, log1p(cohortMaxEarned))
//	composite     = Σ weight·signal
//
// Earnings are log-scaled so a few very high earners do not compress the
// rest of the cohort toward zero.
//
// Concurrency: stateless after construction and safe for concurrent use.
type CompositeScorer struct {
	policy     domain.ScoringPolicy
	reputation *ReputationScorer
}

// NewCompositeScorer creates a scorer for the given policy.
// Returns an error if the policy fails validation.
func NewCompositeScorer(policy domain.ScoringPolicy) (*CompositeScorer, error) {
	rep, err := NewReputationScorer(policy)
	if err != nil {
		return nil, fmt.Errorf("composite scorer: %w", err)
	}
	return &CompositeScorer{policy: policy, reputation: rep}, nil
}

// Reputation returns the reputation scorer sharing this scorer's policy.
func (s *CompositeScorer) Reputation() *ReputationScorer { return s.reputation }

// Score computes one agent's composite score relative to cohort. Callers
// scoring a whole cohort should use ScoreCohort, which scans it only once.
// The cohort is expected to contain metric; an empty cohort is rejected by
// callers before this stage and yields a score computed against metric alone.
func (s *CompositeScorer) Score(metric domain.AgentMetric, cohort []domain.AgentMetric) float64 {
	m, _ := domain.Sanitize(metric)
	stats := NewCohortStats(cohort)
	stats.observe(m)
	return s.blend(s.reputation.scoreSanitized(m), s.Signals(m, stats))
}

// Signals normalizes a sanitized metric's activity against stats.
func (s *CompositeScorer) Signals(m domain.AgentMetric, stats CohortStats) ActivitySignals {
	tasks := float64(m.TasksCompleted) / float64(max(1, stats.MaxTasksCompleted))
	knowledge := float64(m.KnowledgeActivity()) / float64(max(1, stats.MaxKnowledge))
	earnings := math.Log1p(m.TotalEarnedCredits) / math.Max(s.policy.EarningsEpsilon, math.Log1p(stats.MaxEarnings))

	return ActivitySignals{
		Tasks:     domain.ClampUnit(tasks),
		Knowledge: domain.ClampUnit(knowledge),
		Earnings:  domain.ClampUnit(earnings),
	}
}

func (s *CompositeScorer) blend(rep domain.ReputationScore, sig ActivitySignals) float64 {
	w := s.policy.Composite
	return domain.ClampUnit(w.Reputation*rep.Overall + w.Tasks*sig.Tasks + w.Knowledge*sig.Knowledge + w.Earnings*sig.Earnings)
}

// ScoredCohort is the result of scoring every agent of a snapshot.
type ScoredCohort struct {
	Agents    []domain.ScoredAgent
	Stats     CohortStats
	Anomalies []domain.Anomaly
}

// ScoreCohort sanitizes and scores every agent against the full cohort and
// classifies each into a tier. Input order is preserved.
func (s *CompositeScorer) ScoreCohort(cohort []domain.AgentMetric) ScoredCohort {
	sanitized := make([]domain.AgentMetric, len(cohort))
	var anomalies []domain.Anomaly
	stats := CohortStats{Size: len(cohort)}
	for i, raw := range cohort {
		m, a := domain.Sanitize(raw)
		sanitized[i] = m
		anomalies = append(anomalies, a...)
		stats.observe(m)
	}

	agents := make([]domain.ScoredAgent, len(sanitized))
	for i, m := range sanitized {
		rep := s.reputation.scoreSanitized(m)
		composite := s.blend(rep, s.Signals(m, stats))
		agents[i] = domain.ScoredAgent{
			Metric:     m,
			Reputation: rep,
			Composite:  composite,
			Tier:       domain.ClassifyTier(composite),
		}
	}

	return ScoredCohort{Agents: agents, Stats: stats, Anomalies: anomalies}
}
