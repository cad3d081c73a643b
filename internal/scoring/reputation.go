package scoring

import (
	"fmt"
	"math"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// ReputationScorer converts one agent's reliability signals into a bounded
// reputation score. It never looks at the cohort.
//
// Algorithm:
//
//	success = successRate            (0 when the agent has no scored tasks)
//	speed   = 1 - min(1, avgResponseTimeSeconds / SpeedSaturationSeconds)
//	quality = avgQualityRating
//	uptime  = uptimeConsistency
//	overall = Σ weight·sub-score
//
// Concurrency: stateless after construction and safe for concurrent use.
type ReputationScorer struct {
	policy domain.ScoringPolicy
}

// NewReputationScorer creates a scorer for the given policy.
// Returns an error if the policy fails validation.
func NewReputationScorer(policy domain.ScoringPolicy) (*ReputationScorer, error) {
	if err := ValidatePolicy(policy); err != nil {
		return nil, fmt.Errorf("reputation scorer: %w", err)
	}
	return &ReputationScorer{policy: policy}, nil
}

// Score is total: out-of-range inputs are clamped before use, so every
// returned field lies in [0,1].
func (s *ReputationScorer) Score(metric domain.AgentMetric) domain.ReputationScore {
	m, _ := domain.Sanitize(metric)
	return s.scoreSanitized(m)
}

// scoreSanitized assumes m has already passed through domain.Sanitize.
func (s *ReputationScorer) scoreSanitized(m domain.AgentMetric) domain.ReputationScore {
	var success float64
	if m.TasksCompleted+m.TasksFailed > 0 {
		success = m.SuccessRate
	}

	speed := 1 - math.Min(1, m.AvgResponseTimeSeconds/s.policy.SpeedSaturationSeconds)

	w := s.policy.Reputation
	overall := w.Success*success + w.Speed*speed + w.Quality*m.AvgQualityRating + w.Uptime*m.UptimeConsistency

	return domain.ReputationScore{
		Overall: domain.ClampUnit(overall),
		Success: success,
		Quality: m.AvgQualityRating,
		Uptime:  m.UptimeConsistency,
		Speed:   domain.ClampUnit(speed),
	}
}

// SuspensionEligible reports whether a reputation score falls below the
// policy's suspension threshold.
func (s *ReputationScorer) SuspensionEligible(r domain.ReputationScore) bool {
	return r.Overall < s.policy.SuspensionThreshold
}
