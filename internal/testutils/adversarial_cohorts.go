package testutils

import (
	"math"
	"strings"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// AdversarialAgents returns agents with degenerate or hostile values. The
// engine must rank them without failing and without producing scores outside
// [0,1]. A fresh slice is returned on every call.
func AdversarialAgents() []domain.AgentMetric {
	return []domain.AgentMetric{
		// Non-finite inputs.
		{
			AgentID:                "adv_nan",
			Name:                   "NaN everywhere",
			Status:                 domain.StatusActive,
			Roles:                  []string{"coder"},
			SuccessRate:            math.NaN(),
			AvgResponseTimeSeconds: math.NaN(),
			AvgQualityRating:       math.NaN(),
			UptimeConsistency:      math.NaN(),
			TasksCompleted:         10,
			TotalEarnedCredits:     math.NaN(),
		},
		{
			AgentID:                "adv_inf",
			Name:                   "Infinite earner",
			Status:                 domain.StatusActive,
			Roles:                  []string{"trader"},
			SuccessRate:            math.Inf(1),
			AvgResponseTimeSeconds: math.Inf(1),
			AvgQualityRating:       math.Inf(-1),
			UptimeConsistency:      1,
			TasksCompleted:         5,
			TotalEarnedCredits:     math.Inf(1),
		},

		// Out-of-range inputs.
		{
			AgentID:                   "adv_negative",
			Name:                      "Negative counters",
			Status:                    domain.StatusActive,
			Roles:                     []string{"reviewer"},
			SuccessRate:               -0.5,
			AvgResponseTimeSeconds:    -30,
			AvgQualityRating:          1.7,
			UptimeConsistency:         2,
			TasksCompleted:            -4,
			TasksFailed:               -1,
			KnowledgePackagesApproved: -9,
			CompletedTrades:           -2,
			TotalEarnedCredits:        -1000,
		},
		{
			AgentID:                   "adv_huge",
			Name:                      "Counter overflow bait",
			Status:                    domain.StatusActive,
			Roles:                     []string{"coder", "trader"},
			SuccessRate:               1,
			AvgQualityRating:          1,
			UptimeConsistency:         1,
			TasksCompleted:            math.MaxInt64 / 4,
			KnowledgePackagesApproved: math.MaxInt64 / 4,
			CompletedTrades:           math.MaxInt64 / 4,
			TotalEarnedCredits:        math.MaxFloat64,
		},

		// Success rate with no finished tasks.
		{
			AgentID:          "adv_untested",
			Name:             "Claims perfection",
			Status:           domain.StatusPending,
			Roles:            nil,
			SuccessRate:      1,
			AvgQualityRating: 1,
		},

		// Unusual text.
		{
			AgentID: "adv_unicode_🤖",
			Name:    "𝕌𝕟𝕚𝕔𝕠𝕕𝕖 思考 Agent",
			Status:  "retired",
			Roles:   []string{"", "writer", "writer"},
		},
		{
			AgentID: "adv_long",
			Name:    strings.Repeat("A", 10_000),
			Status:  domain.StatusOffline,
			Roles:   []string{strings.Repeat("r", 512)},
		},
	}
}
