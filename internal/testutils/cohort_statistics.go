package testutils

import (
	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// CohortStatistics summarizes a cohort.
type CohortStatistics struct {
	// TotalAgents is the number of agents in the cohort.
	TotalAgents int `json:"totalAgents"`

	// StatusCount maps each status to its number of agents.
	StatusCount map[domain.AgentStatus]int `json:"statusCount"`

	// RoleCount maps each role to the number of agents holding it.
	RoleCount map[string]int `json:"roleCount"`

	// NoRoleAgents counts agents with an empty role set.
	NoRoleAgents int `json:"noRoleAgents"`

	AvgSuccessRate     float64 `json:"avgSuccessRate"`
	MaxTasksCompleted  int64   `json:"maxTasksCompleted"`
	TotalEarnedCredits float64 `json:"totalEarnedCredits"`
}

// ComputeCohortStatistics analyzes a cohort and returns summary statistics.
func ComputeCohortStatistics(cohort []domain.AgentMetric) CohortStatistics {
	stats := CohortStatistics{
		TotalAgents: len(cohort),
		StatusCount: make(map[domain.AgentStatus]int),
		RoleCount:   make(map[string]int),
	}

	var successSum float64
	for _, m := range cohort {
		status := m.Status
		if status == "" {
			status = "unspecified"
		}
		stats.StatusCount[status]++

		if len(m.Roles) == 0 {
			stats.NoRoleAgents++
		}
		for _, r := range m.Roles {
			stats.RoleCount[r]++
		}

		successSum += m.SuccessRate
		stats.MaxTasksCompleted = max(stats.MaxTasksCompleted, m.TasksCompleted)
		stats.TotalEarnedCredits += m.TotalEarnedCredits
	}

	if stats.TotalAgents > 0 {
		stats.AvgSuccessRate = successSum / float64(stats.TotalAgents)
	}
	return stats
}
