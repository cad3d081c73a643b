// Package domain contains pure, dependency-free domain models and types
// for the leaderboard ranking engine.
package domain

import (
	"math"
	"slices"
)

// AgentStatus describes an agent's lifecycle state. The engine treats it as
// descriptive only: values outside the known set are carried through unchanged.
type AgentStatus string

// Known agent statuses.
const (
	StatusActive    AgentStatus = "active"
	StatusPending   AgentStatus = "pending"
	StatusSuspended AgentStatus = "suspended"
	StatusOffline   AgentStatus = "offline"
)

// Known reports whether s is one of the statuses the marketplace defines.
func (s AgentStatus) Known() bool {
	switch s {
	case StatusActive, StatusPending, StatusSuspended, StatusOffline:
		return true
	default:
		return false
	}
}

// AgentMetric is one agent's raw counters as supplied by the snapshot loader.
// A metric is immutable for the lifetime of a snapshot; scorers work on
// sanitized copies produced by Sanitize.
type AgentMetric struct {
	// AgentID is the unique, stable identifier used as the ranking tie-break key.
	AgentID string `json:"agentId" yaml:"agent_id"`

	// Name is the display name matched by free-text search.
	Name string `json:"name" yaml:"name"`

	// Status is descriptive and never validated against a closed set.
	Status AgentStatus `json:"status" yaml:"status"`

	// Roles is the set of role tags. A nil slice is an empty set.
	Roles []string `json:"roles" yaml:"roles"`

	// Reputation inputs.
	SuccessRate            float64 `json:"successRate" yaml:"success_rate"`
	AvgResponseTimeSeconds float64 `json:"avgResponseTimeSeconds" yaml:"avg_response_time_seconds"`
	AvgQualityRating       float64 `json:"avgQualityRating" yaml:"avg_quality_rating"`
	UptimeConsistency      float64 `json:"uptimeConsistency" yaml:"uptime_consistency"`

	// Activity inputs.
	TasksCompleted            int64   `json:"tasksCompleted" yaml:"tasks_completed"`
	TasksFailed               int64   `json:"tasksFailed" yaml:"tasks_failed"`
	KnowledgePackagesApproved int64   `json:"knowledgePackagesApproved" yaml:"knowledge_packages_approved"`
	CompletedTrades           int64   `json:"completedTrades" yaml:"completed_trades"`
	TotalEarnedCredits        float64 `json:"totalEarnedCredits" yaml:"total_earned_credits"`
}

// HasRole reports whether the agent's role set contains role.
func (m AgentMetric) HasRole(role string) bool {
	return slices.Contains(m.Roles, role)
}

// KnowledgeActivity is the combined knowledge-trading signal: approved
// packages plus completed trades. The sum saturates instead of wrapping.
func (m AgentMetric) KnowledgeActivity() int64 {
	a, b := m.KnowledgePackagesApproved, m.CompletedTrades
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}

// Anomaly records one out-of-range field that Sanitize clamped. Anomalies are
// non-fatal: they are reported to the caller and never abort a ranking.
type Anomaly struct {
	AgentID string  `json:"agentId"`
	Field   string  `json:"field"`
	Raw     float64 `json:"raw"`
	Clamped float64 `json:"clamped"`
}

// Sanitize returns a copy of m with every numeric field forced into its valid
// range, along with an Anomaly for each field that had to change.
// Bounded fields are clamped to [0,1]; counters and durations to [0,+Inf).
// NaN becomes 0. +Inf becomes 1 for bounded fields, 0 for credits (an infinite
// counter cannot be normalized against a cohort) and the largest finite value
// for response time, which still saturates the speed score to 0.
func Sanitize(m AgentMetric) (AgentMetric, []Anomaly) {
	var anomalies []Anomaly
	note := func(field string, raw, clamped float64) {
		anomalies = append(anomalies, Anomaly{AgentID: m.AgentID, Field: field, Raw: raw, Clamped: clamped})
	}

	unit := func(field string, v *float64) {
		c := ClampUnit(*v)
		if c != *v {
			note(field, *v, c)
			*v = c
		}
	}
	nonNeg := func(field string, v *float64) {
		c := clampNonNegative(*v)
		if c != *v {
			note(field, *v, c)
			*v = c
		}
	}
	count := func(field string, v *int64) {
		if *v < 0 {
			note(field, float64(*v), 0)
			*v = 0
		}
	}

	out := m
	out.Roles = slices.Clone(m.Roles)
	if out.Roles == nil {
		out.Roles = []string{}
	}

	unit("successRate", &out.SuccessRate)
	if math.IsInf(out.AvgResponseTimeSeconds, 1) {
		note("avgResponseTimeSeconds", out.AvgResponseTimeSeconds, math.MaxFloat64)
		out.AvgResponseTimeSeconds = math.MaxFloat64
	}
	nonNeg("avgResponseTimeSeconds", &out.AvgResponseTimeSeconds)
	unit("avgQualityRating", &out.AvgQualityRating)
	unit("uptimeConsistency", &out.UptimeConsistency)
	count("tasksCompleted", &out.TasksCompleted)
	count("tasksFailed", &out.TasksFailed)
	count("knowledgePackagesApproved", &out.KnowledgePackagesApproved)
	count("completedTrades", &out.CompletedTrades)
	nonNeg("totalEarnedCredits", &out.TotalEarnedCredits)

	return out, anomalies
}

// ClampUnit forces v into [0,1]. NaN maps to 0.
func ClampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 1:
		return 1
	default:
		return v
	}
}

func clampNonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
