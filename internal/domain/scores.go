package domain

// ReputationScore is the cohort-independent reliability score of one agent.
// Every field lies in [0,1]. The sub-scores are exposed individually for
// radar-style display.
type ReputationScore struct {
	Overall float64 `json:"overall"`
	Success float64 `json:"success"`
	Quality float64 `json:"quality"`
	Uptime  float64 `json:"uptime"`
	Speed   float64 `json:"speed"`
}

// ScoredAgent is a sanitized metric together with every score derived from
// it within one cohort. It is the unit the ranking engine sorts and filters.
type ScoredAgent struct {
	Metric     AgentMetric
	Reputation ReputationScore
	Composite  float64
	Tier       Tier
}
