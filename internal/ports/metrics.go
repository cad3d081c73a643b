package ports

// Metric names recorded through MetricsCollector. Collectors map them to
// their backend's instruments; unknown names go to a generic instrument.
const (
	// MetricRequests counts service calls by "operation" and "outcome".
	MetricRequests = "leaderboard_requests_total"
	// MetricCacheLookups counts cache lookups by "result" (hit or miss).
	MetricCacheLookups = "leaderboard_cache_lookups_total"
	// MetricCacheInvalidations counts explicit invalidations by "reason".
	MetricCacheInvalidations = "leaderboard_cache_invalidations_total"
	// MetricAnomalies counts clamped input fields by "field".
	MetricAnomalies = "leaderboard_metric_anomalies_total"
	// MetricCohortSize is the size of the last loaded snapshot.
	MetricCohortSize = "leaderboard_cohort_size"
	// MetricFilteredAgents observes the filtered cohort size per ranking.
	MetricFilteredAgents = "leaderboard_filtered_agents"
	// MetricTierAgents is the number of agents per "tier" in the full,
	// unfiltered cohort of the last computed ranking.
	MetricTierAgents = "leaderboard_tier_agents"
)

// Operations passed to RecordLatency and used as the "operation" label.
const (
	OpRankings    = "rankings"
	OpAgentDetail = "agent_detail"
	OpLoadCohort  = "load_cohort"
)

// Outcome label values for MetricRequests.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeCanceled = "canceled"
	OutcomeError    = "error"
)
