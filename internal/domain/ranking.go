package domain

// SortKey selects the value a ranking is ordered by.
type SortKey string

// Supported sort keys.
const (
	SortComposite  SortKey = "composite"
	SortReputation SortKey = "reputation"
	SortTasks      SortKey = "tasks"
	SortKnowledge  SortKey = "knowledge"
	SortEarnings   SortKey = "earnings"
)

// SortKeys returns every supported sort key.
func SortKeys() []SortKey {
	return []SortKey{SortComposite, SortReputation, SortTasks, SortKnowledge, SortEarnings}
}

// Valid reports whether k is a supported sort key.
func (k SortKey) Valid() bool {
	switch k {
	case SortComposite, SortReputation, SortTasks, SortKnowledge, SortEarnings:
		return true
	default:
		return false
	}
}

// Value extracts the sort value of a scored agent for this key. Unknown keys
// fall back to the composite score; callers validate the key first.
func (k SortKey) Value(a ScoredAgent) float64 {
	switch k {
	case SortReputation:
		return a.Reputation.Overall
	case SortTasks:
		return float64(a.Metric.TasksCompleted)
	case SortKnowledge:
		return float64(a.Metric.KnowledgeActivity())
	case SortEarnings:
		return a.Metric.TotalEarnedCredits
	default:
		return a.Composite
	}
}

// DefaultLimit is the page size used when a query does not set one.
const DefaultLimit = 100

// RankQuery is the complete caller-visible configuration of a ranking request.
// The zero value is a valid query: composite order, no filters, DefaultLimit.
type RankQuery struct {
	// SortBy defaults to SortComposite when empty.
	SortBy SortKey `json:"sortBy,omitempty" yaml:"sort_by" validate:"omitempty,oneof=composite reputation tasks knowledge earnings"`

	// FilterRole keeps only agents whose role set contains the tag.
	FilterRole string `json:"filterRole,omitempty" yaml:"filter_role"`

	// FilterTier keeps only agents in the given tier.
	FilterTier Tier `json:"filterTier,omitempty" yaml:"filter_tier" validate:"omitempty,oneof=bronze silver gold platinum diamond"`

	// SearchText is a case-insensitive substring matched against name or agent ID.
	SearchText string `json:"searchText,omitempty" yaml:"search_text"`

	// Limit truncates the returned page after ranking. Zero means DefaultLimit;
	// negative values are rejected.
	Limit int `json:"limit,omitempty" yaml:"limit" validate:"min=0"`
}

// Normalized returns q with defaults applied.
func (q RankQuery) Normalized() RankQuery {
	if q.SortBy == "" {
		q.SortBy = SortComposite
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return q
}

// RankingEntry is one ranked agent as consumed by the presentation layer.
type RankingEntry struct {
	AgentID        string  `json:"agentId"`
	Rank           int     `json:"rank"`
	CompositeScore float64 `json:"compositeScore"`
	Tier           Tier    `json:"tier"`
	Percentile     float64 `json:"percentile"`

	Name   string      `json:"name"`
	Status AgentStatus `json:"status"`
	Roles  []string    `json:"roles"`

	Reputation ReputationScore `json:"reputation"`

	TasksCompleted            int64   `json:"tasksCompleted"`
	TasksFailed               int64   `json:"tasksFailed"`
	KnowledgePackagesApproved int64   `json:"knowledgePackagesApproved"`
	CompletedTrades           int64   `json:"completedTrades"`
	TotalEarnedCredits        float64 `json:"totalEarnedCredits"`

	// SortValue is the value of the active sort key for this agent.
	SortValue float64 `json:"sortValue"`

	// SuspensionEligible is set when the reputation score falls below the
	// policy's suspension threshold. Acting on it is left to other systems.
	SuspensionEligible bool `json:"suspensionEligible"`
}

// RankingResult is the only structure the presentation layer consumes.
type RankingResult struct {
	Rankings []RankingEntry `json:"rankings"`

	// TotalAgents is the size of the filtered cohort before truncation.
	TotalAgents int `json:"totalAgents"`

	// TierDistribution counts the filtered cohort per tier.
	TierDistribution TierDistribution `json:"tierDistribution"`

	// SortBy echoes the effective sort key.
	SortBy SortKey `json:"sortBy"`

	// Anomalies lists the fields that were clamped on ingestion.
	Anomalies []Anomaly `json:"-"`
}

// EmptyRankingResult returns a well-formed result with no entries.
func EmptyRankingResult(sortBy SortKey) RankingResult {
	return RankingResult{
		Rankings:         []RankingEntry{},
		TierDistribution: NewTierDistribution(),
		SortBy:           sortBy,
	}
}

// AgentDetail is the single-agent view: its scores and its standing on the
// composite key across the whole, unfiltered cohort.
type AgentDetail struct {
	Agent      AgentMetric     `json:"agent"`
	Reputation ReputationScore `json:"reputation"`
	Composite  float64         `json:"compositeScore"`
	Tier       Tier            `json:"tier"`
	Rank       int             `json:"rank"`
	Percentile float64         `json:"percentile"`
	CohortSize int             `json:"cohortSize"`

	SuspensionEligible bool `json:"suspensionEligible"`
}
