package application

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
	"github.com/DansiDanutz/nervix-leaderboard/internal/testutils"
)

func newTestEngine(t testing.TB) *Engine {
	t.Helper()
	e, err := NewEngine()
	require.NoError(t, err)
	return e
}

// compositeOnlyPolicy makes the composite score equal to the task count
// normalized by the cohort maximum, which lets tests pick exact scores.
func compositeOnlyPolicy() domain.ScoringPolicy {
	p := domain.DefaultScoringPolicy()
	p.Composite = domain.CompositeWeights{Tasks: 1}
	return p
}

func agentWithTasks(id string, tasks int64, roles ...string) domain.AgentMetric {
	return domain.AgentMetric{
		AgentID:        id,
		Name:           "Agent " + id,
		Status:         domain.StatusActive,
		Roles:          roles,
		TasksCompleted: tasks,
	}
}

func randomCohort(rng *rand.Rand, n int) []domain.AgentMetric {
	roles := []string{"coder", "researcher", "trader", "reviewer"}
	cohort := make([]domain.AgentMetric, n)
	for i := range cohort {
		cohort[i] = domain.AgentMetric{
			AgentID:                   fmt.Sprintf("agt_%04d", i),
			Name:                      fmt.Sprintf("Agent %d", i),
			Status:                    domain.StatusActive,
			Roles:                     []string{roles[rng.Intn(len(roles))]},
			SuccessRate:               rng.Float64(),
			AvgResponseTimeSeconds:    rng.Float64() * 900,
			AvgQualityRating:          rng.Float64(),
			UptimeConsistency:         rng.Float64(),
			TasksCompleted:            rng.Int63n(400),
			TasksFailed:               rng.Int63n(40),
			KnowledgePackagesApproved: rng.Int63n(20),
			CompletedTrades:           rng.Int63n(20),
			TotalEarnedCredits:        rng.ExpFloat64() * 1000,
		}
	}
	return cohort
}

func TestEngine_RankEmptyCohort(t *testing.T) {
	e := newTestEngine(t)

	for _, cohort := range [][]domain.AgentMetric{nil, {}} {
		result, err := e.Rank(cohort, domain.RankQuery{})
		require.NoError(t, err)

		assert.NotNil(t, result.Rankings)
		assert.Empty(t, result.Rankings)
		assert.Zero(t, result.TotalAgents)
		assert.Equal(t, domain.SortComposite, result.SortBy)
		require.Len(t, result.TierDistribution, 5)
		for tier, n := range result.TierDistribution {
			assert.Zero(t, n, "tier %s", tier)
		}
	}
}

func TestEngine_RankTieBreakByAgentID(t *testing.T) {
	e, err := NewEngine(WithPolicy(compositeOnlyPolicy()))
	require.NoError(t, err)

	// Both agents score 0.50 against the top agent's 100 tasks.
	cohort := []domain.AgentMetric{
		agentWithTasks("agt_b", 50),
		agentWithTasks("agt_top", 100),
		agentWithTasks("agt_a", 50),
	}

	result, err := e.Rank(cohort, domain.RankQuery{})
	require.NoError(t, err)
	require.Len(t, result.Rankings, 3)

	assert.Equal(t, "agt_top", result.Rankings[0].AgentID)
	assert.Equal(t, "agt_a", result.Rankings[1].AgentID)
	assert.Equal(t, "agt_b", result.Rankings[2].AgentID)
	assert.InDelta(t, 0.5, result.Rankings[1].CompositeScore, 1e-12)
	assert.InDelta(t, 0.5, result.Rankings[2].CompositeScore, 1e-12)

	assert.Equal(t, 2, result.Rankings[1].Rank)
	assert.Equal(t, 3, result.Rankings[2].Rank)
	assert.Equal(t, result.Rankings[1].Percentile, result.Rankings[2].Percentile, "tied agents share a percentile")
	assert.Zero(t, result.Rankings[2].Percentile)
}

func TestEngine_RankFilterRole(t *testing.T) {
	e := newTestEngine(t)

	cohort := make([]domain.AgentMetric, 0, 10)
	for i := range 10 {
		role := "trader"
		if i%3 == 0 && i > 0 {
			role = "coder"
		}
		cohort = append(cohort, agentWithTasks(fmt.Sprintf("agt_%02d", i), int64(10*i), role))
	}

	result, err := e.Rank(cohort, domain.RankQuery{FilterRole: "coder"})
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalAgents)
	require.Len(t, result.Rankings, 3)
	for i, entry := range result.Rankings {
		assert.Equal(t, i+1, entry.Rank)
		assert.Contains(t, entry.Roles, "coder")
	}
	assert.Equal(t, 3, result.TierDistribution.Total())
}

func TestEngine_RankPercentileBoundary(t *testing.T) {
	e := newTestEngine(t)

	cohort := []domain.AgentMetric{
		agentWithTasks("agt_1", 10),
		agentWithTasks("agt_2", 20),
		agentWithTasks("agt_3", 30),
		agentWithTasks("agt_4", 40),
	}

	result, err := e.Rank(cohort, domain.RankQuery{SortBy: domain.SortTasks})
	require.NoError(t, err)
	require.Len(t, result.Rankings, 4)

	assert.Equal(t, "agt_4", result.Rankings[0].AgentID)
	assert.Equal(t, 75.0, result.Rankings[0].Percentile)
	assert.Equal(t, 50.0, result.Rankings[1].Percentile)
	assert.Equal(t, 25.0, result.Rankings[2].Percentile)
	assert.Equal(t, 0.0, result.Rankings[3].Percentile)
	assert.Equal(t, 40.0, result.Rankings[0].SortValue)
}

func TestEngine_RankTruncatesAfterRanking(t *testing.T) {
	e := newTestEngine(t)
	cohort := randomCohort(rand.New(rand.NewSource(3)), 40)

	full, err := e.Rank(cohort, domain.RankQuery{})
	require.NoError(t, err)

	page, err := e.Rank(cohort, domain.RankQuery{Limit: 5})
	require.NoError(t, err)

	require.Len(t, page.Rankings, 5)
	assert.Equal(t, 40, page.TotalAgents)
	assert.Equal(t, full.TierDistribution, page.TierDistribution)
	assert.Equal(t, full.Rankings[:5], page.Rankings, "page entries keep their full-cohort ranks and percentiles")
}

func TestEngine_RankFilters(t *testing.T) {
	e := newTestEngine(t)

	cohort := []domain.AgentMetric{
		{AgentID: "agt_alpha", Name: "Alpha Coder", Roles: []string{"coder"}, SuccessRate: 1, AvgQualityRating: 1, UptimeConsistency: 1, TasksCompleted: 100, TotalEarnedCredits: 1000, CompletedTrades: 10},
		{AgentID: "agt_beta", Name: "Beta Researcher", Roles: []string{"researcher"}, SuccessRate: 0.5, TasksCompleted: 10, TasksFailed: 10},
		{AgentID: "agt_gamma", Name: "GAMMA", Roles: nil, AvgResponseTimeSeconds: 600},
	}

	tests := []struct {
		name    string
		query   domain.RankQuery
		wantIDs []string
	}{
		{name: "search matches name case-insensitively", query: domain.RankQuery{SearchText: "beta research"}, wantIDs: []string{"agt_beta"}},
		{name: "search matches agent id", query: domain.RankQuery{SearchText: "AGT_GAM"}, wantIDs: []string{"agt_gamma"}},
		{name: "search is trimmed", query: domain.RankQuery{SearchText: "  alpha "}, wantIDs: []string{"agt_alpha"}},
		{name: "tier filter", query: domain.RankQuery{FilterTier: domain.TierDiamond}, wantIDs: []string{"agt_alpha"}},
		{name: "filters combine with AND", query: domain.RankQuery{FilterRole: "coder", SearchText: "beta"}, wantIDs: []string{}},
		{name: "absent roles never match a role filter", query: domain.RankQuery{FilterRole: "gamma"}, wantIDs: []string{}},
		{name: "no filters", query: domain.RankQuery{}, wantIDs: []string{"agt_alpha", "agt_beta", "agt_gamma"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Rank(cohort, tt.query)
			require.NoError(t, err)

			ids := make([]string, 0, len(result.Rankings))
			for _, r := range result.Rankings {
				ids = append(ids, r.AgentID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, len(tt.wantIDs), result.TotalAgents)
			assert.Equal(t, len(tt.wantIDs), result.TierDistribution.Total())
		})
	}
}

// TestEngine_RankScoresIndependentOfFilters checks that an agent's composite
// score is the same in every filtered view of a cohort.
func TestEngine_RankScoresIndependentOfFilters(t *testing.T) {
	e := newTestEngine(t)
	cohort := randomCohort(rand.New(rand.NewSource(5)), 60)

	full, err := e.Rank(cohort, domain.RankQuery{Limit: 200})
	require.NoError(t, err)
	byID := make(map[string]float64, len(full.Rankings))
	for _, r := range full.Rankings {
		byID[r.AgentID] = r.CompositeScore
	}

	filtered, err := e.Rank(cohort, domain.RankQuery{FilterRole: "coder"})
	require.NoError(t, err)
	require.NotEmpty(t, filtered.Rankings)
	for _, r := range filtered.Rankings {
		assert.Equal(t, byID[r.AgentID], r.CompositeScore, r.AgentID)
	}
}

func TestEngine_RankDeterministic(t *testing.T) {
	e := newTestEngine(t)
	cohort := randomCohort(rand.New(rand.NewSource(9)), 120)

	for _, key := range domain.SortKeys() {
		t.Run(string(key), func(t *testing.T) {
			q := domain.RankQuery{SortBy: key, Limit: 150}
			first, err := e.Rank(cohort, q)
			require.NoError(t, err)

			// Shuffled input must not change the output either.
			shuffled := append([]domain.AgentMetric(nil), cohort...)
			rand.New(rand.NewSource(1)).Shuffle(len(shuffled), func(i, j int) {
				shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
			})
			second, err := e.Rank(shuffled, q)
			require.NoError(t, err)

			a, err := json.Marshal(first)
			require.NoError(t, err)
			b, err := json.Marshal(second)
			require.NoError(t, err)
			assert.Equal(t, string(a), string(b))
		})
	}
}

// TestEngine_RankInvariants checks ordering, percentile and tier properties
// over random cohorts for every sort key.
func TestEngine_RankInvariants(t *testing.T) {
	e := newTestEngine(t)
	rng := rand.New(rand.NewSource(21))

	for range 20 {
		cohort := randomCohort(rng, 1+rng.Intn(80))
		for _, key := range domain.SortKeys() {
			result, err := e.Rank(cohort, domain.RankQuery{SortBy: key, Limit: 200})
			require.NoError(t, err)
			require.Len(t, result.Rankings, len(cohort))

			for i, r := range result.Rankings {
				assert.Equal(t, i+1, r.Rank)
				assert.GreaterOrEqual(t, r.Percentile, 0.0)
				assert.Less(t, r.Percentile, 100.0)
				assert.Equal(t, domain.ClassifyTier(r.CompositeScore), r.Tier)
				if i == 0 {
					continue
				}
				prev := result.Rankings[i-1]
				assert.GreaterOrEqual(t, prev.SortValue, r.SortValue)
				assert.GreaterOrEqual(t, prev.Percentile, r.Percentile)
				if prev.SortValue == r.SortValue {
					assert.Less(t, prev.AgentID, r.AgentID)
				}
			}
		}
	}
}

func TestEngine_RankValidation(t *testing.T) {
	e := newTestEngine(t)
	cohort := []domain.AgentMetric{agentWithTasks("agt_a", 1)}

	tests := []struct {
		name    string
		query   domain.RankQuery
		wantErr error
	}{
		{name: "unknown sort key", query: domain.RankQuery{SortBy: "popularity"}, wantErr: domain.ErrInvalidSortKey},
		{name: "negative limit", query: domain.RankQuery{Limit: -1}, wantErr: domain.ErrInvalidLimit},
		{name: "unknown tier", query: domain.RankQuery{FilterTier: "mythril"}, wantErr: domain.ErrInvalidTier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Rank(cohort, tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			var verr *domain.ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Nil(t, result.Rankings)
		})
	}

	t.Run("validation runs before an empty cohort short-circuits", func(t *testing.T) {
		_, err := e.Rank(nil, domain.RankQuery{SortBy: "bogus"})
		assert.ErrorIs(t, err, domain.ErrInvalidSortKey)
	})
}

func TestEngine_RankReportsAnomaliesAndSuspension(t *testing.T) {
	e := newTestEngine(t)

	cohort := []domain.AgentMetric{
		{AgentID: "agt_weak", AvgResponseTimeSeconds: 1200, Status: "on-vacation"},
		{AgentID: "agt_odd", SuccessRate: 3, TasksCompleted: 4, UptimeConsistency: 1, AvgQualityRating: 1},
	}

	result, err := e.Rank(cohort, domain.RankQuery{})
	require.NoError(t, err)
	require.Len(t, result.Rankings, 2)

	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, "agt_odd", result.Anomalies[0].AgentID)
	assert.Equal(t, "successRate", result.Anomalies[0].Field)

	byID := map[string]domain.RankingEntry{}
	for _, r := range result.Rankings {
		byID[r.AgentID] = r
	}
	assert.True(t, byID["agt_weak"].SuspensionEligible)
	assert.False(t, byID["agt_odd"].SuspensionEligible)
	assert.Equal(t, domain.AgentStatus("on-vacation"), byID["agt_weak"].Status, "unknown statuses pass through")
	assert.NotNil(t, byID["agt_weak"].Roles)
}

func TestEngine_Detail(t *testing.T) {
	e := newTestEngine(t)

	cohort := []domain.AgentMetric{
		agentWithTasks("agt_1", 10),
		agentWithTasks("agt_2", 20),
		agentWithTasks("agt_3", 30),
		agentWithTasks("agt_4", 40),
	}

	detail, err := e.Detail(cohort, "agt_3")
	require.NoError(t, err)
	assert.Equal(t, "agt_3", detail.Agent.AgentID)
	assert.Equal(t, 2, detail.Rank)
	assert.Equal(t, 50.0, detail.Percentile)
	assert.Equal(t, 4, detail.CohortSize)
	assert.Equal(t, domain.ClassifyTier(detail.Composite), detail.Tier)

	result, err := e.Rank(cohort, domain.RankQuery{})
	require.NoError(t, err)
	assert.Equal(t, result.Rankings[1].CompositeScore, detail.Composite)

	t.Run("unknown agent suggests close IDs", func(t *testing.T) {
		_, err := e.Detail(cohort, "agt_5")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAgentNotFound)

		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, []string{"agt_1", "agt_2", "agt_3"}, nf.Suggestions)
	})

	t.Run("empty cohort", func(t *testing.T) {
		_, err := e.Detail(nil, "agt_1")
		assert.ErrorIs(t, err, domain.ErrAgentNotFound)
	})
}

func TestNewEngine_InvalidPolicy(t *testing.T) {
	p := domain.DefaultScoringPolicy()
	p.Composite.Tasks = 0.9

	_, err := NewEngine(WithPolicy(p))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create ranking engine")
}

func BenchmarkEngine_Rank(b *testing.B) {
	e := newTestEngine(b)
	for _, n := range []int{100, 1000, 10000} {
		cohort := testutils.GenerateCohort(n, int64(n))
		b.Run(fmt.Sprintf("cohort=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := e.Rank(cohort, domain.RankQuery{FilterRole: "coder"}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
