// Package testutils provides synthetic agent cohorts for tests, benchmarks
// and load testing. Generated data is reproducible for a given seed.
package testutils

import (
	"fmt"
	"math/rand"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// Profile names the behavior a generated agent is drawn from.
type Profile string

// Agent profiles, from most to least established.
const (
	ProfileVeteran    Profile = "veteran"
	ProfileSpecialist Profile = "specialist"
	ProfileNewcomer   Profile = "newcomer"
	ProfileStruggling Profile = "struggling"
	ProfileIdle       Profile = "idle"
)

// Roles used by generated agents.
var Roles = []string{"coder", "researcher", "trader", "reviewer", "writer"}

// profileWeights sets how often each profile occurs, out of 100.
var profileWeights = []struct {
	profile Profile
	weight  int
}{
	{ProfileVeteran, 15},
	{ProfileSpecialist, 25},
	{ProfileNewcomer, 30},
	{ProfileStruggling, 20},
	{ProfileIdle, 10},
}

var (
	nameAdjectives = []string{"Swift", "Quiet", "Bright", "Patient", "Curious", "Steady", "Bold", "Clever"}
	nameNouns      = []string{"Falcon", "Otter", "Comet", "Lantern", "Harbor", "Cipher", "Maple", "Quartz"}
)

// GenerateCohort creates size agents with IDs agt_00000, agt_00001 and so on.
// The seed controls randomization; a fixed seed yields an identical cohort.
func GenerateCohort(size int, seed int64) []domain.AgentMetric {
	rng := rand.New(rand.NewSource(seed))

	cohort := make([]domain.AgentMetric, 0, max(size, 0))
	for i := range size {
		cohort = append(cohort, GenerateAgent(rng, i, pickProfile(rng)))
	}
	return cohort
}

// GenerateAgent draws one agent with the given profile. Every numeric field
// stays inside its valid range.
func GenerateAgent(rng *rand.Rand, index int, profile Profile) domain.AgentMetric {
	m := domain.AgentMetric{
		AgentID: fmt.Sprintf("agt_%05d", index),
		Name: fmt.Sprintf("%s %s %d",
			nameAdjectives[rng.Intn(len(nameAdjectives))],
			nameNouns[rng.Intn(len(nameNouns))],
			index),
		Status: domain.StatusActive,
		Roles:  pickRoles(rng, profile),
	}

	switch profile {
	case ProfileVeteran:
		m.SuccessRate = between(rng, 0.85, 1)
		m.AvgResponseTimeSeconds = between(rng, 5, 90)
		m.AvgQualityRating = between(rng, 0.8, 1)
		m.UptimeConsistency = between(rng, 0.9, 1)
		m.TasksCompleted = 200 + rng.Int63n(800)
		m.KnowledgePackagesApproved = 10 + rng.Int63n(40)
		m.CompletedTrades = 20 + rng.Int63n(80)
		m.TotalEarnedCredits = between(rng, 10_000, 250_000)
	case ProfileSpecialist:
		m.SuccessRate = between(rng, 0.7, 0.95)
		m.AvgResponseTimeSeconds = between(rng, 30, 240)
		m.AvgQualityRating = between(rng, 0.7, 0.95)
		m.UptimeConsistency = between(rng, 0.75, 0.98)
		m.TasksCompleted = 50 + rng.Int63n(250)
		m.KnowledgePackagesApproved = rng.Int63n(25)
		m.CompletedTrades = rng.Int63n(30)
		m.TotalEarnedCredits = between(rng, 1_000, 40_000)
	case ProfileNewcomer:
		m.Status = pickStatus(rng, domain.StatusActive, domain.StatusPending)
		m.SuccessRate = between(rng, 0.4, 1)
		m.AvgResponseTimeSeconds = between(rng, 60, 600)
		m.AvgQualityRating = between(rng, 0.3, 0.9)
		m.UptimeConsistency = between(rng, 0.5, 1)
		m.TasksCompleted = rng.Int63n(20)
		m.KnowledgePackagesApproved = rng.Int63n(3)
		m.CompletedTrades = rng.Int63n(5)
		m.TotalEarnedCredits = between(rng, 0, 500)
	case ProfileStruggling:
		m.Status = pickStatus(rng, domain.StatusActive, domain.StatusSuspended)
		m.SuccessRate = between(rng, 0, 0.4)
		m.AvgResponseTimeSeconds = between(rng, 400, 1800)
		m.AvgQualityRating = between(rng, 0, 0.4)
		m.UptimeConsistency = between(rng, 0.1, 0.6)
		m.TasksCompleted = rng.Int63n(60)
		m.KnowledgePackagesApproved = rng.Int63n(2)
		m.TotalEarnedCredits = between(rng, 0, 2_000)
	case ProfileIdle:
		m.Status = domain.StatusOffline
	}
	if total := m.TasksCompleted; total > 0 && m.SuccessRate < 1 {
		m.TasksFailed = int64(float64(total) * (1 - m.SuccessRate) / max(m.SuccessRate, 0.05))
	}
	return m
}

func pickProfile(rng *rand.Rand) Profile {
	n := rng.Intn(100)
	for _, pw := range profileWeights {
		if n < pw.weight {
			return pw.profile
		}
		n -= pw.weight
	}
	return ProfileIdle
}

func pickRoles(rng *rand.Rand, profile Profile) []string {
	count := 1
	switch profile {
	case ProfileVeteran:
		count = 1 + rng.Intn(3)
	case ProfileIdle:
		count = rng.Intn(2)
	}

	perm := rng.Perm(len(Roles))
	roles := make([]string, 0, count)
	for _, i := range perm[:count] {
		roles = append(roles, Roles[i])
	}
	return roles
}

func pickStatus(rng *rand.Rand, common, rare domain.AgentStatus) domain.AgentStatus {
	if rng.Intn(5) == 0 {
		return rare
	}
	return common
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
