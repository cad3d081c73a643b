package domain

import "fmt"

// Tier is one of five ordered reputation bands derived from a composite score.
type Tier string

// Tiers in ascending order.
const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierDiamond  Tier = "diamond"
)

// TierThreshold is the inclusive lower bound of a tier.
type TierThreshold struct {
	Tier     Tier
	MinScore float64
}

// tierThresholds is the only place tier boundaries are defined. Entries are
// ordered from highest to lowest; a score belongs to the first tier whose
// MinScore it reaches.
var tierThresholds = [...]TierThreshold{
	{Tier: TierDiamond, MinScore: 0.85},
	{Tier: TierPlatinum, MinScore: 0.70},
	{Tier: TierGold, MinScore: 0.50},
	{Tier: TierSilver, MinScore: 0.30},
	{Tier: TierBronze, MinScore: 0},
}

// TierThresholds returns a copy of the threshold table, highest tier first,
// for presentation layers that need to render the bands.
func TierThresholds() []TierThreshold {
	out := make([]TierThreshold, len(tierThresholds))
	copy(out, tierThresholds[:])
	return out
}

// ClassifyTier maps a composite score to its tier. Boundary values belong to
// the higher tier. Scores below 0 (or NaN) fall to bronze.
func ClassifyTier(compositeScore float64) Tier {
	for _, t := range tierThresholds {
		if compositeScore >= t.MinScore {
			return t.Tier
		}
	}
	return TierBronze
}

// AllTiers returns every tier in ascending order.
func AllTiers() []Tier {
	return []Tier{TierBronze, TierSilver, TierGold, TierPlatinum, TierDiamond}
}

// Ordinal returns the tier's position in ascending order (bronze = 0), or -1
// for an unknown tier.
func (t Tier) Ordinal() int {
	switch t {
	case TierBronze:
		return 0
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierPlatinum:
		return 3
	case TierDiamond:
		return 4
	default:
		return -1
	}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool { return t.Ordinal() >= 0 }

// ParseTier converts s into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
	}
	return t, nil
}

// TierDistribution counts agents per tier. NewTierDistribution always
// populates all five tiers so consumers never see a missing key.
type TierDistribution map[Tier]int

// NewTierDistribution returns a distribution with every tier at zero.
func NewTierDistribution() TierDistribution {
	d := make(TierDistribution, len(tierThresholds))
	for _, t := range AllTiers() {
		d[t] = 0
	}
	return d
}

// Total returns the number of agents counted across all tiers.
func (d TierDistribution) Total() int {
	var n int
	for _, c := range d {
		n += c
	}
	return n
}
