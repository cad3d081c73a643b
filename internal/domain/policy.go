package domain

// ReputationWeights are the blend weights of the four reputation sub-scores.
// They must sum to 1 so that the overall score stays within [0,1].
type ReputationWeights struct {
	Success float64 `json:"success" yaml:"success" validate:"min=0,max=1"`
	Speed   float64 `json:"speed" yaml:"speed" validate:"min=0,max=1"`
	Quality float64 `json:"quality" yaml:"quality" validate:"min=0,max=1"`
	Uptime  float64 `json:"uptime" yaml:"uptime" validate:"min=0,max=1"`
}

// Sum returns the total of all weights.
func (w ReputationWeights) Sum() float64 { return w.Success + w.Speed + w.Quality + w.Uptime }

// CompositeWeights are the blend weights of the composite score inputs.
// They must sum to 1 so that the composite score stays within [0,1].
type CompositeWeights struct {
	Reputation float64 `json:"reputation" yaml:"reputation" validate:"min=0,max=1"`
	Tasks      float64 `json:"tasks" yaml:"tasks" validate:"min=0,max=1"`
	Knowledge  float64 `json:"knowledge" yaml:"knowledge" validate:"min=0,max=1"`
	Earnings   float64 `json:"earnings" yaml:"earnings" validate:"min=0,max=1"`
}

// Sum returns the total of all weights.
func (w CompositeWeights) Sum() float64 { return w.Reputation + w.Tasks + w.Knowledge + w.Earnings }

// ScoringPolicy is the single configuration record consumed by both scorers.
// The service always runs DefaultScoringPolicy; substitutes exist for tests
// and offline what-if runs and are never exposed to ranking callers.
type ScoringPolicy struct {
	// Reputation weights the success, speed, quality and uptime sub-scores.
	Reputation ReputationWeights `json:"reputation" yaml:"reputation" validate:"required"`

	// Composite weights reputation against the normalized activity signals.
	Composite CompositeWeights `json:"composite" yaml:"composite" validate:"required"`

	// SpeedSaturationSeconds is the response time at which the speed
	// sub-score reaches 0. Slower responses cannot lower it further.
	SpeedSaturationSeconds float64 `json:"speedSaturationSeconds" yaml:"speed_saturation_seconds" validate:"gt=0"`

	// EarningsEpsilon is the floor of the earnings normalization denominator,
	// guarding a cohort in which nobody has earned anything.
	EarningsEpsilon float64 `json:"earningsEpsilon" yaml:"earnings_epsilon" validate:"gt=0"`

	// SuspensionThreshold marks agents whose reputation falls below it as
	// eligible for suspension. The engine only reports the flag.
	SuspensionThreshold float64 `json:"suspensionThreshold" yaml:"suspension_threshold" validate:"min=0,max=1"`
}

// DefaultScoringPolicy returns the production weights.
func DefaultScoringPolicy() ScoringPolicy {
	return ScoringPolicy{
		Reputation: ReputationWeights{
			Success: 0.40,
			Speed:   0.25,
			Quality: 0.25,
			Uptime:  0.10,
		},
		Composite: CompositeWeights{
			Reputation: 0.35,
			Tasks:      0.25,
			Knowledge:  0.20,
			Earnings:   0.20,
		},
		SpeedSaturationSeconds: 600,
		EarningsEpsilon:        1e-9,
		SuspensionThreshold:    0.30,
	}
}
