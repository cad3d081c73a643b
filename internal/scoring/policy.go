// Package scoring implements the two-stage scoring pipeline: the
// cohort-independent reputation score and the cohort-relative composite score.
package scoring

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

// weightSumTolerance absorbs float rounding when checking that weights sum to 1.
const weightSumTolerance = 1e-9

// ErrWeightSum is returned when a weight group does not sum to 1.
var ErrWeightSum = errors.New("weights must sum to 1")

// Package-level validator instance for policy validation.
// Uses go-playground/validator v10 for struct tag-based validation.
var validate = validator.New()

// ValidatePolicy checks struct constraints and that each weight group sums
// to 1, which is what keeps every derived score inside [0,1].
func ValidatePolicy(p domain.ScoringPolicy) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}

	verr := domain.NewValidationError("ScoringPolicy")
	if s := p.Reputation.Sum(); math.Abs(s-1) > weightSumTolerance {
		verr.Add(fmt.Errorf("reputation %w (got %.6f)", ErrWeightSum, s))
	}
	if s := p.Composite.Sum(); math.Abs(s-1) > weightSumTolerance {
		verr.Add(fmt.Errorf("composite %w (got %.6f)", ErrWeightSum, s))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// LoadPolicy decodes a YAML policy document on top of DefaultScoringPolicy,
// so a document only needs the fields it overrides. Unknown fields are
// rejected to surface typos.
func LoadPolicy(r io.Reader) (domain.ScoringPolicy, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.ScoringPolicy{}, fmt.Errorf("failed to read policy: %w", err)
	}

	policy := domain.DefaultScoringPolicy()
	if len(bytes.TrimSpace(data)) == 0 {
		return policy, nil
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&policy); err != nil {
		return domain.ScoringPolicy{}, fmt.Errorf("YAML decode failed: %w", err)
	}

	if err := ValidatePolicy(policy); err != nil {
		return domain.ScoringPolicy{}, fmt.Errorf("policy validation failed: %w", err)
	}
	return policy, nil
}
