package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DansiDanutz/nervix-leaderboard/internal/domain"
)

func TestValidatePolicy(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *domain.ScoringPolicy)
		wantErr string
	}{
		{
			name:   "default policy is valid",
			mutate: func(p *domain.ScoringPolicy) {},
		},
		{
			name:    "reputation weights must sum to one",
			mutate:  func(p *domain.ScoringPolicy) { p.Reputation.Uptime = 0.2 },
			wantErr: "reputation weights must sum to 1",
		},
		{
			name:    "composite weights must sum to one",
			mutate:  func(p *domain.ScoringPolicy) { p.Composite.Earnings = 0 },
			wantErr: "composite weights must sum to 1",
		},
		{
			name:    "negative weight rejected",
			mutate:  func(p *domain.ScoringPolicy) { p.Reputation.Speed = -0.25; p.Reputation.Success = 0.9 },
			wantErr: "invalid configuration",
		},
		{
			name:    "speed saturation must be positive",
			mutate:  func(p *domain.ScoringPolicy) { p.SpeedSaturationSeconds = 0 },
			wantErr: "SpeedSaturationSeconds",
		},
		{
			name:    "suspension threshold bounded",
			mutate:  func(p *domain.ScoringPolicy) { p.SuspensionThreshold = 1.5 },
			wantErr: "SuspensionThreshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.DefaultScoringPolicy()
			tt.mutate(&p)

			err := ValidatePolicy(p)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadPolicy(t *testing.T) {
	t.Run("empty document yields defaults", func(t *testing.T) {
		p, err := LoadPolicy(strings.NewReader("  \n"))
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultScoringPolicy(), p)
	})

	t.Run("partial override keeps remaining defaults", func(t *testing.T) {
		doc := `
composite:
  reputation: 0.5
  tasks: 0.2
  knowledge: 0.15
  earnings: 0.15
speed_saturation_seconds: 300
`
		p, err := LoadPolicy(strings.NewReader(doc))
		require.NoError(t, err)
		assert.Equal(t, 0.5, p.Composite.Reputation)
		assert.Equal(t, 300.0, p.SpeedSaturationSeconds)
		assert.Equal(t, domain.DefaultScoringPolicy().Reputation, p.Reputation)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		_, err := LoadPolicy(strings.NewReader("speed_saturation: 10\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "YAML decode failed")
	})

	t.Run("invalid weights are rejected", func(t *testing.T) {
		_, err := LoadPolicy(strings.NewReader("reputation:\n  success: 0.9\n"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrWeightSum)
	})
}
