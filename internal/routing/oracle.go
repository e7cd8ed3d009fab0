// Package routing escalates scoring across oracle stages of increasing cost,
// calling more expensive models only when cheaper ones land too close to a
// decision threshold.
package routing

import (
	"context"

	"curator/internal/models"
)

// ScoreResult is one oracle call's output: per-dimension scores in [0,1] plus
// free-text theme hints for the classifier downstream.
type ScoreResult struct {
	Scores     models.DimensionScore
	ThemeHints []models.ThemeHint
}

// ScoringOracle is the external scoring capability. The engine depends only
// on this interface, never on a specific inference runtime.
type ScoringOracle interface {
	// Name identifies the provider (for stage wiring and logging).
	Name() string
	// Score rates the text with the given model. Transient failures wrap
	// models.ErrOracleUnavailable.
	Score(ctx context.Context, text, modelRef string) (ScoreResult, error)
}

// Stage is one tier of the cascade. Stages are an ordered list, not an enum,
// so tiers can be added through configuration alone.
type Stage struct {
	Name     string  `mapstructure:"name"`
	Provider string  `mapstructure:"provider"`
	Model    string  `mapstructure:"model"`
	// Margin is this stage's escalation band: a gated dimension scoring
	// within Margin of its floor escalates to the next stage. Margins must
	// be non-increasing across stages.
	Margin float64 `mapstructure:"margin"`
}

// Retry controls the single in-stage retry on transient oracle failure.
type Retry struct {
	BaseDelayMs int64 `mapstructure:"base_delay_ms"`
}
