// Package scoring turns a score bundle into the final curation decision under
// a per-content-type policy or calibration model.
package scoring

import (
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"curator/internal/calibration"
	"curator/internal/models"
)

// Aggregate computes the decision for one item. It is pure: identical inputs
// always produce the identical decision. Policy and calibration are passed as
// explicit snapshots, never read from ambient state.
//
// The returned borderline slice lists every triage-gated dimension that
// landed within the triage margin; non-empty means the decision outcome is
// triage and the computed outcome was demoted to Suggested.
func Aggregate(item models.ContentItem, bundle *models.ScoreBundle, policy models.Policy, calib *models.CalibrationModel) (models.Decision, []models.BorderlineDimension) {
	decision := models.Decision{
		ItemID:      item.ID,
		ContentType: item.ContentType,
		DecidedAt:   time.Now().UTC(),
	}

	// Hard gate: the content-length floor is absolute, not advisory.
	length := utf8.RuneCountInString(item.Text)
	if length < policy.MinLength {
		decision.Outcome = models.OutcomeDelete
		decision.Reason = fmt.Sprintf("content length %d below minimum %d for %s", length, policy.MinLength, policy.ContentType)
		if bundle != nil {
			decision.Provenance = bundle.Stages
			decision.Degraded = bundle.Degraded
		}
		return decision, nil
	}

	if bundle == nil || bundle.Final() == nil {
		decision.Outcome = models.OutcomeError
		decision.Reason = "no score bundle available"
		return decision, nil
	}

	final := bundle.Final()
	decision.Provenance = bundle.Stages
	decision.Degraded = bundle.Degraded

	// Only the final stage's scores are weighed; earlier stages are
	// provenance, so an escalated re-score is never double counted.
	if calib != nil {
		decision.WeightedScore = calibration.Probability(calib, final.Scores, length)
		decision.CalibrationVersion = calib.Version
	} else {
		decision.WeightedScore = weightedScore(final.Scores, policy.Weights)
	}

	outcome, reason := mapOutcome(decision.WeightedScore, final.Scores, policy)

	// Triage override: any triage-gated dimension within the margin of its
	// floor defers the decision to a human instead.
	borderline := borderlineDimensions(final.Scores, policy)
	if len(borderline) > 0 {
		decision.Outcome = models.OutcomeTriage
		decision.Suggested = outcome
		decision.Reason = fmt.Sprintf("dimension %q within %.3f of threshold %.3f (suggested: %s)",
			borderline[0].Dimension, policy.Triage.Margin, borderline[0].Threshold, outcome)
		return decision, borderline
	}

	decision.Outcome = outcome
	decision.Reason = reason
	return decision, nil
}

// weightedScore is the normalized weighted sum over the dimensions present in
// the final scores. Weights need not sum to 1; missing dimensions contribute
// nothing and their weight is excluded from normalization.
func weightedScore(scores models.DimensionScore, weights map[string]float64) float64 {
	var sum, norm float64
	for dim, w := range weights {
		score, ok := scores[dim]
		if !ok {
			continue
		}
		sum += w * score
		norm += w
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// mapOutcome applies the policy thresholds in strict priority order:
// delete-threshold miss, then per-dimension floor miss, then keep, refine,
// archive hits, then default delete.
func mapOutcome(weighted float64, scores models.DimensionScore, policy models.Policy) (models.Outcome, string) {
	if floor, ok := policy.Outcomes[string(models.OutcomeDelete)]; ok && weighted < floor {
		return models.OutcomeDelete, fmt.Sprintf("weighted score %.3f below delete floor %.3f", weighted, floor)
	}

	for _, dim := range sortedKeys(policy.Dimensions) {
		floor := policy.Dimensions[dim]
		if score, ok := scores[dim]; ok && score < floor {
			return models.OutcomeDelete, fmt.Sprintf("dimension %q score %.3f below floor %.3f", dim, score, floor)
		}
	}

	for _, outcome := range []models.Outcome{models.OutcomeKeep, models.OutcomeRefine, models.OutcomeArchive} {
		if th, ok := policy.Outcomes[string(outcome)]; ok && weighted >= th {
			return outcome, fmt.Sprintf("weighted score %.3f reached %s threshold %.3f", weighted, outcome, th)
		}
	}

	return models.OutcomeDelete, fmt.Sprintf("weighted score %.3f below all outcome thresholds", weighted)
}

// borderlineDimensions collects triage-gated dimensions whose distance to
// their floor is within the margin. A margin of 0 triggers only on exact
// equality.
func borderlineDimensions(scores models.DimensionScore, policy models.Policy) []models.BorderlineDimension {
	var out []models.BorderlineDimension
	dims := make([]string, len(policy.Triage.Dimensions))
	copy(dims, policy.Triage.Dimensions)
	sort.Strings(dims)
	for _, dim := range dims {
		floor, ok := policy.Dimensions[dim]
		if !ok {
			continue
		}
		score, ok := scores[dim]
		if !ok {
			continue
		}
		distance := score - floor
		if distance < 0 {
			distance = -distance
		}
		if distance <= policy.Triage.Margin {
			out = append(out, models.BorderlineDimension{Dimension: dim, Score: score, Threshold: floor})
		}
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
