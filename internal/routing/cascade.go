package routing

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"curator/internal/models"
)

// Cascade drives the staged scoring of one item. Oracle calls are the only
// blocking operations in the pipeline; everything else is CPU-bound.
type Cascade struct {
	stages    []Stage
	oracles   map[string]ScoringOracle // keyed by provider name
	retry     Retry
	excerpter *Excerpter

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// NewCascade wires stages to their providers. Every stage's provider must be
// registered and margins must be non-increasing (tightening) across stages.
func NewCascade(stages []Stage, oracles []ScoringOracle, retry Retry, excerpter *Excerpter) (*Cascade, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("%w: routing requires at least one stage", models.ErrPolicyMisconfigured)
	}
	byName := make(map[string]ScoringOracle, len(oracles))
	for _, o := range oracles {
		byName[o.Name()] = o
	}
	for i, st := range stages {
		if _, ok := byName[st.Provider]; !ok {
			return nil, fmt.Errorf("%w: stage %q references unknown provider %q", models.ErrPolicyMisconfigured, st.Name, st.Provider)
		}
		if st.Margin < 0 {
			return nil, fmt.Errorf("%w: stage %q has negative margin", models.ErrPolicyMisconfigured, st.Name)
		}
		if i > 0 && st.Margin > stages[i-1].Margin {
			return nil, fmt.Errorf("%w: stage %q margin %.3f exceeds previous stage margin %.3f", models.ErrPolicyMisconfigured, st.Name, st.Margin, stages[i-1].Margin)
		}
	}
	if excerpter == nil {
		excerpter = NewExcerpter(0)
	}
	return &Cascade{
		stages:    stages,
		oracles:   byName,
		retry:     retry,
		excerpter: excerpter,
		sleep:     time.Sleep,
	}, nil
}

// Stages exposes the configured stage list (read-only use).
func (c *Cascade) Stages() []Stage { return c.stages }

// Route scores the item through the cascade under the given policy. The
// returned bundle holds one StageResult per executed stage; the final entry
// is the one the aggregator weighs. Cancellation is honored between stages,
// never mid-call.
func (c *Cascade) Route(ctx context.Context, item models.ContentItem, policy models.Policy) (*models.ScoreBundle, error) {
	bundle := &models.ScoreBundle{ItemID: item.ID}
	text := c.excerpter.Excerpt(item.Text)

	for i, stage := range c.stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("routing aborted before stage %q: %w", stage.Name, err)
		}

		res, latency, err := c.callStage(ctx, stage, text)
		if err != nil {
			if i < len(c.stages)-1 {
				// Escalate immediately: the next, stronger stage gets its turn.
				log.Warnf("routing: stage %q failed twice for item %s, escalating: %v", stage.Name, item.ID, err)
				continue
			}
			if len(bundle.Stages) == 0 {
				return nil, fmt.Errorf("all routing stages failed for item %s: %w", item.ID, err)
			}
			// Terminal stage failed: degrade to the best bundle we have
			// rather than fabricating scores.
			log.Warnf("routing: terminal stage %q failed for item %s, returning degraded bundle: %v", stage.Name, item.ID, err)
			bundle.Degraded = true
			return bundle, nil
		}

		bundle.Stages = append(bundle.Stages, models.StageResult{
			Stage:      stage.Name,
			Model:      stage.Model,
			Scores:     res.Scores,
			ThemeHints: res.ThemeHints,
			Latency:    latency,
		})

		if i == len(c.stages)-1 || !needsEscalation(res.Scores, policy, stage.Margin) {
			break
		}
		log.Debugf("routing: item %s escalating from stage %q (gated dimension within %.3f of threshold)", item.ID, stage.Name, stage.Margin)
	}

	return bundle, nil
}

// callStage invokes the stage's oracle, retrying once with backoff on
// transient failure. Every attempt's latency is logged.
func (c *Cascade) callStage(ctx context.Context, stage Stage, text string) (ScoreResult, time.Duration, error) {
	oracle := c.oracles[stage.Provider]

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		start := time.Now()
		res, err := oracle.Score(ctx, text, stage.Model)
		latency := time.Since(start)
		log.Debugf("routing: stage=%s model=%s attempt=%d latency=%s err=%v", stage.Name, stage.Model, attempt, latency, err)
		if err == nil {
			return res, latency, nil
		}
		lastErr = err
		if attempt == 0 {
			delay := c.retry.BaseDelayMs
			if delay <= 0 {
				delay = 200
			}
			c.sleep(time.Duration(delay) * time.Millisecond)
		}
	}
	return ScoreResult{}, 0, lastErr
}

// needsEscalation reports whether any gated dimension landed within the
// stage's margin of its policy floor, i.e. the result is too uncertain to
// stand. A missing gated dimension also escalates.
func needsEscalation(scores models.DimensionScore, policy models.Policy, margin float64) bool {
	for _, dim := range policy.Gate {
		threshold := policy.Dimensions[dim]
		score, ok := scores[dim]
		if !ok {
			return true
		}
		distance := score - threshold
		if distance < 0 {
			distance = -distance
		}
		if distance <= margin {
			return true
		}
	}
	return false
}
