// Package triage holds borderline decisions for human review and turns each
// resolution into a gold training example.
package triage

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"curator/internal/models"
	"curator/internal/store"
)

// Queue manages pending triage records. Enqueue is idempotent per item;
// Resolve mutates each record exactly once.
type Queue struct {
	triage store.TriageStore
	gold   store.GoldStore
}

// NewQueue wires the queue to its backing stores. The gold store may be nil
// when resolutions should not feed calibration.
func NewQueue(triage store.TriageStore, gold store.GoldStore) *Queue {
	return &Queue{triage: triage, gold: gold}
}

// Enqueue files a borderline decision for review. textLength is the item's
// normalized rune count, captured here so the eventual resolution can emit a
// gold example with the true length feature. Re-enqueueing an item that is
// already pending (or already resolved) is a no-op.
func (q *Queue) Enqueue(ctx context.Context, decision models.Decision, scores models.DimensionScore, borderline []models.BorderlineDimension, textLength int) error {
	if decision.Outcome != models.OutcomeTriage {
		return fmt.Errorf("%w: cannot enqueue outcome %q for triage", models.ErrValidation, decision.Outcome)
	}
	record := &models.TriageRecord{
		ItemID:      decision.ItemID,
		ContentType: decision.ContentType,
		Scores:      scores,
		Borderline:  borderline,
		TextLength:  textLength,
		Suggested:   decision.Suggested,
		CreatedAt:   time.Now().UTC(),
	}
	created, err := q.triage.CreateTriageRecordIfAbsent(ctx, record)
	if err != nil {
		return fmt.Errorf("enqueue triage for %s: %w", decision.ItemID, err)
	}
	if !created {
		log.Debugf("triage: item %s already queued, skipping", decision.ItemID)
	}
	return nil
}

// Pending lists unresolved records in enqueue order.
func (q *Queue) Pending(ctx context.Context, limit, offset int) ([]*models.TriageRecord, error) {
	return q.triage.ListPendingTriage(ctx, limit, offset)
}

// Resolve applies a human outcome to a pending record and returns the final
// decision. The resolved outcome bypasses score aggregation entirely. A
// second resolution, an unknown item, or a non-terminal outcome leaves the
// queue unchanged and returns ErrTriageConflict or ErrValidation.
func (q *Queue) Resolve(ctx context.Context, itemID string, outcome models.Outcome) (*models.Decision, error) {
	if !models.ValidOutcome(string(outcome)) {
		return nil, fmt.Errorf("%w: %q is not a resolvable outcome", models.ErrValidation, outcome)
	}

	record, err := q.triage.GetTriageRecord(ctx, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no triage record for item %s", models.ErrTriageConflict, itemID)
		}
		return nil, fmt.Errorf("load triage record for %s: %w", itemID, err)
	}
	if record.Resolved != nil {
		return nil, fmt.Errorf("%w: item %s already resolved to %s", models.ErrTriageConflict, itemID, *record.Resolved)
	}

	resolvedAt := time.Now().UTC()
	if err := q.triage.MarkTriageResolved(ctx, itemID, outcome, resolvedAt); err != nil {
		return nil, fmt.Errorf("resolve triage for %s: %w", itemID, err)
	}

	if q.gold != nil {
		example := &models.GoldExample{
			ItemID:      itemID,
			ContentType: record.ContentType,
			Scores:      record.Scores,
			TextLength:  record.TextLength,
			Keep:        outcome == models.OutcomeKeep || outcome == models.OutcomeRefine,
			Source:      "triage",
			CreatedAt:   resolvedAt,
		}
		if err := q.gold.AddGoldExample(ctx, example); err != nil {
			// The resolution stands; a lost gold label only delays calibration.
			log.Warnf("triage: resolution for %s recorded but gold example failed: %v", itemID, err)
		}
	}

	log.Infof("triage: item %s resolved to %s (suggested was %s)", itemID, outcome, record.Suggested)
	return &models.Decision{
		ItemID:      itemID,
		ContentType: record.ContentType,
		Outcome:     outcome,
		Suggested:   record.Suggested,
		Reason:      fmt.Sprintf("human triage resolution (suggested: %s)", record.Suggested),
		DecidedAt:   resolvedAt,
	}, nil
}
