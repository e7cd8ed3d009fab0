// Package costtracker records the spend of oracle calls.
package costtracker

import (
	"context"
	"time"

	"curator/internal/models"
	"curator/internal/store"
)

// CostEvent represents a single oracle usage event and its cost.
type CostEvent struct {
	Provider     string
	Stage        string
	Model        string
	InputTokens  int
	OutputTokens int
	AmountUSD    float64
	ItemID       string
}

// CostTracker provides methods to record and report oracle costs.
type CostTracker interface {
	RecordCost(ctx context.Context, event CostEvent) error
	TotalCost(ctx context.Context) (float64, error)
}

// NewStoreTracker persists events through a UsageStore.
func NewStoreTracker(usage store.UsageStore) CostTracker {
	return &storeTracker{usage: usage}
}

type storeTracker struct {
	usage store.UsageStore
}

func (t *storeTracker) RecordCost(ctx context.Context, event CostEvent) error {
	rec := &models.OracleUsage{
		Timestamp:    time.Now().UTC(),
		ProviderName: event.Provider,
		Stage:        event.Stage,
		ModelName:    event.Model,
		InputTokens:  event.InputTokens,
		OutputTokens: event.OutputTokens,
		Cost:         event.AmountUSD,
	}
	if event.ItemID != "" {
		rec.ItemID = &event.ItemID
	}
	return t.usage.RecordUsage(ctx, rec)
}

func (t *storeTracker) TotalCost(ctx context.Context) (float64, error) {
	total, _, _, err := t.usage.GetUsageSummary(ctx)
	return total, err
}

// NewNoop returns a tracker that drops every event.
func NewNoop() CostTracker { return &noopCostTracker{} }

type noopCostTracker struct{}

func (n *noopCostTracker) RecordCost(ctx context.Context, event CostEvent) error { return nil }
func (n *noopCostTracker) TotalCost(ctx context.Context) (float64, error)        { return 0, nil }
