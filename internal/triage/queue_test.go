package triage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
	"curator/internal/store"
)

type memTriageStore struct {
	records map[string]*models.TriageRecord
}

func newMemTriageStore() *memTriageStore {
	return &memTriageStore{records: make(map[string]*models.TriageRecord)}
}

func (m *memTriageStore) CreateTriageRecordIfAbsent(ctx context.Context, record *models.TriageRecord) (bool, error) {
	if _, ok := m.records[record.ItemID]; ok {
		return false, nil
	}
	m.records[record.ItemID] = record
	return true, nil
}

func (m *memTriageStore) GetTriageRecord(ctx context.Context, itemID string) (*models.TriageRecord, error) {
	record, ok := m.records[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return record, nil
}

func (m *memTriageStore) ListPendingTriage(ctx context.Context, limit, offset int) ([]*models.TriageRecord, error) {
	var out []*models.TriageRecord
	for _, record := range m.records {
		if record.Resolved == nil {
			out = append(out, record)
		}
	}
	return out, nil
}

func (m *memTriageStore) MarkTriageResolved(ctx context.Context, itemID string, outcome models.Outcome, resolvedAt time.Time) error {
	record, ok := m.records[itemID]
	if !ok {
		return store.ErrNotFound
	}
	record.Resolved = &outcome
	record.ResolvedAt = &resolvedAt
	return nil
}

var _ store.TriageStore = (*memTriageStore)(nil)

type memGoldStore struct {
	examples []*models.GoldExample
}

func (m *memGoldStore) AddGoldExample(ctx context.Context, example *models.GoldExample) error {
	m.examples = append(m.examples, example)
	return nil
}

func (m *memGoldStore) ListGoldExamples(ctx context.Context, contentType string) ([]*models.GoldExample, error) {
	return m.examples, nil
}

var _ store.GoldStore = (*memGoldStore)(nil)

func triageDecision(itemID string) models.Decision {
	return models.Decision{
		ItemID:      itemID,
		ContentType: "web_clipping",
		Outcome:     models.OutcomeTriage,
		Suggested:   models.OutcomeDelete,
	}
}

func TestEnqueueIsIdempotent(t *testing.T) {
	triageStore := newMemTriageStore()
	q := NewQueue(triageStore, nil)
	ctx := context.Background()

	scores := models.DimensionScore{"relevance": 0.63}
	borderline := []models.BorderlineDimension{{Dimension: "relevance", Score: 0.63, Threshold: 0.65}}

	require.NoError(t, q.Enqueue(ctx, triageDecision("item-1"), scores, borderline, 120))
	require.NoError(t, q.Enqueue(ctx, triageDecision("item-1"), scores, borderline, 120))

	pending, err := q.Pending(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.OutcomeDelete, pending[0].Suggested)
}

func TestEnqueueRejectsNonTriageOutcome(t *testing.T) {
	q := NewQueue(newMemTriageStore(), nil)
	decision := triageDecision("item-1")
	decision.Outcome = models.OutcomeKeep

	err := q.Enqueue(context.Background(), decision, nil, nil, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestResolveBypassesAggregationAndFeedsGold(t *testing.T) {
	triageStore := newMemTriageStore()
	gold := &memGoldStore{}
	q := NewQueue(triageStore, gold)
	ctx := context.Background()

	scores := models.DimensionScore{"relevance": 0.63}
	require.NoError(t, q.Enqueue(ctx, triageDecision("item-1"), scores, nil, 850))

	record, err := triageStore.GetTriageRecord(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 850, record.TextLength)

	decision, err := q.Resolve(ctx, "item-1", models.OutcomeKeep)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeKeep, decision.Outcome)
	assert.Equal(t, models.OutcomeDelete, decision.Suggested)

	require.Len(t, gold.examples, 1)
	assert.True(t, gold.examples[0].Keep)
	assert.Equal(t, 850, gold.examples[0].TextLength)
	assert.Equal(t, "triage", gold.examples[0].Source)
	assert.Equal(t, scores, gold.examples[0].Scores)

	pending, err := q.Pending(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResolveTwiceConflicts(t *testing.T) {
	q := NewQueue(newMemTriageStore(), &memGoldStore{})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, triageDecision("item-1"), nil, nil, 500))

	_, err := q.Resolve(ctx, "item-1", models.OutcomeDelete)
	require.NoError(t, err)

	_, err = q.Resolve(ctx, "item-1", models.OutcomeKeep)
	assert.ErrorIs(t, err, models.ErrTriageConflict)
}

func TestResolveUnknownItemConflicts(t *testing.T) {
	q := NewQueue(newMemTriageStore(), nil)

	_, err := q.Resolve(context.Background(), "ghost", models.OutcomeKeep)
	assert.ErrorIs(t, err, models.ErrTriageConflict)
}

func TestResolveRejectsNonTerminalOutcome(t *testing.T) {
	triageStore := newMemTriageStore()
	q := NewQueue(triageStore, nil)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, triageDecision("item-1"), nil, nil, 500))

	_, err := q.Resolve(ctx, "item-1", models.OutcomeTriage)
	assert.ErrorIs(t, err, models.ErrValidation)

	record, err := triageStore.GetTriageRecord(ctx, "item-1")
	require.NoError(t, err)
	assert.Nil(t, record.Resolved)
}

func TestDeleteResolutionIsNegativeGoldLabel(t *testing.T) {
	gold := &memGoldStore{}
	q := NewQueue(newMemTriageStore(), gold)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, triageDecision("item-1"), models.DimensionScore{"relevance": 0.2}, nil, 400))

	_, err := q.Resolve(ctx, "item-1", models.OutcomeDelete)
	require.NoError(t, err)
	require.Len(t, gold.examples, 1)
	assert.False(t, gold.examples[0].Keep)
}
