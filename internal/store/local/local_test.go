package local

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
	"curator/internal/store"
)

func newTestStore(t *testing.T) *StoreImpl {
	t.Helper()
	s, err := NewLocalStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDecisionUpsertReplacesVerdict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	decision := &models.Decision{
		ItemID:      "item-1",
		ContentType: "web_clipping",
		Outcome:     models.OutcomeTriage,
		Suggested:   models.OutcomeDelete,
		Reason:      "borderline relevance",
		Provenance: []models.StageResult{
			{Stage: "fast", Model: "gpt-4o-mini", Scores: models.DimensionScore{"overall": 0.6}},
		},
		WeightedScore: 0.61,
		DecidedAt:     time.Now().UTC(),
	}
	require.NoError(t, s.SaveDecision(ctx, decision))

	decision.Outcome = models.OutcomeKeep
	decision.CalibrationVersion = 2
	require.NoError(t, s.SaveDecision(ctx, decision))

	got, err := s.GetDecision(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeKeep, got.Outcome)
	assert.Equal(t, 2, got.CalibrationVersion)
	require.Len(t, got.Provenance, 1)
	assert.Equal(t, "fast", got.Provenance[0].Stage)

	all, err := s.ListDecisions(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetDecisionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDecision(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTriageRecordResolvesExactlyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	record := &models.TriageRecord{
		ItemID:      "item-1",
		ContentType: "web_clipping",
		Scores:      models.DimensionScore{"relevance": 0.63},
		Borderline:  []models.BorderlineDimension{{Dimension: "relevance", Score: 0.63, Threshold: 0.65}},
		TextLength:  850,
		Suggested:   models.OutcomeDelete,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.CreateTriageRecordIfAbsent(ctx, record)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.CreateTriageRecordIfAbsent(ctx, record)
	require.NoError(t, err)
	assert.False(t, created)

	pending, err := s.ListPendingTriage(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.OutcomeDelete, pending[0].Suggested)
	require.Len(t, pending[0].Borderline, 1)
	assert.Equal(t, 850, pending[0].TextLength)

	require.NoError(t, s.MarkTriageResolved(ctx, "item-1", models.OutcomeKeep, time.Now().UTC()))

	err = s.MarkTriageResolved(ctx, "item-1", models.OutcomeDelete, time.Now().UTC())
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := s.GetTriageRecord(ctx, "item-1")
	require.NoError(t, err)
	require.NotNil(t, got.Resolved)
	assert.Equal(t, models.OutcomeKeep, *got.Resolved)
	assert.NotNil(t, got.ResolvedAt)

	pending, err = s.ListPendingTriage(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLatestCalibrationModelTracksVersions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LatestCalibrationModel(ctx, "web_clipping")
	assert.ErrorIs(t, err, store.ErrNotFound)

	for version := 1; version <= 3; version++ {
		model := &models.CalibrationModel{
			ID:          uuid.New(),
			ContentType: "web_clipping",
			Version:     version,
			Weights:     map[string]float64{"overall": float64(version)},
			Bias:        -0.5,
			GoldSize:    20 + version,
			F1:          0.9,
			CreatedAt:   time.Now().UTC(),
		}
		require.NoError(t, s.SaveCalibrationModel(ctx, model))
	}

	latest, err := s.LatestCalibrationModel(ctx, "web_clipping")
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Version)
	assert.Equal(t, 3.0, latest.Weights["overall"])

	all, err := s.ListCalibrationModels(ctx, "web_clipping")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[0].Version)
}

func TestGoldExampleLatestLabelWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	example := &models.GoldExample{
		ItemID:      "item-1",
		ContentType: "web_clipping",
		Scores:      models.DimensionScore{"relevance": 0.63},
		TextLength:  850,
		Keep:        false,
		Source:      "triage",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.AddGoldExample(ctx, example))

	example.Keep = true
	require.NoError(t, s.AddGoldExample(ctx, example))

	got, err := s.ListGoldExamples(ctx, "web_clipping")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Keep)
	assert.Equal(t, 850, got[0].TextLength)
}

func TestUsageSummaryAggregates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	itemID := "item-1"
	usages := []*models.OracleUsage{
		{ProviderName: "openai", Stage: "fast", ModelName: "gpt-4o-mini", InputTokens: 100, OutputTokens: 20, Cost: 0.001, ItemID: &itemID},
		{ProviderName: "openai", Stage: "deep", ModelName: "gpt-4o", InputTokens: 200, OutputTokens: 50, Cost: 0.01},
	}
	for _, u := range usages {
		require.NoError(t, s.RecordUsage(ctx, u))
		assert.NotZero(t, u.ID)
	}

	totalCost, inputTokens, outputTokens, err := s.GetUsageSummary(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.011, totalCost, 1e-9)
	assert.Equal(t, int64(300), inputTokens)
	assert.Equal(t, int64(70), outputTokens)

	listed, err := s.ListUsage(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestClustersAndThemesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	clusters := []models.DuplicateCluster{
		{CanonicalID: "item-1", Members: []models.ClusterMember{{ItemID: "item-2", Similarity: 1.0}, {ItemID: "item-3", Similarity: 0.93}}},
	}
	require.NoError(t, s.SaveClusters(ctx, clusters))

	got, err := s.ListClusters(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "item-1", got[0].CanonicalID)
	assert.Len(t, got[0].Members, 2)

	assignments := []models.ThemeAssignment{
		{ItemID: "item-1", NodePath: "infrastructure/financing", Confidence: 0.9, Method: models.MatchExact, Primary: true},
		{ItemID: "item-1", NodePath: "economics", Confidence: 0.4, Method: models.MatchFuzzy},
	}
	require.NoError(t, s.SaveThemeAssignments(ctx, assignments))
	// Re-saving replaces rather than appends.
	require.NoError(t, s.SaveThemeAssignments(ctx, assignments))

	themes, err := s.GetThemeAssignments(ctx, "item-1")
	require.NoError(t, err)
	require.Len(t, themes, 2)
	assert.True(t, themes[0].Primary)
	assert.Equal(t, "infrastructure/financing", themes[0].NodePath)
}

func TestJobRecording(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	jobID := uuid.New()
	params := store.JobRecordParams{
		JobID:    jobID,
		TaskType: "curate:batch",
		Payload:  []byte(`{"source_path":"items.jsonl"}`),
		Queue:    "default",
		Status:   "enqueued",
	}
	require.NoError(t, s.RecordJobEnqueue(ctx, params))
	require.NoError(t, s.RecordJobEnqueue(ctx, params)) // idempotent

	require.NoError(t, s.UpdateJobStatus(ctx, jobID, "completed"))
	assert.ErrorIs(t, s.UpdateJobStatus(ctx, uuid.New(), "completed"), store.ErrNotFound)

	jobs, err := s.ListJobs(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "completed", jobs[0].Status)
}
