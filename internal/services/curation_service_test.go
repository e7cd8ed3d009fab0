package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
	"curator/internal/routing"
	"curator/internal/store"
	"curator/internal/themes"
	"curator/internal/triage"
)

// markerOracle scores by content markers so tests control every outcome.
type markerOracle struct {
	mu    sync.Mutex
	calls []string
}

func (o *markerOracle) Name() string { return "mock" }

func (o *markerOracle) Score(ctx context.Context, text, modelRef string) (routing.ScoreResult, error) {
	o.mu.Lock()
	o.calls = append(o.calls, text)
	o.mu.Unlock()

	switch {
	case strings.Contains(text, "unreachable oracle"):
		return routing.ScoreResult{}, fmt.Errorf("connection refused: %w", models.ErrOracleUnavailable)
	case strings.Contains(text, "brilliant"):
		return routing.ScoreResult{
			Scores:     models.DimensionScore{"overall": 0.90, "relevance": 0.90},
			ThemeHints: []models.ThemeHint{{Label: "infrastructure financing", Confidence: 0.9}},
		}, nil
	case strings.Contains(text, "solid"):
		return routing.ScoreResult{
			Scores: models.DimensionScore{"overall": 0.70, "relevance": 0.75},
		}, nil
	case strings.Contains(text, "uncertain"):
		return routing.ScoreResult{
			Scores: models.DimensionScore{"overall": 0.70, "relevance": 0.66},
		}, nil
	default:
		return routing.ScoreResult{
			Scores: models.DimensionScore{"overall": 0.90, "relevance": 0.90},
		}, nil
	}
}

// --- in-memory stores ---

type memDecisionStore struct {
	mu        sync.Mutex
	decisions map[string]*models.Decision
	themes    map[string][]models.ThemeAssignment
	clusters  []models.DuplicateCluster
}

func newMemDecisionStore() *memDecisionStore {
	return &memDecisionStore{
		decisions: make(map[string]*models.Decision),
		themes:    make(map[string][]models.ThemeAssignment),
	}
}

func (m *memDecisionStore) SaveDecision(ctx context.Context, decision *models.Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *decision
	m.decisions[decision.ItemID] = &copied
	return nil
}

func (m *memDecisionStore) GetDecision(ctx context.Context, itemID string) (*models.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	decision, ok := m.decisions[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return decision, nil
}

func (m *memDecisionStore) ListDecisions(ctx context.Context, limit, offset int) ([]*models.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Decision
	for _, d := range m.decisions {
		out = append(out, d)
	}
	return out, nil
}

func (m *memDecisionStore) SaveThemeAssignments(ctx context.Context, assignments []models.ThemeAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range assignments {
		m.themes[a.ItemID] = append(m.themes[a.ItemID], a)
	}
	return nil
}

func (m *memDecisionStore) GetThemeAssignments(ctx context.Context, itemID string) ([]models.ThemeAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.themes[itemID], nil
}

func (m *memDecisionStore) SaveClusters(ctx context.Context, clusters []models.DuplicateCluster) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters = append(m.clusters, clusters...)
	return nil
}

func (m *memDecisionStore) ListClusters(ctx context.Context, limit, offset int) ([]models.DuplicateCluster, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clusters, nil
}

func (m *memDecisionStore) Ping(ctx context.Context) error { return nil }

var _ store.DecisionStore = (*memDecisionStore)(nil)

type memTriageStore struct {
	mu      sync.Mutex
	records map[string]*models.TriageRecord
}

func newMemTriageStore() *memTriageStore {
	return &memTriageStore{records: make(map[string]*models.TriageRecord)}
}

func (m *memTriageStore) CreateTriageRecordIfAbsent(ctx context.Context, record *models.TriageRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ItemID]; ok {
		return false, nil
	}
	m.records[record.ItemID] = record
	return true, nil
}

func (m *memTriageStore) GetTriageRecord(ctx context.Context, itemID string) (*models.TriageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return record, nil
}

func (m *memTriageStore) ListPendingTriage(ctx context.Context, limit, offset int) ([]*models.TriageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TriageRecord
	for _, r := range m.records {
		if r.Resolved == nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memTriageStore) MarkTriageResolved(ctx context.Context, itemID string, outcome models.Outcome, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[itemID]
	if !ok {
		return store.ErrNotFound
	}
	record.Resolved = &outcome
	record.ResolvedAt = &resolvedAt
	return nil
}

var _ store.TriageStore = (*memTriageStore)(nil)

// --- fixtures ---

func testPolicies(t *testing.T) *models.PolicyTable {
	t.Helper()
	table, err := models.NewPolicyTable(map[string]models.Policy{
		"default": {
			MinLength: 50,
			Weights:   map[string]float64{"overall": 1},
			Outcomes: map[string]float64{
				"delete":  0.30,
				"archive": 0.45,
				"refine":  0.60,
				"keep":    0.80,
			},
			Dimensions: map[string]float64{"relevance": 0.65},
			Gate:       []string{"relevance"},
			Triage:     models.TriagePolicy{Dimensions: []string{"relevance"}, Margin: 0.05},
		},
	})
	require.NoError(t, err)
	return table
}

func testService(t *testing.T, decisions *memDecisionStore, triageStore *memTriageStore) (*CurationService, *markerOracle) {
	t.Helper()
	oracle := &markerOracle{}
	cascade, err := routing.NewCascade(
		[]routing.Stage{{Name: "fast", Provider: "mock", Model: "small", Margin: 0.0}},
		[]routing.ScoringOracle{oracle},
		routing.Retry{BaseDelayMs: 1},
		routing.NewExcerpter(100),
	)
	require.NoError(t, err)

	hierarchy, err := themes.NewHierarchy(themes.HierarchySpec{
		Nodes: []themes.NodeSpec{
			{Name: "infrastructure", Children: []themes.NodeSpec{
				{Name: "financing", Aliases: []string{"infrastructure financing", "PPP"}},
			}},
		},
	})
	require.NoError(t, err)

	svc, err := NewCurationService(CurationDeps{
		Cascade:     cascade,
		Classifier:  themes.NewClassifier(hierarchy),
		Policies:    testPolicies(t),
		TriageQueue: triage.NewQueue(triageStore, nil),
		Decisions:   decisions,
		Concurrency: 2,
	})
	require.NoError(t, err)
	return svc, oracle
}

func pad(text string) string {
	return text + " " + strings.Repeat("Additional context sentences follow here. ", 3)
}

func TestCurateBatchEndToEnd(t *testing.T) {
	decisions := newMemDecisionStore()
	triageStore := newMemTriageStore()
	svc, _ := testService(t, decisions, triageStore)

	dupText := pad("A solid overview of municipal bond structures.")
	items := []models.ContentItem{
		{ID: "keep-1", ContentType: "meeting_notes", Text: pad("A brilliant insight about infrastructure financing.")},
		{ID: "dup-a", ContentType: "web_clipping", Text: dupText, Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "dup-b", ContentType: "web_clipping", Text: dupText, Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "short-1", ContentType: "web_clipping", Text: "tiny note"},
	}

	summary, err := svc.CurateBatch(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Duplicates)
	assert.Equal(t, 1, summary.Clusters)

	keep, err := decisions.GetDecision(context.Background(), "keep-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeKeep, keep.Outcome)

	// Themes only for the retained item, with the exact alias match primary.
	assignments, err := decisions.GetThemeAssignments(context.Background(), "keep-1")
	require.NoError(t, err)
	require.NotEmpty(t, assignments)
	assert.Equal(t, "infrastructure/financing", assignments[0].NodePath)
	assert.True(t, assignments[0].Primary)

	// The more recent duplicate is canonical; the older one is deleted.
	dupA, err := decisions.GetDecision(context.Background(), "dup-a")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDelete, dupA.Outcome)
	assert.Contains(t, dupA.Reason, "duplicate of dup-b")

	dupB, err := decisions.GetDecision(context.Background(), "dup-b")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeRefine, dupB.Outcome)

	short, err := decisions.GetDecision(context.Background(), "short-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDelete, short.Outcome)
	assert.Contains(t, short.Reason, "below minimum")
}

func TestCurateBatchBorderlineItemLandsInTriage(t *testing.T) {
	decisions := newMemDecisionStore()
	triageStore := newMemTriageStore()
	svc, _ := testService(t, decisions, triageStore)

	items := []models.ContentItem{
		{ID: "edge-1", ContentType: "web_clipping", Text: pad("An uncertain take on regional rail expansion.")},
	}

	summary, err := svc.CurateBatch(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Outcomes[models.OutcomeTriage])

	decision, err := decisions.GetDecision(context.Background(), "edge-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeTriage, decision.Outcome)
	assert.Equal(t, models.OutcomeRefine, decision.Suggested)

	pending, err := triageStore.ListPendingTriage(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "edge-1", pending[0].ItemID)
	assert.Equal(t, models.OutcomeRefine, pending[0].Suggested)
	assert.Positive(t, pending[0].TextLength)
	assert.LessOrEqual(t, pending[0].TextLength, utf8.RuneCountInString(items[0].Text))

	// No themes for an undecided item.
	assignments, err := decisions.GetThemeAssignments(context.Background(), "edge-1")
	require.NoError(t, err)
	assert.Empty(t, assignments)
}

func TestCurateBatchOracleFailureIsolatedAsErrorDecision(t *testing.T) {
	decisions := newMemDecisionStore()
	triageStore := newMemTriageStore()
	svc, _ := testService(t, decisions, triageStore)

	items := []models.ContentItem{
		{ID: "bad-1", ContentType: "web_clipping", Text: pad("This mentions an unreachable oracle endpoint.")},
		{ID: "good-1", ContentType: "web_clipping", Text: pad("A brilliant piece on transit funding.")},
	}

	summary, err := svc.CurateBatch(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Outcomes[models.OutcomeError])
	assert.Equal(t, 1, summary.Outcomes[models.OutcomeKeep])

	bad, err := decisions.GetDecision(context.Background(), "bad-1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeError, bad.Outcome)
	assert.Contains(t, bad.Reason, "routing failed")
}

func TestCurateBatchDuplicatesNeverReachOracle(t *testing.T) {
	decisions := newMemDecisionStore()
	triageStore := newMemTriageStore()
	svc, oracle := testService(t, decisions, triageStore)

	dupText := pad("A solid overview of municipal bond structures.")
	items := []models.ContentItem{
		{ID: "dup-a", ContentType: "web_clipping", Text: dupText, Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "dup-b", ContentType: "web_clipping", Text: dupText, Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}

	_, err := svc.CurateBatch(context.Background(), items)
	require.NoError(t, err)

	oracle.mu.Lock()
	defer oracle.mu.Unlock()
	assert.Len(t, oracle.calls, 1)
}

func TestCurateBatchEmptyInput(t *testing.T) {
	decisions := newMemDecisionStore()
	svc, _ := testService(t, decisions, newMemTriageStore())

	summary, err := svc.CurateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
}
