package calibration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/models"
	"curator/internal/store"
)

// goldSet builds a linearly separable gold set: keeps score high on
// relevance, deletes score low.
func goldSet(keeps, deletes int) []models.GoldExample {
	var out []models.GoldExample
	for i := 0; i < keeps; i++ {
		out = append(out, models.GoldExample{
			ItemID:      fmt.Sprintf("keep-%03d", i),
			ContentType: "meeting_notes",
			Scores:      models.DimensionScore{"relevance": 0.85 + 0.005*float64(i%10), "quality": 0.7},
			TextLength:  1200,
			Keep:        true,
		})
	}
	for i := 0; i < deletes; i++ {
		out = append(out, models.GoldExample{
			ItemID:      fmt.Sprintf("del-%03d", i),
			ContentType: "meeting_notes",
			Scores:      models.DimensionScore{"relevance": 0.15 + 0.005*float64(i%10), "quality": 0.3},
			TextLength:  400,
			Keep:        false,
		})
	}
	return out
}

func TestFitRefusesSmallGoldSet(t *testing.T) {
	c := NewCalibrator(20)
	spec := FeatureSpec{Dimensions: []string{"relevance"}}

	_, err := c.Fit("meeting_notes", goldSet(5, 5), spec, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCalibrationRefused)
}

func TestFitRefusesEmptyFeatureSpec(t *testing.T) {
	c := NewCalibrator(20)

	_, err := c.Fit("meeting_notes", goldSet(12, 12), FeatureSpec{}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCalibrationRefused)
}

func TestFitSeparatesGoldClasses(t *testing.T) {
	c := NewCalibrator(20)
	spec := FeatureSpec{Dimensions: []string{"relevance", "quality"}, IncludeLength: true}

	model, err := c.Fit("meeting_notes", goldSet(14, 14), spec, 2)
	require.NoError(t, err)

	assert.Equal(t, "meeting_notes", model.ContentType)
	assert.Equal(t, 3, model.Version)
	assert.Equal(t, 28, model.GoldSize)
	assert.NotEqual(t, 0.0, model.Weights["relevance"])

	keepP := Probability(model, models.DimensionScore{"relevance": 0.9, "quality": 0.7}, 1200)
	delP := Probability(model, models.DimensionScore{"relevance": 0.1, "quality": 0.3}, 400)
	assert.Greater(t, keepP, 0.5)
	assert.Less(t, delP, 0.5)

	// Separable training data should score perfectly on its own holdout.
	assert.InDelta(t, 1.0, model.Precision, 0.001)
	assert.InDelta(t, 1.0, model.Recall, 0.001)
	assert.InDelta(t, 1.0, model.F1, 0.001)
}

func TestFitIsDeterministic(t *testing.T) {
	c := NewCalibrator(20)
	spec := FeatureSpec{Dimensions: []string{"relevance"}}
	gold := goldSet(12, 12)

	a, err := c.Fit("meeting_notes", gold, spec, 0)
	require.NoError(t, err)
	b, err := c.Fit("meeting_notes", gold, spec, 0)
	require.NoError(t, err)

	assert.Equal(t, a.Weights, b.Weights)
	assert.Equal(t, a.Bias, b.Bias)
	assert.Equal(t, a.F1, b.F1)
}

func TestProbabilityUsesLengthFeature(t *testing.T) {
	model := &models.CalibrationModel{
		Weights: map[string]float64{"relevance": 2.0, "_length": 1.0},
		Bias:    -1.5,
	}
	scores := models.DimensionScore{"relevance": 0.5}

	short := Probability(model, scores, 0)
	long := Probability(model, scores, 10000) // capped at 1.0

	assert.Less(t, short, long)
	assert.InDelta(t, sigmoid(-0.5), short, 1e-9)
	assert.InDelta(t, sigmoid(0.5), long, 1e-9)
}

// --- RunFit orchestration ---

type mockGoldStore struct {
	examples []*models.GoldExample
	err      error
}

func (m *mockGoldStore) AddGoldExample(ctx context.Context, example *models.GoldExample) error {
	m.examples = append(m.examples, example)
	return nil
}

func (m *mockGoldStore) ListGoldExamples(ctx context.Context, contentType string) ([]*models.GoldExample, error) {
	return m.examples, m.err
}

type mockCalibrationStore struct {
	latest *models.CalibrationModel
	saved  []*models.CalibrationModel
}

func (m *mockCalibrationStore) SaveCalibrationModel(ctx context.Context, model *models.CalibrationModel) error {
	m.saved = append(m.saved, model)
	return nil
}

func (m *mockCalibrationStore) LatestCalibrationModel(ctx context.Context, contentType string) (*models.CalibrationModel, error) {
	if m.latest == nil {
		return nil, store.ErrNotFound
	}
	return m.latest, nil
}

func (m *mockCalibrationStore) ListCalibrationModels(ctx context.Context, contentType string) ([]*models.CalibrationModel, error) {
	if m.latest == nil {
		return nil, nil
	}
	return []*models.CalibrationModel{m.latest}, nil
}

var (
	_ store.GoldStore        = (*mockGoldStore)(nil)
	_ store.CalibrationStore = (*mockCalibrationStore)(nil)
)

func asPointers(examples []models.GoldExample) []*models.GoldExample {
	out := make([]*models.GoldExample, len(examples))
	for i := range examples {
		out[i] = &examples[i]
	}
	return out
}

func TestRunFitPublishesNextVersion(t *testing.T) {
	gold := &mockGoldStore{examples: asPointers(goldSet(14, 14))}
	calib := &mockCalibrationStore{latest: &models.CalibrationModel{
		ContentType: "meeting_notes",
		Version:     4,
		CreatedAt:   time.Now(),
	}}
	spec := FeatureSpec{Dimensions: []string{"relevance"}}

	model, err := RunFit(context.Background(), gold, calib, NewCalibrator(20), "meeting_notes", spec)
	require.NoError(t, err)
	assert.Equal(t, 5, model.Version)
	require.Len(t, calib.saved, 1)
	assert.Equal(t, model, calib.saved[0])
}

func TestRunFitRefusalLeavesPreviousModelActive(t *testing.T) {
	gold := &mockGoldStore{examples: asPointers(goldSet(5, 5))}
	prev := &models.CalibrationModel{ContentType: "meeting_notes", Version: 2}
	calib := &mockCalibrationStore{latest: prev}
	spec := FeatureSpec{Dimensions: []string{"relevance"}}

	_, err := RunFit(context.Background(), gold, calib, NewCalibrator(20), "meeting_notes", spec)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrCalibrationRefused)
	assert.Empty(t, calib.saved)

	still, err := calib.LatestCalibrationModel(context.Background(), "meeting_notes")
	require.NoError(t, err)
	assert.Equal(t, 2, still.Version)
}

func TestRunFitStartsAtVersionOne(t *testing.T) {
	gold := &mockGoldStore{examples: asPointers(goldSet(14, 14))}
	calib := &mockCalibrationStore{}
	spec := FeatureSpec{Dimensions: []string{"relevance"}}

	model, err := RunFit(context.Background(), gold, calib, NewCalibrator(20), "meeting_notes", spec)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Version)
}
