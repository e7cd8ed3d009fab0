package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator/internal/calibration"
	"curator/internal/models"
	"curator/internal/store"
)

type stubGoldStore struct {
	examples []*models.GoldExample
}

func (s *stubGoldStore) AddGoldExample(ctx context.Context, example *models.GoldExample) error {
	s.examples = append(s.examples, example)
	return nil
}

func (s *stubGoldStore) ListGoldExamples(ctx context.Context, contentType string) ([]*models.GoldExample, error) {
	return s.examples, nil
}

type stubCalibStore struct {
	saved []*models.CalibrationModel
}

func (s *stubCalibStore) SaveCalibrationModel(ctx context.Context, model *models.CalibrationModel) error {
	s.saved = append(s.saved, model)
	return nil
}

func (s *stubCalibStore) LatestCalibrationModel(ctx context.Context, contentType string) (*models.CalibrationModel, error) {
	if len(s.saved) == 0 {
		return nil, store.ErrNotFound
	}
	return s.saved[len(s.saved)-1], nil
}

func (s *stubCalibStore) ListCalibrationModels(ctx context.Context, contentType string) ([]*models.CalibrationModel, error) {
	return s.saved, nil
}

func goldExamples(n int) []*models.GoldExample {
	out := make([]*models.GoldExample, 0, n)
	for i := 0; i < n; i++ {
		keep := i%2 == 0
		score := 0.2
		if keep {
			score = 0.85
		}
		out = append(out, &models.GoldExample{
			ItemID:      string(rune('a' + i)),
			ContentType: "web_clipping",
			Scores:      models.DimensionScore{"overall": score},
			TextLength:  900,
			Keep:        keep,
			CreatedAt:   time.Now(),
		})
	}
	return out
}

func TestHandleCalibrationFitPublishesModel(t *testing.T) {
	gold := &stubGoldStore{examples: goldExamples(24)}
	calib := &stubCalibStore{}
	deps := Deps{
		Calibrator:  calibration.NewCalibrator(20),
		FeatureSpec: calibration.FeatureSpec{Dimensions: []string{"overall"}},
		Gold:        gold,
		Calib:       calib,
	}

	task := asynq.NewTask("calibrate:fit", []byte(`{"content_type":"web_clipping"}`))
	err := HandleCalibrationFit(deps)(context.Background(), task)
	require.NoError(t, err)
	require.Len(t, calib.saved, 1)
	assert.Equal(t, 1, calib.saved[0].Version)
}

func TestHandleCalibrationFitRefusalSkipsRetry(t *testing.T) {
	gold := &stubGoldStore{examples: goldExamples(5)}
	deps := Deps{
		Calibrator:  calibration.NewCalibrator(20),
		FeatureSpec: calibration.FeatureSpec{Dimensions: []string{"overall"}},
		Gold:        gold,
		Calib:       &stubCalibStore{},
	}

	task := asynq.NewTask("calibrate:fit", []byte(`{"content_type":"web_clipping"}`))
	err := HandleCalibrationFit(deps)(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleCalibrationFitRejectsEmptyPayload(t *testing.T) {
	deps := Deps{Calibrator: calibration.NewCalibrator(20)}

	task := asynq.NewTask("calibrate:fit", []byte(`{}`))
	err := HandleCalibrationFit(deps)(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleCurationBatchRejectsMalformedPayload(t *testing.T) {
	task := asynq.NewTask("curate:batch", []byte(`{not json`))
	err := HandleCurationBatch(Deps{})(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
