package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curator/internal/models"
	"curator/internal/store"
)

// SaveCalibrationModel inserts a new model version. Versions are append-only;
// the latest one is the active model.
func (s *StoreImpl) SaveCalibrationModel(ctx context.Context, model *models.CalibrationModel) error {
	weights, err := json.Marshal(model.Weights)
	if err != nil {
		return fmt.Errorf("failed to marshal calibration weights: %w", err)
	}
	query := `
		INSERT INTO calibration_models (
			id, content_type, version, weights, bias, gold_size,
			precision_score, recall_score, f1_score, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.Exec(ctx, query,
		model.ID, model.ContentType, model.Version, weights, model.Bias,
		model.GoldSize, model.Precision, model.Recall, model.F1, model.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save calibration model v%d for %q: %w", model.Version, model.ContentType, err)
	}
	return nil
}

// LatestCalibrationModel returns the highest version for a content type, or
// store.ErrNotFound when the type has never been calibrated.
func (s *StoreImpl) LatestCalibrationModel(ctx context.Context, contentType string) (*models.CalibrationModel, error) {
	query := `
		SELECT id, content_type, version, weights, bias, gold_size,
		       precision_score, recall_score, f1_score, created_at
		FROM calibration_models
		WHERE content_type = $1
		ORDER BY version DESC
		LIMIT 1
	`
	model, err := scanCalibrationModel(s.db.QueryRow(ctx, query, contentType))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("calibration model for %q: %w", contentType, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get calibration model for %q: %w", contentType, err)
	}
	return model, nil
}

// ListCalibrationModels returns every version for a content type, newest first.
func (s *StoreImpl) ListCalibrationModels(ctx context.Context, contentType string) ([]*models.CalibrationModel, error) {
	query := `
		SELECT id, content_type, version, weights, bias, gold_size,
		       precision_score, recall_score, f1_score, created_at
		FROM calibration_models
		WHERE content_type = $1
		ORDER BY version DESC
	`
	rows, err := s.db.Query(ctx, query, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to query calibration models for %q: %w", contentType, err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.CalibrationModel, error) {
		return scanCalibrationModel(row)
	})
}

func scanCalibrationModel(row rowScanner) (*models.CalibrationModel, error) {
	var (
		model   models.CalibrationModel
		weights []byte
	)
	err := row.Scan(
		&model.ID,
		&model.ContentType,
		&model.Version,
		&weights,
		&model.Bias,
		&model.GoldSize,
		&model.Precision,
		&model.Recall,
		&model.F1,
		&model.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(weights) > 0 {
		if err := json.Unmarshal(weights, &model.Weights); err != nil {
			return nil, fmt.Errorf("failed to unmarshal calibration weights: %w", err)
		}
	}
	return &model, nil
}

var _ store.CalibrationStore = (*StoreImpl)(nil)
