// Package worker implements the asynq task handlers for background curation
// and calibration jobs.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"curator/internal/calibration"
	"curator/internal/models"
	"curator/internal/services"
	"curator/internal/store"
	"curator/internal/tasks"
)

// CurationBatchPayload is the payload of a curate:batch task.
type CurationBatchPayload struct {
	SourcePath string `json:"source_path"`
}

// CalibrationFitPayload is the payload of a calibrate:fit task.
type CalibrationFitPayload struct {
	ContentType string `json:"content_type"`
}

// Deps collects everything the handlers need.
type Deps struct {
	Curation    *services.CurationService
	Calibrator  *calibration.Calibrator
	FeatureSpec calibration.FeatureSpec
	Gold        store.GoldStore
	Calib       store.CalibrationStore
}

// RegisterHandlers wires every task type onto the mux.
func RegisterHandlers(mux *asynq.ServeMux, deps Deps) {
	mux.HandleFunc(tasks.TypeCurationBatch, HandleCurationBatch(deps))
	mux.HandleFunc(tasks.TypeCalibrationFit, HandleCalibrationFit(deps))
}

// HandleCurationBatch runs the full pipeline over the payload's JSONL source.
func HandleCurationBatch(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload CurationBatchPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("malformed curation batch payload: %v: %w", err, asynq.SkipRetry)
		}
		if payload.SourcePath == "" {
			return fmt.Errorf("curation batch payload has no source path: %w", asynq.SkipRetry)
		}

		log.Infof("worker: curating batch from %s", payload.SourcePath)
		summary, err := deps.Curation.CurateFile(ctx, payload.SourcePath)
		if err != nil {
			return fmt.Errorf("curation batch for %q: %w", payload.SourcePath, err)
		}
		log.Infof("worker: batch %s done: %d items, %d duplicates, outcomes=%v",
			payload.SourcePath, summary.Total, summary.Duplicates, summary.Outcomes)
		return nil
	}
}

// HandleCalibrationFit refits the calibration model for one content type. A
// refused fit (gold set too small) is terminal, not retried.
func HandleCalibrationFit(deps Deps) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload CalibrationFitPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("malformed calibration payload: %v: %w", err, asynq.SkipRetry)
		}
		if payload.ContentType == "" {
			return fmt.Errorf("calibration payload has no content type: %w", asynq.SkipRetry)
		}

		model, err := calibration.RunFit(ctx, deps.Gold, deps.Calib, deps.Calibrator, payload.ContentType, deps.FeatureSpec)
		if err != nil {
			if errors.Is(err, models.ErrCalibrationRefused) {
				log.Warnf("worker: calibration refused for %q, previous model stays active: %v", payload.ContentType, err)
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return fmt.Errorf("calibration fit for %q: %w", payload.ContentType, err)
		}
		log.Infof("worker: calibration model v%d published for %q", model.Version, payload.ContentType)
		return nil
	}
}
