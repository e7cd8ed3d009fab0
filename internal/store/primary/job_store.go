package primary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"

	"curator/internal/models"
	"curator/internal/store"
)

// RecordJobEnqueue inserts a record into the curation_jobs table. Recording
// the same asynq task twice is a no-op.
func (s *StoreImpl) RecordJobEnqueue(ctx context.Context, params store.JobRecordParams) error {
	query := `
		INSERT INTO curation_jobs (job_id, task_type, payload, queue, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO NOTHING
		RETURNING id
	`
	now := time.Now()

	payload := json.RawMessage("{}")
	if params.Payload != nil {
		payload = json.RawMessage(params.Payload)
	}

	var insertedID int64
	err := s.db.QueryRow(ctx, query,
		params.JobID, params.TaskType, payload, params.Queue, params.Status, now, now,
	).Scan(&insertedID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debugf("job %s already recorded, skipping insertion", params.JobID)
			return nil
		}
		return fmt.Errorf("failed to record job enqueue event for job %s: %w", params.JobID, err)
	}
	return nil
}

// UpdateJobStatus updates the status of a job given its asynq task UUID.
func (s *StoreImpl) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error {
	query := `UPDATE curation_jobs SET status = $1, updated_at = $2 WHERE job_id = $3`
	tag, err := s.db.Exec(ctx, query, status, time.Now(), jobID)
	if err != nil {
		return fmt.Errorf("failed to update job status for job %s: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, store.ErrNotFound)
	}
	return nil
}

// ListJobs returns recorded jobs, newest first.
func (s *StoreImpl) ListJobs(ctx context.Context, limit, offset int) ([]*models.CurationJob, error) {
	query := `
		SELECT id, job_id, task_type, payload, queue, status, created_at, updated_at
		FROM curation_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := s.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query curation jobs: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.CurationJob, error) {
		var job models.CurationJob
		err := row.Scan(
			&job.ID,
			&job.JobID,
			&job.TaskType,
			&job.Payload,
			&job.Queue,
			&job.Status,
			&job.CreatedAt,
			&job.UpdatedAt,
		)
		return &job, err
	})
}

var _ store.JobStore = (*StoreImpl)(nil)
