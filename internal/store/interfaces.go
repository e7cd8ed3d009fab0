package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"curator/internal/models"
)

// --- Decision Sink ---

type DecisionStore interface {
	SaveDecision(ctx context.Context, decision *models.Decision) error
	GetDecision(ctx context.Context, itemID string) (*models.Decision, error)
	ListDecisions(ctx context.Context, limit, offset int) ([]*models.Decision, error)
	SaveThemeAssignments(ctx context.Context, assignments []models.ThemeAssignment) error
	GetThemeAssignments(ctx context.Context, itemID string) ([]models.ThemeAssignment, error)
	SaveClusters(ctx context.Context, clusters []models.DuplicateCluster) error
	ListClusters(ctx context.Context, limit, offset int) ([]models.DuplicateCluster, error)

	Ping(ctx context.Context) error
}

// --- Triage Store ---

type TriageStore interface {
	// CreateTriageRecordIfAbsent returns false without mutation when a record
	// for the item already exists.
	CreateTriageRecordIfAbsent(ctx context.Context, record *models.TriageRecord) (bool, error)
	GetTriageRecord(ctx context.Context, itemID string) (*models.TriageRecord, error)
	ListPendingTriage(ctx context.Context, limit, offset int) ([]*models.TriageRecord, error)
	MarkTriageResolved(ctx context.Context, itemID string, outcome models.Outcome, resolvedAt time.Time) error
}

// --- Calibration Store ---

type CalibrationStore interface {
	SaveCalibrationModel(ctx context.Context, model *models.CalibrationModel) error
	// LatestCalibrationModel returns ErrNotFound when no model exists for the
	// content type.
	LatestCalibrationModel(ctx context.Context, contentType string) (*models.CalibrationModel, error)
	ListCalibrationModels(ctx context.Context, contentType string) ([]*models.CalibrationModel, error)
}

// --- Gold Example Store ---

type GoldStore interface {
	AddGoldExample(ctx context.Context, example *models.GoldExample) error
	ListGoldExamples(ctx context.Context, contentType string) ([]*models.GoldExample, error)
}

// --- Oracle Usage Store ---

type UsageStore interface {
	RecordUsage(ctx context.Context, usage *models.OracleUsage) error
	ListUsage(ctx context.Context, limit, offset int) ([]*models.OracleUsage, error)
	GetUsageSummary(ctx context.Context) (totalCost float64, totalInputTokens, totalOutputTokens int64, err error)
}

// --- Job Store ---

// JobRecordParams holds parameters for recording a job event.
type JobRecordParams struct {
	JobID    uuid.UUID
	TaskType string
	Payload  []byte
	Queue    string
	Status   string
}

type JobStore interface {
	RecordJobEnqueue(ctx context.Context, params JobRecordParams) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string) error
	ListJobs(ctx context.Context, limit, offset int) ([]*models.CurationJob, error)
}

// --- Job Client ---

type JobClient interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	EnqueueCurationBatch(ctx context.Context, sourcePath string) error
	EnqueueCalibration(ctx context.Context, contentType string) error
	Close() error
}
