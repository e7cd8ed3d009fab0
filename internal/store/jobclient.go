package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"curator/internal/tasks"
)

// AsynqJobClient enqueues background tasks and records each enqueue to the
// JobStore so jobs are inspectable without Redis access.
type AsynqJobClient struct {
	client   *asynq.Client
	jobStore JobStore
}

var _ JobClient = (*AsynqJobClient)(nil)

// NewAsynqJobClient connects to Redis and wires job bookkeeping.
func NewAsynqJobClient(redisAddr, redisPassword string, redisDB int, js JobStore) (*AsynqJobClient, error) {
	if js == nil {
		return nil, fmt.Errorf("JobStore cannot be nil for AsynqJobClient")
	}
	cli := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})
	return &AsynqJobClient{client: cli, jobStore: js}, nil
}

func (jc *AsynqJobClient) Close() error {
	return jc.client.Close()
}

// Enqueue submits a task and records the event. A failed record does not fail
// the enqueue; the task is already in Redis at that point.
func (jc *AsynqJobClient) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if jc.client == nil {
		return nil, fmt.Errorf("AsynqJobClient internal client is not initialized")
	}
	info, err := jc.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, fmt.Errorf("enqueue task %q: %w", task.Type(), err)
	}
	log.Debugf("enqueued task %q id=%s queue=%s", task.Type(), info.ID, info.Queue)

	jobUUID, err := uuid.Parse(info.ID)
	if err != nil {
		log.Warnf("asynq task ID %q is not a UUID, job record skipped: %v", info.ID, err)
		return info, nil
	}
	recordParams := JobRecordParams{
		JobID:    jobUUID,
		TaskType: task.Type(),
		Payload:  task.Payload(),
		Queue:    info.Queue,
		Status:   "enqueued",
	}
	if err := jc.jobStore.RecordJobEnqueue(ctx, recordParams); err != nil {
		log.Errorf("failed to record job enqueue event for task %s: %v", info.ID, err)
	}
	return info, nil
}

// EnqueueCurationBatch queues a full pipeline run over a JSONL source.
func (jc *AsynqJobClient) EnqueueCurationBatch(ctx context.Context, sourcePath string) error {
	payload := encodePayload(map[string]interface{}{"source_path": sourcePath})
	task := asynq.NewTask(tasks.TypeCurationBatch, payload)
	if _, err := jc.Enqueue(ctx, task, asynq.Queue("curation")); err != nil {
		return fmt.Errorf("enqueue curation batch for %q: %w", sourcePath, err)
	}
	return nil
}

// EnqueueCalibration queues a calibration refit for one content type.
func (jc *AsynqJobClient) EnqueueCalibration(ctx context.Context, contentType string) error {
	payload := encodePayload(map[string]interface{}{"content_type": contentType})
	task := asynq.NewTask(tasks.TypeCalibrationFit, payload)
	if _, err := jc.Enqueue(ctx, task, asynq.Queue("calibration")); err != nil {
		return fmt.Errorf("enqueue calibration for %q: %w", contentType, err)
	}
	return nil
}

func encodePayload(data map[string]interface{}) []byte {
	b, _ := json.Marshal(data)
	return b
}
