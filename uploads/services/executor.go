package services

import (
	"context"
	"encoding/json"
	"fmt"

	"question-bank-backend/config"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TaskTypeProcessUpload is the asynq task type for one upload job run.
	TaskTypeProcessUpload = "upload:process"

	// UploadQueue is the dedicated queue for upload processing.
	UploadQueue = "uploads"

	// DefaultWorkerConcurrency bounds how many jobs run at once.
	DefaultWorkerConcurrency = 4
)

type uploadTaskPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

// AsynqDispatcher enqueues upload jobs. The task id is derived from the job
// id, so a job can never have two pending or active tasks at once; combined
// with the guarded queued->running transition this gives at most one active
// executor per job.
type AsynqDispatcher struct {
	client *asynq.Client
}

func NewAsynqDispatcher(client *asynq.Client) *AsynqDispatcher {
	return &AsynqDispatcher{client: client}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	payload, err := json.Marshal(uploadTaskPayload{JobID: jobID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeProcessUpload, payload)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.TaskID(fmt.Sprintf("%s:%s", TaskTypeProcessUpload, jobID)),
		asynq.Queue(UploadQueue),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue upload task: %w", err)
	}
	return nil
}

// ExecutorPool wraps the asynq server that runs upload jobs with bounded
// concurrency.
type ExecutorPool struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	manager *JobManager
}

func NewExecutorPool(redisOpt asynq.RedisClientOpt, manager *JobManager, concurrency int) *ExecutorPool {
	if concurrency <= 0 {
		concurrency = DefaultWorkerConcurrency
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			UploadQueue: 1,
		},
	})

	pool := &ExecutorPool{
		server:  server,
		mux:     asynq.NewServeMux(),
		manager: manager,
	}
	pool.mux.HandleFunc(TaskTypeProcessUpload, pool.handleProcessUpload)
	return pool
}

func (p *ExecutorPool) handleProcessUpload(ctx context.Context, t *asynq.Task) error {
	var payload uploadTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		config.Logger.Error("Malformed upload task payload", zap.Error(err))
		return fmt.Errorf("malformed payload: %v: %w", err, asynq.SkipRetry)
	}
	return p.manager.ProcessJob(ctx, payload.JobID)
}

// Run blocks serving tasks until Shutdown is called.
func (p *ExecutorPool) Run() error {
	return p.server.Run(p.mux)
}

// Start serves tasks without blocking.
func (p *ExecutorPool) Start() error {
	return p.server.Start(p.mux)
}

func (p *ExecutorPool) Shutdown() {
	p.server.Shutdown()
}
