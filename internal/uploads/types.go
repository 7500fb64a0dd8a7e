// Package uploads decouples batch-file shipping from the generation loop: the
// batch streamer publishes an upload job per flushed file and keeps ticking,
// while workers upload and load the file with retries. The generation core
// itself never retries; that policy lives here, with the collaborator.
package uploads

import (
	"context"
	"time"
)

// Status is the lifecycle state of an upload job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRetrying  Status = "retrying"
)

// Job is one batch file waiting to be shipped to the stage bucket and loaded
// into the warehouse.
type Job struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// BatchID identifies the batch the file carries; it also appears in every
	// record of the file.
	BatchID string `json:"batch_id"`

	// FilePath is the local NDJSON batch file to upload.
	FilePath string `json:"file_path"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// CreatedAt is when the job was published.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when a worker picked the job up.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job finished, successfully or not.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error holds the last failure, if any.
	Error string `json:"error,omitempty"`

	// RetryCount is how many times the job has been re-run.
	RetryCount int `json:"retry_count"`

	// MaxRetries caps RetryCount; past it the job is marked failed.
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues upload jobs.
type Publisher interface {
	Publish(ctx context.Context, job *Job) error
	Close() error
}

// Consumer processes published jobs with a handler.
type Consumer interface {
	// Start begins consuming; the handler is called for each job and should
	// return an error if the job failed and should be retried.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming and waits for in-flight jobs to finish.
	Stop(ctx context.Context) error
}

// Handler processes one upload job.
type Handler func(ctx context.Context, job *Job) error

// JobStore tracks job state so a run's outcome can be inspected after the
// fact.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobID string) (*Job, error)
	ListJobs(ctx context.Context, status Status) ([]*Job, error)
}
