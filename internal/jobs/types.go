package jobs

import (
	"context"
	"time"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeRecurrenceSweep represents a recurrence sweep job: check every
	// recurring definition and materialize whatever is due.
	JobTypeRecurrenceSweep JobType = "recurrence_sweep"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// SweepJob represents one pass over the recurring definitions. A scheduler
// (worker ticker, CLI command) publishes it; the consumer hands it to the
// recurrence materializer.
type SweepJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// DefinitionID limits the sweep to a single recurring definition.
	// Empty means sweep everything.
	DefinitionID string `json:"definition_id,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Materialized is how many transactions the sweep produced.
	Materialized int `json:"materialized"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// RetryCount is the number of times this job has been retried.
	RetryCount int `json:"retry_count"`

	// MaxRetries is the maximum number of retries allowed.
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *SweepJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *SweepJob) GetType() JobType {
	return JobTypeRecurrenceSweep
}

// GetStatus implements the Job interface.
func (j *SweepJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishSweep publishes a recurrence sweep job.
	PublishSweep(ctx context.Context, job *SweepJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler is a function that processes a job.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) error

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *SweepJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*SweepJob, error)

	// ListJobs retrieves jobs with optional filtering.
	ListJobs(ctx context.Context, filter JobFilter) ([]*SweepJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// DefinitionID filters jobs by recurring definition ID.
	DefinitionID string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
