package jobs

import (
	"context"
	"errors"
	"time"
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
)

// Terminal reports whether no further transition is allowed from s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

var (
	// ErrJobNotFound is returned for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobTerminal is returned when updating a completed or failed job.
	ErrJobTerminal = errors.New("job already finished")
)

// ReportJob is one pipeline run over one input directory.
type ReportJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// ReportName scopes the run's output, intermediate and database directories.
	ReportName string `json:"report_name"`

	// InputDir is the page-file directory or a gs:// prefix.
	InputDir string `json:"input_dir"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Stage is the user-visible name of the step being executed.
	Stage string `json:"stage,omitempty"`

	// Progress is the completion percentage, 0 to 100.
	Progress int `json:"progress"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`
}

// Publisher enqueues report jobs.
type Publisher interface {
	// PublishReport registers the job as pending and enqueues it.
	PublishReport(ctx context.Context, job *ReportJob) error

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

// JobHandler processes one job. A returned error marks the job failed.
type JobHandler func(ctx context.Context, job *ReportJob) error

// JobStore is the job registry. A job moves from pending to running and
// then to completed or failed; once finished it rejects every update with
// ErrJobTerminal.
type JobStore interface {
	// SaveJob creates a job or replaces a job that has not finished.
	SaveJob(ctx context.Context, job *ReportJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ReportJob, error)

	// ListJobs retrieves jobs with optional filtering, oldest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ReportJob, error)

	// UpdateJobStatus moves a job to status and stamps its start or
	// completion time.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error

	// UpdateProgress records the running stage and percentage.
	UpdateProgress(ctx context.Context, jobID string, stage string, progress int) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// ReportName filters jobs by report.
	ReportName string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
