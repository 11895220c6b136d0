package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a queued run.
type JobStatus string

// A job moves pending -> running, possibly through retrying, and ends
// completed or failed.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Source selects where a pipeline run reads its records from.
type Source string

const (
	// SourceAPI fetches from the sales API.
	SourceAPI Source = "api"
	// SourceLegacy imports the historical workbook.
	SourceLegacy Source = "legacy"
)

// ErrPermanent marks a job failure that must not be retried.
var ErrPermanent = errors.New("permanent job failure")

// Permanent wraps err so the queue does not retry the job.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// RunPipelineJob is a request to rebuild the sales dataset, together with the
// outcome of the run once it has been processed.
type RunPipelineJob struct {
	JobID  string `json:"job_id"`
	Source Source `json:"source"`

	// Start and End bound an API run, formatted YYYY-MM-DD. Empty means the
	// configured start date and yesterday.
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`

	// SourceURI is the workbook imported by a legacy run.
	SourceURI string `json:"source_uri,omitempty"`

	// RunID ties the job to the pipeline run and its logged summary.
	RunID string `json:"run_id,omitempty"`

	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Data-quality counts of a completed run.
	Rows           int `json:"rows,omitempty"`
	InvalidDates   int `json:"invalid_dates,omitempty"`
	MissingAmounts int `json:"missing_amounts,omitempty"`

	// MaxRetries bounds the retries of a transient failure. The sales API
	// fetch already retries internally, so this defaults to 0.
	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// RunKey identifies the run a job asks for. Jobs with equal keys produce the
// same dataset.
func (j *RunPipelineJob) RunKey() string {
	return strings.Join([]string{string(j.Source), j.Start, j.End, j.SourceURI}, "|")
}

// Finished reports whether the job reached a terminal status.
func (j *RunPipelineJob) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Publisher queues runs.
type Publisher interface {
	PublishRunPipeline(ctx context.Context, job *RunPipelineJob) error
	Close() error
}

// Consumer hands queued runs to a JobHandler. Stop waits for the run in
// progress.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler performs one run. Errors wrapped with Permanent are not retried.
type JobHandler func(ctx context.Context, job *RunPipelineJob) error

// JobStore keeps the run history served by the jobs endpoints.
type JobStore interface {
	SaveJob(ctx context.Context, job *RunPipelineJob) error
	GetJob(ctx context.Context, jobID string) (*RunPipelineJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*RunPipelineJob, error)
}

// ErrJobNotFound is returned by JobStore.GetJob for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// JobFilter narrows ListJobs. Zero fields match everything; a zero Limit
// returns all matches.
type JobFilter struct {
	Source Source
	Status JobStatus
	Limit  int
	Offset int
}
