package domain

import "time"

// Pipeline status constants.
const (
	PipelineRunStatusPending = "PENDING"
	PipelineRunStatusRunning = "RUNNING"
	PipelineRunStatusSuccess = "SUCCESS"
	PipelineRunStatusFailed  = "FAILED"

	PipelineJobRunStatusPending = "PENDING"
	PipelineJobRunStatusRunning = "RUNNING"
	PipelineJobRunStatusSuccess = "SUCCESS"
	PipelineJobRunStatusFailed  = "FAILED"
	PipelineJobRunStatusSkipped = "SKIPPED"

	TriggerTypeManual    = "MANUAL"
	TriggerTypeScheduled = "SCHEDULED"
	TriggerTypeAPI       = "API"
)

// PipelineBronze names the bronze ingestion pipeline.
const PipelineBronze = "bronze"

// PipelineRun represents one execution of a pipeline.
type PipelineRun struct {
	ID           string
	Pipeline     string
	Environment  string
	Status       string
	TriggerType  string
	Trigger      string
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage *string
	CreatedAt    time.Time
	Jobs         []PipelineJobRun
}

// PipelineJobRun represents the execution of a single job within a run.
type PipelineJobRun struct {
	ID             string
	RunID          string
	JobName        string
	TargetTable    string
	JobOrder       int
	Status         string
	FilesProcessed int
	RowsAppended   int64
	RowCount       *int64 // populated by post-run validation
	StartedAt      *time.Time
	FinishedAt     *time.Time
	ErrorMessage   *string
	CreatedAt      time.Time
}

// JobRunOutcome carries the counters recorded when a job run finishes.
type JobRunOutcome struct {
	FilesProcessed int
	RowsAppended   int64
}

// PipelineRunFilter holds filter parameters for querying pipeline runs.
type PipelineRunFilter struct {
	Pipeline *string
	Status   *string
	Page     PageRequest
}
