// Package pipeline orchestrates the bronze ingestion jobs: one sequential
// pass over every feed, each job bounded by a timeout, followed by a
// non-empty check on every destination table. Runs are recorded in the
// metastore.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tfl-lake/internal/domain"
	"tfl-lake/internal/lakepath"
)

// DefaultJobTimeout bounds each job when no timeout is configured.
const DefaultJobTimeout = time.Hour

// JobRunner executes ingestion jobs. *ingestion.Service satisfies it.
type JobRunner interface {
	Jobs() []domain.IngestionJob
	Run(ctx context.Context, job domain.IngestionJob, trigger domain.Trigger) (*domain.StreamResult, error)
}

// TableCounter counts table rows. *engine.Engine satisfies it.
type TableCounter interface {
	CountRows(ctx context.Context, catalog, schema, table string) (int64, error)
}

// Orchestrator runs the bronze pipeline. At most one run is active at a time.
type Orchestrator struct {
	runner  JobRunner
	counter TableCounter
	runs    domain.PipelineRunRepository
	paths   *lakepath.Builder
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	active bool
	wg     sync.WaitGroup

	// base bounds background runs; Shutdown cancels it.
	base context.Context
	stop context.CancelFunc
}

// NewOrchestrator creates an Orchestrator. A non-positive jobTimeout selects
// DefaultJobTimeout.
func NewOrchestrator(
	runner JobRunner,
	counter TableCounter,
	runs domain.PipelineRunRepository,
	paths *lakepath.Builder,
	jobTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if jobTimeout <= 0 {
		jobTimeout = DefaultJobTimeout
	}
	base, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		runner:  runner,
		counter: counter,
		runs:    runs,
		paths:   paths,
		timeout: jobTimeout,
		logger:  logger.With("component", "orchestrator"),
		base:    base,
		stop:    stop,
	}
}

// JobTimeout returns the per-job bound.
func (o *Orchestrator) JobTimeout() time.Duration { return o.timeout }

// Active reports whether a run is in progress.
func (o *Orchestrator) Active() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// RunBronze runs every job in order and waits for the outcome. The first
// failing job aborts the run and the remaining jobs are recorded as SKIPPED.
// The returned run carries its job runs, also on failure.
func (o *Orchestrator) RunBronze(ctx context.Context, triggerType string) (*domain.PipelineRun, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.release()

	run, jobRuns, err := o.prepare(ctx, triggerType)
	if err != nil {
		return nil, err
	}
	runErr := o.execute(ctx, run, jobRuns)
	return o.reload(ctx, run), runErr
}

// Start records a run and executes it in the background. The returned run is
// still PENDING; its progress is read back with GetRun. The run outlives ctx
// and ends early only through Shutdown.
func (o *Orchestrator) Start(ctx context.Context, triggerType string) (*domain.PipelineRun, error) {
	if o.base.Err() != nil {
		return nil, domain.ErrConflict("orchestrator is shutting down")
	}
	if err := o.acquire(); err != nil {
		return nil, err
	}
	run, jobRuns, err := o.prepare(ctx, triggerType)
	if err != nil {
		o.release()
		return nil, err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.release()
		_ = o.execute(o.base, run, jobRuns)
	}()
	return run, nil
}

// Wait blocks until background runs started with Start have finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Shutdown cancels background runs and waits until each has recorded its
// outcome. An interrupted run is recorded as FAILED. Start fails afterwards.
func (o *Orchestrator) Shutdown() {
	o.stop()
	o.Wait()
}

// GetRun returns a run with its job runs.
func (o *Orchestrator) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	return o.runs.GetRunByID(ctx, id)
}

// ListRuns returns recorded runs, newest first.
func (o *Orchestrator) ListRuns(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, int64, error) {
	return o.runs.ListRuns(ctx, filter)
}

func (o *Orchestrator) acquire() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active {
		return domain.ErrConflict("a %s run is already in progress", domain.PipelineBronze)
	}
	o.active = true
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.active = false
	o.mu.Unlock()
}

// prepare records the run and one PENDING job run per job.
func (o *Orchestrator) prepare(ctx context.Context, triggerType string) (*domain.PipelineRun, []domain.PipelineJobRun, error) {
	jobs := o.runner.Jobs()
	if len(jobs) == 0 {
		return nil, nil, domain.ErrValidation("no ingestion jobs defined")
	}

	run, err := o.runs.CreateRun(ctx, &domain.PipelineRun{
		ID:          domain.NewID(),
		Pipeline:    domain.PipelineBronze,
		Environment: o.paths.Config().Environment,
		Status:      domain.PipelineRunStatusPending,
		TriggerType: triggerType,
		Trigger:     domain.AvailableNow().String(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create run: %w", err)
	}

	jobRuns := make([]domain.PipelineJobRun, 0, len(jobs))
	for i, job := range jobs {
		jr, err := o.runs.CreateJobRun(ctx, &domain.PipelineJobRun{
			ID:          domain.NewID(),
			RunID:       run.ID,
			JobName:     job.Name,
			TargetTable: o.tableIdentifier(job),
			JobOrder:    i,
			Status:      domain.PipelineJobRunStatusPending,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create job run: %w", err)
		}
		jobRuns = append(jobRuns, *jr)
	}
	return run, jobRuns, nil
}

// execute drives a prepared run to completion. Bookkeeping writes outlive
// ctx so an interrupted run is still recorded as FAILED.
func (o *Orchestrator) execute(ctx context.Context, run *domain.PipelineRun, jobRuns []domain.PipelineJobRun) (runErr error) {
	logger := o.logger.With("run_id", run.ID)
	bk := context.WithoutCancel(ctx)
	jobs := o.runner.Jobs()

	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("panic: %v", r)
			logger.Error("bronze run panicked", "error", runErr)
		}
		o.finish(bk, run.ID, runErr, logger)
	}()

	if err := o.runs.UpdateRunStarted(bk, run.ID); err != nil {
		return fmt.Errorf("mark run started: %w", err)
	}
	logger.Info("bronze run started", "jobs", len(jobs), "job_timeout", o.timeout)

	for i, job := range jobs {
		jr := jobRuns[i]
		if runErr != nil {
			_ = o.runs.UpdateJobRunFinished(bk, jr.ID, domain.PipelineJobRunStatusSkipped, domain.JobRunOutcome{}, nil)
			logger.Info("job skipped", "job", job.Name)
			continue
		}
		runErr = o.runJob(ctx, job, jr.ID, logger)
	}
	if runErr != nil {
		return runErr
	}
	return o.validate(ctx, jobs, jobRuns, logger)
}

// runJob runs one job under the job timeout and records its outcome.
func (o *Orchestrator) runJob(ctx context.Context, job domain.IngestionJob, jobRunID string, logger *slog.Logger) error {
	logger = logger.With("job", job.Name)
	bk := context.WithoutCancel(ctx)
	_ = o.runs.UpdateJobRunStarted(bk, jobRunID)

	jobCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	start := time.Now()
	res, err := o.runner.Run(jobCtx, job, domain.AvailableNow())
	if err != nil && errors.Is(jobCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = &domain.JobTimeoutError{Job: job.Name, Timeout: o.timeout}
	}

	var outcome domain.JobRunOutcome
	if res != nil {
		outcome = domain.JobRunOutcome{FilesProcessed: res.FilesProcessed, RowsAppended: res.RowsAppended}
	}
	if err != nil {
		msg := err.Error()
		_ = o.runs.UpdateJobRunFinished(bk, jobRunID, domain.PipelineJobRunStatusFailed, outcome, &msg)
		logger.Error("job failed", "error", err, "duration", time.Since(start))
		return fmt.Errorf("job %s: %w", job.Name, err)
	}
	_ = o.runs.UpdateJobRunFinished(bk, jobRunID, domain.PipelineJobRunStatusSuccess, outcome, nil)
	logger.Info("job finished",
		"files", outcome.FilesProcessed, "rows", outcome.RowsAppended, "duration", time.Since(start))
	return nil
}

// validate checks that every destination table holds at least one row.
func (o *Orchestrator) validate(ctx context.Context, jobs []domain.IngestionJob, jobRuns []domain.PipelineJobRun, logger *slog.Logger) error {
	bk := context.WithoutCancel(ctx)
	for i, job := range jobs {
		n, err := o.counter.CountRows(ctx, o.paths.Catalog(), job.TargetSchema, job.TargetTable)
		if err != nil {
			return fmt.Errorf("validate %s: %w", o.tableIdentifier(job), err)
		}
		_ = o.runs.UpdateJobRunRowCount(bk, jobRuns[i].ID, n)
		logger.Info("table validated", "table", o.tableIdentifier(job), "rows", n)
		if n == 0 {
			return &domain.EmptyTableError{Table: o.tableIdentifier(job)}
		}
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, runID string, runErr error, logger *slog.Logger) {
	status := domain.PipelineRunStatusSuccess
	var msg *string
	if runErr != nil {
		status = domain.PipelineRunStatusFailed
		m := runErr.Error()
		msg = &m
	}
	if err := o.runs.UpdateRunFinished(ctx, runID, status, msg); err != nil {
		logger.Error("failed to record run outcome", "error", err)
	}
	if runErr != nil {
		logger.Error("bronze run failed", "error", runErr)
		return
	}
	logger.Info("bronze run succeeded")
}

func (o *Orchestrator) reload(ctx context.Context, run *domain.PipelineRun) *domain.PipelineRun {
	full, err := o.runs.GetRunByID(context.WithoutCancel(ctx), run.ID)
	if err != nil {
		return run
	}
	return full
}

func (o *Orchestrator) tableIdentifier(job domain.IngestionJob) string {
	return o.paths.TableIdentifier(job.TargetSchema, job.TargetTable)
}
