package repository

import (
	"context"
	"database/sql"
	"strings"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ domain.PipelineRunRepository = (*PipelineRunRepo)(nil)

const (
	pipelineRunColumns = `id, pipeline, environment, status, trigger_type, trigger_mode,
	started_at, finished_at, error_message, created_at`
	jobRunColumns = `id, run_id, job_name, target_table, job_order, status, files_processed,
	rows_appended, row_count, started_at, finished_at, error_message, created_at`
)

// PipelineRunRepo implements PipelineRunRepository using SQLite.
type PipelineRunRepo struct {
	db *sql.DB
}

// NewPipelineRunRepo creates a new PipelineRunRepo.
func NewPipelineRunRepo(db *sql.DB) *PipelineRunRepo {
	return &PipelineRunRepo{db: db}
}

// CreateRun inserts a new pipeline run.
func (r *PipelineRunRepo) CreateRun(ctx context.Context, run *domain.PipelineRun) (*domain.PipelineRun, error) {
	status := run.Status
	if status == "" {
		status = domain.PipelineRunStatusPending
	}
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx, `INSERT INTO pipeline_runs (id, pipeline, environment, status, trigger_type, trigger_mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, run.Pipeline, run.Environment, status, run.TriggerType, run.Trigger, now())
	if err != nil {
		return nil, mapDBError(err)
	}
	return scanRun(r.db.QueryRowContext(ctx, `SELECT `+pipelineRunColumns+` FROM pipeline_runs WHERE id = ?`, id))
}

// GetRunByID returns a pipeline run with its job runs.
func (r *PipelineRunRepo) GetRunByID(ctx context.Context, id string) (*domain.PipelineRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+pipelineRunColumns+` FROM pipeline_runs WHERE id = ?`, id))
	if err != nil {
		return nil, mapNotFound(err, "pipeline run %q not found", id)
	}
	if run.Jobs, err = r.ListJobRunsByRun(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns a filtered, paginated list of pipeline runs, newest first.
// Job runs are not loaded.
func (r *PipelineRunRepo) ListRuns(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, int64, error) {
	var where []string
	var args []any
	if filter.Pipeline != nil {
		where = append(where, "pipeline = ?")
		args = append(args, *filter.Pipeline)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM pipeline_runs`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+pipelineRunColumns+` FROM pipeline_runs`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		append(args, filter.Page.Limit(), filter.Page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close() //nolint:errcheck

	var runs []domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, *run)
	}
	return runs, total, rows.Err()
}

// UpdateRunStarted marks a run as RUNNING with the current start time.
func (r *PipelineRunRepo) UpdateRunStarted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, started_at = ? WHERE id = ?`,
		domain.PipelineRunStatusRunning, now(), id)
	if err != nil {
		return mapDBError(err)
	}
	return expectOneRow(res, "pipeline run", id)
}

// UpdateRunFinished records a run's terminal status.
func (r *PipelineRunRepo) UpdateRunFinished(ctx context.Context, id, status string, errMsg *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, finished_at = ?, error_message = ? WHERE id = ?`,
		status, now(), nullStrFromPtr(errMsg), id)
	if err != nil {
		return mapDBError(err)
	}
	return expectOneRow(res, "pipeline run", id)
}

// CreateJobRun inserts a job run belonging to a pipeline run.
func (r *PipelineRunRepo) CreateJobRun(ctx context.Context, jr *domain.PipelineJobRun) (*domain.PipelineJobRun, error) {
	status := jr.Status
	if status == "" {
		status = domain.PipelineJobRunStatusPending
	}
	id := domain.NewID()
	_, err := r.db.ExecContext(ctx, `INSERT INTO pipeline_job_runs (id, run_id, job_name, target_table, job_order, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, jr.RunID, jr.JobName, jr.TargetTable, jr.JobOrder, status, now())
	if err != nil {
		return nil, mapConflict(err, "job %q already recorded for run %q", jr.JobName, jr.RunID)
	}
	return scanJobRun(r.db.QueryRowContext(ctx, `SELECT `+jobRunColumns+` FROM pipeline_job_runs WHERE id = ?`, id))
}

// ListJobRunsByRun returns the job runs of a pipeline run in execution order.
func (r *PipelineRunRepo) ListJobRunsByRun(ctx context.Context, runID string) ([]domain.PipelineJobRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+jobRunColumns+` FROM pipeline_job_runs WHERE run_id = ? ORDER BY job_order`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var jobs []domain.PipelineJobRun
	for rows.Next() {
		jr, err := scanJobRun(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *jr)
	}
	return jobs, rows.Err()
}

// UpdateJobRunStarted marks a job run as RUNNING.
func (r *PipelineRunRepo) UpdateJobRunStarted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_job_runs SET status = ?, started_at = ? WHERE id = ?`,
		domain.PipelineJobRunStatusRunning, now(), id)
	if err != nil {
		return mapDBError(err)
	}
	return expectOneRow(res, "job run", id)
}

// UpdateJobRunFinished records a job run's terminal status and counters.
func (r *PipelineRunRepo) UpdateJobRunFinished(ctx context.Context, id, status string, outcome domain.JobRunOutcome, errMsg *string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pipeline_job_runs
		SET status = ?, finished_at = ?, files_processed = ?, rows_appended = ?, error_message = ?
		WHERE id = ?`,
		status, now(), outcome.FilesProcessed, outcome.RowsAppended, nullStrFromPtr(errMsg), id)
	if err != nil {
		return mapDBError(err)
	}
	return expectOneRow(res, "job run", id)
}

// UpdateJobRunRowCount records the destination row count observed by validation.
func (r *PipelineRunRepo) UpdateJobRunRowCount(ctx context.Context, id string, rowCount int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pipeline_job_runs SET row_count = ? WHERE id = ?`, rowCount, id)
	if err != nil {
		return mapDBError(err)
	}
	return expectOneRow(res, "job run", id)
}

func scanRun(row scanner) (*domain.PipelineRun, error) {
	var run domain.PipelineRun
	var startedAt, finishedAt, errMsg sql.NullString
	var createdAt string
	if err := row.Scan(&run.ID, &run.Pipeline, &run.Environment, &run.Status, &run.TriggerType,
		&run.Trigger, &startedAt, &finishedAt, &errMsg, &createdAt); err != nil {
		return nil, err
	}
	run.StartedAt = parseNullTime(startedAt)
	run.FinishedAt = parseNullTime(finishedAt)
	run.ErrorMessage = ptrFromNullStr(errMsg)
	run.CreatedAt = parseTime(createdAt)
	return &run, nil
}

func scanJobRun(row scanner) (*domain.PipelineJobRun, error) {
	var jr domain.PipelineJobRun
	var rowCount sql.NullInt64
	var startedAt, finishedAt, errMsg sql.NullString
	var createdAt string
	if err := row.Scan(&jr.ID, &jr.RunID, &jr.JobName, &jr.TargetTable, &jr.JobOrder, &jr.Status,
		&jr.FilesProcessed, &jr.RowsAppended, &rowCount, &startedAt, &finishedAt, &errMsg, &createdAt); err != nil {
		return nil, err
	}
	jr.RowCount = ptrFromNullInt(rowCount)
	jr.StartedAt = parseNullTime(startedAt)
	jr.FinishedAt = parseNullTime(finishedAt)
	jr.ErrorMessage = ptrFromNullStr(errMsg)
	jr.CreatedAt = parseTime(createdAt)
	return &jr, nil
}
