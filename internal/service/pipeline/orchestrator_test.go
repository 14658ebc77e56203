package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tfl-lake/internal/domain"
	"tfl-lake/internal/lakepath"
	"tfl-lake/internal/service/ingestion"
	"tfl-lake/internal/testutil"
	"tfl-lake/internal/testutil/laketest"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

type fakeRunner struct {
	jobs  []domain.IngestionJob
	runFn func(ctx context.Context, job domain.IngestionJob) (*domain.StreamResult, error)

	mu  sync.Mutex
	ran []string
}

func (f *fakeRunner) Jobs() []domain.IngestionJob { return f.jobs }

func (f *fakeRunner) Run(ctx context.Context, job domain.IngestionJob, trigger domain.Trigger) (*domain.StreamResult, error) {
	if trigger.Mode != domain.TriggerAvailableNow {
		return nil, errors.New("orchestrated jobs must run once")
	}
	f.mu.Lock()
	f.ran = append(f.ran, job.Name)
	f.mu.Unlock()
	if f.runFn != nil {
		return f.runFn(ctx, job)
	}
	return &domain.StreamResult{Job: job.Name, FilesProcessed: 1, RowsAppended: 10}, nil
}

func (f *fakeRunner) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type fakeCounter map[string]int64

func (f fakeCounter) CountRows(_ context.Context, _, _, table string) (int64, error) {
	n, ok := f[table]
	if !ok {
		return 0, errors.New("table not found")
	}
	return n, nil
}

func fullCounter() fakeCounter {
	return fakeCounter{"arrivals_bz": 10, "lines_bz": 10, "stops_bz": 10, "boroughs_bz": 10}
}

func newTestOrchestrator(runner *fakeRunner, counter TableCounter, timeout time.Duration) (*Orchestrator, *testutil.MemoryPipelineRunRepo) {
	paths := lakepath.New(laketest.Config())
	if runner.jobs == nil {
		runner.jobs = ingestion.BronzeJobs(paths)
	}
	runs := testutil.NewMemoryPipelineRunRepo()
	return NewOrchestrator(runner, counter, runs, paths, timeout, discardLogger()), runs
}

func jobStatuses(run *domain.PipelineRun) map[string]string {
	out := make(map[string]string, len(run.Jobs))
	for _, j := range run.Jobs {
		out[j.JobName] = j.Status
	}
	return out
}

func TestRunBronze_Success(t *testing.T) {
	runner := &fakeRunner{}
	orch, _ := newTestOrchestrator(runner, fullCounter(), 0)
	assert.Equal(t, DefaultJobTimeout, orch.JobTimeout())

	run, err := orch.RunBronze(context.Background(), domain.TriggerTypeManual)
	require.NoError(t, err)

	assert.Equal(t, domain.PipelineRunStatusSuccess, run.Status)
	assert.Equal(t, domain.PipelineBronze, run.Pipeline)
	assert.Equal(t, "dev", run.Environment)
	assert.Equal(t, domain.TriggerTypeManual, run.TriggerType)
	assert.Equal(t, []string{"arrivals", "lines", "stops", "boroughs"}, runner.calls())

	require.Len(t, run.Jobs, 4)
	for i, j := range run.Jobs {
		assert.Equal(t, i, j.JobOrder)
		assert.Equal(t, domain.PipelineJobRunStatusSuccess, j.Status)
		assert.Equal(t, 1, j.FilesProcessed)
		assert.Equal(t, int64(10), j.RowsAppended)
		require.NotNil(t, j.RowCount)
		assert.Equal(t, int64(10), *j.RowCount)
	}
	assert.Equal(t, "tfl_dev.bronze.arrivals_bz", run.Jobs[0].TargetTable)
	assert.False(t, orch.Active())
}

func TestRunBronze_AbortsOnFirstFailure(t *testing.T) {
	boom := errors.New("read failed")
	runner := &fakeRunner{runFn: func(_ context.Context, job domain.IngestionJob) (*domain.StreamResult, error) {
		if job.Name == "lines" {
			return nil, boom
		}
		return &domain.StreamResult{Job: job.Name}, nil
	}}
	orch, _ := newTestOrchestrator(runner, fullCounter(), 0)

	run, err := orch.RunBronze(context.Background(), domain.TriggerTypeManual)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "job lines")

	assert.Equal(t, []string{"arrivals", "lines"}, runner.calls())
	assert.Equal(t, domain.PipelineRunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)
	assert.Equal(t, map[string]string{
		"arrivals": domain.PipelineJobRunStatusSuccess,
		"lines":    domain.PipelineJobRunStatusFailed,
		"stops":    domain.PipelineJobRunStatusSkipped,
		"boroughs": domain.PipelineJobRunStatusSkipped,
	}, jobStatuses(run))
}

func TestRunBronze_JobTimeout(t *testing.T) {
	runner := &fakeRunner{runFn: func(ctx context.Context, job domain.IngestionJob) (*domain.StreamResult, error) {
		if job.Name == "arrivals" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &domain.StreamResult{}, nil
	}}
	orch, _ := newTestOrchestrator(runner, fullCounter(), 20*time.Millisecond)

	run, err := orch.RunBronze(context.Background(), domain.TriggerTypeManual)
	var timeout *domain.JobTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "arrivals", timeout.Job)
	assert.Equal(t, 20*time.Millisecond, timeout.Timeout)
	assert.Equal(t, []string{"arrivals"}, runner.calls())
	assert.Equal(t, domain.PipelineJobRunStatusSkipped, jobStatuses(run)["boroughs"])
}

func TestRunBronze_ParentCancellationIsNotATimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{runFn: func(jctx context.Context, _ domain.IngestionJob) (*domain.StreamResult, error) {
		cancel()
		<-jctx.Done()
		return nil, jctx.Err()
	}}
	orch, runs := newTestOrchestrator(runner, fullCounter(), time.Hour)

	run, err := orch.RunBronze(ctx, domain.TriggerTypeManual)
	require.ErrorIs(t, err, context.Canceled)
	var timeout *domain.JobTimeoutError
	assert.False(t, errors.As(err, &timeout))

	stored, err := runs.GetRunByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineRunStatusFailed, stored.Status, "interrupted runs are still recorded")
}

func TestRunBronze_EmptyTable(t *testing.T) {
	counter := fullCounter()
	counter["stops_bz"] = 0
	orch, _ := newTestOrchestrator(&fakeRunner{}, counter, 0)

	run, err := orch.RunBronze(context.Background(), domain.TriggerTypeManual)
	var empty *domain.EmptyTableError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "tfl_dev.bronze.stops_bz", empty.Table)
	assert.Equal(t, "tfl_dev.bronze.stops_bz is empty", err.Error())
	assert.Equal(t, domain.PipelineRunStatusFailed, run.Status)

	// Jobs themselves succeeded; counts are recorded up to the empty table.
	assert.Equal(t, domain.PipelineJobRunStatusSuccess, jobStatuses(run)["boroughs"])
	require.NotNil(t, run.Jobs[2].RowCount)
	assert.Zero(t, *run.Jobs[2].RowCount)
	assert.Nil(t, run.Jobs[3].RowCount)
}

func TestRunBronze_OneActiveRun(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	runner := &fakeRunner{runFn: func(_ context.Context, job domain.IngestionJob) (*domain.StreamResult, error) {
		if job.Name == "arrivals" {
			started <- struct{}{}
			<-release
		}
		return &domain.StreamResult{}, nil
	}}
	orch, runs := newTestOrchestrator(runner, fullCounter(), 0)

	first, err := orch.Start(context.Background(), domain.TriggerTypeAPI)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineRunStatusPending, first.Status)
	<-started
	assert.True(t, orch.Active())

	_, err = orch.RunBronze(context.Background(), domain.TriggerTypeManual)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)

	close(release)
	orch.Wait()
	assert.False(t, orch.Active())

	done, err := runs.GetRunByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineRunStatusSuccess, done.Status)

	listed, total, err := orch.ListRuns(context.Background(), domain.PipelineRunFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, first.ID, listed[0].ID)
}

func TestStart_ShutdownCancelsBackgroundRun(t *testing.T) {
	started := make(chan struct{}, 1)
	runner := &fakeRunner{runFn: func(ctx context.Context, _ domain.IngestionJob) (*domain.StreamResult, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	orch, runs := newTestOrchestrator(runner, fullCounter(), time.Hour)

	// The request context ends with the request; the run must not.
	reqCtx, cancelReq := context.WithCancel(context.Background())
	run, err := orch.Start(reqCtx, domain.TriggerTypeAPI)
	require.NoError(t, err)
	cancelReq()
	<-started
	assert.True(t, orch.Active())

	done := make(chan struct{})
	go func() {
		orch.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not cancel the background run")
	}
	assert.False(t, orch.Active())

	got, err := runs.GetRunByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineRunStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, context.Canceled.Error())
	assert.Equal(t, map[string]string{
		"arrivals": domain.PipelineJobRunStatusFailed,
		"lines":    domain.PipelineJobRunStatusSkipped,
		"stops":    domain.PipelineJobRunStatusSkipped,
		"boroughs": domain.PipelineJobRunStatusSkipped,
	}, jobStatuses(got))
	assert.Equal(t, []string{"arrivals"}, runner.calls())

	_, err = orch.Start(context.Background(), domain.TriggerTypeAPI)
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
}

func TestRunBronze_RecordFailure(t *testing.T) {
	orch, runs := newTestOrchestrator(&fakeRunner{}, fullCounter(), 0)
	runs.CreateRunErr = errors.New("disk full")

	_, err := orch.RunBronze(context.Background(), domain.TriggerTypeManual)
	require.Error(t, err)
	assert.False(t, orch.Active(), "failed preparation releases the run slot")
}

func TestRunBronze_EndToEnd(t *testing.T) {
	w := laketest.Provisioned(t)
	for _, feed := range ingestion.Feeds() {
		w.WriteLanding(t, feed+"/a.json", `[{"id":"1","name":"one"},{"id":"2","name":"two"}]`)
	}
	svc := ingestion.NewService(w.Engine, w.Storage, w.Volumes, w.Paths, w.Logger)
	orch := NewOrchestrator(svc, w.Engine, w.Runs, w.Paths, time.Minute, w.Logger)
	ctx := context.Background()

	run, err := orch.RunBronze(ctx, domain.TriggerTypeManual)
	require.NoError(t, err)
	assert.Equal(t, domain.PipelineRunStatusSuccess, run.Status)
	for _, j := range run.Jobs {
		require.NotNil(t, j.RowCount, j.JobName)
		assert.Equal(t, int64(2), *j.RowCount, j.JobName)
	}

	again, err := orch.RunBronze(ctx, domain.TriggerTypeManual)
	require.NoError(t, err)
	for _, j := range again.Jobs {
		assert.Zero(t, j.RowsAppended, j.JobName)
		assert.Equal(t, int64(2), *j.RowCount, j.JobName)
	}
}

func TestRunBronze_EndToEndMissingFeed(t *testing.T) {
	w := laketest.Provisioned(t)
	for _, feed := range []string{"arrivals", "lines", "stops"} {
		w.WriteLanding(t, feed+"/a.json", `[{"id":"1"}]`)
	}
	svc := ingestion.NewService(w.Engine, w.Storage, w.Volumes, w.Paths, w.Logger)
	orch := NewOrchestrator(svc, w.Engine, w.Runs, w.Paths, time.Minute, w.Logger)

	// boroughs has no files, so its table is never created.
	_, err := orch.RunBronze(context.Background(), domain.TriggerTypeManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boroughs_bz")
}
