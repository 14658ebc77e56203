package ingestion

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/time/rate"

	"tfl-lake/internal/ddl"
	"tfl-lake/internal/domain"
	"tfl-lake/internal/engine"
	"tfl-lake/internal/storage"
)

// System column types.
const (
	ingestTimeType  = "TIMESTAMPTZ"
	sourceFileType  = "VARCHAR"
	rescuedDataType = "VARCHAR"
)

// stream is one execution of an ingestion job.
type stream struct {
	job        domain.IngestionJob
	catalog    string
	table      string
	source     string
	sources    storage.ObjectStore
	checkpoint *Checkpoint
	schemas    *SchemaTracker
	engine     *engine.Engine
	storage    *storage.Resolver
	logger     *slog.Logger

	state  *CheckpointState
	result domain.StreamResult
}

func (st *stream) run(ctx context.Context, trigger domain.Trigger) (*domain.StreamResult, error) {
	st.result = domain.StreamResult{Job: st.job.Name, Table: st.table}

	state, err := st.checkpoint.Load(ctx, st.job.Name, st.table)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	st.state = state
	st.logger.Debug("stream started", "stream_id", state.Metadata.ID, "next_batch", state.NextBatch, "source", st.source)

	if state.Pending != nil {
		st.logger.Warn("replaying uncommitted batch", "batch_id", state.Pending.BatchID, "files", len(state.Pending.Files))
		if err := st.execute(ctx, state.Pending, true); err != nil {
			return &st.result, fmt.Errorf("recover batch %d: %w", state.Pending.BatchID, err)
		}
		st.state.Pending = nil
		st.result.Recovered = true
	}

	if trigger.Mode == domain.TriggerProcessingTime {
		return st.runContinuous(ctx, trigger)
	}

	files, err := st.discover(ctx)
	if err != nil {
		return &st.result, err
	}
	for len(files) > 0 {
		n := st.batchSize(len(files))
		if err := st.batch(ctx, files[:n]); err != nil {
			return &st.result, err
		}
		files = files[n:]
	}
	st.logger.Info("stream caught up",
		"batches", st.result.Batches, "files", st.result.FilesProcessed, "rows", st.result.RowsAppended)
	return &st.result, nil
}

// runContinuous processes at most one micro-batch per interval until ctx ends.
func (st *stream) runContinuous(ctx context.Context, trigger domain.Trigger) (*domain.StreamResult, error) {
	limiter := rate.NewLimiter(rate.Every(trigger.Interval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			st.logger.Info("stream stopped",
				"batches", st.result.Batches, "files", st.result.FilesProcessed, "rows", st.result.RowsAppended)
			return &st.result, nil
		}
		files, err := st.discover(ctx)
		if err == nil && len(files) > 0 {
			err = st.batch(ctx, files[:st.batchSize(len(files))])
		}
		if err != nil {
			if ctx.Err() != nil {
				// An interrupted batch is replayed on the next start.
				return &st.result, nil
			}
			return &st.result, err
		}
	}
}

func (st *stream) batchSize(available int) int {
	if limit := st.job.MaxFilesPerTrigger; limit > 0 && limit < available {
		return limit
	}
	return available
}

// discover lists source files not yet committed, sorted by URL. Hidden files
// and files with a foreign extension are ignored.
func (st *stream) discover(ctx context.Context) ([]string, error) {
	objs, err := st.sources.List(ctx, st.source)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	exts := st.job.Format.Extensions()
	var files []string
	for _, o := range objs {
		name := path.Base(o.URL)
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		if !hasExtension(name, exts) || st.state.Committed[o.URL] {
			continue
		}
		files = append(files, o.URL)
	}
	return files, nil
}

func hasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// batch records the offset for files, then appends them.
func (st *stream) batch(ctx context.Context, files []string) error {
	off, err := st.checkpoint.WriteOffset(ctx, st.state.NextBatch, files)
	if err != nil {
		return fmt.Errorf("write offset: %w", err)
	}
	st.state.NextBatch++
	return st.execute(ctx, off, false)
}

// execute appends the files of off in one transaction and commits the
// checkpoint. When replaying, rows already loaded from those files are
// deleted in the same transaction first.
func (st *stream) execute(ctx context.Context, off *Offset, replay bool) error {
	logger := st.logger.With("batch_id", off.BatchID)

	enginePaths := make([]string, len(off.Files))
	for i, f := range off.Files {
		p, err := st.storage.EnginePath(f)
		if err != nil {
			return err
		}
		enginePaths[i] = p
	}

	conn, err := st.engine.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	schema, table := st.job.TargetSchema, st.job.TargetTable
	existing, err := st.engine.TableColumns(ctx, tx, st.catalog, schema, table)
	if err != nil {
		return err
	}

	if replay && len(existing) > 0 {
		stmt, err := ddl.DeleteBySourceFiles(st.catalog, schema, table, domain.ColumnSourceFile, enginePaths)
		if err != nil {
			return fmt.Errorf("build delete: %w", err)
		}
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("delete partial batch: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logger.Warn("removed rows of partial batch", "rows", n)
		}
	}

	// Empty files carry no schema; DuckDB would describe them as a
	// placeholder column.
	counts, err := st.engine.FileRowCounts(ctx, tx, enginePaths, string(st.job.Format))
	if err != nil {
		return err
	}
	var readable []string
	for _, p := range enginePaths {
		if counts[p] > 0 {
			readable = append(readable, p)
		}
	}

	br := domain.BatchResult{BatchID: off.BatchID, Files: off.Files}
	var plan schemaPlan
	if len(readable) > 0 {
		plan, err = st.evolve(ctx, tx, existing, readable)
		if err != nil {
			return err
		}
		app := ddl.Append{
			Catalog:          st.catalog,
			Schema:           schema,
			Table:            table,
			Files:            readable,
			Format:           string(st.job.Format),
			IngestTimeColumn: domain.ColumnIngestTime,
			SourceFileColumn: domain.ColumnSourceFile,
			Coerce:           plan.coerce,
			RescueColumn:     domain.ColumnRescuedData,
		}
		stmt, err := ddl.AppendFiles(app)
		if err != nil {
			return fmt.Errorf("build append: %w", err)
		}
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("append to %s: %w", st.table, err)
		}
		if br.RowsAppended, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("append to %s: %w", st.table, err)
		}
		br.AddedColumns = plan.added
		for _, c := range plan.coerce {
			br.RescuedColumns = append(br.RescuedColumns, c.Name)
		}
	} else {
		logger.Info("batch holds no rows", "files", len(off.Files))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	committed = true

	if err := st.checkpoint.WriteCommit(ctx, off.BatchID, br.RowsAppended); err != nil {
		return fmt.Errorf("write commit: %w", err)
	}
	for _, f := range off.Files {
		st.state.Committed[f] = true
	}

	if plan.created || len(plan.added) > 0 {
		cols, err := st.engine.TableColumns(ctx, nil, st.catalog, schema, table)
		if err != nil {
			return err
		}
		v, err := st.schemas.Record(ctx, cols)
		if err != nil {
			return fmt.Errorf("record schema: %w", err)
		}
		logger.Info("schema version recorded", "version", v.Version, "added", plan.added)
	}

	st.result.Batches++
	st.result.FilesProcessed += len(off.Files)
	st.result.RowsAppended += br.RowsAppended
	st.result.Commits = append(st.result.Commits, br)
	logger.Info("batch committed", "files", len(off.Files), "rows", br.RowsAppended)
	return nil
}

// schemaPlan is the outcome of evolve for one batch.
type schemaPlan struct {
	created bool
	added   []string
	coerce  []ddl.ColumnDef // table columns the batch carries under another type
}

// evolve creates the table on first sight, adds newly seen columns, and finds
// columns whose inferred type differs from the table's. Those are coerced to
// the table type on append; values that do not fit go to the rescued data
// column, which is added when first needed.
func (st *stream) evolve(ctx context.Context, tx *sql.Tx, existing []ddl.ColumnDef, files []string) (schemaPlan, error) {
	var plan schemaPlan
	schema, table := st.job.TargetSchema, st.job.TargetTable
	inferred, err := st.engine.DescribeFiles(ctx, tx, files, string(st.job.Format))
	if err != nil {
		return plan, err
	}
	for i := range inferred {
		inferred[i].Type = ddl.StorageType(inferred[i].Type)
	}

	if len(existing) == 0 {
		cols := append(inferred,
			ddl.ColumnDef{Name: domain.ColumnIngestTime, Type: ingestTimeType},
			ddl.ColumnDef{Name: domain.ColumnSourceFile, Type: sourceFileType},
		)
		stmt, err := ddl.CreateTable(st.catalog, schema, table, cols)
		if err != nil {
			return plan, fmt.Errorf("build create table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return plan, fmt.Errorf("create %s: %w", st.table, err)
		}
		st.logger.Info("table created", "table", st.table, "columns", len(cols))
		plan.created = true
		return plan, nil
	}

	extra := newColumns(existing, inferred)
	plan.coerce = changedColumns(existing, inferred)
	if len(plan.coerce) > 0 && !hasColumn(existing, domain.ColumnRescuedData) {
		extra = append(extra, ddl.ColumnDef{Name: domain.ColumnRescuedData, Type: rescuedDataType})
	}
	if len(extra) == 0 {
		return plan, nil
	}
	if st.job.SchemaEvolution != domain.SchemaEvolutionAddNewColumns {
		names := make([]string, len(extra))
		for i, c := range extra {
			names[i] = c.Name
		}
		return plan, domain.ErrValidation("%s: new columns %v and schema evolution is %q",
			st.table, names, st.job.SchemaEvolution)
	}

	for _, c := range extra {
		stmt, err := ddl.AddColumn(st.catalog, schema, table, c)
		if err != nil {
			return plan, fmt.Errorf("build add column: %w", err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return plan, fmt.Errorf("add column %s to %s: %w", c.Name, st.table, err)
		}
		plan.added = append(plan.added, c.Name)
	}
	st.logger.Info("schema evolved", "table", st.table, "added", plan.added)
	return plan, nil
}
