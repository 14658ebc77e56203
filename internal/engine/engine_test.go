package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tfl-lake/internal/ddl"
	"tfl-lake/internal/domain"
)

// openTestEngine opens an engine on the DuckDB file backend, which needs no
// extension downloads.
func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(context.Background(), Options{Backend: BackendDuckDB, MetadataDir: t.TempDir()}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestOpen_RejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "postgres"}, slog.New(slog.DiscardHandler))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported catalog backend")
}

func TestAttachCatalog_Idempotent(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.AttachCatalog(ctx, "tfl_dev", ""))
	require.NoError(t, e.AttachCatalog(ctx, "tfl_dev", ""))

	attached, err := e.IsCatalogAttached(ctx, "tfl_dev")
	require.NoError(t, err)
	assert.True(t, attached)

	attached, err = e.IsCatalogAttached(ctx, "tfl_prod")
	require.NoError(t, err)
	assert.False(t, attached)

	_, err = os.Stat(filepath.Join(e.opts.MetadataDir, "tfl_dev.duckdb"))
	require.NoError(t, err)
}

func TestCreateSchema_ReportsCreated(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.AttachCatalog(ctx, "tfl_dev", ""))

	created, err := e.CreateSchema(ctx, "tfl_dev", "bronze")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = e.CreateSchema(ctx, "tfl_dev", "bronze")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = e.CreateSchema(ctx, "tfl_dev", "bad-name")
	require.Error(t, err)
}

func TestTableColumnsAndCount(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()
	require.NoError(t, e.AttachCatalog(ctx, "tfl_dev", ""))
	_, err := e.CreateSchema(ctx, "tfl_dev", "bronze")
	require.NoError(t, err)

	cols, err := e.TableColumns(ctx, nil, "tfl_dev", "bronze", "lines_bz")
	require.NoError(t, err)
	assert.Empty(t, cols)

	stmt, err := ddl.CreateTable("tfl_dev", "bronze", "lines_bz", []ddl.ColumnDef{
		{Name: "$type", Type: "VARCHAR"},
		{Name: "id", Type: "VARCHAR"},
	})
	require.NoError(t, err)
	_, err = e.DB().ExecContext(ctx, stmt)
	require.NoError(t, err)
	_, err = e.DB().ExecContext(ctx, `INSERT INTO "tfl_dev"."bronze"."lines_bz" VALUES ('Line', 'victoria'), ('Line', 'central')`)
	require.NoError(t, err)

	cols, err = e.TableColumns(ctx, nil, "tfl_dev", "bronze", "lines_bz")
	require.NoError(t, err)
	assert.Equal(t, []ddl.ColumnDef{{Name: "$type", Type: "VARCHAR"}, {Name: "id", Type: "VARCHAR"}}, cols)

	n, err := e.CountRows(ctx, "tfl_dev", "bronze", "lines_bz")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDescribeFiles(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "boroughs.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"code":"E09000001","name":"City of London","population":8600}]`), 0o644))

	cols, err := e.DescribeFiles(ctx, nil, []string{path}, "json")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, "code", cols[0].Name)
	assert.Equal(t, "VARCHAR", cols[0].Type)
	assert.Equal(t, "population", cols[2].Name)
	assert.Equal(t, "BIGINT", cols[2].Type)
}

func TestFileRowCounts(t *testing.T) {
	e := openTestEngine(t)
	dir := t.TempDir()
	full := filepath.Join(dir, "a.json")
	empty := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(full, []byte(`[{"code":"E1"},{"code":"E2"}]`), 0o644))
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))

	counts, err := e.FileRowCounts(context.Background(), nil, []string{full, empty}, "json")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{full: 2}, counts)
}

// openDuckLakeEngine opens an engine on the DuckLake backend, skipping the
// test when the extension cannot be installed (e.g. no network).
func openDuckLakeEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(context.Background(), Options{Backend: BackendDuckLake, MetadataDir: t.TempDir()}, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Skipf("ducklake extension unavailable: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestDuckLake_BatchInOneTransaction(t *testing.T) {
	e := openDuckLakeEngine(t)
	ctx := context.Background()
	dir := t.TempDir()

	require.NoError(t, e.AttachCatalog(ctx, "tfl_dev", filepath.Join(dir, "data")))
	require.NoError(t, e.AttachCatalog(ctx, "tfl_dev", filepath.Join(dir, "data")))
	_, err := os.Stat(filepath.Join(e.opts.MetadataDir, "tfl_dev.ducklake"))
	require.NoError(t, err)
	_, err = e.CreateSchema(ctx, "tfl_dev", "bronze")
	require.NoError(t, err)

	file := filepath.Join(dir, "lines.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"id":"victoria"},{"id":"central"}]`), 0o644))

	conn, err := e.Conn(ctx)
	require.NoError(t, err)
	defer conn.Close() //nolint:errcheck
	tx, err := conn.BeginTx(ctx, nil)
	require.NoError(t, err)

	create, err := ddl.CreateTable("tfl_dev", "bronze", "lines_bz", []ddl.ColumnDef{
		{Name: "id", Type: "VARCHAR"},
		{Name: "_ingest_time", Type: "TIMESTAMPTZ"},
		{Name: "_source_file", Type: "VARCHAR"},
	})
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, create)
	require.NoError(t, err)
	alter, err := ddl.AddColumn("tfl_dev", "bronze", "lines_bz", ddl.ColumnDef{Name: "name", Type: "VARCHAR"})
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, alter)
	require.NoError(t, err)
	del, err := ddl.DeleteBySourceFiles("tfl_dev", "bronze", "lines_bz", "_source_file", []string{file})
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, del)
	require.NoError(t, err)
	insert, err := ddl.AppendFiles(ddl.Append{
		Catalog: "tfl_dev", Schema: "bronze", Table: "lines_bz",
		Files: []string{file}, Format: "json",
		IngestTimeColumn: "_ingest_time", SourceFileColumn: "_source_file",
	})
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, insert)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	n, err := e.CountRows(ctx, "tfl_dev", "bronze", "lines_bz")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	cols, err := e.TableColumns(ctx, nil, "tfl_dev", "bronze", "lines_bz")
	require.NoError(t, err)
	assert.Len(t, cols, 4)
}

func TestCreateSecret_UnsupportedType(t *testing.T) {
	e := openTestEngine(t)
	err := e.CreateSecret(context.Background(), "x", &domain.StorageCredential{CredentialType: "FTP"}, "")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}
