package engine

import (
	"context"
	"database/sql"
	"fmt"

	"tfl-lake/internal/ddl"
)

// CreateSchema creates catalog.schema if it does not exist and reports
// whether it was newly created.
func (e *Engine) CreateSchema(ctx context.Context, catalog, schema string) (bool, error) {
	exists, err := e.SchemaExists(ctx, catalog, schema)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	stmt, err := ddl.CreateSchema(catalog, schema)
	if err != nil {
		return false, fmt.Errorf("build DDL: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("create schema %s.%s: %w", catalog, schema, err)
	}
	return true, nil
}

// SchemaExists reports whether catalog.schema exists.
func (e *Engine) SchemaExists(ctx context.Context, catalog, schema string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.schemata WHERE catalog_name = ? AND schema_name = ?`,
		catalog, schema).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup schema %s.%s: %w", catalog, schema, err)
	}
	return n > 0, nil
}

// TableColumns returns a table's columns in ordinal order, or an empty slice
// when the table does not exist.
func (e *Engine) TableColumns(ctx context.Context, q Querier, catalog, schema, table string) ([]ddl.ColumnDef, error) {
	if q == nil {
		q = e.db
	}
	rows, err := q.QueryContext(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		WHERE table_catalog = ? AND table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`,
		catalog, schema, table)
	if err != nil {
		return nil, fmt.Errorf("list columns of %s.%s.%s: %w", catalog, schema, table, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []ddl.ColumnDef
	for rows.Next() {
		var c ddl.ColumnDef
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// CountRows returns the number of rows in catalog.schema.table.
func (e *Engine) CountRows(ctx context.Context, catalog, schema, table string) (int64, error) {
	stmt, err := ddl.CountRows(catalog, schema, table)
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var n int64
	if err := e.db.QueryRowContext(ctx, stmt).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s.%s.%s: %w", catalog, schema, table, err)
	}
	return n, nil
}

// DescribeFiles infers the columns of a batch of files.
func (e *Engine) DescribeFiles(ctx context.Context, q Querier, files []string, format string) ([]ddl.ColumnDef, error) {
	if q == nil {
		q = e.db
	}
	stmt, err := ddl.DescribeFiles(files, format)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("describe files: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var cols []ddl.ColumnDef
	for rows.Next() {
		// DESCRIBE yields column_name, column_type, null, key, default, extra.
		vals := make([]sql.NullString, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		cols = append(cols, ddl.ColumnDef{Name: vals[0].String, Type: vals[1].String})
	}
	return cols, rows.Err()
}

// FileRowCounts returns the number of rows each file of a batch holds. Files
// without rows, such as an empty JSON array, are absent from the map.
func (e *Engine) FileRowCounts(ctx context.Context, q Querier, files []string, format string) (map[string]int64, error) {
	if q == nil {
		q = e.db
	}
	stmt, err := ddl.CountFileRows(files, format)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("count file rows: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int64, len(files))
	for rows.Next() {
		var (
			name string
			n    int64
		)
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

// Querier is satisfied by *sql.DB, *sql.Conn, and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Conn pins a single connection so a batch can run inside one transaction.
func (e *Engine) Conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire duckdb connection: %w", err)
	}
	return conn, nil
}
