// Package engine wraps the embedded DuckDB instance that hosts the lake
// catalog and executes every ingestion batch.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver

	"tfl-lake/internal/ddl"
)

// Catalog backends.
const (
	BackendDuckLake = "ducklake"
	BackendDuckDB   = "duckdb"
)

// Options configures Open.
type Options struct {
	// Backend is BackendDuckLake (default) or BackendDuckDB.
	Backend string
	// MetadataDir holds the catalog metadata files (<catalog>.ducklake or <catalog>.duckdb).
	MetadataDir string
	// Cloud loads the remote filesystem extensions (azure, httpfs).
	Cloud bool
}

// Engine is a process-wide DuckDB instance. Connections in its pool share
// attached catalogs and secrets; statements always use fully qualified names.
type Engine struct {
	db     *sql.DB
	opts   Options
	logger *slog.Logger
}

// Open starts an in-memory DuckDB instance and installs the extensions the
// backend needs.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Engine, error) {
	if opts.Backend == "" {
		opts.Backend = BackendDuckLake
	}
	if opts.Backend != BackendDuckLake && opts.Backend != BackendDuckDB {
		return nil, fmt.Errorf("unsupported catalog backend %q", opts.Backend)
	}
	if opts.MetadataDir == "" {
		opts.MetadataDir = "."
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	e := &Engine{db: db, opts: opts, logger: logger.With("component", "engine")}
	if err := e.installExtensions(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return e, nil
}

// DB returns the underlying pool.
func (e *Engine) DB() *sql.DB { return e.db }

// Backend returns the catalog backend in use.
func (e *Engine) Backend() string { return e.opts.Backend }

// Close shuts down the DuckDB instance.
func (e *Engine) Close() error { return e.db.Close() }

func (e *Engine) installExtensions(ctx context.Context) error {
	var extensions []string
	if e.opts.Backend == BackendDuckLake {
		extensions = append(extensions, "ducklake", "sqlite")
	}
	if e.opts.Cloud {
		extensions = append(extensions, "httpfs", "azure")
	}
	for _, ext := range extensions {
		stmt := fmt.Sprintf("INSTALL %s; LOAD %s;", ext, ext)
		if _, err := e.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("extension setup (%s): %w", ext, err)
		}
		e.logger.Debug("extension loaded", "extension", ext)
	}
	return nil
}

// AttachCatalog attaches the named catalog. With the DuckLake backend table
// metadata lives in <MetadataDir>/<name>.ducklake (SQLite) and data files
// under dataPath; with the DuckDB backend everything lives in
// <MetadataDir>/<name>.duckdb and dataPath is unused. Attaching twice is a no-op.
func (e *Engine) AttachCatalog(ctx context.Context, name, dataPath string) error {
	if err := os.MkdirAll(e.opts.MetadataDir, 0o750); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}

	var stmt string
	var err error
	switch e.opts.Backend {
	case BackendDuckDB:
		stmt, err = ddl.AttachDuckDB(name, filepath.Join(e.opts.MetadataDir, name+".duckdb"))
	default:
		if !strings.Contains(dataPath, "://") {
			if err := os.MkdirAll(dataPath, 0o750); err != nil {
				return fmt.Errorf("create data path: %w", err)
			}
		}
		stmt, err = ddl.AttachDuckLake(name, filepath.Join(e.opts.MetadataDir, name+".ducklake"), dataPath)
	}
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("attach catalog %q: %w", name, err)
	}
	e.logger.Info("catalog attached", "catalog", name, "backend", e.opts.Backend, "data_path", dataPath)
	return nil
}

// IsCatalogAttached reports whether name is attached to this instance.
func (e *Engine) IsCatalogAttached(ctx context.Context, name string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx,
		"SELECT count(*) FROM duckdb_databases() WHERE database_name = ?", name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("list attached databases: %w", err)
	}
	return n > 0, nil
}
