package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"tfl-lake/internal/ddl"
	"tfl-lake/internal/storage"
)

const schemasDir = "_schemas"

// SchemaVersion is one tracked revision of a table's schema.
type SchemaVersion struct {
	Version   int             `json:"version"`
	Columns   []ddl.ColumnDef `json:"columns"`
	Added     []string        `json:"added,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Column returns the named column, matched case-insensitively.
func (v *SchemaVersion) Column(name string) (ddl.ColumnDef, bool) {
	for _, c := range v.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ddl.ColumnDef{}, false
}

// SchemaTracker persists schema versions under <root>/_schemas/<version>.
type SchemaTracker struct {
	store storage.ObjectStore
	dir   storage.Location
}

// NewSchemaTracker opens the tracker rooted at rawURL.
func NewSchemaTracker(store storage.ObjectStore, rawURL string) (*SchemaTracker, error) {
	loc, err := storage.ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	return &SchemaTracker{store: store, dir: loc.Child(schemasDir)}, nil
}

// Latest returns the newest version, or nil when none is tracked yet.
func (t *SchemaTracker) Latest(ctx context.Context) (*SchemaVersion, error) {
	versions, err := t.versions(ctx)
	if err != nil || len(versions) == 0 {
		return nil, err
	}
	url := t.dir.Child(strconv.Itoa(versions[len(versions)-1])).String()
	data, err := t.store.Read(ctx, url)
	if err != nil {
		return nil, err
	}
	var v SchemaVersion
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return &v, nil
}

// Record stores columns as a new version unless they match the latest one.
// It returns the version in effect afterwards.
func (t *SchemaTracker) Record(ctx context.Context, columns []ddl.ColumnDef) (*SchemaVersion, error) {
	latest, err := t.Latest(ctx)
	if err != nil {
		return nil, err
	}
	next := SchemaVersion{Columns: columns, CreatedAt: time.Now().UTC()}
	if latest != nil {
		if sameColumns(latest.Columns, columns) {
			return latest, nil
		}
		next.Version = latest.Version + 1
		for _, c := range columns {
			if _, ok := latest.Column(c.Name); !ok {
				next.Added = append(next.Added, c.Name)
			}
		}
	}

	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("encode schema version: %w", err)
	}
	if err := t.store.Write(ctx, t.dir.Child(strconv.Itoa(next.Version)).String(), data); err != nil {
		return nil, err
	}
	return &next, nil
}

func (t *SchemaTracker) versions(ctx context.Context) ([]int, error) {
	objs, err := t.store.List(ctx, t.dir.String())
	if err != nil {
		return nil, fmt.Errorf("list schema versions: %w", err)
	}
	var out []int
	for _, o := range objs {
		n, err := strconv.Atoi(path.Base(o.URL))
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

func sameColumns(a, b []ddl.ColumnDef) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i].Name, b[i].Name) || !strings.EqualFold(a[i].Type, b[i].Type) {
			return false
		}
	}
	return true
}

// newColumns returns the inferred columns missing from existing, in inferred order.
func newColumns(existing, inferred []ddl.ColumnDef) []ddl.ColumnDef {
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[strings.ToLower(c.Name)] = true
	}
	var out []ddl.ColumnDef
	for _, c := range inferred {
		if !have[strings.ToLower(c.Name)] {
			out = append(out, c)
		}
	}
	return out
}

// changedColumns returns the inferred columns that exist under a different
// type, each carrying the table's type. VARCHAR columns accept any value and
// are never reported.
func changedColumns(existing, inferred []ddl.ColumnDef) []ddl.ColumnDef {
	types := make(map[string]string, len(existing))
	for _, c := range existing {
		types[strings.ToLower(c.Name)] = strings.TrimSpace(c.Type)
	}
	var out []ddl.ColumnDef
	for _, c := range inferred {
		have, ok := types[strings.ToLower(c.Name)]
		if !ok || strings.EqualFold(have, "VARCHAR") || strings.EqualFold(have, strings.TrimSpace(c.Type)) {
			continue
		}
		out = append(out, ddl.ColumnDef{Name: c.Name, Type: have})
	}
	return out
}

func hasColumn(cols []ddl.ColumnDef, name string) bool {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return true
		}
	}
	return false
}
