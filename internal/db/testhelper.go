package db

import (
	"context"
	"path/filepath"
	"testing"
)

// OpenTestMetastore opens a migrated metastore in t.TempDir() and closes it
// when the test ends. Repositories under test write through m.Write.
func OpenTestMetastore(t *testing.T) *Metastore {
	t.Helper()
	m, err := OpenMetastore(context.Background(), filepath.Join(t.TempDir(), "tfl_meta.sqlite"))
	if err != nil {
		t.Fatalf("open test metastore: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })
	return m
}
