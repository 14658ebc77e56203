package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ ObjectStore = (*LocalStore)(nil)

// LocalStore serves storage URLs from the local filesystem. Cloud URLs are
// mapped beneath Root with LocalPath; filesystem paths are used as is.
type LocalStore struct {
	Root string
}

// NewLocalStore creates a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

// Path maps a storage URL to its local path.
func (s *LocalStore) Path(rawURL string) (string, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return "", err
	}
	if loc.Scheme != SchemeFile && s.Root == "" {
		return "", fmt.Errorf("no local storage root configured for %q", rawURL)
	}
	return LocalPath(s.Root, loc), nil
}

// List walks the directory behind prefix.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]Object, error) {
	loc, err := ParseLocation(prefix)
	if err != nil {
		return nil, err
	}
	dir, err := s.Path(prefix)
	if err != nil {
		return nil, err
	}

	var objects []Object
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		objects = append(objects, Object{
			URL:     loc.Child(rel).String(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].URL < objects[j].URL })
	return objects, nil
}

// Read returns the object's contents.
func (s *LocalStore) Read(_ context.Context, rawURL string) ([]byte, error) {
	p, err := s.Path(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // path derived from lake configuration
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound("object %q not found", rawURL)
		}
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, nil
}

// Write stores data atomically: readers never observe a partial object.
func (s *LocalStore) Write(_ context.Context, rawURL string, data []byte) error {
	p, err := s.Path(rawURL)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create parent of %s: %w", rawURL, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-"+filepath.Base(p)+"-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", rawURL, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", rawURL, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", rawURL, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", rawURL, err)
	}
	return nil
}
