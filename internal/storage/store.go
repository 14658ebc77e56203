package storage

import (
	"context"
	"time"
)

// Object is one stored file.
type Object struct {
	URL     string // in the same URL form as the listed prefix
	Size    int64
	ModTime time.Time
}

// ObjectStore is the minimal object API the checkpoint and discovery code
// needs. Paths are storage URLs; Read of a missing object returns a
// *domain.NotFoundError.
type ObjectStore interface {
	// List returns every object beneath prefix, recursively, sorted by URL.
	// A missing prefix yields an empty list.
	List(ctx context.Context, prefix string) ([]Object, error)
	Read(ctx context.Context, url string) ([]byte, error)
	Write(ctx context.Context, url string, data []byte) error
}
