package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ ObjectStore = (*GCSStore)(nil)

// GCSStore serves gs:// URLs.
type GCSStore struct {
	client *storage.Client
}

// NewGCSStore creates a store. With a key file the client authenticates as
// that service account; otherwise application default credentials are used.
func NewGCSStore(ctx context.Context, cred *domain.StorageCredential) (*GCSStore, error) {
	var opts []option.ClientOption
	if cred != nil && cred.GCSKeyFilePath != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cred.GCSKeyFilePath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// List iterates the objects under prefix.
func (s *GCSStore) List(ctx context.Context, prefix string) ([]Object, error) {
	loc, err := ParseLocation(prefix)
	if err != nil {
		return nil, err
	}

	var objects []Object
	it := s.client.Bucket(loc.Bucket).Objects(ctx, &storage.Query{Prefix: dirPrefix(loc.Key)})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			if errors.Is(err, storage.ErrBucketNotExist) {
				return nil, nil
			}
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		objects = append(objects, Object{
			URL:     Location{Scheme: SchemeGS, Bucket: loc.Bucket, Key: attrs.Name}.String(),
			Size:    attrs.Size,
			ModTime: attrs.Updated,
		})
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].URL < objects[j].URL })
	return objects, nil
}

// Read downloads an object.
func (s *GCSStore) Read(ctx context.Context, rawURL string) ([]byte, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	r, err := s.client.Bucket(loc.Bucket).Object(loc.Key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, domain.ErrNotFound("object %q not found", rawURL)
		}
		return nil, fmt.Errorf("open %s: %w", rawURL, err)
	}
	defer r.Close() //nolint:errcheck
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, nil
}

// Write uploads an object.
func (s *GCSStore) Write(ctx context.Context, rawURL string, data []byte) error {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return err
	}
	w := s.client.Bucket(loc.Bucket).Object(loc.Key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write %s: %w", rawURL, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write %s: %w", rawURL, err)
	}
	return nil
}
