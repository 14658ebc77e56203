package storage

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ ObjectStore = (*AzureStore)(nil)

// AzureStore serves abfss:// and az:// URLs from one storage account through
// the Blob API.
type AzureStore struct {
	client *azblob.Client
}

// NewAzureStore creates a store for account. With an account key the client
// signs with shared key; without one it sends anonymous requests, which only
// works for public containers or SAS-enabled endpoints.
func NewAzureStore(account string, cred *domain.StorageCredential) (*AzureStore, error) {
	if account == "" {
		return nil, fmt.Errorf("azure storage account is required")
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", account)

	if cred != nil && cred.AzureAccountKey != "" {
		name := cred.AzureAccountName
		if name == "" {
			name = account
		}
		sharedKey, err := azblob.NewSharedKeyCredential(name, cred.AzureAccountKey)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, sharedKey, nil)
		if err != nil {
			return nil, fmt.Errorf("create Azure blob client: %w", err)
		}
		return &AzureStore{client: client}, nil
	}

	client, err := azblob.NewClientWithNoCredential(serviceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &AzureStore{client: client}, nil
}

// List pages through the blobs under prefix.
func (s *AzureStore) List(ctx context.Context, prefix string) ([]Object, error) {
	loc, err := ParseLocation(prefix)
	if err != nil {
		return nil, err
	}
	keyPrefix := dirPrefix(loc.Key)

	var objects []Object
	pager := s.client.NewListBlobsFlatPager(loc.Bucket, &azblob.ListBlobsFlatOptions{Prefix: &keyPrefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			obj := Object{URL: Location{Scheme: loc.Scheme, Host: loc.Host, Bucket: loc.Bucket, Key: *item.Name}.String()}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					obj.Size = *item.Properties.ContentLength
				}
				if item.Properties.LastModified != nil {
					obj.ModTime = *item.Properties.LastModified
				}
			}
			objects = append(objects, obj)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].URL < objects[j].URL })
	return objects, nil
}

// Read downloads a blob.
func (s *AzureStore) Read(ctx context.Context, rawURL string) ([]byte, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.DownloadStream(ctx, loc.Bucket, loc.Key, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, domain.ErrNotFound("object %q not found", rawURL)
		}
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, nil
}

// Write uploads a blob, replacing any existing one.
func (s *AzureStore) Write(ctx context.Context, rawURL string, data []byte) error {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return err
	}
	if _, err := s.client.UploadBuffer(ctx, loc.Bucket, loc.Key, data, nil); err != nil {
		return fmt.Errorf("upload %s: %w", rawURL, err)
	}
	return nil
}

// dirPrefix turns a key into a listing prefix that only matches children.
func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}
