package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"tfl-lake/internal/domain"
)

// Compile-time check.
var _ ObjectStore = (*S3Store)(nil)

// S3Store serves s3:// URLs from AWS or any S3-compatible endpoint.
type S3Store struct {
	client *s3.Client
}

// NewS3Store creates a store from an S3 credential.
func NewS3Store(cred *domain.StorageCredential) (*S3Store, error) {
	if cred == nil || cred.CredentialType != domain.CredentialTypeS3 {
		return nil, fmt.Errorf("an S3 storage credential is required")
	}
	opts := s3.Options{
		Region:      cred.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cred.KeyID, cred.Secret, ""),
	}
	if cred.Endpoint != "" {
		opts.BaseEndpoint = aws.String("https://" + cred.Endpoint)
	}
	if cred.URLStyle == "path" {
		opts.UsePathStyle = true
	}
	return &S3Store{client: s3.New(opts)}, nil
}

// List pages through the objects under prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]Object, error) {
	loc, err := ParseLocation(prefix)
	if err != nil {
		return nil, err
	}

	var objects []Object
	pager := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(loc.Bucket),
		Prefix: aws.String(dirPrefix(loc.Key)),
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, item := range page.Contents {
			obj := Object{URL: Location{Scheme: SchemeS3, Bucket: loc.Bucket, Key: aws.ToString(item.Key)}.String()}
			obj.Size = aws.ToInt64(item.Size)
			obj.ModTime = aws.ToTime(item.LastModified)
			objects = append(objects, obj)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].URL < objects[j].URL })
	return objects, nil
}

// Read downloads an object.
func (s *S3Store) Read(ctx context.Context, rawURL string) ([]byte, error) {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, domain.ErrNotFound("object %q not found", rawURL)
		}
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer out.Body.Close() //nolint:errcheck
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return data, nil
}

// Write uploads an object.
func (s *S3Store) Write(ctx context.Context, rawURL string, data []byte) error {
	loc, err := ParseLocation(rawURL)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", rawURL, err)
	}
	return nil
}
