package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage is a StorageEngine backed by a bucket on any S3-compatible
// server reachable through minio-go. Downloads are redirects to presigned
// (or public) object URLs.
type MinioStorage struct {
	client *minio.Client
	opts   ObjectStoreOptions
}

var _ StorageEngine = (*MinioStorage)(nil)

// NewMinioStorage creates the client. It does not contact the server; call
// EnsureBucket for that.
func NewMinioStorage(opts ObjectStoreOptions) (*MinioStorage, error) {
	opts.applyDefaults()

	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", ErrStorageUnavailable)
	}

	// Setting Region keeps presigning local; otherwise minio-go would look up
	// the bucket location over the network.
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}

	return &MinioStorage{client: client, opts: opts}, nil
}

// EnsureBucket checks if the bucket exists, and creates it if it does not.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.opts.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", minioError(err))
	}

	if !exists {
		if err := s.client.MakeBucket(ctx, s.opts.Bucket, minio.MakeBucketOptions{Region: s.opts.Region}); err != nil {
			return fmt.Errorf("failed to create bucket %q: %w", s.opts.Bucket, minioError(err))
		}
	}
	return nil
}

// minioError maps S3 error codes onto the gateway error kinds.
func minioError(err error) error {
	if err == nil {
		return nil
	}

	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return ErrNotFound
	case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if isNetworkError(err) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return err
}

func (s *MinioStorage) reference(ctx context.Context, key string) (string, error) {
	if ref := s.opts.publicURL(key); ref != "" {
		return ref, nil
	}

	params := url.Values{}
	params.Set("response-content-disposition", attachmentDisposition(key))

	u, err := s.client.PresignedGetObject(ctx, s.opts.Bucket, key, s.opts.PresignExpiry, params)
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return u.String(), nil
}

func (s *MinioStorage) List(ctx context.Context) ([]FileRecord, error) {
	records := make([]FileRecord, 0, 64)

	for obj := range s.client.ListObjects(ctx, s.opts.Bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects in bucket %q: %w", s.opts.Bucket, minioError(obj.Err))
		}

		// Keys with separators were not written by us and cannot be
		// addressed through the gateway.
		if strings.Contains(obj.Key, "/") {
			continue
		}

		ref, err := s.reference(ctx, obj.Key)
		if err != nil {
			return nil, err
		}

		records = append(records, FileRecord{
			Name:            obj.Key,
			Size:            obj.Size,
			UploadDate:      obj.LastModified.UTC(),
			AccessReference: ref,
		})
	}

	return records, nil
}

func (s *MinioStorage) stat(ctx context.Context, key string) (minio.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, s.opts.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, minioError(err)
	}
	return info, nil
}

// Put uploads content with a single S3 PUT, which only becomes visible once
// complete. S3 has no exclusive create in minio-go, so the key is checked
// first; the gateway's keys make a foreign collision very unlikely.
func (s *MinioStorage) Put(ctx context.Context, key string, content io.Reader, size int64) (FileRecord, error) {
	if _, err := s.stat(ctx, key); err == nil {
		return FileRecord{}, ErrKeyExists
	} else if !errors.Is(err, ErrNotFound) {
		return FileRecord{}, err
	}

	body, size, cleanup, err := spoolBody(ctx, content, size)
	if err != nil {
		return FileRecord{}, err
	}
	defer cleanup()

	info, err := s.client.PutObject(ctx, s.opts.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType: ContentTypeFor(key),
	})
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to upload object %q to bucket %q: %w", key, s.opts.Bucket, minioError(err))
	}

	uploaded := info.LastModified
	if uploaded.IsZero() {
		uploaded = time.Now()
	}

	ref, err := s.reference(ctx, key)
	if err != nil {
		return FileRecord{}, err
	}

	return FileRecord{
		Name:            key,
		Size:            size,
		UploadDate:      uploaded.UTC(),
		AccessReference: ref,
	}, nil
}

func (s *MinioStorage) Open(ctx context.Context, key string) (DownloadTarget, error) {
	info, err := s.stat(ctx, key)
	if err != nil {
		return DownloadTarget{}, err
	}

	ref, err := s.reference(ctx, key)
	if err != nil {
		return DownloadTarget{}, err
	}

	return DownloadTarget{
		Record: FileRecord{
			Name:            key,
			Size:            info.Size,
			UploadDate:      info.LastModified.UTC(),
			AccessReference: ref,
		},
		AccessReference: ref,
	}, nil
}

// Delete removes key. S3 deletes are silently idempotent, so existence is
// checked first to report ErrNotFound consistently with other engines.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	if _, err := s.stat(ctx, key); err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.opts.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %q: %w", key, minioError(err))
	}
	return nil
}
