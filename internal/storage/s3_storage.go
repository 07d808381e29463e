package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3Storage is a StorageEngine backed by an AWS S3 bucket (or any endpoint
// speaking the same API). Uploads use a conditional PUT so an existing key is
// never replaced.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	opts      ObjectStoreOptions
}

var _ StorageEngine = (*S3Storage)(nil)

// NewS3Storage builds a client from opts. Credentials fall back to the
// default AWS chain when no static keys are given.
func NewS3Storage(ctx context.Context, opts ObjectStoreOptions) (*S3Storage, error) {
	opts.applyDefaults()

	if opts.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", ErrStorageUnavailable)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
	}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		opts:      opts,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.opts.Bucket)})
	if err == nil {
		return nil
	}
	if !errors.Is(s3Error(err), ErrNotFound) {
		return fmt.Errorf("failed to check bucket existence: %w", s3Error(err))
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.opts.Bucket)}
	if s.opts.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.opts.Region),
		}
	}

	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", s.opts.Bucket, s3Error(err))
	}
	return nil
}

// s3Error maps AWS API error codes onto the gateway error kinds.
func s3Error(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return ErrNotFound
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: %w", errPublishConflict, err)
		case "NoSuchBucket", "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "Forbidden":
			return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
	}

	if isNetworkError(err) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return err
}

func (s *S3Storage) reference(ctx context.Context, key string) (string, error) {
	if ref := s.opts.publicURL(key); ref != "" {
		return ref, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(s.opts.Bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(attachmentDisposition(key)),
	}, s3.WithPresignExpires(s.opts.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign %q: %w", key, err)
	}
	return req.URL, nil
}

func (s *S3Storage) List(ctx context.Context) ([]FileRecord, error) {
	records := make([]FileRecord, 0, 64)

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.opts.Bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list objects in bucket %q: %w", s.opts.Bucket, s3Error(err))
		}

		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.Contains(key, "/") {
				continue
			}

			ref, err := s.reference(ctx, key)
			if err != nil {
				return nil, err
			}

			records = append(records, FileRecord{
				Name:            key,
				Size:            aws.ToInt64(obj.Size),
				UploadDate:      aws.ToTime(obj.LastModified).UTC(),
				AccessReference: ref,
			})
		}
	}

	return records, nil
}

func (s *S3Storage) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s3Error(err)
	}
	return out, nil
}

func (s *S3Storage) Put(ctx context.Context, key string, content io.Reader, size int64) (FileRecord, error) {
	if _, err := s.head(ctx, key); err == nil {
		return FileRecord{}, ErrKeyExists
	} else if !errors.Is(err, ErrNotFound) {
		return FileRecord{}, err
	}

	body, size, cleanup, err := spoolBody(ctx, content, size)
	if err != nil {
		return FileRecord{}, err
	}
	defer cleanup()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(ContentTypeFor(key)),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to upload object %q to bucket %q: %w", key, s.opts.Bucket, s3Error(err))
	}

	ref, err := s.reference(ctx, key)
	if err != nil {
		return FileRecord{}, err
	}

	return FileRecord{
		Name:            key,
		Size:            size,
		UploadDate:      time.Now().UTC(),
		AccessReference: ref,
	}, nil
}

func (s *S3Storage) Open(ctx context.Context, key string) (DownloadTarget, error) {
	out, err := s.head(ctx, key)
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
			Size:            aws.ToInt64(out.ContentLength),
			UploadDate:      aws.ToTime(out.LastModified).UTC(),
			AccessReference: ref,
		},
		AccessReference: ref,
	}, nil
}

// Delete removes key, reporting ErrNotFound for keys that do not exist.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.head(ctx, key); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to remove object %q: %w", key, s3Error(err))
	}
	return nil
}
