package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var s3Tracer = otel.Tracer("tradegate/storage/s3")

// S3Backend stores objects in S3 or an S3-compatible service
type S3Backend struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

// NewS3Backend creates an S3 backend. With static credentials configured it
// uses them directly (MinIO, explicit keys); otherwise the default AWS
// credential chain applies.
func NewS3Backend(cfg Config) (*S3Backend, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey, cfg.S3SecretKey, "",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	return &S3Backend{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.S3Bucket,
	}, nil
}

// Put uploads an object
func (b *S3Backend) Put(ctx context.Context, key string, content io.Reader, contentType string) (*ObjectInfo, error) {
	ctx, span := s3Tracer.Start(ctx, "S3.PutObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", b.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	data, err := io.ReadAll(content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read content")
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	span.SetAttributes(attribute.Int("content.size", len(data)))

	hash := sha256.Sum256(data)
	checksum := hex.EncodeToString(hash[:])

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{"checksum": checksum},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}

	return &ObjectInfo{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		Checksum:    checksum,
	}, nil
}

// Get downloads an object
func (b *S3Backend) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	ctx, span := s3Tracer.Start(ctx, "S3.GetObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", b.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, nil, ErrObjectNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
		return nil, nil, fmt.Errorf("failed to get object: %w", err)
	}

	info := &ObjectInfo{Key: key}
	if out.ContentLength != nil {
		info.Size = *out.ContentLength
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	if checksum, ok := out.Metadata["checksum"]; ok {
		info.Checksum = checksum
	}
	return out.Body, info, nil
}

// Delete removes an object. S3 deletes are idempotent already.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	ctx, span := s3Tracer.Start(ctx, "S3.DeleteObject",
		trace.WithAttributes(
			attribute.String("s3.bucket", b.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// SignedURL presigns a GET for direct client download
func (b *S3Backend) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := b.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign URL: %w", err)
	}
	return req.URL, nil
}

// HealthCheck verifies the bucket is reachable
func (b *S3Backend) HealthCheck(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucket),
	})
	if err != nil {
		return fmt.Errorf("bucket not reachable: %w", err)
	}
	return nil
}
