package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrObjectNotFound indicates the requested object does not exist
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Key         string
	Size        int64
	ContentType string
	Checksum    string
}

// Backend is the blob storage interface media handlers depend on
type Backend interface {
	// Put stores an object and returns its metadata
	Put(ctx context.Context, key string, content io.Reader, contentType string) (*ObjectInfo, error)

	// Get opens an object for reading
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Delete removes an object; deleting a missing object is not an error
	Delete(ctx context.Context, key string) error

	// SignedURL returns a time-limited URL for direct client download
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// HealthCheck verifies the backend is reachable
	HealthCheck(ctx context.Context) error
}

// Config holds blob storage configuration
type Config struct {
	Type string `yaml:"type"` // "filesystem" or "s3"

	FilesystemRoot string `yaml:"filesystem_root"`

	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Region       string `yaml:"s3_region"`
	S3Bucket       string `yaml:"s3_bucket"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`

	SignedURLTTL time.Duration `yaml:"signed_url_ttl"`
}

// DefaultConfig returns development defaults
func DefaultConfig() Config {
	return Config{
		Type:           "filesystem",
		FilesystemRoot: "/tmp/tradegate/media",
		S3Region:       "us-east-1",
		SignedURLTTL:   15 * time.Minute,
	}
}

// Validate checks the configuration for the selected backend type
func (c Config) Validate() error {
	switch c.Type {
	case "filesystem":
		if c.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 storage")
		}
		if c.S3Region == "" {
			return fmt.Errorf("S3 region is required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Type)
	}
	if c.SignedURLTTL <= 0 {
		return fmt.Errorf("signed URL TTL must be positive")
	}
	return nil
}

// NewBackend creates the backend selected by the configuration
func NewBackend(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Type {
	case "filesystem":
		return NewFilesystemBackend(cfg.FilesystemRoot)
	case "s3":
		return NewS3Backend(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
