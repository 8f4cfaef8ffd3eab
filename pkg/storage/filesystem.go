package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FilesystemBackend stores objects as files under a root directory. Keys
// map to relative paths; path traversal outside the root is rejected.
type FilesystemBackend struct {
	root string
}

// NewFilesystemBackend creates a filesystem backend rooted at dir
func NewFilesystemBackend(root string) (*FilesystemBackend, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &FilesystemBackend{root: abs}, nil
}

func (f *FilesystemBackend) path(key string) (string, error) {
	clean := filepath.Join(f.root, filepath.FromSlash(key))
	if !strings.HasPrefix(clean, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid object key: %s", key)
	}
	return clean, nil
}

// Put stores an object, creating parent directories as needed
func (f *FilesystemBackend) Put(ctx context.Context, key string, content io.Reader, contentType string) (*ObjectInfo, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create object file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(file, hasher), content)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	return &ObjectInfo{
		Key:         key,
		Size:        size,
		ContentType: contentType,
		Checksum:    hex.EncodeToString(hasher.Sum(nil)),
	}, nil
}

// Get opens an object for reading
func (f *FilesystemBackend) Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error) {
	path, err := f.path(key)
	if err != nil {
		return nil, nil, err
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open object: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return file, &ObjectInfo{
		Key:         key,
		Size:        stat.Size(),
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
	}, nil
}

// Delete removes an object; a missing object is not an error
func (f *FilesystemBackend) Delete(ctx context.Context, key string) error {
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// SignedURL returns a relative serving path. The filesystem backend has no
// presigning; the API serves the bytes itself from this path.
func (f *FilesystemBackend) SignedURL(ctx context.Context, key string, _ time.Duration) (string, error) {
	if _, err := f.path(key); err != nil {
		return "", err
	}
	return "/v1/media/content/" + key, nil
}

// HealthCheck verifies the root directory is writable
func (f *FilesystemBackend) HealthCheck(ctx context.Context) error {
	probe := filepath.Join(f.root, ".healthcheck")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage root not writable: %w", err)
	}
	return os.Remove(probe)
}
