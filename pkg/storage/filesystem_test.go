package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemBackend_PutGetDelete(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	info, err := backend.Put(ctx, "products/p1/photo.jpg", strings.NewReader("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, int64(10), info.Size)
	assert.NotEmpty(t, info.Checksum)

	reader, got, err := backend.Get(ctx, "products/p1/photo.jpg")
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.Equal(t, int64(10), got.Size)

	require.NoError(t, backend.Delete(ctx, "products/p1/photo.jpg"))

	_, _, err = backend.Get(ctx, "products/p1/photo.jpg")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFilesystemBackend_DeleteMissingIsNoop(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, backend.Delete(context.Background(), "never/existed.png"))
}

func TestFilesystemBackend_RejectsTraversal(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	_, err = backend.Put(context.Background(), "../escape.txt", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)
}

func TestFilesystemBackend_SignedURL(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	url, err := backend.SignedURL(context.Background(), "products/p1/photo.jpg", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "/v1/media/content/products/p1/photo.jpg", url)
}

func TestFilesystemBackend_HealthCheck(t *testing.T) {
	backend, err := NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, backend.HealthCheck(context.Background()))
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	cfg.Type = "s3"
	assert.Error(t, cfg.Validate()) // missing bucket

	cfg.S3Bucket = "media"
	assert.NoError(t, cfg.Validate())

	cfg.Type = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}
