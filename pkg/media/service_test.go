package media

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/storage"
)

func uploaderIdentity() *identity.Identity {
	return &identity.Identity{
		Class: identity.RoleClassFactorySales,
		Scope: identity.ScopeIDs{
			UserID:    "u1",
			TenantID:  "t1",
			SiteID:    "s1",
			FactoryID: "f1",
		},
	}
}

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	root := t.TempDir()
	backend, err := storage.NewFilesystemBackend(root)
	require.NoError(t, err)

	return NewService(NewStore(db), backend, 15*time.Minute), mock, root
}

func TestService_Upload(t *testing.T) {
	svc, mock, root := newTestService(t)

	mock.ExpectQuery("INSERT INTO media_assets").
		WithArgs(false, sqlmock.AnyArg(), "datasheet.pdf", "application/pdf",
			int64(9), sqlmock.AnyArg(),
			"f1", "u1", "s1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("m1", time.Now(), time.Now()))

	asset, err := svc.Upload(context.Background(), uploaderIdentity(),
		"datasheet.pdf", "application/pdf", strings.NewReader("PDF bytes"), false)
	require.NoError(t, err)

	assert.Equal(t, "m1", asset.ID)
	assert.Equal(t, "t1", asset.TenantID)
	assert.Equal(t, "u1", asset.OwnerID)
	assert.True(t, strings.HasPrefix(asset.StorageKey, "t1/s1/"))
	assert.True(t, strings.HasSuffix(asset.StorageKey, ".pdf"))

	// The blob landed under the tenant/site prefix
	_, err = os.Stat(filepath.Join(root, filepath.FromSlash(asset.StorageKey)))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Upload_CleansUpBlobOnMetadataFailure(t *testing.T) {
	svc, mock, root := newTestService(t)

	mock.ExpectQuery("INSERT INTO media_assets").
		WillReturnError(io.ErrUnexpectedEOF)

	_, err := svc.Upload(context.Background(), uploaderIdentity(),
		"photo.jpg", "image/jpeg", strings.NewReader("jpeg bytes"), true)
	require.Error(t, err)

	// No orphaned blob remains
	entries, err := os.ReadDir(filepath.Join(root, "t1", "s1"))
	if err == nil {
		assert.Empty(t, entries)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Delete_RemovesRowAndBlob(t *testing.T) {
	svc, mock, root := newTestService(t)
	ctx := context.Background()

	backend, err := storage.NewFilesystemBackend(root)
	require.NoError(t, err)
	_, err = backend.Put(ctx, "t1/s1/blob.jpg", strings.NewReader("jpeg bytes"), "image/jpeg")
	require.NoError(t, err)

	mock.ExpectQuery("DELETE FROM media_assets WHERE id = .1").
		WithArgs("m1", "f1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("t1/s1/blob.jpg"))

	require.NoError(t, svc.Delete(ctx, uploaderIdentity(), "m1"))

	_, err = os.Stat(filepath.Join(root, "t1", "s1", "blob.jpg"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_Delete_OutOfScopeIsNotFound(t *testing.T) {
	svc, mock, _ := newTestService(t)

	mock.ExpectQuery("DELETE FROM media_assets WHERE id = .1").
		WithArgs("m-other", "f1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}))

	err := svc.Delete(context.Background(), uploaderIdentity(), "m-other")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
