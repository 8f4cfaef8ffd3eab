package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/observability"
	"github.com/tradegate/tradegate/pkg/storage"
)

// MaxUploadBytes bounds a single upload
const MaxUploadBytes = 32 << 20

// Service coordinates blob storage and asset metadata
type Service struct {
	store        *Store
	backend      storage.Backend
	signedURLTTL time.Duration
}

// NewService creates a media service
func NewService(store *Store, backend storage.Backend, signedURLTTL time.Duration) *Service {
	return &Service{store: store, backend: backend, signedURLTTL: signedURLTTL}
}

// Upload stores the blob and records its metadata. The storage key is
// random; the extension is kept so filesystem backends can infer content
// types on read.
func (s *Service) Upload(ctx context.Context, ident *identity.Identity, fileName, contentType string, content io.Reader, isPublic bool) (*Asset, error) {
	key := objectKey(ident, fileName)

	info, err := s.backend.Put(ctx, key, io.LimitReader(content, MaxUploadBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store blob: %w", err)
	}

	asset := &Asset{
		IsPublic:    isPublic,
		StorageKey:  key,
		FileName:    fileName,
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		Checksum:    info.Checksum,
	}
	if err := s.store.Create(ctx, ident, asset); err != nil {
		// Orphaned blobs are harmless but untracked; clean up eagerly
		if delErr := s.backend.Delete(ctx, key); delErr != nil {
			observability.FromContext(ctx).Warnf("failed to clean up blob %s after metadata failure: %v", key, delErr)
		}
		return nil, err
	}
	return asset, nil
}

// GetAsset returns an asset's metadata
func (s *Service) GetAsset(ctx context.Context, ident *identity.Identity, id string) (*Asset, error) {
	return s.store.Get(ctx, ident, id)
}

// List returns assets within the identity's scope
func (s *Service) List(ctx context.Context, ident *identity.Identity, limit, offset int) ([]Asset, error) {
	return s.store.List(ctx, ident, limit, offset)
}

// Open returns the asset's metadata and a reader over its content
func (s *Service) Open(ctx context.Context, ident *identity.Identity, id string) (*Asset, io.ReadCloser, error) {
	asset, err := s.store.Get(ctx, ident, id)
	if err != nil {
		return nil, nil, err
	}

	reader, _, err := s.backend.Get(ctx, asset.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return asset, reader, nil
}

// SignedURL returns a time-limited download URL for an asset the identity
// can see
func (s *Service) SignedURL(ctx context.Context, ident *identity.Identity, id string) (string, error) {
	asset, err := s.store.Get(ctx, ident, id)
	if err != nil {
		return "", err
	}
	return s.backend.SignedURL(ctx, asset.StorageKey, s.signedURLTTL)
}

// Delete removes the asset row and then its blob. A blob deletion failure
// is logged, not returned; the row is already gone and the key is orphaned
// either way.
func (s *Service) Delete(ctx context.Context, ident *identity.Identity, id string) error {
	key, err := s.store.Delete(ctx, ident, id)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		observability.FromContext(ctx).Warnf("failed to delete blob %s: %v", key, err)
	}
	return nil
}

func objectKey(ident *identity.Identity, fileName string) string {
	return fmt.Sprintf("%s/%s/%s%s",
		ident.Scope.TenantID, ident.Scope.SiteID, uuid.NewString(), path.Ext(fileName))
}
