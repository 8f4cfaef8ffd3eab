// Package media manages uploaded files (product photos, certificates,
// brochures) behind a pluggable blob storage backend.
//
// The database row is the authority on visibility: blob keys are random and
// never guessable, but every read still goes through the scope filter, and
// a row hidden by scope reads as not found.
package media

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/scope"
)

// ErrNotFound covers both absent assets and assets hidden by scope
var ErrNotFound = errors.New("media asset not found")

// Asset is one stored file's metadata
type Asset struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	SiteID      string    `json:"site_id"`
	FactoryID   string    `json:"factory_id,omitempty"`
	ExporterID  string    `json:"exporter_id,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty"`
	IsPublic    bool      `json:"is_public"`
	StorageKey  string    `json:"-"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Checksum    string    `json:"checksum"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store persists media asset metadata
type Store struct {
	db *sql.DB
}

// NewStore creates a media metadata store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const assetColumns = `
	id, tenant_id, site_id,
	COALESCE(factory_id::text, ''), COALESCE(exporter_id::text, ''), COALESCE(owner_id::text, ''),
	is_public, storage_key, file_name, content_type, size_bytes, checksum,
	created_at, updated_at`

// Create inserts an asset row stamped with the identity's scope
func (s *Store) Create(ctx context.Context, ident *identity.Identity, a *Asset) error {
	stamp, err := scope.StampValues(ident, scope.TableMediaAssets)
	if err != nil {
		return err
	}

	cols := []string{"is_public", "storage_key", "file_name", "content_type", "size_bytes", "checksum"}
	vals := []interface{}{a.IsPublic, a.StorageKey, a.FileName, a.ContentType, a.SizeBytes, a.Checksum}

	keys := make([]string, 0, len(stamp))
	for k := range stamp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cols = append(cols, k)
		vals = append(vals, stamp[k])
	}

	params := make([]string, len(vals))
	for i := range params {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO media_assets (%s) VALUES (%s) RETURNING id, created_at, updated_at",
		strings.Join(cols, ", "), strings.Join(params, ", "),
	)
	err = s.db.QueryRowContext(ctx, query, vals...).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create media asset: %w", err)
	}

	if v, ok := stamp[scope.ColTenantID]; ok {
		a.TenantID = v.(string)
	}
	if v, ok := stamp[scope.ColSiteID]; ok {
		a.SiteID = v.(string)
	}
	if v, ok := stamp[scope.ColFactoryID]; ok {
		a.FactoryID = v.(string)
	}
	if v, ok := stamp[scope.ColExporterID]; ok {
		a.ExporterID = v.(string)
	}
	if v, ok := stamp[scope.ColOwnerID]; ok {
		a.OwnerID = v.(string)
	}
	return nil
}

// Get fetches one asset visible to the identity
func (s *Store) Get(ctx context.Context, ident *identity.Identity, id string) (*Asset, error) {
	filter, err := scope.ForIdentity(ident, scope.TableMediaAssets)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + assetColumns + " FROM media_assets WHERE id = $1"
	args := []interface{}{id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	a, err := scanAsset(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media asset: %w", err)
	}
	return a, nil
}

// List returns assets within the identity's scope, newest first
func (s *Store) List(ctx context.Context, ident *identity.Identity, limit, offset int) ([]Asset, error) {
	filter, err := scope.ForIdentity(ident, scope.TableMediaAssets)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + assetColumns + " FROM media_assets"
	var args []interface{}
	if where, filterArgs := filter.SQL(0); where != "" {
		query += " WHERE " + where
		args = filterArgs
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list media assets: %w", err)
	}
	defer rows.Close()

	var assets []Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media asset: %w", err)
		}
		assets = append(assets, *a)
	}
	return assets, rows.Err()
}

// Delete removes an asset row the identity can see and returns its storage
// key so the caller can remove the blob.
func (s *Store) Delete(ctx context.Context, ident *identity.Identity, id string) (string, error) {
	filter, err := scope.ForIdentity(ident, scope.TableMediaAssets)
	if err != nil {
		return "", err
	}

	query := "DELETE FROM media_assets WHERE id = $1"
	args := []interface{}{id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}
	query += " RETURNING storage_key"

	var key string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&key)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete media asset: %w", err)
	}
	return key, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	err := row.Scan(
		&a.ID, &a.TenantID, &a.SiteID,
		&a.FactoryID, &a.ExporterID, &a.OwnerID,
		&a.IsPublic, &a.StorageKey, &a.FileName, &a.ContentType, &a.SizeBytes, &a.Checksum,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
