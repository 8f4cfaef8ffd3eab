package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/scope"
	"github.com/tradegate/tradegate/pkg/tree"
)

// CreateMasterCategory inserts a tenant-wide category template
func (s *Store) CreateMasterCategory(ctx context.Context, ident *identity.Identity, c *MasterCategory) error {
	stamp, err := scope.StampValues(ident, scope.TableMasterCategories)
	if err != nil {
		return err
	}

	cols := []string{"parent_id", "name", "slug", "sort_order"}
	vals := []interface{}{c.ParentID, c.Name, c.Slug, c.SortOrder}
	cols, vals = appendStamp(cols, vals, stamp)

	query := fmt.Sprintf(
		"INSERT INTO master_categories (%s) VALUES (%s) RETURNING id, created_at, updated_at",
		strings.Join(cols, ", "), placeholders(len(vals)),
	)
	err = s.primary.QueryRowContext(ctx, query, vals...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create master category: %w", err)
	}
	if v, ok := stamp[scope.ColTenantID]; ok {
		c.TenantID = v.(string)
	}
	return nil
}

// ListMasterCategories returns the tenant's master categories ordered for
// tree assembly
func (s *Store) ListMasterCategories(ctx context.Context, ident *identity.Identity) ([]MasterCategory, error) {
	filter, err := scope.ForIdentity(ident, scope.TableMasterCategories)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, parent_id, name, slug, sort_order, created_at, updated_at
		FROM master_categories`
	var args []interface{}
	if where, filterArgs := filter.SQL(0); where != "" {
		query += " WHERE " + where
		args = filterArgs
	}
	query += " ORDER BY sort_order ASC, name ASC"

	rows, err := s.replica.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list master categories: %w", err)
	}
	defer rows.Close()

	var categories []MasterCategory
	for rows.Next() {
		var c MasterCategory
		var parentID sql.NullString
		err := rows.Scan(&c.ID, &c.TenantID, &parentID, &c.Name, &c.Slug, &c.SortOrder, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan master category: %w", err)
		}
		if parentID.Valid {
			c.ParentID = &parentID.String
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// MasterCategoryTree returns the tenant's master categories as trees
func (s *Store) MasterCategoryTree(ctx context.Context, ident *identity.Identity) ([]*tree.Node[MasterCategory], error) {
	categories, err := s.ListMasterCategories(ctx, ident)
	if err != nil {
		return nil, err
	}
	return tree.Build(categories,
		func(c MasterCategory) string { return c.ID },
		func(c MasterCategory) *string { return c.ParentID },
	), nil
}

// UpdateMasterCategory renames or reorders a master category
func (s *Store) UpdateMasterCategory(ctx context.Context, ident *identity.Identity, c *MasterCategory) error {
	filter, err := scope.ForIdentity(ident, scope.TableMasterCategories)
	if err != nil {
		return err
	}

	query := "UPDATE master_categories SET name = $1, slug = $2, sort_order = $3, updated_at = NOW() WHERE id = $4"
	args := []interface{}{c.Name, c.Slug, c.SortOrder, c.ID}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to update master category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveMasterCategory reparents a master category within the identity's
// visible tree. The cycle check runs over exactly the rows the identity can
// see, so a parent outside scope is reported as missing.
func (s *Store) MoveMasterCategory(ctx context.Context, ident *identity.Identity, id string, newParentID *string) error {
	categories, err := s.ListMasterCategories(ctx, ident)
	if err != nil {
		return err
	}

	parents := make(map[string]*string, len(categories))
	found := false
	for _, c := range categories {
		parents[c.ID] = c.ParentID
		if c.ID == id {
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}

	err = tree.ValidateMove(id, newParentID, func(nodeID string) (*string, bool) {
		parent, ok := parents[nodeID]
		return parent, ok
	})
	if err != nil {
		return err
	}

	filter, err := scope.ForIdentity(ident, scope.TableMasterCategories)
	if err != nil {
		return err
	}

	query := "UPDATE master_categories SET parent_id = $1, updated_at = NOW() WHERE id = $2"
	args := []interface{}{newParentID, id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to move master category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMasterCategory removes a master category. Site categories derived
// from it keep their rows; the link is severed by the FK's ON DELETE SET
// NULL.
func (s *Store) DeleteMasterCategory(ctx context.Context, ident *identity.Identity, id string) error {
	filter, err := scope.ForIdentity(ident, scope.TableMasterCategories)
	if err != nil {
		return err
	}

	query := "DELETE FROM master_categories WHERE id = $1"
	args := []interface{}{id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete master category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSiteCategory inserts a category node in the site's own tree
func (s *Store) CreateSiteCategory(ctx context.Context, ident *identity.Identity, c *SiteCategory) error {
	stamp, err := scope.StampValues(ident, scope.TableSiteCategories)
	if err != nil {
		return err
	}

	cols := []string{"master_category_id", "parent_id", "name", "slug", "sort_order", "is_visible"}
	vals := []interface{}{c.MasterCategoryID, c.ParentID, c.Name, c.Slug, c.SortOrder, c.IsVisible}
	cols, vals = appendStamp(cols, vals, stamp)

	query := fmt.Sprintf(
		"INSERT INTO site_categories (%s) VALUES (%s) RETURNING id, created_at, updated_at",
		strings.Join(cols, ", "), placeholders(len(vals)),
	)
	err = s.primary.QueryRowContext(ctx, query, vals...).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create site category: %w", err)
	}
	if v, ok := stamp[scope.ColTenantID]; ok {
		c.TenantID = v.(string)
	}
	if v, ok := stamp[scope.ColSiteID]; ok {
		c.SiteID = v.(string)
	}
	if v, ok := stamp[scope.ColFactoryID]; ok {
		c.FactoryID = v.(string)
	}
	if v, ok := stamp[scope.ColExporterID]; ok {
		c.ExporterID = v.(string)
	}
	return nil
}

// ListSiteCategories returns the site categories visible to the identity,
// ordered for tree assembly
func (s *Store) ListSiteCategories(ctx context.Context, ident *identity.Identity) ([]SiteCategory, error) {
	filter, err := scope.ForIdentity(ident, scope.TableSiteCategories)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, tenant_id, site_id,
		       COALESCE(factory_id::text, ''), COALESCE(exporter_id::text, ''),
		       master_category_id, parent_id, name, slug, sort_order, is_visible,
		       created_at, updated_at
		FROM site_categories`
	var args []interface{}
	if where, filterArgs := filter.SQL(0); where != "" {
		query += " WHERE " + where
		args = filterArgs
	}
	query += " ORDER BY sort_order ASC, name ASC"

	rows, err := s.replica.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list site categories: %w", err)
	}
	defer rows.Close()

	var categories []SiteCategory
	for rows.Next() {
		var c SiteCategory
		var masterID, parentID sql.NullString
		err := rows.Scan(
			&c.ID, &c.TenantID, &c.SiteID, &c.FactoryID, &c.ExporterID,
			&masterID, &parentID, &c.Name, &c.Slug, &c.SortOrder, &c.IsVisible,
			&c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site category: %w", err)
		}
		if masterID.Valid {
			c.MasterCategoryID = &masterID.String
		}
		if parentID.Valid {
			c.ParentID = &parentID.String
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// SiteCategoryTree returns the visible site categories as trees
func (s *Store) SiteCategoryTree(ctx context.Context, ident *identity.Identity) ([]*tree.Node[SiteCategory], error) {
	categories, err := s.ListSiteCategories(ctx, ident)
	if err != nil {
		return nil, err
	}
	return tree.Build(categories,
		func(c SiteCategory) string { return c.ID },
		func(c SiteCategory) *string { return c.ParentID },
	), nil
}

// UpdateSiteCategory renames a site category or toggles its visibility
func (s *Store) UpdateSiteCategory(ctx context.Context, ident *identity.Identity, c *SiteCategory) error {
	filter, err := scope.ForIdentity(ident, scope.TableSiteCategories)
	if err != nil {
		return err
	}

	query := "UPDATE site_categories SET name = $1, slug = $2, is_visible = $3, updated_at = NOW() WHERE id = $4"
	args := []interface{}{c.Name, c.Slug, c.IsVisible, c.ID}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to update site category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MoveSiteCategory reparents a category within the identity's visible tree.
// The cycle check runs over exactly the rows the identity can see, so a
// parent outside scope is reported as missing.
func (s *Store) MoveSiteCategory(ctx context.Context, ident *identity.Identity, id string, newParentID *string) error {
	categories, err := s.ListSiteCategories(ctx, ident)
	if err != nil {
		return err
	}

	parents := make(map[string]*string, len(categories))
	found := false
	for _, c := range categories {
		parents[c.ID] = c.ParentID
		if c.ID == id {
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}

	err = tree.ValidateMove(id, newParentID, func(nodeID string) (*string, bool) {
		parent, ok := parents[nodeID]
		return parent, ok
	})
	if err != nil {
		return err
	}

	filter, err := scope.ForIdentity(ident, scope.TableSiteCategories)
	if err != nil {
		return err
	}

	query := "UPDATE site_categories SET parent_id = $1, updated_at = NOW() WHERE id = $2"
	args := []interface{}{newParentID, id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to move site category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderSiteCategories applies a new sibling ordering in one transaction.
// Positions follow slice order. Any id that is missing or out of scope
// rolls the whole batch back.
func (s *Store) ReorderSiteCategories(ctx context.Context, ident *identity.Identity, ids []string) error {
	filter, err := scope.ForIdentity(ident, scope.TableSiteCategories)
	if err != nil {
		return err
	}

	query := "UPDATE site_categories SET sort_order = $1, updated_at = NOW() WHERE id = $2"
	where, filterArgs := filter.SQL(2)
	if where != "" {
		query += " AND " + where
	}

	tx, err := s.primary.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for position, id := range ids {
		args := append([]interface{}{position, id}, filterArgs...)
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to reorder site category %s: %w", id, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return ErrNotFound
		}
	}
	return tx.Commit()
}

// DeleteSiteCategory removes a site category the identity can see. Children
// are promoted to the deleted node's parent by the FK's ON DELETE SET NULL
// plus tree assembly's orphan promotion.
func (s *Store) DeleteSiteCategory(ctx context.Context, ident *identity.Identity, id string) error {
	filter, err := scope.ForIdentity(ident, scope.TableSiteCategories)
	if err != nil {
		return err
	}

	query := "DELETE FROM site_categories WHERE id = $1"
	args := []interface{}{id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete site category: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
