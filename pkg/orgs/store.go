package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/tree"
)

var (
	// ErrNotFound indicates the tenant, site, or department does not exist
	ErrNotFound = errors.New("not found")

	// ErrSlugTaken indicates a tenant slug collision
	ErrSlugTaken = errors.New("slug already in use")

	// ErrDepartmentInUse indicates a department still has children or sites
	ErrDepartmentInUse = errors.New("department has children or attached sites")
)

// Store persists tenants, sites, and departments
type Store struct {
	db *sql.DB
}

// NewStore creates an orgs store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateTenant inserts a tenant
func (s *Store) CreateTenant(ctx context.Context, t *identity.Tenant) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tenants (name, slug)
		VALUES ($1, $2)
		RETURNING id, is_active, created_at, updated_at`,
		t.Name, t.Slug,
	).Scan(&t.ID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetTenant retrieves a tenant by id
func (s *Store) GetTenant(ctx context.Context, id string) (*identity.Tenant, error) {
	var t identity.Tenant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, slug, is_active, created_at, updated_at
		FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	return &t, nil
}

// ListTenants returns all tenants
func (s *Store) ListTenants(ctx context.Context) ([]identity.Tenant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, slug, is_active, created_at, updated_at
		FROM tenants ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []identity.Tenant
	for rows.Next() {
		var t identity.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// DeactivateTenant soft-disables a tenant
func (s *Store) DeactivateTenant(ctx context.Context, id string) error {
	return s.setActive(ctx, "tenants", "", id, false)
}

// CreateSite inserts a site for a tenant
func (s *Store) CreateSite(ctx context.Context, site *identity.Site) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sites (tenant_id, name, site_type, factory_id, exporter_id, dept_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_active, created_at, updated_at`,
		site.TenantID, site.Name, site.Type, site.FactoryID, site.ExporterID, site.DeptID,
	).Scan(&site.ID, &site.IsActive, &site.CreatedAt, &site.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create site: %w", err)
	}
	return nil
}

// GetSite retrieves a site by id
func (s *Store) GetSite(ctx context.Context, id string) (*identity.Site, error) {
	var site identity.Site
	var factoryID, exporterID, deptID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, site_type, factory_id, exporter_id, dept_id,
		       is_active, created_at, updated_at
		FROM sites WHERE id = $1`, id,
	).Scan(
		&site.ID, &site.TenantID, &site.Name, &site.Type,
		&factoryID, &exporterID, &deptID,
		&site.IsActive, &site.CreatedAt, &site.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get site: %w", err)
	}
	if factoryID.Valid {
		site.FactoryID = &factoryID.String
	}
	if exporterID.Valid {
		site.ExporterID = &exporterID.String
	}
	if deptID.Valid {
		site.DeptID = &deptID.String
	}
	return &site, nil
}

// ListSites returns a tenant's sites
func (s *Store) ListSites(ctx context.Context, tenantID string) ([]identity.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, site_type, factory_id, exporter_id, dept_id,
		       is_active, created_at, updated_at
		FROM sites WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}
	defer rows.Close()

	var sites []identity.Site
	for rows.Next() {
		var site identity.Site
		var factoryID, exporterID, deptID sql.NullString
		err := rows.Scan(
			&site.ID, &site.TenantID, &site.Name, &site.Type,
			&factoryID, &exporterID, &deptID,
			&site.IsActive, &site.CreatedAt, &site.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		if factoryID.Valid {
			site.FactoryID = &factoryID.String
		}
		if exporterID.Valid {
			site.ExporterID = &exporterID.String
		}
		if deptID.Valid {
			site.DeptID = &deptID.String
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// DeactivateSite soft-disables a site; existing grants on it stop resolving.
// A non-empty tenantID restricts the write to that tenant's rows; a site in
// another tenant reads as ErrNotFound.
func (s *Store) DeactivateSite(ctx context.Context, tenantID, id string) error {
	return s.setActive(ctx, "sites", tenantID, id, false)
}

func (s *Store) setActive(ctx context.Context, table, tenantID, id string, active bool) error {
	query := fmt.Sprintf("UPDATE %s SET is_active = $1, updated_at = NOW() WHERE id = $2", table)
	args := []interface{}{active, id}
	if tenantID != "" {
		query += " AND tenant_id = $3"
		args = append(args, tenantID)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateDepartment inserts a department under a tenant
func (s *Store) CreateDepartment(ctx context.Context, d *identity.Department) error {
	if d.ParentID != nil {
		parents, err := s.departmentParents(ctx, d.TenantID)
		if err != nil {
			return err
		}
		if _, ok := parents[*d.ParentID]; !ok {
			return ErrNotFound
		}
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO departments (tenant_id, parent_id, name, category, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		d.TenantID, d.ParentID, d.Name, d.Category, d.SortOrder,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create department: %w", err)
	}
	return nil
}

// GetDepartment retrieves a department by id. A non-empty tenantID masks
// departments of other tenants as ErrNotFound.
func (s *Store) GetDepartment(ctx context.Context, tenantID, id string) (*identity.Department, error) {
	query := `
		SELECT id, tenant_id, parent_id, name, category, sort_order, created_at, updated_at
		FROM departments WHERE id = $1`
	args := []interface{}{id}
	if tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var d identity.Department
	var parentID sql.NullString
	err := s.db.QueryRowContext(ctx, query, args...,
	).Scan(&d.ID, &d.TenantID, &parentID, &d.Name, &d.Category, &d.SortOrder, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	if parentID.Valid {
		d.ParentID = &parentID.String
	}
	return &d, nil
}

// ListDepartments returns a tenant's departments ordered for display
func (s *Store) ListDepartments(ctx context.Context, tenantID string) ([]identity.Department, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, parent_id, name, category, sort_order, created_at, updated_at
		FROM departments
		WHERE tenant_id = $1
		ORDER BY sort_order ASC, name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}
	defer rows.Close()

	var depts []identity.Department
	for rows.Next() {
		var d identity.Department
		var parentID sql.NullString
		err := rows.Scan(&d.ID, &d.TenantID, &parentID, &d.Name, &d.Category, &d.SortOrder, &d.CreatedAt, &d.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan department: %w", err)
		}
		if parentID.Valid {
			d.ParentID = &parentID.String
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

// DepartmentTree returns a tenant's departments assembled into trees
func (s *Store) DepartmentTree(ctx context.Context, tenantID string) ([]*tree.Node[identity.Department], error) {
	depts, err := s.ListDepartments(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return tree.Build(depts,
		func(d identity.Department) string { return d.ID },
		func(d identity.Department) *string { return d.ParentID },
	), nil
}

// MoveDepartment reparents a department after cycle validation. A non-empty
// tenantID confines both the lookup and the write to that tenant.
func (s *Store) MoveDepartment(ctx context.Context, tenantID, id string, newParentID *string) error {
	dept, err := s.GetDepartment(ctx, tenantID, id)
	if err != nil {
		return err
	}

	parents, err := s.departmentParents(ctx, dept.TenantID)
	if err != nil {
		return err
	}
	parentOf := func(deptID string) (*string, bool) {
		p, ok := parents[deptID]
		return p, ok
	}
	if err := tree.ValidateMove(id, newParentID, parentOf); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE departments SET parent_id = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3",
		newParentID, id, dept.TenantID,
	)
	if err != nil {
		return fmt.Errorf("failed to move department: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReorderDepartments rewrites sibling sort order in one transaction. Either
// every row gets its new position or none do.
func (s *Store) ReorderDepartments(ctx context.Context, tenantID string, orderedIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for i, id := range orderedIDs {
		result, err := tx.ExecContext(ctx,
			"UPDATE departments SET sort_order = $1, updated_at = NOW() WHERE id = $2 AND tenant_id = $3",
			i, id, tenantID,
		)
		if err != nil {
			return fmt.Errorf("failed to reorder department %s: %w", id, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: department %s", ErrNotFound, id)
		}
	}
	return tx.Commit()
}

// DeleteDepartment removes a department with no children and no sites. A
// non-empty tenantID masks departments of other tenants as ErrNotFound
// before any usage check runs.
func (s *Store) DeleteDepartment(ctx context.Context, tenantID, id string) error {
	if _, err := s.GetDepartment(ctx, tenantID, id); err != nil {
		return err
	}

	var children, sites int
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM departments WHERE parent_id = $1),
			(SELECT COUNT(*) FROM sites WHERE factory_id = $2 OR exporter_id = $3 OR dept_id = $4)`,
		id, id, id, id,
	).Scan(&children, &sites)
	if err != nil {
		return fmt.Errorf("failed to check department usage: %w", err)
	}
	if children > 0 || sites > 0 {
		return ErrDepartmentInUse
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM departments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) departmentParents(ctx context.Context, tenantID string) (map[string]*string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, parent_id FROM departments WHERE tenant_id = $1", tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load department graph: %w", err)
	}
	defer rows.Close()

	parents := make(map[string]*string)
	for rows.Next() {
		var id string
		var parent sql.NullString
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan department graph: %w", err)
		}
		if parent.Valid {
			parents[id] = &parent.String
		} else {
			parents[id] = nil
		}
	}
	return parents, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
