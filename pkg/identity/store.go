package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// Store provides read access to users, grants, and role permissions backed
// by PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an identity store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	query := `
		SELECT id, email, display_name, is_super_admin, is_active, created_at, updated_at
		FROM users
		WHERE id = $1`

	var u User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, display_name, is_super_admin, is_active, created_at, updated_at
		FROM users
		WHERE email = $1`

	var u User
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.IsSuperAdmin, &u.IsActive,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// ListGrants returns all active-site grants for a user ordered by role
// priority (highest first) with granted_at and site id as deterministic
// tie-breakers. The first row is therefore the default-site grant.
func (s *Store) ListGrants(ctx context.Context, userID string) ([]Grant, error) {
	query := `
		SELECT usr.id, usr.user_id, usr.granted_at,
		       s.id, s.tenant_id, s.name, s.site_type, s.factory_id, s.exporter_id, s.dept_id,
		       s.is_active, s.created_at, s.updated_at,
		       r.id, r.name, r.display_name, r.priority, r.parent_role_id,
		       r.role_type, r.role_class, r.tenant_id, r.created_at, r.updated_at
		FROM user_site_roles usr
		JOIN sites s ON s.id = usr.site_id AND s.is_active = TRUE
		JOIN roles r ON r.id = usr.role_id
		WHERE usr.user_id = $1
		ORDER BY r.priority DESC, usr.granted_at ASC, s.id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, *g)
	}
	return grants, rows.Err()
}

// GetRole retrieves a role by id
func (s *Store) GetRole(ctx context.Context, id string) (*Role, error) {
	query := `
		SELECT id, name, display_name, priority, parent_role_id, role_type, role_class,
		       tenant_id, created_at, updated_at
		FROM roles
		WHERE id = $1`

	var r Role
	var parentID, tenantID sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Name, &r.DisplayName, &r.Priority, &parentID,
		&r.Type, &r.Class, &tenantID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("role not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	if parentID.Valid {
		r.ParentRoleID = &parentID.String
	}
	if tenantID.Valid {
		r.TenantID = &tenantID.String
	}
	return &r, nil
}

// GetRolePermissions returns the permission names attached directly to a
// role, not including inherited ones.
func (s *Store) GetRolePermissions(ctx context.Context, roleID string) ([]string, error) {
	query := `
		SELECT p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = $1
		ORDER BY p.name`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get role permissions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanGrant(rows *sql.Rows) (*Grant, error) {
	var g Grant
	var factoryID, exporterID, deptID, parentRoleID, roleTenantID sql.NullString

	err := rows.Scan(
		&g.ID, &g.UserID, &g.GrantedAt,
		&g.Site.ID, &g.Site.TenantID, &g.Site.Name, &g.Site.Type,
		&factoryID, &exporterID, &deptID,
		&g.Site.IsActive, &g.Site.CreatedAt, &g.Site.UpdatedAt,
		&g.Role.ID, &g.Role.Name, &g.Role.DisplayName, &g.Role.Priority, &parentRoleID,
		&g.Role.Type, &g.Role.Class, &roleTenantID, &g.Role.CreatedAt, &g.Role.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan grant: %w", err)
	}

	if factoryID.Valid {
		g.Site.FactoryID = &factoryID.String
	}
	if exporterID.Valid {
		g.Site.ExporterID = &exporterID.String
	}
	if deptID.Valid {
		g.Site.DeptID = &deptID.String
	}
	if parentRoleID.Valid {
		g.Role.ParentRoleID = &parentRoleID.String
	}
	if roleTenantID.Valid {
		g.Role.TenantID = &roleTenantID.String
	}
	return &g, nil
}
