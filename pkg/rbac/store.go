package rbac

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
	// ErrRoleNotFound indicates the role does not exist
	ErrRoleNotFound = errors.New("role not found")

	// ErrRoleInUse indicates the role still has user grants
	ErrRoleInUse = errors.New("role is still assigned to users")

	// ErrSystemRoleImmutable indicates an attempt to modify a built-in role
	ErrSystemRoleImmutable = errors.New("system roles cannot be modified")

	// ErrGrantNotFound indicates the grant's site or role is missing or
	// outside the caller's tenant
	ErrGrantNotFound = errors.New("site or role not found")
)

// Store manages roles and their permission assignments
type Store struct {
	db *sql.DB
}

// NewStore creates a role store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRole inserts a custom role and attaches its permissions. The parent
// chain is validated so a new role cannot introduce a cycle.
func (s *Store) CreateRole(ctx context.Context, role *identity.Role, permissionNames []string) error {
	role.Type = identity.RoleTypeCustom

	if role.ParentRoleID != nil {
		parents, err := s.loadParentMap(ctx)
		if err != nil {
			return err
		}
		if _, ok := parents[*role.ParentRoleID]; !ok {
			return ErrRoleNotFound
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO roles (name, display_name, priority, parent_role_id, role_type, role_class, tenant_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`,
		role.Name, role.DisplayName, role.Priority, role.ParentRoleID,
		role.Type, role.Class, role.TenantID,
	).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	if err := setPermissionsTx(ctx, tx, role.ID, permissionNames); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateRole updates a custom role's metadata and parent. Reparenting is
// validated against the full role graph before the write. A non-empty
// tenantID masks other tenants' roles as ErrRoleNotFound.
func (s *Store) UpdateRole(ctx context.Context, tenantID string, role *identity.Role) error {
	existing, err := s.GetTenantRole(ctx, tenantID, role.ID)
	if err != nil {
		return err
	}
	if existing.Type == identity.RoleTypeSystem {
		return ErrSystemRoleImmutable
	}

	parents, err := s.loadParentMap(ctx)
	if err != nil {
		return err
	}
	parentOf := func(id string) (*string, bool) {
		p, ok := parents[id]
		return p, ok
	}
	if err := tree.ValidateMove(role.ID, role.ParentRoleID, parentOf); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE roles
		SET display_name = $1, priority = $2, parent_role_id = $3, role_class = $4, updated_at = NOW()
		WHERE id = $5 AND role_type = 'custom'`,
		role.DisplayName, role.Priority, role.ParentRoleID, role.Class, role.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// DeleteRole removes a custom role that has no remaining grants. A
// non-empty tenantID masks other tenants' roles as ErrRoleNotFound.
func (s *Store) DeleteRole(ctx context.Context, tenantID, id string) error {
	existing, err := s.GetTenantRole(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing.Type == identity.RoleTypeSystem {
		return ErrSystemRoleImmutable
	}

	var grants int
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_site_roles WHERE role_id = $1", id,
	).Scan(&grants)
	if err != nil {
		return fmt.Errorf("failed to count role grants: %w", err)
	}
	if grants > 0 {
		return ErrRoleInUse
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM roles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrRoleNotFound
	}
	return nil
}

// GetRole retrieves a role by id
func (s *Store) GetRole(ctx context.Context, id string) (*identity.Role, error) {
	return s.getRole(ctx, "id = $1", id)
}

// GetTenantRole retrieves a role visible to a tenant: system roles plus the
// tenant's own custom ones. Another tenant's role reads as ErrRoleNotFound.
// An empty tenantID sees everything.
func (s *Store) GetTenantRole(ctx context.Context, tenantID, id string) (*identity.Role, error) {
	role, err := s.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if tenantID != "" && role.TenantID != nil && *role.TenantID != tenantID {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

// GetRoleByName retrieves a role by its unique name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*identity.Role, error) {
	return s.getRole(ctx, "name = $1", name)
}

func (s *Store) getRole(ctx context.Context, where string, arg interface{}) (*identity.Role, error) {
	query := `
		SELECT id, name, display_name, priority, parent_role_id, role_type, role_class,
		       tenant_id, created_at, updated_at
		FROM roles
		WHERE ` + where

	var r identity.Role
	var parentID, tenantID sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&r.ID, &r.Name, &r.DisplayName, &r.Priority, &parentID,
		&r.Type, &r.Class, &tenantID, &r.CreatedAt, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrRoleNotFound
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

// ListRoles returns system roles plus the tenant's custom roles
func (s *Store) ListRoles(ctx context.Context, tenantID string) ([]identity.Role, error) {
	query := `
		SELECT id, name, display_name, priority, parent_role_id, role_type, role_class,
		       tenant_id, created_at, updated_at
		FROM roles
		WHERE tenant_id IS NULL OR tenant_id = $1
		ORDER BY priority DESC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	var roles []identity.Role
	for rows.Next() {
		var r identity.Role
		var parentID, roleTenantID sql.NullString
		err := rows.Scan(
			&r.ID, &r.Name, &r.DisplayName, &r.Priority, &parentID,
			&r.Type, &r.Class, &roleTenantID, &r.CreatedAt, &r.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		if parentID.Valid {
			r.ParentRoleID = &parentID.String
		}
		if roleTenantID.Valid {
			r.TenantID = &roleTenantID.String
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// SetRolePermissions replaces a role's permission assignments. The role must
// be a custom role visible to the tenant; a non-empty tenantID masks other
// tenants' roles as ErrRoleNotFound.
func (s *Store) SetRolePermissions(ctx context.Context, tenantID, roleID string, permissionNames []string) error {
	existing, err := s.GetTenantRole(ctx, tenantID, roleID)
	if err != nil {
		return err
	}
	if existing.Type == identity.RoleTypeSystem {
		return ErrSystemRoleImmutable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := setPermissionsTx(ctx, tx, roleID, permissionNames); err != nil {
		return err
	}
	return tx.Commit()
}

func setPermissionsTx(ctx context.Context, tx *sql.Tx, roleID string, permissionNames []string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM role_permissions WHERE role_id = $1", roleID,
	); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}
	if len(permissionNames) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, id FROM permissions WHERE name = ANY($2)`,
		roleID, pq.Array(permissionNames),
	)
	if err != nil {
		return fmt.Errorf("failed to set role permissions: %w", err)
	}
	return nil
}

// AssignRole grants a user a role on a site, replacing any existing grant
// for that site. The site must exist and the role must be a system role or
// one owned by the site's tenant. A non-empty tenantID additionally pins the
// site to that tenant; anything outside it reads as ErrGrantNotFound.
func (s *Store) AssignRole(ctx context.Context, tenantID, userID, siteID, roleID, grantedBy string) error {
	query := `
		INSERT INTO user_site_roles (user_id, site_id, role_id, granted_by)
		SELECT $1, s.id, r.id, $2
		FROM sites s
		JOIN roles r ON r.id = $3
		WHERE s.id = $4 AND (r.tenant_id IS NULL OR r.tenant_id = s.tenant_id)`
	args := []interface{}{userID, grantedBy, roleID, siteID}
	if tenantID != "" {
		query += " AND s.tenant_id = $5"
		args = append(args, tenantID)
	}
	query += `
		ON CONFLICT (user_id, site_id) DO UPDATE
		SET role_id = EXCLUDED.role_id, granted_by = EXCLUDED.granted_by, granted_at = NOW()`

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrGrantNotFound
	}
	return nil
}

// RevokeRole removes a user's grant for a site. A non-empty tenantID
// confines the delete to sites of that tenant.
func (s *Store) RevokeRole(ctx context.Context, tenantID, userID, siteID string) error {
	query := "DELETE FROM user_site_roles WHERE user_id = $1 AND site_id = $2"
	args := []interface{}{userID, siteID}
	if tenantID != "" {
		query += " AND site_id IN (SELECT id FROM sites WHERE tenant_id = $3)"
		args = append(args, tenantID)
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to revoke role: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (s *Store) loadParentMap(ctx context.Context) (map[string]*string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, parent_role_id FROM roles")
	if err != nil {
		return nil, fmt.Errorf("failed to load role graph: %w", err)
	}
	defer rows.Close()

	parents := make(map[string]*string)
	for rows.Next() {
		var id string
		var parent sql.NullString
		if err := rows.Scan(&id, &parent); err != nil {
			return nil, fmt.Errorf("failed to scan role graph: %w", err)
		}
		if parent.Valid {
			parents[id] = &parent.String
		} else {
			parents[id] = nil
		}
	}
	return parents, rows.Err()
}
