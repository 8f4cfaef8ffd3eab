package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/tradegate/tradegate/pkg/identity"
)

// Seed inserts the permission catalog and the built-in system roles. It is
// idempotent and safe to run on every start.
func Seed(ctx context.Context, db *sql.DB) error {
	names := append(AllPermissions(), identity.PermissionWildcard)
	for _, name := range names {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO permissions (name) VALUES ($1)
			ON CONFLICT (name) DO NOTHING`, name,
		); err != nil {
			return fmt.Errorf("failed to seed permission %s: %w", name, err)
		}
	}

	for _, role := range SystemRoles() {
		var roleID string
		err := db.QueryRowContext(ctx, `
			INSERT INTO roles (name, display_name, priority, role_type, role_class)
			VALUES ($1, $2, $3, 'system', $4)
			ON CONFLICT (name) DO UPDATE
			SET display_name = EXCLUDED.display_name,
			    priority = EXCLUDED.priority,
			    role_class = EXCLUDED.role_class,
			    updated_at = NOW()
			RETURNING id`,
			role.Name, role.DisplayName, role.Priority, role.Class,
		).Scan(&roleID)
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Name, err)
		}

		if _, err := db.ExecContext(ctx,
			"DELETE FROM role_permissions WHERE role_id = $1", roleID,
		); err != nil {
			return fmt.Errorf("failed to reset permissions for %s: %w", role.Name, err)
		}
		if _, err := db.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE name = ANY($2)`,
			roleID, pq.Array(role.Permissions),
		); err != nil {
			return fmt.Errorf("failed to seed permissions for %s: %w", role.Name, err)
		}
	}
	return nil
}
