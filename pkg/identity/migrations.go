package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the core organizational schema migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					email VARCHAR(255) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					password_hash VARCHAR(100),
					is_super_admin BOOLEAN NOT NULL DEFAULT FALSE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_users_email ON users(email);
				CREATE INDEX idx_users_is_active ON users(is_active);
			`,
		},
		{
			Version:     2,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL UNIQUE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create departments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS departments (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					parent_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					category VARCHAR(20) NOT NULL CHECK (category IN ('factory', 'group')),
					sort_order INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_departments_tenant_id ON departments(tenant_id);
				CREATE INDEX idx_departments_parent_id ON departments(parent_id);
			`,
		},
		{
			Version:     4,
			Description: "Create sites table",
			SQL: `
				CREATE TABLE IF NOT EXISTS sites (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					site_type VARCHAR(20) NOT NULL CHECK (site_type IN ('factory', 'group')),
					factory_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					exporter_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					dept_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_sites_tenant_id ON sites(tenant_id);
				CREATE INDEX idx_sites_factory_id ON sites(factory_id);
				CREATE INDEX idx_sites_exporter_id ON sites(exporter_id);
			`,
		},
		{
			Version:     5,
			Description: "Create roles and permissions tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name VARCHAR(100) NOT NULL UNIQUE,
					display_name VARCHAR(255) NOT NULL,
					priority INT NOT NULL DEFAULT 0,
					parent_role_id UUID REFERENCES roles(id) ON DELETE SET NULL,
					role_type VARCHAR(20) NOT NULL CHECK (role_type IN ('system', 'custom')),
					role_class VARCHAR(30) NOT NULL DEFAULT '',
					tenant_id UUID REFERENCES tenants(id) ON DELETE CASCADE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_roles_parent_role_id ON roles(parent_role_id);
				CREATE INDEX idx_roles_tenant_id ON roles(tenant_id);

				CREATE TABLE IF NOT EXISTS permissions (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					name VARCHAR(100) NOT NULL UNIQUE,
					description TEXT
				);

				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id UUID NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);
			`,
		},
		{
			Version:     6,
			Description: "Create user_site_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_site_roles (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					site_id UUID NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
					role_id UUID NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					granted_by UUID REFERENCES users(id) ON DELETE SET NULL,
					granted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, site_id)
				);

				CREATE INDEX idx_user_site_roles_user_id ON user_site_roles(user_id);
				CREATE INDEX idx_user_site_roles_site_id ON user_site_roles(site_id);
			`,
		},
	}
}

// RunMigrations executes all pending identity migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identity_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM identity_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO identity_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
