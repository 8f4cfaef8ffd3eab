package catalog

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

// GetMigrations returns the catalog schema migrations. Scope columns match
// the scope package's table manifest exactly.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create master_categories table",
			SQL: `
				CREATE TABLE IF NOT EXISTS master_categories (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					parent_id UUID REFERENCES master_categories(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					sort_order INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, slug)
				);

				CREATE INDEX idx_master_categories_tenant_id ON master_categories(tenant_id);
				CREATE INDEX idx_master_categories_parent_id ON master_categories(parent_id);
			`,
		},
		{
			Version:     2,
			Description: "Create site_categories table",
			SQL: `
				CREATE TABLE IF NOT EXISTS site_categories (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					site_id UUID NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
					factory_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					exporter_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					master_category_id UUID REFERENCES master_categories(id) ON DELETE SET NULL,
					parent_id UUID REFERENCES site_categories(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					sort_order INT NOT NULL DEFAULT 0,
					is_visible BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(site_id, slug)
				);

				CREATE INDEX idx_site_categories_site_id ON site_categories(site_id);
				CREATE INDEX idx_site_categories_parent_id ON site_categories(parent_id);
			`,
		},
		{
			Version:     3,
			Description: "Create products table",
			SQL: `
				CREATE TABLE IF NOT EXISTS products (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					site_id UUID NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
					factory_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					exporter_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					owner_id UUID REFERENCES users(id) ON DELETE SET NULL,
					is_public BOOLEAN NOT NULL DEFAULT FALSE,
					category_id UUID REFERENCES site_categories(id) ON DELETE SET NULL,
					name VARCHAR(255) NOT NULL,
					slug VARCHAR(100) NOT NULL,
					description TEXT,
					status VARCHAR(20) NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'published', 'archived')),
					sort_order INT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(site_id, slug)
				);

				CREATE INDEX idx_products_site_id ON products(site_id);
				CREATE INDEX idx_products_factory_id ON products(factory_id);
				CREATE INDEX idx_products_owner_id ON products(owner_id);
				CREATE INDEX idx_products_category_id ON products(category_id);
				CREATE INDEX idx_products_status ON products(status);
			`,
		},
		{
			Version:     4,
			Description: "Create skus table",
			SQL: `
				CREATE TABLE IF NOT EXISTS skus (
					id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
					product_id UUID NOT NULL REFERENCES products(id) ON DELETE CASCADE,
					tenant_id UUID NOT NULL REFERENCES tenants(id) ON DELETE CASCADE,
					factory_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					exporter_id UUID REFERENCES departments(id) ON DELETE SET NULL,
					code VARCHAR(100) NOT NULL,
					price_cents BIGINT NOT NULL DEFAULT 0,
					currency CHAR(3) NOT NULL DEFAULT 'USD',
					stock INT NOT NULL DEFAULT 0,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					UNIQUE(product_id, code)
				);

				CREATE INDEX idx_skus_product_id ON skus(product_id);
				CREATE INDEX idx_skus_factory_id ON skus(factory_id);
			`,
		},
	}
}

// RunMigrations executes all pending catalog migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS catalog_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM catalog_migrations ORDER BY version")
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
			"INSERT INTO catalog_migrations (version, description) VALUES ($1, $2)",
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
