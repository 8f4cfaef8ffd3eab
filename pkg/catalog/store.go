package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/scope"
)

var (
	// ErrNotFound covers both truly absent rows and rows hidden by scope.
	// Callers must not be able to tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrSlugTaken indicates a product slug collision within a site
	ErrSlugTaken = errors.New("slug already in use")

	// ErrCodeTaken indicates a SKU code collision within a product
	ErrCodeTaken = errors.New("sku code already in use")
)

// Store persists catalog records. Writes go to the primary, scoped reads to
// a replica.
type Store struct {
	primary *sql.DB
	replica *sql.DB
}

// NewStore creates a catalog store. Pass the same handle twice when no
// replica exists.
func NewStore(primary, replica *sql.DB) *Store {
	return &Store{primary: primary, replica: replica}
}

// ListOptions narrows product listings within the identity's scope
type ListOptions struct {
	CategoryID string
	Status     string
	Limit      int
	Offset     int
}

const productColumns = `
	id, tenant_id, site_id,
	COALESCE(factory_id::text, ''), COALESCE(exporter_id::text, ''), COALESCE(owner_id::text, ''),
	is_public, category_id, name, slug, COALESCE(description, ''), status, sort_order,
	created_at, updated_at`

// CreateProduct inserts a product stamped with the identity's scope.
// Whatever scope values the caller put on p are discarded.
func (s *Store) CreateProduct(ctx context.Context, ident *identity.Identity, p *Product) error {
	stamp, err := scope.StampValues(ident, scope.TableProducts)
	if err != nil {
		return err
	}

	cols := []string{"name", "slug", "description", "status", "category_id", "is_public", "sort_order"}
	vals := []interface{}{p.Name, p.Slug, p.Description, p.Status, p.CategoryID, p.IsPublic, p.SortOrder}
	cols, vals = appendStamp(cols, vals, stamp)

	query := fmt.Sprintf(
		"INSERT INTO products (%s) VALUES (%s) RETURNING id, created_at, updated_at",
		strings.Join(cols, ", "), placeholders(len(vals)),
	)
	err = s.primary.QueryRowContext(ctx, query, vals...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	applyProductStamp(p, stamp)
	return nil
}

// GetProduct fetches one product visible to the identity. A row outside the
// identity's scope is indistinguishable from a missing one.
func (s *Store) GetProduct(ctx context.Context, ident *identity.Identity, id string) (*Product, error) {
	filter, err := scope.ForIdentity(ident, scope.TableProducts)
	if err != nil {
		return nil, err
	}

	query := "SELECT " + productColumns + " FROM products WHERE id = $1"
	args := []interface{}{id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	p, err := scanProduct(s.replica.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListProducts returns products within the identity's scope
func (s *Store) ListProducts(ctx context.Context, ident *identity.Identity, opts ListOptions) ([]Product, error) {
	filter, err := scope.ForIdentity(ident, scope.TableProducts)
	if err != nil {
		return nil, err
	}

	var conds []string
	var args []interface{}
	if opts.CategoryID != "" {
		args = append(args, opts.CategoryID)
		conds = append(conds, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		conds = append(conds, where)
		args = append(args, filterArgs...)
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY sort_order ASC, name ASC"

	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.replica.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

// UpdateProduct updates content fields of a product the identity can see.
// Scope columns never change after creation.
func (s *Store) UpdateProduct(ctx context.Context, ident *identity.Identity, p *Product) error {
	filter, err := scope.ForIdentity(ident, scope.TableProducts)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, status = $4, category_id = $5,
		    is_public = $6, sort_order = $7, updated_at = NOW()
		WHERE id = $8`
	args := []interface{}{p.Name, p.Slug, p.Description, p.Status, p.CategoryID, p.IsPublic, p.SortOrder, p.ID}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrSlugTaken
	}
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product the identity can see
func (s *Store) DeleteProduct(ctx context.Context, ident *identity.Identity, id string) error {
	filter, err := scope.ForIdentity(ident, scope.TableProducts)
	if err != nil {
		return err
	}

	query := "DELETE FROM products WHERE id = $1"
	args := []interface{}{id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSKU inserts a SKU stamped with the identity's scope. The parent
// product must itself be visible to the identity.
func (s *Store) CreateSKU(ctx context.Context, ident *identity.Identity, sku *SKU) error {
	if _, err := s.GetProduct(ctx, ident, sku.ProductID); err != nil {
		return err
	}

	stamp, err := scope.StampValues(ident, scope.TableSKUs)
	if err != nil {
		return err
	}

	cols := []string{"product_id", "code", "price_cents", "currency", "stock", "is_active"}
	vals := []interface{}{sku.ProductID, sku.Code, sku.PriceCents, sku.Currency, sku.Stock, sku.IsActive}
	cols, vals = appendStamp(cols, vals, stamp)

	query := fmt.Sprintf(
		"INSERT INTO skus (%s) VALUES (%s) RETURNING id, created_at, updated_at",
		strings.Join(cols, ", "), placeholders(len(vals)),
	)
	err = s.primary.QueryRowContext(ctx, query, vals...).Scan(&sku.ID, &sku.CreatedAt, &sku.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrCodeTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create sku: %w", err)
	}

	if v, ok := stamp[scope.ColTenantID]; ok {
		sku.TenantID = v.(string)
	}
	if v, ok := stamp[scope.ColFactoryID]; ok {
		sku.FactoryID = v.(string)
	}
	if v, ok := stamp[scope.ColExporterID]; ok {
		sku.ExporterID = v.(string)
	}
	return nil
}

// ListSKUs returns a product's SKUs within the identity's scope
func (s *Store) ListSKUs(ctx context.Context, ident *identity.Identity, productID string) ([]SKU, error) {
	filter, err := scope.ForIdentity(ident, scope.TableSKUs)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, product_id, tenant_id,
		       COALESCE(factory_id::text, ''), COALESCE(exporter_id::text, ''),
		       code, price_cents, currency, stock, is_active, created_at, updated_at
		FROM skus WHERE product_id = $1`
	args := []interface{}{productID}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}
	query += " ORDER BY code"

	rows, err := s.replica.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list skus: %w", err)
	}
	defer rows.Close()

	var skus []SKU
	for rows.Next() {
		var sku SKU
		err := rows.Scan(
			&sku.ID, &sku.ProductID, &sku.TenantID, &sku.FactoryID, &sku.ExporterID,
			&sku.Code, &sku.PriceCents, &sku.Currency, &sku.Stock, &sku.IsActive,
			&sku.CreatedAt, &sku.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sku: %w", err)
		}
		skus = append(skus, sku)
	}
	return skus, rows.Err()
}

// UpdateSKUStock adjusts stock for a SKU within the identity's scope
func (s *Store) UpdateSKUStock(ctx context.Context, ident *identity.Identity, id string, stock int) error {
	filter, err := scope.ForIdentity(ident, scope.TableSKUs)
	if err != nil {
		return err
	}

	query := "UPDATE skus SET stock = $1, updated_at = NOW() WHERE id = $2"
	args := []interface{}{stock, id}
	if where, filterArgs := filter.SQL(len(args)); where != "" {
		query += " AND " + where
		args = append(args, filterArgs...)
	}

	result, err := s.primary.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update sku stock: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*Product, error) {
	var p Product
	var categoryID sql.NullString
	err := row.Scan(
		&p.ID, &p.TenantID, &p.SiteID,
		&p.FactoryID, &p.ExporterID, &p.OwnerID,
		&p.IsPublic, &categoryID, &p.Name, &p.Slug, &p.Description, &p.Status, &p.SortOrder,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.String
	}
	return &p, nil
}

func applyProductStamp(p *Product, stamp map[string]interface{}) {
	if v, ok := stamp[scope.ColTenantID]; ok {
		p.TenantID = v.(string)
	}
	if v, ok := stamp[scope.ColSiteID]; ok {
		p.SiteID = v.(string)
	}
	if v, ok := stamp[scope.ColFactoryID]; ok {
		p.FactoryID = v.(string)
	}
	if v, ok := stamp[scope.ColExporterID]; ok {
		p.ExporterID = v.(string)
	}
	if v, ok := stamp[scope.ColOwnerID]; ok {
		p.OwnerID = v.(string)
	}
}

// appendStamp adds stamped scope columns in a deterministic order
func appendStamp(cols []string, vals []interface{}, stamp map[string]interface{}) ([]string, []interface{}) {
	keys := make([]string, 0, len(stamp))
	for k := range stamp {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cols = append(cols, k)
		vals = append(vals, stamp[k])
	}
	return cols, vals
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(parts, ", ")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
