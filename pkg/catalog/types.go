package catalog

import "time"

// Product statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// Product is a sellable item belonging to a factory, listed on a site.
// Scope columns are empty strings when not set.
type Product struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	SiteID      string    `json:"site_id"`
	FactoryID   string    `json:"factory_id,omitempty"`
	ExporterID  string    `json:"exporter_id,omitempty"`
	OwnerID     string    `json:"owner_id,omitempty"`
	IsPublic    bool      `json:"is_public"`
	CategoryID  *string   `json:"category_id,omitempty"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	SortOrder   int       `json:"sort_order"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SKU is one purchasable variant of a product
type SKU struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"product_id"`
	TenantID   string    `json:"tenant_id"`
	FactoryID  string    `json:"factory_id,omitempty"`
	ExporterID string    `json:"exporter_id,omitempty"`
	Code       string    `json:"code"`
	PriceCents int64     `json:"price_cents"`
	Currency   string    `json:"currency"`
	Stock      int       `json:"stock"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// MasterCategory is a tenant-wide category template. Slugs are unique per
// tenant.
type MasterCategory struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SiteCategory is a site's own category tree node, optionally derived from
// a master category. Slugs are unique per site.
type SiteCategory struct {
	ID               string    `json:"id"`
	TenantID         string    `json:"tenant_id"`
	SiteID           string    `json:"site_id"`
	FactoryID        string    `json:"factory_id,omitempty"`
	ExporterID       string    `json:"exporter_id,omitempty"`
	MasterCategoryID *string   `json:"master_category_id,omitempty"`
	ParentID         *string   `json:"parent_id,omitempty"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	SortOrder        int       `json:"sort_order"`
	IsVisible        bool      `json:"is_visible"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
