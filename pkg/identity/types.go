package identity

import (
	"sort"
	"time"
)

// SiteType distinguishes factory storefronts from exporter ("group") sites
type SiteType string

const (
	SiteTypeFactory SiteType = "factory"
	SiteTypeGroup   SiteType = "group"
)

// RoleType distinguishes built-in roles from tenant-defined ones
type RoleType string

const (
	RoleTypeSystem RoleType = "system"
	RoleTypeCustom RoleType = "custom"
)

// RoleClass is the closed set of scope classes the filter builder dispatches
// on. It is resolved once at identity-resolution time; downstream code never
// matches on role-name strings.
type RoleClass string

const (
	RoleClassSuperAdmin    RoleClass = "super_admin"
	RoleClassExporterAdmin RoleClass = "exporter_admin"
	RoleClassFactoryAdmin  RoleClass = "factory_admin"
	RoleClassExporterSales RoleClass = "exporter_sales"
	RoleClassFactorySales  RoleClass = "factory_sales"
	// RoleClassUnknown is the zero value; it must always resolve to the most
	// restrictive behavior (deny / empty result).
	RoleClassUnknown RoleClass = ""
)

// User represents an account. Users are soft-deactivated via IsActive and
// never physically deleted.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	IsSuperAdmin bool      `json:"is_super_admin"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Tenant is the top-level organizational boundary: an exporter company and
// its affiliated factories.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Site is a storefront/admin context belonging to either a factory or the
// exporter headquarters ("group"). Users gain access to a site only through
// a user-site-role grant.
type Site struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	Name       string    `json:"name"`
	Type       SiteType  `json:"type"`
	FactoryID  *string   `json:"factory_id,omitempty"`
	ExporterID *string   `json:"exporter_id,omitempty"`
	DeptID     *string   `json:"dept_id,omitempty"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Department is an organizational unit (factory or headquarters) nested
// under a tenant, forming a parent-child tree.
type Department struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a named permission bundle. Priority picks the default site when a
// user holds multiple grants (higher wins). ParentRoleID supports
// hierarchical permission inheritance.
type Role struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DisplayName  string    `json:"display_name"`
	Priority     int       `json:"priority"`
	ParentRoleID *string   `json:"parent_role_id,omitempty"`
	Type         RoleType  `json:"type"`
	Class        RoleClass `json:"class"`
	TenantID     *string   `json:"tenant_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Grant is one user-site-role relation joined to its role and site. It is
// the actual unit of access: no grants means no access at all.
type Grant struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Site      Site      `json:"site"`
	Role      Role      `json:"role"`
	GrantedAt time.Time `json:"granted_at"`
}

// ScopeIDs carries the convenience identifiers derived from the active site.
// Fields are empty when not applicable (e.g. ExporterID on a factory site).
type ScopeIDs struct {
	UserID     string `json:"user_id"`
	TenantID   string `json:"tenant_id"`
	SiteID     string `json:"site_id"`
	DeptID     string `json:"dept_id,omitempty"`
	FactoryID  string `json:"factory_id,omitempty"`
	ExporterID string `json:"exporter_id,omitempty"`
}

// PermissionWildcard satisfies any permission requirement (super-admin
// convention).
const PermissionWildcard = "*"

// PermissionSet is a deduplicated set of permission names
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from permission names
func NewPermissionSet(names ...string) PermissionSet {
	s := make(PermissionSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the permission or the wildcard
func (s PermissionSet) Has(name string) bool {
	if _, ok := s[PermissionWildcard]; ok {
		return true
	}
	_, ok := s[name]
	return ok
}

// HasAll reports whether every listed permission is present
func (s PermissionSet) HasAll(names ...string) bool {
	for _, n := range names {
		if !s.Has(n) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one listed permission is present
func (s PermissionSet) HasAny(names ...string) bool {
	for _, n := range names {
		if s.Has(n) {
			return true
		}
	}
	return false
}

// Names returns the sorted permission names
func (s PermissionSet) Names() []string {
	names := make([]string, 0, len(s))
	for n := range s {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Identity is the immutable, fully resolved request identity. It is
// constructed once per request by the Resolver and passed explicitly to all
// downstream collaborators; it is never mutated or cached across requests.
type Identity struct {
	User        User          `json:"user"`
	Site        Site          `json:"site"`
	Role        Role          `json:"role"`
	Class       RoleClass     `json:"class"`
	Permissions PermissionSet `json:"-"`
	Scope       ScopeIDs      `json:"scope"`
}
