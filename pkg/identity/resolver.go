package identity

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// maxRoleDepth bounds parent-role inheritance walks so a corrupted chain
// cannot loop forever.
const maxRoleDepth = 100

// resolverStore is the subset of Store the resolver needs
type resolverStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	ListGrants(ctx context.Context, userID string) ([]Grant, error)
	GetRole(ctx context.Context, id string) (*Role, error)
	GetRolePermissions(ctx context.Context, roleID string) ([]string, error)
}

// Resolver builds the per-request Identity: user, active site, effective
// role, permission set, and scope ids. Resolution happens once per request
// and the result is passed explicitly downstream.
type Resolver struct {
	store resolverStore
}

// NewResolver creates a resolver backed by a database store
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{store: NewStore(db)}
}

func newResolverWithStore(store resolverStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve constructs the identity for an authenticated user. requestedSiteID
// may be empty, in which case the highest-priority grant picks the default
// site. A requested site the user holds no grant for fails with
// ErrForbiddenSite; there is no fallback.
func (r *Resolver) Resolve(ctx context.Context, userID, requestedSiteID string) (*Identity, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	user, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	grants, err := r.store.ListGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve grants: %w", err)
	}
	if len(grants) == 0 {
		return nil, ErrNoSiteAccess
	}
	sortGrants(grants)

	grant, err := selectGrant(grants, requestedSiteID)
	if err != nil {
		return nil, err
	}

	perms, err := r.collectPermissions(ctx, &grant.Role)
	if err != nil {
		return nil, err
	}

	class := grant.Role.Class
	if user.IsSuperAdmin || class == RoleClassSuperAdmin {
		class = RoleClassSuperAdmin
		perms[PermissionWildcard] = struct{}{}
	}

	return &Identity{
		User:        *user,
		Site:        grant.Site,
		Role:        grant.Role,
		Class:       class,
		Permissions: perms,
		Scope:       deriveScope(user, &grant.Site),
	}, nil
}

// sortGrants orders by role priority descending, then grant time, then site
// id. The store already returns this order; sorting again keeps the default
// site deterministic regardless of the backing store.
func sortGrants(grants []Grant) {
	sort.SliceStable(grants, func(i, j int) bool {
		if grants[i].Role.Priority != grants[j].Role.Priority {
			return grants[i].Role.Priority > grants[j].Role.Priority
		}
		if !grants[i].GrantedAt.Equal(grants[j].GrantedAt) {
			return grants[i].GrantedAt.Before(grants[j].GrantedAt)
		}
		return grants[i].Site.ID < grants[j].Site.ID
	})
}

func selectGrant(grants []Grant, requestedSiteID string) (*Grant, error) {
	if requestedSiteID == "" {
		return &grants[0], nil
	}
	for i := range grants {
		if grants[i].Site.ID == requestedSiteID {
			return &grants[i], nil
		}
	}
	return nil, ErrForbiddenSite
}

// collectPermissions gathers the role's direct permissions plus everything
// inherited through the parent-role chain.
func (r *Resolver) collectPermissions(ctx context.Context, role *Role) (PermissionSet, error) {
	perms := make(PermissionSet)
	visited := make(map[string]bool)

	current := role
	for depth := 0; current != nil && depth < maxRoleDepth; depth++ {
		if visited[current.ID] {
			break
		}
		visited[current.ID] = true

		names, err := r.store.GetRolePermissions(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			perms[n] = struct{}{}
		}

		if current.ParentRoleID == nil {
			break
		}
		parent, err := r.store.GetRole(ctx, *current.ParentRoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parent role: %w", err)
		}
		current = parent
	}
	return perms, nil
}

func deriveScope(user *User, site *Site) ScopeIDs {
	scope := ScopeIDs{
		UserID:   user.ID,
		TenantID: site.TenantID,
		SiteID:   site.ID,
	}
	if site.DeptID != nil {
		scope.DeptID = *site.DeptID
	}
	if site.FactoryID != nil {
		scope.FactoryID = *site.FactoryID
	}
	if site.ExporterID != nil {
		scope.ExporterID = *site.ExporterID
	}
	return scope
}
