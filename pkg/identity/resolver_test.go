package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	users       map[string]*User
	grants      map[string][]Grant
	roles       map[string]*Role
	permissions map[string][]string
}

func (f *fakeStore) GetUser(_ context.Context, id string) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) ListGrants(_ context.Context, userID string) ([]Grant, error) {
	return f.grants[userID], nil
}

func (f *fakeStore) GetRole(_ context.Context, id string) (*Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return r, nil
}

func (f *fakeStore) GetRolePermissions(_ context.Context, roleID string) ([]string, error) {
	return f.permissions[roleID], nil
}

func strPtr(s string) *string { return &s }

func testGrant(siteID string, priority int, grantedAt time.Time, class RoleClass) Grant {
	return Grant{
		ID:     "grant-" + siteID,
		UserID: "u1",
		Site: Site{
			ID:       siteID,
			TenantID: "t1",
			Name:     "Site " + siteID,
			Type:     SiteTypeFactory,
			IsActive: true,
		},
		Role: Role{
			ID:       "role-" + siteID,
			Name:     "role-" + siteID,
			Priority: priority,
			Type:     RoleTypeSystem,
			Class:    class,
		},
		GrantedAt: grantedAt,
	}
}

func TestResolver_Unauthenticated(t *testing.T) {
	r := newResolverWithStore(&fakeStore{})

	_, err := r.Resolve(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolver_InactiveUser(t *testing.T) {
	r := newResolverWithStore(&fakeStore{
		users: map[string]*User{
			"u1": {ID: "u1", Email: "a@b.com", IsActive: false},
		},
	})

	_, err := r.Resolve(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrUserInactive)
}

func TestResolver_NoGrants(t *testing.T) {
	r := newResolverWithStore(&fakeStore{
		users: map[string]*User{
			"u1": {ID: "u1", Email: "a@b.com", IsActive: true},
		},
	})

	_, err := r.Resolve(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrNoSiteAccess)
}

func TestResolver_DefaultSitePicksHighestPriority(t *testing.T) {
	now := time.Now()
	r := newResolverWithStore(&fakeStore{
		users: map[string]*User{
			"u1": {ID: "u1", Email: "a@b.com", IsActive: true},
		},
		grants: map[string][]Grant{
			"u1": {
				testGrant("s-low", 10, now, RoleClassFactorySales),
				testGrant("s-high", 90, now, RoleClassFactoryAdmin),
			},
		},
	})

	ident, err := r.Resolve(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "s-high", ident.Site.ID)
	assert.Equal(t, RoleClassFactoryAdmin, ident.Class)
}

func TestResolver_DefaultSiteTieBreak(t *testing.T) {
	earlier := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)

	t.Run("earlier grant wins on equal priority", func(t *testing.T) {
		r := newResolverWithStore(&fakeStore{
			users: map[string]*User{"u1": {ID: "u1", IsActive: true}},
			grants: map[string][]Grant{
				"u1": {
					testGrant("s-later", 50, later, RoleClassFactorySales),
					testGrant("s-earlier", 50, earlier, RoleClassFactorySales),
				},
			},
		})

		ident, err := r.Resolve(context.Background(), "u1", "")
		require.NoError(t, err)
		assert.Equal(t, "s-earlier", ident.Site.ID)
	})

	t.Run("site id breaks full ties", func(t *testing.T) {
		r := newResolverWithStore(&fakeStore{
			users: map[string]*User{"u1": {ID: "u1", IsActive: true}},
			grants: map[string][]Grant{
				"u1": {
					testGrant("s-bbb", 50, earlier, RoleClassFactorySales),
					testGrant("s-aaa", 50, earlier, RoleClassFactorySales),
				},
			},
		})

		ident, err := r.Resolve(context.Background(), "u1", "")
		require.NoError(t, err)
		assert.Equal(t, "s-aaa", ident.Site.ID)
	})
}

func TestResolver_RequestedSite(t *testing.T) {
	now := time.Now()
	store := &fakeStore{
		users: map[string]*User{"u1": {ID: "u1", IsActive: true}},
		grants: map[string][]Grant{
			"u1": {
				testGrant("s-high", 90, now, RoleClassFactoryAdmin),
				testGrant("s-low", 10, now, RoleClassFactorySales),
			},
		},
	}
	r := newResolverWithStore(store)

	t.Run("granted site is honored", func(t *testing.T) {
		ident, err := r.Resolve(context.Background(), "u1", "s-low")
		require.NoError(t, err)
		assert.Equal(t, "s-low", ident.Site.ID)
		assert.Equal(t, RoleClassFactorySales, ident.Class)
	})

	t.Run("ungranted site fails without fallback", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), "u1", "s-other")
		assert.ErrorIs(t, err, ErrForbiddenSite)
	})
}

func TestResolver_PermissionInheritance(t *testing.T) {
	now := time.Now()
	grant := testGrant("s1", 50, now, RoleClassFactorySales)
	grant.Role.ID = "r-child"
	grant.Role.ParentRoleID = strPtr("r-parent")

	store := &fakeStore{
		users:  map[string]*User{"u1": {ID: "u1", IsActive: true}},
		grants: map[string][]Grant{"u1": {grant}},
		roles: map[string]*Role{
			"r-parent": {ID: "r-parent", Name: "parent"},
		},
		permissions: map[string][]string{
			"r-child":  {"products.read"},
			"r-parent": {"products.read", "inquiries.read"},
		},
	}

	ident, err := newResolverWithStore(store).Resolve(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.True(t, ident.Permissions.Has("products.read"))
	assert.True(t, ident.Permissions.Has("inquiries.read"))
	assert.False(t, ident.Permissions.Has("products.delete"))
}

func TestResolver_RoleCycleTerminates(t *testing.T) {
	now := time.Now()
	grant := testGrant("s1", 50, now, RoleClassFactorySales)
	grant.Role.ID = "r-a"
	grant.Role.ParentRoleID = strPtr("r-b")

	store := &fakeStore{
		users:  map[string]*User{"u1": {ID: "u1", IsActive: true}},
		grants: map[string][]Grant{"u1": {grant}},
		roles: map[string]*Role{
			"r-b": {ID: "r-b", Name: "b", ParentRoleID: strPtr("r-a")},
			"r-a": {ID: "r-a", Name: "a", ParentRoleID: strPtr("r-b")},
		},
		permissions: map[string][]string{
			"r-a": {"a.perm"},
			"r-b": {"b.perm"},
		},
	}

	ident, err := newResolverWithStore(store).Resolve(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.True(t, ident.Permissions.HasAll("a.perm", "b.perm"))
}

func TestResolver_SuperAdminWildcard(t *testing.T) {
	now := time.Now()
	r := newResolverWithStore(&fakeStore{
		users: map[string]*User{
			"u1": {ID: "u1", IsActive: true, IsSuperAdmin: true},
		},
		grants: map[string][]Grant{
			"u1": {testGrant("s1", 50, now, RoleClassFactorySales)},
		},
	})

	ident, err := r.Resolve(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, RoleClassSuperAdmin, ident.Class)
	assert.True(t, ident.Permissions.Has("anything.at.all"))
}

func TestResolver_ScopeDerivation(t *testing.T) {
	now := time.Now()
	grant := testGrant("s1", 50, now, RoleClassFactoryAdmin)
	grant.Site.FactoryID = strPtr("f1")
	grant.Site.DeptID = strPtr("d1")

	r := newResolverWithStore(&fakeStore{
		users:  map[string]*User{"u1": {ID: "u1", IsActive: true}},
		grants: map[string][]Grant{"u1": {grant}},
	})

	ident, err := r.Resolve(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "u1", ident.Scope.UserID)
	assert.Equal(t, "t1", ident.Scope.TenantID)
	assert.Equal(t, "s1", ident.Scope.SiteID)
	assert.Equal(t, "f1", ident.Scope.FactoryID)
	assert.Equal(t, "d1", ident.Scope.DeptID)
	assert.Empty(t, ident.Scope.ExporterID)
}

func TestPermissionSet(t *testing.T) {
	s := NewPermissionSet("a", "b")
	assert.True(t, s.Has("a"))
	assert.False(t, s.Has("c"))
	assert.True(t, s.HasAll("a", "b"))
	assert.False(t, s.HasAll("a", "c"))
	assert.True(t, s.HasAny("c", "b"))
	assert.Equal(t, []string{"a", "b"}, s.Names())

	wild := NewPermissionSet(PermissionWildcard)
	assert.True(t, wild.Has("whatever"))
}
