package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/tree"
)

func factorySalesIdentity() *identity.Identity {
	return &identity.Identity{
		Class: identity.RoleClassFactorySales,
		Scope: identity.ScopeIDs{
			UserID:    "u1",
			TenantID:  "t1",
			SiteID:    "s1",
			FactoryID: "f1",
		},
	}
}

func superAdminIdentity() *identity.Identity {
	return &identity.Identity{
		Class: identity.RoleClassSuperAdmin,
		Scope: identity.ScopeIDs{UserID: "root"},
	}
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, db), mock
}

func TestStore_CreateProduct_StampsIdentityScope(t *testing.T) {
	store, mock := newMockStore(t)

	category := "c9"
	p := &Product{
		Name:       "Walnut Desk",
		Slug:       "walnut-desk",
		Status:     StatusDraft,
		CategoryID: &category,
		// Client-supplied scope that must be discarded
		TenantID:  "t-evil",
		FactoryID: "f-evil",
		OwnerID:   "u-evil",
	}

	// Stamped columns follow the content columns in sorted order:
	// factory_id, owner_id, site_id, tenant_id
	mock.ExpectQuery("INSERT INTO products").
		WithArgs("Walnut Desk", "walnut-desk", "", StatusDraft, &category, false, 0,
			"f1", "u1", "s1", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("p1", time.Now(), time.Now()))

	err := store.CreateProduct(context.Background(), factorySalesIdentity(), p)
	require.NoError(t, err)

	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "t1", p.TenantID)
	assert.Equal(t, "s1", p.SiteID)
	assert.Equal(t, "f1", p.FactoryID)
	assert.Equal(t, "u1", p.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateProduct_SlugConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO products").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateProduct(context.Background(), factorySalesIdentity(), &Product{
		Name: "Walnut Desk", Slug: "walnut-desk", Status: StatusDraft,
	})
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetProduct_AppendsScopeFilter(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM products WHERE id = .1 AND factory_id = .2 AND .owner_id = .3 OR is_public = TRUE.`).
		WithArgs("p1", "f1", "u1").
		WillReturnRows(productRows().
			AddRow("p1", "t1", "s1", "f1", "", "u1", false, nil,
				"Walnut Desk", "walnut-desk", "", StatusDraft, 0, time.Now(), time.Now()))

	p, err := store.GetProduct(context.Background(), factorySalesIdentity(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Walnut Desk", p.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetProduct_MaskedRowIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	// The row exists but belongs to another factory; the filter hides it
	mock.ExpectQuery("FROM products WHERE id = .1 AND factory_id = .2").
		WithArgs("p-other", "f1", "u1").
		WillReturnRows(productRows())

	_, err := store.GetProduct(context.Background(), factorySalesIdentity(), "p-other")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetProduct_SuperAdminUnfiltered(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM products WHERE id = .1$").
		WithArgs("p1").
		WillReturnRows(productRows().
			AddRow("p1", "t9", "s9", "", "", "", true, nil,
				"Anyone's Desk", "anyones-desk", "", StatusPublished, 0, time.Now(), time.Now()))

	p, err := store.GetProduct(context.Background(), superAdminIdentity(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "t9", p.TenantID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateProduct_OutOfScopeIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE products").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateProduct(context.Background(), factorySalesIdentity(), &Product{
		ID: "p-other", Name: "Renamed", Slug: "renamed", Status: StatusDraft,
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_MoveSiteCategory_RejectsCycle(t *testing.T) {
	store, mock := newMockStore(t)

	// c-leaf descends from c-root, so moving c-root under c-leaf loops.
	// No UPDATE must run.
	mock.ExpectQuery("FROM site_categories").
		WillReturnRows(siteCategoryRows().
			AddRow("c-root", "t1", "s1", "", "", nil, nil, "Root", "root", 0, true, time.Now(), time.Now()).
			AddRow("c-mid", "t1", "s1", "", "", nil, "c-root", "Mid", "mid", 1, true, time.Now(), time.Now()).
			AddRow("c-leaf", "t1", "s1", "", "", nil, "c-mid", "Leaf", "leaf", 2, true, time.Now(), time.Now()))

	leaf := "c-leaf"
	err := store.MoveSiteCategory(context.Background(), superAdminIdentity(), "c-root", &leaf)
	assert.ErrorIs(t, err, tree.ErrCycle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ReorderSiteCategories_AllOrNothing(t *testing.T) {
	store, mock := newMockStore(t)
	ident := factorySalesIdentity()

	t.Run("out-of-scope row rolls the batch back", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE site_categories SET sort_order").
			WithArgs(0, "c1", "f1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE site_categories SET sort_order").
			WithArgs(1, "c-other", "f1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.ReorderSiteCategories(context.Background(), ident, []string{"c1", "c-other"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("full batch commits", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE site_categories SET sort_order").
			WithArgs(0, "c2", "f1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("UPDATE site_categories SET sort_order").
			WithArgs(1, "c1", "f1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.ReorderSiteCategories(context.Background(), ident, []string{"c2", "c1"})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_MoveMasterCategory_RejectsCycle(t *testing.T) {
	store, mock := newMockStore(t)

	// m-leaf descends from m-root, so moving m-root under m-leaf loops.
	// No UPDATE must run.
	mock.ExpectQuery("FROM master_categories").
		WillReturnRows(masterCategoryRows().
			AddRow("m-root", "t1", nil, "Furniture", "furniture", 0, time.Now(), time.Now()).
			AddRow("m-mid", "t1", "m-root", "Desks", "desks", 1, time.Now(), time.Now()).
			AddRow("m-leaf", "t1", "m-mid", "Standing Desks", "standing-desks", 2, time.Now(), time.Now()))

	leaf := "m-leaf"
	err := store.MoveMasterCategory(context.Background(), superAdminIdentity(), "m-root", &leaf)
	assert.ErrorIs(t, err, tree.ErrCycle)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateMasterCategory_SlugConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO master_categories").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateMasterCategory(context.Background(), superAdminIdentity(), &MasterCategory{
		Name: "Furniture", Slug: "furniture",
	})
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateSiteCategory_SlugConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO site_categories").
		WillReturnError(&pq.Error{Code: "23505"})

	err := store.CreateSiteCategory(context.Background(), factorySalesIdentity(), &SiteCategory{
		Name: "Desks", Slug: "desks", IsVisible: true,
	})
	assert.ErrorIs(t, err, ErrSlugTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_CreateSKU_ChecksParentVisibility(t *testing.T) {
	store, mock := newMockStore(t)

	// Parent product is out of scope, so the SKU insert never runs
	mock.ExpectQuery("FROM products WHERE id = .1").
		WithArgs("p-other", "f1", "u1").
		WillReturnRows(productRows())

	err := store.CreateSKU(context.Background(), factorySalesIdentity(), &SKU{
		ProductID: "p-other", Code: "WD-001", PriceCents: 12500, Currency: "USD",
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "site_id", "factory_id", "exporter_id", "owner_id",
		"is_public", "category_id", "name", "slug", "description", "status",
		"sort_order", "created_at", "updated_at",
	})
}

func siteCategoryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "site_id", "factory_id", "exporter_id",
		"master_category_id", "parent_id", "name", "slug", "sort_order", "is_visible",
		"created_at", "updated_at",
	})
}

func masterCategoryRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "parent_id", "name", "slug", "sort_order",
		"created_at", "updated_at",
	})
}
