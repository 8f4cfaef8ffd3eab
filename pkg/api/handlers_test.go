package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/catalog"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/inquiry"
	"github.com/tradegate/tradegate/pkg/observability"
	"github.com/tradegate/tradegate/pkg/orgs"
	"github.com/tradegate/tradegate/pkg/rbac"
)

func testGate() *rbac.Middleware {
	return rbac.NewMiddleware(observability.NewMetrics(prometheus.NewRegistry()))
}

// withIdentity injects a resolved identity the way the middleware chain
// would
func withIdentity(router *mux.Router, ident *identity.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ident != nil {
			r = r.WithContext(identity.NewContext(r.Context(), ident))
		}
		router.ServeHTTP(w, r)
	})
}

func salesIdentity() *identity.Identity {
	return &identity.Identity{
		User:  identity.User{ID: "u1", Email: "sales@acme.test"},
		Site:  identity.Site{ID: "s1", TenantID: "t1"},
		Class: identity.RoleClassFactorySales,
		Permissions: identity.NewPermissionSet(
			rbac.PermProductsRead, rbac.PermProductsWrite,
			rbac.PermInquiriesRead,
		),
		Scope: identity.ScopeIDs{
			UserID:    "u1",
			TenantID:  "t1",
			SiteID:    "s1",
			FactoryID: "f1",
		},
	}
}

func TestCatalogHandlers_GetProduct(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewCatalogHandlers(catalog.NewStore(db, db), testGate()).RegisterRoutes(router)

	t.Run("masked row reads as 404", func(t *testing.T) {
		mock.ExpectQuery("FROM products WHERE id = .1").
			WithArgs("p-hidden", "f1", "u1").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		req := httptest.NewRequest("GET", "/products/p-hidden", nil)
		rec := httptest.NewRecorder()
		withIdentity(router, salesIdentity()).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("missing permission is 403", func(t *testing.T) {
		ident := salesIdentity()
		ident.Permissions = identity.NewPermissionSet()

		req := httptest.NewRequest("GET", "/products/p1", nil)
		rec := httptest.NewRecorder()
		withIdentity(router, ident).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("no identity is 401", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/products/p1", nil)
		rec := httptest.NewRecorder()
		withIdentity(router, nil).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalogHandlers_CreateProduct_Conflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewCatalogHandlers(catalog.NewStore(db, db), testGate()).RegisterRoutes(router)

	mock.ExpectQuery("INSERT INTO products").
		WillReturnError(errUnique())

	body, _ := json.Marshal(map[string]string{"name": "Desk", "slug": "desk"})
	req := httptest.NewRequest("POST", "/products", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	withIdentity(router, salesIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryHandlers_Submit_Public(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewInquiryHandlers(inquiry.NewStore(db), orgs.NewStore(db), audit.NopLogger{}, testGate()).
		RegisterPublicRoutes(router)

	siteCols := []string{
		"id", "tenant_id", "name", "site_type", "factory_id", "exporter_id", "dept_id",
		"is_active", "created_at", "updated_at",
	}
	mock.ExpectQuery("FROM sites WHERE id").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(siteCols).
			AddRow("s1", "t1", "Acme Factory Store", "factory", "f1", nil, nil,
				true, time.Now(), time.Now()))
	mock.ExpectQuery("INSERT INTO inquiries").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("i1", time.Now(), time.Now()))

	body, _ := json.Marshal(map[string]string{
		"customer_name":  "Jane Buyer",
		"customer_email": "jane@example.com",
		"message":        "Need 500 units",
	})
	req := httptest.NewRequest("POST", "/sites/s1/inquiries", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var created inquiry.Inquiry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, "i1", created.ID)
	assert.Equal(t, "t1", created.TenantID)
	assert.Equal(t, "f1", created.FactoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInquiryHandlers_List_EmptyScopeReturnsEmptyArray(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewInquiryHandlers(inquiry.NewStore(db), orgs.NewStore(db), audit.NopLogger{}, testGate()).
		RegisterRoutes(router)

	mock.ExpectQuery("FROM inquiries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest("GET", "/inquiries", nil)
	rec := httptest.NewRecorder()
	withIdentity(router, salesIdentity()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func errUnique() error { return &pq.Error{Code: "23505"} }

// adminIdentity is an exporter admin of tenant t1 holding the management
// permissions
func adminIdentity() *identity.Identity {
	return &identity.Identity{
		User:  identity.User{ID: "admin-1", Email: "admin@acme.test"},
		Site:  identity.Site{ID: "s1", TenantID: "t1"},
		Class: identity.RoleClassExporterAdmin,
		Permissions: identity.NewPermissionSet(
			rbac.PermRolesManage, rbac.PermSitesManage, rbac.PermUsersManage,
		),
		Scope: identity.ScopeIDs{
			UserID:     "admin-1",
			TenantID:   "t1",
			SiteID:     "s1",
			ExporterID: "e1",
		},
	}
}

func TestRBACHandlers_CreateRole_ClassValidation(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewRBACHandlers(rbac.NewStore(db), audit.NopLogger{}, testGate()).RegisterRoutes(router)

	for _, class := range []string{"super_admin", "made_up_class"} {
		t.Run(class, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{
				"name":         "sneaky",
				"display_name": "Sneaky",
				"class":        class,
			})
			req := httptest.NewRequest("POST", "/roles", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			withIdentity(router, adminIdentity()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	}

	// neither attempt may reach the database
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgHandlers_DeactivateSite_OtherTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewOrgHandlers(orgs.NewStore(db), audit.NopLogger{}, testGate()).RegisterRoutes(router)

	// the update is pinned to the caller's tenant, so the foreign site
	// matches nothing
	mock.ExpectExec("UPDATE sites SET is_active").
		WithArgs(false, "s-foreign", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest("DELETE", "/sites/s-foreign", nil)
	rec := httptest.NewRecorder()
	withIdentity(router, adminIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgHandlers_DeleteDepartment_OtherTenant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewOrgHandlers(orgs.NewStore(db), audit.NopLogger{}, testGate()).RegisterRoutes(router)

	mock.ExpectQuery("FROM departments WHERE id").
		WithArgs("d-foreign", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest("DELETE", "/departments/d-foreign", nil)
	rec := httptest.NewRecorder()
	withIdentity(router, adminIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRBACHandlers_AssignRole_OtherTenantSite(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewRBACHandlers(rbac.NewStore(db), audit.NopLogger{}, testGate()).RegisterRoutes(router)

	mock.ExpectExec("INSERT INTO user_site_roles").
		WithArgs("u9", "admin-1", "r1", "s-foreign", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	body, _ := json.Marshal(map[string]string{
		"user_id": "u9",
		"site_id": "s-foreign",
		"role_id": "r1",
	})
	req := httptest.NewRequest("POST", "/grants", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	withIdentity(router, adminIdentity()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrgHandlers_CreateTenant_RequiresSuperAdmin(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router := mux.NewRouter()
	NewOrgHandlers(orgs.NewStore(db), audit.NopLogger{}, testGate()).RegisterRoutes(router)

	ident := salesIdentity()
	ident.Permissions = identity.NewPermissionSet(rbac.PermSitesManage)

	body, _ := json.Marshal(map[string]string{"name": "Acme", "slug": "acme"})
	req := httptest.NewRequest("POST", "/tenants", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	withIdentity(router, ident).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
