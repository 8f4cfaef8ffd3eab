package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/orgs"
	"github.com/tradegate/tradegate/pkg/rbac"
	"github.com/tradegate/tradegate/pkg/tree"
)

// OrgHandlers handles tenant, site, and department HTTP requests
type OrgHandlers struct {
	store *orgs.Store
	audit audit.Logger
	gate  *rbac.Middleware
}

// NewOrgHandlers creates an OrgHandlers
func NewOrgHandlers(store *orgs.Store, auditLog audit.Logger, gate *rbac.Middleware) *OrgHandlers {
	return &OrgHandlers{store: store, audit: auditLog, gate: gate}
}

// RegisterRoutes registers organization routes
func (h *OrgHandlers) RegisterRoutes(router *mux.Router) {
	manage := h.gate.RequirePermission(rbac.PermSitesManage)

	// Tenants are platform-level; only super admins hold sites.manage with
	// an unscoped filter, and tenant writes are additionally checked below
	router.Handle("/tenants", manage(http.HandlerFunc(h.CreateTenant))).Methods("POST")
	router.Handle("/tenants", manage(http.HandlerFunc(h.ListTenants))).Methods("GET")
	router.Handle("/tenants/{id}", manage(http.HandlerFunc(h.GetTenant))).Methods("GET")
	router.Handle("/tenants/{id}", manage(http.HandlerFunc(h.DeactivateTenant))).Methods("DELETE")

	router.Handle("/sites", manage(http.HandlerFunc(h.CreateSite))).Methods("POST")
	router.Handle("/sites", manage(http.HandlerFunc(h.ListSites))).Methods("GET")
	router.Handle("/sites/{id}", manage(http.HandlerFunc(h.GetSite))).Methods("GET")
	router.Handle("/sites/{id}", manage(http.HandlerFunc(h.DeactivateSite))).Methods("DELETE")

	router.Handle("/departments", manage(http.HandlerFunc(h.CreateDepartment))).Methods("POST")
	router.Handle("/departments", manage(http.HandlerFunc(h.ListDepartments))).Methods("GET")
	router.Handle("/departments/tree", manage(http.HandlerFunc(h.DepartmentTree))).Methods("GET")
	router.Handle("/departments/reorder", manage(http.HandlerFunc(h.ReorderDepartments))).Methods("POST")
	router.Handle("/departments/{id}", manage(http.HandlerFunc(h.GetDepartment))).Methods("GET")
	router.Handle("/departments/{id}", manage(http.HandlerFunc(h.DeleteDepartment))).Methods("DELETE")
	router.Handle("/departments/{id}/move", manage(http.HandlerFunc(h.MoveDepartment))).Methods("POST")
}

// CreateTenant creates a tenant; super admin only
func (h *OrgHandlers) CreateTenant(w http.ResponseWriter, r *http.Request) {
	if !requireSuperAdmin(w, r) {
		return
	}

	var tenant identity.Tenant
	if !httputil.ParseJSONOrError(w, r, &tenant) {
		return
	}
	if tenant.Name == "" || tenant.Slug == "" {
		httputil.WriteBadRequest(w, "name and slug are required")
		return
	}

	err := h.store.CreateTenant(r.Context(), &tenant)
	if errors.Is(err, orgs.ErrSlugTaken) {
		httputil.WriteConflict(w, "slug already in use")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}

	h.logOrgEvent(r, "org.tenant_create", tenant.ID)
	httputil.WriteCreated(w, tenant)
}

// ListTenants lists all tenants; super admin only
func (h *OrgHandlers) ListTenants(w http.ResponseWriter, r *http.Request) {
	if !requireSuperAdmin(w, r) {
		return
	}
	tenants, err := h.store.ListTenants(r.Context())
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, tenants)
}

// GetTenant retrieves one tenant
func (h *OrgHandlers) GetTenant(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	id := mux.Vars(r)["id"]

	// Tenant admins may read their own tenant
	if ident.Class != identity.RoleClassSuperAdmin && ident.Scope.TenantID != id {
		httputil.WriteNotFound(w, "tenant not found")
		return
	}

	tenant, err := h.store.GetTenant(r.Context(), id)
	if errors.Is(err, orgs.ErrNotFound) {
		httputil.WriteNotFound(w, "tenant not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

// DeactivateTenant soft-deletes a tenant; super admin only
func (h *OrgHandlers) DeactivateTenant(w http.ResponseWriter, r *http.Request) {
	if !requireSuperAdmin(w, r) {
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.store.DeactivateTenant(r.Context(), id); err != nil {
		if errors.Is(err, orgs.ErrNotFound) {
			httputil.WriteNotFound(w, "tenant not found")
			return
		}
		httputil.WriteInternalError(w)
		return
	}
	h.logOrgEvent(r, "org.tenant_deactivate", id)
	httputil.WriteNoContent(w)
}

// CreateSite creates a site within the caller's tenant
func (h *OrgHandlers) CreateSite(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var site identity.Site
	if !httputil.ParseJSONOrError(w, r, &site) {
		return
	}
	if site.Name == "" || site.Type == "" {
		httputil.WriteBadRequest(w, "name and site_type are required")
		return
	}

	// Non-super admins can only create sites in their own tenant
	if ident.Class != identity.RoleClassSuperAdmin {
		site.TenantID = ident.Scope.TenantID
	}
	if site.TenantID == "" {
		httputil.WriteBadRequest(w, "tenant_id is required")
		return
	}

	if err := h.store.CreateSite(r.Context(), &site); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	h.logOrgEvent(r, "org.site_create", site.ID)
	httputil.WriteCreated(w, site)
}

// ListSites lists sites within the caller's tenant
func (h *OrgHandlers) ListSites(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantForRead(w, r)
	if !ok {
		return
	}
	sites, err := h.store.ListSites(r.Context(), tenantID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, sites)
}

// GetSite retrieves one site
func (h *OrgHandlers) GetSite(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	site, err := h.store.GetSite(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, orgs.ErrNotFound) {
		httputil.WriteNotFound(w, "site not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if ident.Class != identity.RoleClassSuperAdmin && site.TenantID != ident.Scope.TenantID {
		httputil.WriteNotFound(w, "site not found")
		return
	}
	httputil.WriteSuccess(w, site)
}

// DeactivateSite soft-deletes a site within the caller's tenant
func (h *OrgHandlers) DeactivateSite(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.store.DeactivateSite(r.Context(), tenantID, id); err != nil {
		if errors.Is(err, orgs.ErrNotFound) {
			httputil.WriteNotFound(w, "site not found")
			return
		}
		httputil.WriteInternalError(w)
		return
	}
	h.logOrgEvent(r, "org.site_deactivate", id)
	httputil.WriteNoContent(w)
}

// CreateDepartment creates a department in the caller's tenant
func (h *OrgHandlers) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var dept identity.Department
	if !httputil.ParseJSONOrError(w, r, &dept) {
		return
	}
	if dept.Name == "" || dept.Category == "" {
		httputil.WriteBadRequest(w, "name and category are required")
		return
	}
	if ident.Class != identity.RoleClassSuperAdmin {
		dept.TenantID = ident.Scope.TenantID
	}
	if dept.TenantID == "" {
		httputil.WriteBadRequest(w, "tenant_id is required")
		return
	}

	if err := h.store.CreateDepartment(r.Context(), &dept); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	h.logOrgEvent(r, "org.department_create", dept.ID)
	httputil.WriteCreated(w, dept)
}

// ListDepartments lists departments flat
func (h *OrgHandlers) ListDepartments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantForRead(w, r)
	if !ok {
		return
	}
	departments, err := h.store.ListDepartments(r.Context(), tenantID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, departments)
}

// DepartmentTree returns departments assembled into trees
func (h *OrgHandlers) DepartmentTree(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantForRead(w, r)
	if !ok {
		return
	}
	roots, err := h.store.DepartmentTree(r.Context(), tenantID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, roots)
}

// GetDepartment retrieves one department within the caller's tenant
func (h *OrgHandlers) GetDepartment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}
	dept, err := h.store.GetDepartment(r.Context(), tenantID, mux.Vars(r)["id"])
	if errors.Is(err, orgs.ErrNotFound) {
		httputil.WriteNotFound(w, "department not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, dept)
}

type moveRequest struct {
	NewParentID *string `json:"new_parent_id"`
}

// MoveDepartment reparents a department after cycle validation
func (h *OrgHandlers) MoveDepartment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}

	var req moveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]
	err := h.store.MoveDepartment(r.Context(), tenantID, id, req.NewParentID)
	switch {
	case errors.Is(err, tree.ErrCycle):
		httputil.WriteUnprocessable(w, "move would create a cycle")
	case errors.Is(err, tree.ErrParentNotFound):
		httputil.WriteUnprocessable(w, "parent department not found")
	case errors.Is(err, tree.ErrDepthExceeded):
		httputil.WriteUnprocessable(w, "department hierarchy too deep")
	case errors.Is(err, orgs.ErrNotFound):
		httputil.WriteNotFound(w, "department not found")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		h.logOrgEvent(r, "org.department_move", id)
		httputil.WriteNoContent(w)
	}
}

type reorderRequest struct {
	TenantID   string   `json:"tenant_id,omitempty"`
	OrderedIDs []string `json:"ordered_ids"`
}

// ReorderDepartments applies a new sibling ordering atomically
func (h *OrgHandlers) ReorderDepartments(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req reorderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.OrderedIDs) == 0 {
		httputil.WriteBadRequest(w, "ordered_ids is required")
		return
	}

	tenantID := req.TenantID
	if ident.Class != identity.RoleClassSuperAdmin || tenantID == "" {
		tenantID = ident.Scope.TenantID
	}

	err := h.store.ReorderDepartments(r.Context(), tenantID, req.OrderedIDs)
	if errors.Is(err, orgs.ErrNotFound) {
		httputil.WriteUnprocessable(w, "one or more departments do not belong to the tenant")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}

// DeleteDepartment removes an empty department within the caller's tenant
func (h *OrgHandlers) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	err := h.store.DeleteDepartment(r.Context(), tenantID, id)
	switch {
	case errors.Is(err, orgs.ErrDepartmentInUse):
		httputil.WriteConflict(w, "department still has children or sites")
	case errors.Is(err, orgs.ErrNotFound):
		httputil.WriteNotFound(w, "department not found")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		h.logOrgEvent(r, "org.department_delete", id)
		httputil.WriteNoContent(w)
	}
}

func (h *OrgHandlers) logOrgEvent(r *http.Request, eventType, resource string) {
	event := &audit.Event{
		EventType: eventType,
		Status:    audit.StatusSuccess,
		Resource:  resource,
		RequestID: contextkeys.RequestID(r.Context()),
	}
	if ident, ok := identity.FromContext(r.Context()); ok {
		event.UserID = ident.User.ID
		event.TenantID = ident.Scope.TenantID
		event.SiteID = ident.Scope.SiteID
	}
	h.audit.Log(r.Context(), event)
}

func requireSuperAdmin(w http.ResponseWriter, r *http.Request) bool {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return false
	}
	if ident.Class != identity.RoleClassSuperAdmin {
		httputil.WriteForbidden(w, "super admin required")
		return false
	}
	return true
}

// tenantScope resolves the tenant predicate a store call must carry: empty
// (unrestricted) for super admins, the caller's own tenant otherwise. A
// non-super-admin identity without a tenant fails closed.
func tenantScope(w http.ResponseWriter, r *http.Request) (string, bool) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return "", false
	}
	if ident.Class == identity.RoleClassSuperAdmin {
		return "", true
	}
	if ident.Scope.TenantID == "" {
		httputil.WriteNotFound(w, "not found")
		return "", false
	}
	return ident.Scope.TenantID, true
}

// tenantForRead resolves which tenant a read applies to: the caller's own,
// or any tenant via the tenant_id query parameter for super admins
func tenantForRead(w http.ResponseWriter, r *http.Request) (string, bool) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return "", false
	}

	tenantID := ident.Scope.TenantID
	if ident.Class == identity.RoleClassSuperAdmin {
		if q := r.URL.Query().Get("tenant_id"); q != "" {
			tenantID = q
		}
	}
	if tenantID == "" {
		httputil.WriteBadRequest(w, "tenant_id is required")
		return "", false
	}
	return tenantID, true
}
