package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/rbac"
	"github.com/tradegate/tradegate/pkg/tree"
)

// RBACHandlers handles role management and grant HTTP requests
type RBACHandlers struct {
	store *rbac.Store
	audit audit.Logger
	gate  *rbac.Middleware
}

// NewRBACHandlers creates an RBACHandlers
func NewRBACHandlers(store *rbac.Store, auditLog audit.Logger, gate *rbac.Middleware) *RBACHandlers {
	return &RBACHandlers{store: store, audit: auditLog, gate: gate}
}

// RegisterRoutes registers role and grant routes
func (h *RBACHandlers) RegisterRoutes(router *mux.Router) {
	roles := h.gate.RequirePermission(rbac.PermRolesManage)
	users := h.gate.RequirePermission(rbac.PermUsersManage)

	router.Handle("/roles", roles(http.HandlerFunc(h.CreateRole))).Methods("POST")
	router.Handle("/roles", roles(http.HandlerFunc(h.ListRoles))).Methods("GET")
	router.Handle("/roles/{id}", roles(http.HandlerFunc(h.GetRole))).Methods("GET")
	router.Handle("/roles/{id}", roles(http.HandlerFunc(h.UpdateRole))).Methods("PUT")
	router.Handle("/roles/{id}", roles(http.HandlerFunc(h.DeleteRole))).Methods("DELETE")
	router.Handle("/roles/{id}/permissions", roles(http.HandlerFunc(h.SetPermissions))).Methods("PUT")

	router.Handle("/grants", users(http.HandlerFunc(h.AssignRole))).Methods("POST")
	router.Handle("/grants", users(http.HandlerFunc(h.RevokeRole))).Methods("DELETE")
}

type createRoleRequest struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Priority    int      `json:"priority"`
	ParentRoleID *string `json:"parent_role_id,omitempty"`
	Class       string   `json:"class,omitempty"`
	Permissions []string `json:"permissions"`
}

// CreateRole creates a tenant-scoped custom role
func (h *RBACHandlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var req createRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" || req.DisplayName == "" {
		httputil.WriteBadRequest(w, "name and display_name are required")
		return
	}

	class := identity.RoleClass(req.Class)
	if !rbac.ClassAssignable(ident, class) {
		httputil.WriteUnprocessable(w, "role class not assignable")
		return
	}

	role := &identity.Role{
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Priority:     req.Priority,
		ParentRoleID: req.ParentRoleID,
		Class:        class,
	}
	if ident.Scope.TenantID != "" {
		role.TenantID = &ident.Scope.TenantID
	}

	err := h.store.CreateRole(r.Context(), role, req.Permissions)
	if errors.Is(err, rbac.ErrRoleNotFound) {
		httputil.WriteUnprocessable(w, "parent role not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}

	h.logRoleEvent(r, "rbac.role_create", role.ID)
	httputil.WriteCreated(w, role)
}

// ListRoles lists system roles plus the caller tenant's custom roles
func (h *RBACHandlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	roles, err := h.store.ListRoles(r.Context(), ident.Scope.TenantID)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// GetRole retrieves one role visible to the caller's tenant
func (h *RBACHandlers) GetRole(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}
	role, err := h.store.GetTenantRole(r.Context(), tenantID, mux.Vars(r)["id"])
	if errors.Is(err, rbac.ErrRoleNotFound) {
		httputil.WriteNotFound(w, "role not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, role)
}

// UpdateRole updates a custom role; system roles are immutable
func (h *RBACHandlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}

	var req createRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	class := identity.RoleClass(req.Class)
	if !rbac.ClassAssignable(ident, class) {
		httputil.WriteUnprocessable(w, "role class not assignable")
		return
	}

	role := &identity.Role{
		ID:           mux.Vars(r)["id"],
		Name:         req.Name,
		DisplayName:  req.DisplayName,
		Priority:     req.Priority,
		ParentRoleID: req.ParentRoleID,
		Class:        class,
	}

	err := h.store.UpdateRole(r.Context(), tenantID, role)
	switch {
	case errors.Is(err, rbac.ErrSystemRoleImmutable):
		httputil.WriteForbidden(w, "system roles cannot be modified")
	case errors.Is(err, tree.ErrCycle):
		httputil.WriteUnprocessable(w, "parent chain would form a cycle")
	case errors.Is(err, tree.ErrParentNotFound):
		httputil.WriteUnprocessable(w, "parent role not found")
	case errors.Is(err, rbac.ErrRoleNotFound):
		httputil.WriteNotFound(w, "role not found")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		h.logRoleEvent(r, "rbac.role_update", role.ID)
		httputil.WriteSuccess(w, role)
	}
}

// DeleteRole removes an unused custom role within the caller's tenant
func (h *RBACHandlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	err := h.store.DeleteRole(r.Context(), tenantID, id)
	switch {
	case errors.Is(err, rbac.ErrSystemRoleImmutable):
		httputil.WriteForbidden(w, "system roles cannot be deleted")
	case errors.Is(err, rbac.ErrRoleInUse):
		httputil.WriteConflict(w, "role is still assigned to users")
	case errors.Is(err, rbac.ErrRoleNotFound):
		httputil.WriteNotFound(w, "role not found")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		h.logRoleEvent(r, "rbac.role_delete", id)
		httputil.WriteNoContent(w)
	}
}

type setPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

// SetPermissions replaces a custom role's direct permissions
func (h *RBACHandlers) SetPermissions(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	var req setPermissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	err := h.store.SetRolePermissions(r.Context(), tenantID, id, req.Permissions)
	switch {
	case errors.Is(err, rbac.ErrSystemRoleImmutable):
		httputil.WriteForbidden(w, "system roles cannot be modified")
	case errors.Is(err, rbac.ErrRoleNotFound):
		httputil.WriteNotFound(w, "role not found")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		h.logRoleEvent(r, "rbac.role_permissions_set", id)
		httputil.WriteNoContent(w)
	}
}

type grantRequest struct {
	UserID string `json:"user_id"`
	SiteID string `json:"site_id"`
	RoleID string `json:"role_id,omitempty"`
}

// AssignRole grants a user a role on a site, replacing any existing grant
// for that site. Sites and roles outside the caller's tenant read as 404.
func (h *RBACHandlers) AssignRole(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" || req.SiteID == "" || req.RoleID == "" {
		httputil.WriteBadRequest(w, "user_id, site_id, and role_id are required")
		return
	}

	err := h.store.AssignRole(r.Context(), tenantID, req.UserID, req.SiteID, req.RoleID, ident.User.ID)
	if errors.Is(err, rbac.ErrGrantNotFound) {
		httputil.WriteNotFound(w, "site or role not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	h.logRoleEvent(r, "rbac.role_assign", req.UserID+"@"+req.SiteID)
	httputil.WriteNoContent(w)
}

// RevokeRole removes a user's grant on a site within the caller's tenant
func (h *RBACHandlers) RevokeRole(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantScope(w, r)
	if !ok {
		return
	}

	var req grantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.UserID == "" || req.SiteID == "" {
		httputil.WriteBadRequest(w, "user_id and site_id are required")
		return
	}

	err := h.store.RevokeRole(r.Context(), tenantID, req.UserID, req.SiteID)
	if errors.Is(err, rbac.ErrGrantNotFound) {
		httputil.WriteNotFound(w, "grant not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	h.logRoleEvent(r, "rbac.role_revoke", req.UserID+"@"+req.SiteID)
	httputil.WriteNoContent(w)
}

func (h *RBACHandlers) logRoleEvent(r *http.Request, eventType, resource string) {
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
