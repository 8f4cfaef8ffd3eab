package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/rbac"
	"github.com/tradegate/tradegate/pkg/scope"
)

// AuditHandlers exposes the audit trail, scope-filtered like any other
// domain read
type AuditHandlers struct {
	logger *audit.DBLogger
	gate   *rbac.Middleware
}

// NewAuditHandlers creates an AuditHandlers
func NewAuditHandlers(logger *audit.DBLogger, gate *rbac.Middleware) *AuditHandlers {
	return &AuditHandlers{logger: logger, gate: gate}
}

// RegisterRoutes registers audit routes
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermission(rbac.PermAuditRead)
	router.Handle("/audit", read(http.HandlerFunc(h.List))).Methods("GET")
}

// List returns audit events visible to the caller, newest first
func (h *AuditHandlers) List(w http.ResponseWriter, r *http.Request) {
	if h.logger == nil {
		httputil.WriteSuccess(w, []audit.Event{})
		return
	}
	ident, _ := identity.FromContext(r.Context())

	filter, err := scope.ForIdentity(ident, scope.TableAuditLogs)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	where, args := filter.SQL(0)

	events, err := h.logger.List(r.Context(), where, args,
		httputil.ParseQueryInt(r, "limit", 50),
		httputil.ParseQueryInt(r, "offset", 0),
	)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteSuccess(w, events)
}
