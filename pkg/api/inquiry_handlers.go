package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/inquiry"
	"github.com/tradegate/tradegate/pkg/orgs"
	"github.com/tradegate/tradegate/pkg/rbac"
)

// InquiryHandlers handles inquiry HTTP requests
type InquiryHandlers struct {
	store *inquiry.Store
	orgs  *orgs.Store
	audit audit.Logger
	gate  *rbac.Middleware
}

// NewInquiryHandlers creates an InquiryHandlers
func NewInquiryHandlers(store *inquiry.Store, orgStore *orgs.Store, auditLog audit.Logger, gate *rbac.Middleware) *InquiryHandlers {
	return &InquiryHandlers{store: store, orgs: orgStore, audit: auditLog, gate: gate}
}

// RegisterPublicRoutes registers the anonymous customer submission route
func (h *InquiryHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/sites/{site_id}/inquiries", h.Submit).Methods("POST")
}

// RegisterRoutes registers staff-facing inquiry routes
func (h *InquiryHandlers) RegisterRoutes(router *mux.Router) {
	read := h.gate.RequirePermission(rbac.PermInquiriesRead)
	write := h.gate.RequirePermission(rbac.PermInquiriesWrite)
	assign := h.gate.RequirePermission(rbac.PermInquiriesAssign)

	router.Handle("/inquiries", read(http.HandlerFunc(h.List))).Methods("GET")
	router.Handle("/inquiries/{id}", read(http.HandlerFunc(h.Get))).Methods("GET")
	router.Handle("/inquiries/{id}/assign", assign(http.HandlerFunc(h.Assign))).Methods("POST")
	router.Handle("/inquiries/{id}/close", write(http.HandlerFunc(h.Close))).Methods("POST")
}

// Submit records a customer inquiry against a site. No authentication; the
// site in the URL determines scope.
func (h *InquiryHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	site, err := h.orgs.GetSite(r.Context(), mux.Vars(r)["site_id"])
	if errors.Is(err, orgs.ErrNotFound) {
		httputil.WriteNotFound(w, "site not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if !site.IsActive {
		httputil.WriteNotFound(w, "site not found")
		return
	}

	var inq inquiry.Inquiry
	if !httputil.ParseJSONOrError(w, r, &inq) {
		return
	}
	if inq.CustomerName == "" || inq.CustomerEmail == "" || inq.Message == "" {
		httputil.WriteBadRequest(w, "customer_name, customer_email, and message are required")
		return
	}

	if err := h.store.Submit(r.Context(), site, &inq); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteCreated(w, inq)
}

// List returns inquiries within the caller's scope
func (h *InquiryHandlers) List(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	inquiries, err := h.store.List(r.Context(), ident,
		r.URL.Query().Get("status"),
		httputil.ParseQueryInt(r, "limit", 50),
		httputil.ParseQueryInt(r, "offset", 0),
	)
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if inquiries == nil {
		inquiries = []inquiry.Inquiry{}
	}
	httputil.WriteSuccess(w, inquiries)
}

// Get retrieves one inquiry within the caller's scope
func (h *InquiryHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	inq, err := h.store.Get(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, inquiry.ErrNotFound) {
		httputil.WriteNotFound(w, "inquiry not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteSuccess(w, inq)
}

type assignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// Assign hands an inquiry to a salesperson
func (h *InquiryHandlers) Assign(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	var req assignRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.AssigneeID == "" {
		httputil.WriteBadRequest(w, "assignee_id is required")
		return
	}

	id := mux.Vars(r)["id"]
	err := h.store.Assign(r.Context(), ident, id, req.AssigneeID)
	switch {
	case errors.Is(err, inquiry.ErrNotFound):
		httputil.WriteNotFound(w, "inquiry not found")
	case errors.Is(err, inquiry.ErrAlreadyClosed):
		httputil.WriteConflict(w, "inquiry is closed")
	case err != nil:
		httputil.WriteInternalError(w)
	default:
		h.audit.Log(r.Context(), &audit.Event{
			EventType: "inquiry.assign",
			Status:    audit.StatusSuccess,
			UserID:    ident.User.ID,
			TenantID:  ident.Scope.TenantID,
			SiteID:    ident.Scope.SiteID,
			Resource:  id,
			RequestID: contextkeys.RequestID(r.Context()),
			Message:   "assigned to " + req.AssigneeID,
		})
		httputil.WriteNoContent(w)
	}
}

// Close marks an inquiry resolved
func (h *InquiryHandlers) Close(w http.ResponseWriter, r *http.Request) {
	ident, _ := identity.FromContext(r.Context())

	err := h.store.Close(r.Context(), ident, mux.Vars(r)["id"])
	if errors.Is(err, inquiry.ErrNotFound) {
		httputil.WriteNotFound(w, "inquiry not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}
