// Package api assembles the HTTP surface: routing, middleware ordering, and
// one handler group per domain package.
//
// Middleware runs outside-in: recovery, request logging, metrics, rate
// limiting, token authentication, identity resolution. Everything under
// /v1 except login, OIDC, and public inquiry submission requires an
// authenticated identity.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/auth"
	"github.com/tradegate/tradegate/pkg/catalog"
	"github.com/tradegate/tradegate/pkg/inquiry"
	"github.com/tradegate/tradegate/pkg/media"
	"github.com/tradegate/tradegate/pkg/middleware"
	"github.com/tradegate/tradegate/pkg/observability"
	"github.com/tradegate/tradegate/pkg/orgs"
	"github.com/tradegate/tradegate/pkg/rbac"
)

// Deps carries everything the server wires together
type Deps struct {
	Logger   *observability.Logger
	Metrics  *observability.Metrics
	Resolver middleware.IdentityResolver
	Auth     *auth.Service
	OIDC     *auth.OIDCProvider

	Orgs     *orgs.Store
	Roles    *rbac.Store
	Catalog  *catalog.Store
	Inquiry  *inquiry.Store
	Media    *media.Service
	Audit    audit.Logger
	AuditLog *audit.DBLogger

	RateLimit func(http.Handler) http.Handler
}

// Server is the API server
type Server struct {
	router *mux.Router
}

// NewServer builds the router and registers every handler group
func NewServer(deps Deps) *Server {
	router := mux.NewRouter()

	router.Use(middleware.Recovery(deps.Logger))
	router.Use(middleware.RequestLogging(deps.Logger))
	router.Use(observability.HTTPMetricsMiddleware(deps.Metrics))
	if deps.RateLimit != nil {
		router.Use(deps.RateLimit)
	}

	gate := rbac.NewMiddleware(deps.Metrics)
	authHandlers := NewAuthHandlers(deps.Auth, deps.OIDC, deps.Audit)
	inquiryHandlers := NewInquiryHandlers(deps.Inquiry, deps.Orgs, deps.Audit, gate)

	// Public routes: no token, no identity
	public := router.PathPrefix("/v1").Subrouter()
	authHandlers.RegisterPublicRoutes(public)
	inquiryHandlers.RegisterPublicRoutes(public)

	// Authenticated routes: bearer token resolved to a full identity
	protected := router.PathPrefix("/v1").Subrouter()
	protected.Use(middleware.Authentication(deps.Auth))
	protected.Use(middleware.ResolveIdentity(deps.Resolver))

	authHandlers.RegisterRoutes(protected)
	NewOrgHandlers(deps.Orgs, deps.Audit, gate).RegisterRoutes(protected)
	NewRBACHandlers(deps.Roles, deps.Audit, gate).RegisterRoutes(protected)
	NewCatalogHandlers(deps.Catalog, gate).RegisterRoutes(protected)
	inquiryHandlers.RegisterRoutes(protected)
	NewMediaHandlers(deps.Media, gate).RegisterRoutes(protected)
	NewAuditHandlers(deps.AuditLog, gate).RegisterRoutes(protected)

	return &Server{router: router}
}

// Router exposes the assembled router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
