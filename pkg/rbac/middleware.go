package rbac

import (
	"net/http"

	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/observability"
)

// Middleware gates routes on permissions from the resolved identity
type Middleware struct {
	metrics *observability.Metrics
}

// NewMiddleware creates the permission middleware. metrics may be nil.
func NewMiddleware(metrics *observability.Metrics) *Middleware {
	return &Middleware{metrics: metrics}
}

// RequirePermission returns middleware that requires every listed
// permission. Requests without a resolved identity get 401; requests whose
// identity lacks a permission get 403.
func (m *Middleware) RequirePermission(permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident, ok := identity.FromContext(r.Context())
			if !ok {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			if err := RequireAll(ident, permissions...); err != nil {
				m.recordDenial(permissions)
				observability.FromContext(r.Context()).
					WithField("user_id", ident.User.ID).
					WithField("site_id", ident.Site.ID).
					Warnf("permission denied: %v", permissions)
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) recordDenial(permissions []string) {
	if m.metrics == nil {
		return
	}
	for _, p := range permissions {
		m.metrics.PermissionDeniesTotal.WithLabelValues(p).Inc()
	}
}
