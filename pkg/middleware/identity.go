package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/observability"
)

// SiteHeader lets a client pick one of its granted sites for the request.
// Without it the highest-priority grant decides.
const SiteHeader = "X-Site-ID"

// IdentityResolver builds the full identity for an authenticated user
type IdentityResolver interface {
	Resolve(ctx context.Context, userID, requestedSiteID string) (*identity.Identity, error)
}

// ResolveIdentity turns the authenticated user id into a full identity and
// stores it in the context. Runs after Authentication.
func ResolveIdentity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := contextkeys.UserID(r.Context())
			ident, err := resolver.Resolve(r.Context(), userID, r.Header.Get(SiteHeader))
			if err != nil {
				writeResolutionError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(identity.NewContext(r.Context(), ident)))
		})
	}
}

func writeResolutionError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.FromContext(r.Context()).WithError(err)
	switch {
	case errors.Is(err, identity.ErrUnauthenticated),
		errors.Is(err, identity.ErrUserNotFound),
		errors.Is(err, identity.ErrUserInactive):
		logger.Warn("authentication rejected")
		httputil.WriteUnauthorized(w, "unauthenticated")
	case errors.Is(err, identity.ErrNoSiteAccess):
		logger.Warn("user has no site access")
		httputil.WriteForbidden(w, "no site access")
	case errors.Is(err, identity.ErrForbiddenSite):
		logger.Warn("requested site not granted")
		httputil.WriteForbidden(w, "requested site not granted")
	default:
		logger.Error("identity resolution failed")
		httputil.WriteInternalError(w)
	}
}
