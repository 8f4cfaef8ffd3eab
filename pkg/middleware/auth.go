package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/httputil"
)

// Authenticator maps a raw bearer token to a user id
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (string, error)
}

// Authentication verifies the Authorization header and stores the user id
// in the request context. Requests without a valid token get 401.
func Authentication(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteUnauthorized(w, "missing bearer token")
				return
			}

			userID, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextkeys.WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
