package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/identity"
)

type fakeAuth struct {
	userID string
	err    error
}

func (f *fakeAuth) Authenticate(_ context.Context, token string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.userID, nil
}

func okHandler(captured *http.Request) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = *r
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthentication(t *testing.T) {
	t.Run("missing header gets 401", func(t *testing.T) {
		handler := Authentication(&fakeAuth{userID: "u1"})(okHandler(nil))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token gets 401", func(t *testing.T) {
		handler := Authentication(&fakeAuth{err: identity.ErrUnauthenticated})(okHandler(nil))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tg_bogus")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token stores user id", func(t *testing.T) {
		var got http.Request
		handler := Authentication(&fakeAuth{userID: "u1"})(okHandler(&got))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tg_valid")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", contextkeys.UserID(got.Context()))
	})

	t.Run("non-bearer scheme gets 401", func(t *testing.T) {
		handler := Authentication(&fakeAuth{userID: "u1"})(okHandler(nil))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

type fakeResolver struct {
	ident *identity.Identity
	err   error

	gotUserID string
	gotSiteID string
}

func (f *fakeResolver) Resolve(_ context.Context, userID, siteID string) (*identity.Identity, error) {
	f.gotUserID = userID
	f.gotSiteID = siteID
	if f.err != nil {
		return nil, f.err
	}
	return f.ident, nil
}

func TestResolveIdentity(t *testing.T) {
	t.Run("passes site header to resolver", func(t *testing.T) {
		resolver := &fakeResolver{ident: &identity.Identity{}}
		var got http.Request
		handler := ResolveIdentity(resolver)(okHandler(&got))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(contextkeys.WithUserID(req.Context(), "u1"))
		req.Header.Set(SiteHeader, "s2")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "u1", resolver.gotUserID)
		assert.Equal(t, "s2", resolver.gotSiteID)

		_, ok := identity.FromContext(got.Context())
		assert.True(t, ok)
	})

	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"no site access", identity.ErrNoSiteAccess, http.StatusForbidden},
		{"forbidden site", identity.ErrForbiddenSite, http.StatusForbidden},
		{"inactive user", identity.ErrUserInactive, http.StatusUnauthorized},
		{"unknown user", identity.ErrUserNotFound, http.StatusUnauthorized},
		{"store failure", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := ResolveIdentity(&fakeResolver{err: tc.err})(okHandler(nil))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(contextkeys.WithUserID(req.Context(), "u1"))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
		})
	}
}
