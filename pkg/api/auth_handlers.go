package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/auth"
	"github.com/tradegate/tradegate/pkg/contextkeys"
	"github.com/tradegate/tradegate/pkg/httputil"
	"github.com/tradegate/tradegate/pkg/identity"
)

const oidcStateCookie = "tg_oidc_state"

// AuthHandlers handles login, logout, and session introspection
type AuthHandlers struct {
	auth  *auth.Service
	oidc  *auth.OIDCProvider
	audit audit.Logger
}

// NewAuthHandlers creates an AuthHandlers
func NewAuthHandlers(authService *auth.Service, oidc *auth.OIDCProvider, auditLog audit.Logger) *AuthHandlers {
	return &AuthHandlers{auth: authService, oidc: oidc, audit: auditLog}
}

// RegisterPublicRoutes registers routes that run without a token
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/auth/login", h.Login).Methods("POST")
	if h.oidc != nil {
		router.HandleFunc("/auth/oidc/login", h.OIDCLogin).Methods("GET")
		router.HandleFunc("/auth/oidc/callback", h.OIDCCallback).Methods("GET")
	}
}

// RegisterRoutes registers routes that require an identity
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	router.HandleFunc("/auth/me", h.Me).Methods("GET")
	router.HandleFunc("/auth/password", h.ChangePassword).Methods("PUT")
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges credentials for a bearer token
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	token, session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logAuthEvent(r, "auth.login", audit.StatusFailure, "", req.Email)
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}

	h.logAuthEvent(r, "auth.login", audit.StatusSuccess, session.UserID, req.Email)
	httputil.WriteSuccess(w, loginResponse{Token: token, ExpiresAt: session.ExpiresAt})
}

// OIDCLogin redirects to the identity provider
func (h *AuthHandlers) OIDCLogin(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oidcStateCookie,
		Value:    state,
		Path:     "/v1/auth/oidc",
		MaxAge:   300,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oidc.AuthCodeURL(state), http.StatusFound)
}

// OIDCCallback completes the provider handshake and issues a session.
// Accounts are never provisioned here; an unknown email fails login.
func (h *AuthHandlers) OIDCCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(oidcStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "state mismatch")
		return
	}

	email, err := h.oidc.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		httputil.WriteUnauthorized(w, "identity provider exchange failed")
		return
	}

	token, session, err := h.auth.LoginFederated(r.Context(), email)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logAuthEvent(r, "auth.oidc_login", audit.StatusFailure, "", email)
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w)
		return
	}

	h.logAuthEvent(r, "auth.oidc_login", audit.StatusSuccess, session.UserID, email)
	httputil.WriteSuccess(w, loginResponse{Token: token, ExpiresAt: session.ExpiresAt})
}

// Logout revokes the presented session
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if err := h.auth.Logout(r.Context(), token); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	if ident, ok := identity.FromContext(r.Context()); ok {
		h.logAuthEvent(r, "auth.logout", audit.StatusSuccess, ident.User.ID, ident.User.Email)
	}
	httputil.WriteNoContent(w)
}

// Me returns the resolved identity for the presented token and site
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, ident)
}

type changePasswordRequest struct {
	Password string `json:"password"`
}

// ChangePassword sets the caller's own password and revokes their other
// sessions
func (h *AuthHandlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ident, ok := identity.FromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req changePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Password) < 12 {
		httputil.WriteBadRequest(w, "password must be at least 12 characters")
		return
	}

	if err := h.auth.SetPassword(r.Context(), ident.User.ID, req.Password); err != nil {
		httputil.WriteInternalError(w)
		return
	}
	h.logAuthEvent(r, "auth.password_change", audit.StatusSuccess, ident.User.ID, ident.User.Email)
	httputil.WriteNoContent(w)
}

func (h *AuthHandlers) logAuthEvent(r *http.Request, eventType, status, userID, email string) {
	h.audit.Log(r.Context(), &audit.Event{
		EventType: eventType,
		Status:    status,
		UserID:    userID,
		Resource:  email,
		RequestID: contextkeys.RequestID(r.Context()),
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	header := r.Header.Get("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
