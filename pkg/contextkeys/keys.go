// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application are defined here. This
// prevents typos, documents cross-package dependencies, and keeps key usage
// discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// UserIDKey contains the authenticated user id (string).
	// Set by: middleware.AuthMiddleware after credential verification.
	UserIDKey Key = "user_id"

	// IdentityKey contains *identity.Identity, the fully resolved
	// request identity (user, active site, role, permissions, scope ids).
	// Set by: middleware.IdentityMiddleware.
	// Required by: permission gate, all scoped handlers.
	IdentityKey Key = "identity"

	// RequestIDKey contains the request ID string (UUID).
	// Set by: middleware.RequestLogging.
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger for request-scoped logging.
	LoggerKey Key = "logger"
)

// WithUserID adds the authenticated user id to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// UserID retrieves the authenticated user id from the context
func UserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// WithIdentity adds the resolved identity to the context. The value is kept
// untyped here to avoid an import cycle; pkg/identity provides typed
// accessors.
func WithIdentity(ctx context.Context, ident interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, ident)
}

// WithRequestID adds the request id to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID retrieves the request id from the context
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
