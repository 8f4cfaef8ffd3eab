package identity

import (
	"context"

	"github.com/tradegate/tradegate/pkg/contextkeys"
)

// NewContext returns a context carrying the resolved identity
func NewContext(ctx context.Context, ident *Identity) context.Context {
	return contextkeys.WithIdentity(ctx, ident)
}

// FromContext retrieves the resolved identity from the context
func FromContext(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(contextkeys.IdentityKey).(*Identity)
	return ident, ok
}
