package rbac

import (
	"errors"
	"fmt"

	"github.com/tradegate/tradegate/pkg/identity"
)

// ErrForbidden indicates a permission check failed. The API layer maps it
// to 403.
var ErrForbidden = errors.New("permission denied")

// RequireAll checks that the identity holds every listed permission. The
// wildcard permission satisfies anything.
func RequireAll(ident *identity.Identity, permissions ...string) error {
	if ident == nil {
		return fmt.Errorf("%w: no identity", ErrForbidden)
	}
	for _, p := range permissions {
		if !ident.Permissions.Has(p) {
			return fmt.Errorf("%w: %s", ErrForbidden, p)
		}
	}
	return nil
}

// RequireAny checks that the identity holds at least one listed permission
func RequireAny(ident *identity.Identity, permissions ...string) error {
	if ident == nil {
		return fmt.Errorf("%w: no identity", ErrForbidden)
	}
	if len(permissions) == 0 {
		return nil
	}
	if ident.Permissions.HasAny(permissions...) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrForbidden, permissions)
}
