package identity

import "errors"

// Sentinel errors for identity resolution. The API layer maps these onto
// the HTTP error taxonomy; resolution itself never writes responses.
var (
	// ErrUnauthenticated indicates no credential or a failed credential check.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUserNotFound indicates the user row does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserInactive indicates the account exists but is deactivated.
	ErrUserInactive = errors.New("user account is deactivated")

	// ErrNoSiteAccess indicates an authenticated user with zero grants.
	// Authentication alone never yields access.
	ErrNoSiteAccess = errors.New("user has no site access")

	// ErrForbiddenSite indicates the user explicitly requested a site they
	// hold no grant for. Resolution fails closed; it never silently falls
	// back to the default site.
	ErrForbiddenSite = errors.New("no grant for requested site")
)
