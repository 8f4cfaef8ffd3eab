// Package identity resolves the per-request identity for TradeGate: the
// authenticated user, the active site, the effective role and its inherited
// permissions, and the derived scope ids.
//
// Resolution is fail-closed. A user with no grants gets ErrNoSiteAccess, a
// deactivated account gets ErrUserInactive, and an explicitly requested site
// without a grant gets ErrForbiddenSite with no fallback to the default
// site. When no site is requested the default is the grant with the highest
// role priority, tie-broken by grant time and then site id so the choice is
// deterministic.
package identity
