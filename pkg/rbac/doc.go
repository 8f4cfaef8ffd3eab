// Package rbac provides the permission gate, the permission catalog, system
// role definitions, and custom role management.
//
// The gate checks a resolved identity's permission set against named
// permissions; it never talks to the database, so checks are pure and cheap.
// Permission denial and scope masking are distinct outcomes: the gate says
// "you may not perform this action" (403), while the scope filter silently
// hides rows (lists shrink, direct fetches 404).
package rbac
