// Package orgs manages the organizational structure: tenants, their sites,
// and the department tree. Department reparenting is cycle-checked and
// sibling reordering is atomic, so the tree the storefront renders is
// always consistent.
package orgs
