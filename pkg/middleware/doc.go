// Package middleware provides the HTTP middleware chain: request logging,
// panic recovery, bearer authentication, identity resolution, and rate
// limiting (per-process LRU buckets or Redis-backed fixed windows).
//
// Order matters: logging and recovery wrap everything, authentication puts
// the user id in the context, identity resolution turns it into a full
// identity, and the permission gate in pkg/rbac runs per route after that.
package middleware
