// Package auth handles credential verification and session lifecycle.
//
// Two credential paths exist: local email/password (bcrypt) and federated
// OIDC. Both end in the same place: an opaque bearer token whose SHA-256
// hash is stored in the sessions table. The raw token is shown to the
// client exactly once and never persisted.
package auth
