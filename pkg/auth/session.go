package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound indicates no live session matches the token
var ErrSessionNotFound = errors.New("session not found")

// Session is one issued bearer token. TokenHash is the SHA-256 of the raw
// token; the raw token itself is never stored.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// SessionStore persists sessions. Queries avoid database-side time
// functions so the store runs unchanged on PostgreSQL and SQLite.
type SessionStore struct {
	db *sql.DB
}

// NewSessionStore creates a session store
func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Create issues a session row for a verified user
func (s *SessionStore) Create(ctx context.Context, userID, tokenHash, tokenPrefix string, ttl time.Duration) (*Session, error) {
	session := &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		CreatedAt:   time.Now().UTC(),
	}
	session.ExpiresAt = session.CreatedAt.Add(ttl)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, token_hash, token_prefix, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		session.ID, session.UserID, session.TokenHash, session.TokenPrefix,
		session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// GetByTokenHash returns the live session for a token hash. Expired and
// revoked sessions are treated as absent.
func (s *SessionStore) GetByTokenHash(ctx context.Context, tokenHash string) (*Session, error) {
	var session Session
	var revokedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, created_at, expires_at, revoked_at
		FROM sessions
		WHERE token_hash = $1`,
		tokenHash,
	).Scan(
		&session.ID, &session.UserID, &session.TokenHash, &session.TokenPrefix,
		&session.CreatedAt, &session.ExpiresAt, &revokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	if revokedAt.Valid {
		return nil, ErrSessionNotFound
	}
	if time.Now().UTC().After(session.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Revoke marks a session as revoked
func (s *SessionStore) Revoke(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL",
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// RevokeAllForUser revokes every live session of a user, e.g. on
// deactivation or password change.
func (s *SessionStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL",
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions past their expiry, returning the count
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < $1", time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
