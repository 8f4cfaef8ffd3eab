package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/observability"
)

// ErrInvalidCredentials covers unknown email, wrong password, and
// deactivated accounts. Callers get one indistinct error so login attempts
// cannot probe which accounts exist.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service implements login, logout, and token verification
type Service struct {
	db         *sql.DB
	sessions   *SessionStore
	tokens     *TokenGenerator
	sessionTTL time.Duration
	bcryptCost int
	metrics    *observability.Metrics
}

// NewService creates the auth service. metrics may be nil.
func NewService(db *sql.DB, sessionTTL time.Duration, bcryptCost int, metrics *observability.Metrics) *Service {
	return &Service{
		db:         db,
		sessions:   NewSessionStore(db),
		tokens:     NewTokenGenerator(),
		sessionTTL: sessionTTL,
		bcryptCost: bcryptCost,
		metrics:    metrics,
	}
}

// Sessions exposes the session store for admin operations
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// Login verifies an email/password pair and issues a session token. The raw
// token is returned exactly once.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Session, error) {
	userID, hash, active, err := s.credentials(ctx, email)
	if err != nil {
		s.recordFailure("unknown_user")
		return "", nil, ErrInvalidCredentials
	}
	if !active {
		s.recordFailure("inactive_user")
		return "", nil, ErrInvalidCredentials
	}
	if !CheckPassword(hash, password) {
		s.recordFailure("bad_password")
		return "", nil, ErrInvalidCredentials
	}

	return s.issueSession(ctx, userID)
}

// LoginFederated issues a session for an externally verified subject. The
// user must already exist; federated login never provisions accounts.
func (s *Service) LoginFederated(ctx context.Context, email string) (string, *Session, error) {
	userID, _, active, err := s.credentials(ctx, email)
	if err != nil || !active {
		s.recordFailure("federated_unknown_user")
		return "", nil, ErrInvalidCredentials
	}
	return s.issueSession(ctx, userID)
}

// Logout revokes the session behind a raw token
func (s *Service) Logout(ctx context.Context, token string) error {
	session, err := s.sessions.GetByTokenHash(ctx, s.tokens.HashToken(token))
	if err != nil {
		return err
	}
	return s.sessions.Revoke(ctx, session.ID)
}

// Authenticate maps a raw bearer token to a user id
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if err := s.tokens.ValidateTokenFormat(token); err != nil {
		s.recordFailure("malformed_token")
		return "", identity.ErrUnauthenticated
	}
	session, err := s.sessions.GetByTokenHash(ctx, s.tokens.HashToken(token))
	if err != nil {
		s.recordFailure("unknown_token")
		return "", identity.ErrUnauthenticated
	}
	return session.UserID, nil
}

// SetPassword rehashes and stores a user's password, revoking existing
// sessions.
func (s *Service) SetPassword(ctx context.Context, userID, password string) error {
	hash, err := HashPassword(password, s.bcryptCost)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2",
		hash, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return identity.ErrUserNotFound
	}
	return s.sessions.RevokeAllForUser(ctx, userID)
}

func (s *Service) issueSession(ctx context.Context, userID string) (string, *Session, error) {
	token, tokenHash, prefix, err := s.tokens.GenerateToken()
	if err != nil {
		return "", nil, err
	}
	session, err := s.sessions.Create(ctx, userID, tokenHash, prefix, s.sessionTTL)
	if err != nil {
		return "", nil, err
	}
	return token, session, nil
}

func (s *Service) credentials(ctx context.Context, email string) (userID, passwordHash string, active bool, err error) {
	var hash sql.NullString
	err = s.db.QueryRowContext(ctx,
		"SELECT id, password_hash, is_active FROM users WHERE email = $1",
		email,
	).Scan(&userID, &hash, &active)
	if err != nil {
		return "", "", false, err
	}
	return userID, hash.String, active, nil
}

func (s *Service) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	}
}
