package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// TokenPrefix identifies TradeGate session tokens
	TokenPrefix = "tg_"
	// TokenLength is the number of random bytes (256 bits)
	TokenLength = 32
)

// TokenGenerator generates and hashes session tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a session token.
// Format: tg_<base64url(32 random bytes)>. Only the SHA-256 hash is stored;
// displayPrefix (tg_ plus the first 8 encoded chars) is kept for listing
// sessions without exposing the token.
func (tg *TokenGenerator) GenerateToken() (token, tokenHash, displayPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encoded

	hash := sha256.Sum256([]byte(fullToken))

	prefix := TokenPrefix
	if len(encoded) >= 8 {
		prefix = TokenPrefix + encoded[:8]
	}
	return fullToken, hex.EncodeToString(hash[:]), prefix, nil
}

// HashToken computes the SHA-256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks the token shape without touching the database
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("invalid token prefix")
	}
	encoded := strings.TrimPrefix(token, TokenPrefix)
	if _, err := base64.RawURLEncoding.DecodeString(encoded); err != nil {
		return fmt.Errorf("invalid token encoding")
	}
	return nil
}
