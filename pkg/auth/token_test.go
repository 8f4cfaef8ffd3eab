package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tg := NewTokenGenerator()

	token, hash, prefix, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, TokenPrefix))
	assert.Len(t, hash, 64)
	assert.True(t, strings.HasPrefix(prefix, TokenPrefix))
	assert.Len(t, prefix, len(TokenPrefix)+8)
	assert.NotContains(t, prefix, token[len(prefix):])

	assert.Equal(t, hash, tg.HashToken(token))
}

func TestGenerateToken_Unique(t *testing.T) {
	tg := NewTokenGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, _, _, err := tg.GenerateToken()
		require.NoError(t, err)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestValidateTokenFormat(t *testing.T) {
	tg := NewTokenGenerator()

	token, _, _, err := tg.GenerateToken()
	require.NoError(t, err)

	assert.NoError(t, tg.ValidateTokenFormat(token))
	assert.Error(t, tg.ValidateTokenFormat("spoke_wrongprefix"))
	assert.Error(t, tg.ValidateTokenFormat("tg_!!!not-base64!!!"))
	assert.Error(t, tg.ValidateTokenFormat(""))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret", 4)
	require.NoError(t, err)

	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "wrong"))

	_, err = HashPassword("", 4)
	assert.Error(t, err)
}
