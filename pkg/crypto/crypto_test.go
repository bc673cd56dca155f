package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEqual(t, "correct horse battery staple", hash)

	require.True(t, VerifyPassword(hash, "correct horse battery staple"))
	require.False(t, VerifyPassword(hash, "wrong password"))
	require.False(t, VerifyPassword("", "anything"))
}

func TestGenerateTokenLengthAndUniqueness(t *testing.T) {
	first, err := GenerateToken(48)
	require.NoError(t, err)
	second, err := GenerateToken(48)
	require.NoError(t, err)

	// 48 random bytes encode to 64 URL-safe characters.
	require.Len(t, first, 64)
	require.NotEqual(t, first, second)
}

func TestSecureCompare(t *testing.T) {
	require.True(t, SecureCompare("abc123", "abc123"))
	require.False(t, SecureCompare("abc123", "abc124"))
	require.False(t, SecureCompare("short", "longer value"))
	require.True(t, SecureCompare("", ""))
}
