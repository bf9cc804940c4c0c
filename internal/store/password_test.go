package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash := HashPassword("correct horse battery staple")
	require.True(t, VerifyPassword("correct horse battery staple", hash))
	require.False(t, VerifyPassword("wrong password", hash))
}

func TestHashIsDeterministicUnderFixedSalt(t *testing.T) {
	a := HashPassword("same-input")
	b := HashPassword("same-input")
	require.Equal(t, a, b, "fixed project salt means identical inputs hash identically")
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	require.False(t, VerifyPassword("whatever", "not-a-phc-hash"))
	require.False(t, VerifyPassword("whatever", ""))
}
