package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStoreSecretsDiffer(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	require.NotEqual(t, s.active, s.inactive)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)

	claim := UserClaim{ServerName: "alpha", UID: 42}
	token, err := s.Encode(claim)
	require.NoError(t, err)

	got, err := s.Decode(token)
	require.NoError(t, err)
	require.Equal(t, claim.ServerName, got.ServerName)
	require.Equal(t, claim.UID, got.UID)
}

func TestTokenVerifiesAfterOneRotation(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)

	claim := UserClaim{ServerName: "alpha", UID: 7}
	token, err := s.Encode(claim)
	require.NoError(t, err)

	require.NoError(t, s.Rotate())

	got, err := s.Decode(token)
	require.NoError(t, err)
	require.Equal(t, claim.UID, got.UID)
}

func TestTokenFailsAfterTwoRotations(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)

	claim := UserClaim{ServerName: "alpha", UID: 7}
	token, err := s.Encode(claim)
	require.NoError(t, err)

	require.NoError(t, s.Rotate())
	require.NoError(t, s.Rotate())

	_, err = s.Decode(token)
	require.Error(t, err)
}

func TestShouldRotateFalseImmediatelyAfterCreation(t *testing.T) {
	s, err := NewStore()
	require.NoError(t, err)
	require.False(t, s.ShouldRotate())
}
