package broker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateUsername(t *testing.T) {
	require.NoError(t, ValidateUsername("good_name-1.2"))
	require.Error(t, ValidateUsername(""))
	require.Error(t, ValidateUsername("has a space"))
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword("printable-pw!"))
	require.Error(t, ValidatePassword(""))
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail("person@example.com"))
	require.Error(t, ValidateEmail("not-an-email"))
}

func TestVersionGateAcceptsAheadOnSingleAxis(t *testing.T) {
	// A client behind on major but not strictly behind on every axis must
	// still be accepted — this reproduces the upstream gate exactly.
	require.False(t, VersionGate(0, 5, 5))
}
