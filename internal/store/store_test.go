package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestNullIfEmpty(t *testing.T) {
	require.Nil(t, nullIfEmpty(""))
	require.Equal(t, "value", nullIfEmpty("value"))
}

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, isUniqueViolation(nil))
	require.False(t, isUniqueViolation(errors.New("some other error")))

	pgErr := &pgconn.PgError{Code: "23505"}
	require.True(t, isUniqueViolation(pgErr))

	other := &pgconn.PgError{Code: "23503"}
	require.False(t, isUniqueViolation(other))
}
