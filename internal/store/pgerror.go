package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgxErrorCode extracts the Postgres SQLSTATE code from err, if any.
func pgxErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
