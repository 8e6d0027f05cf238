package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper
// additionally requires that constraint to be the one violated. The string
// fallback keeps sqlite-backed tests working.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if string(pqErr.Code) != uniqueViolationCode {
			return false
		}
		return constraintName == "" || pqErr.Constraint == constraintName
	}

	msg := err.Error()
	if constraintName != "" {
		// Without a structured driver error, only an explicit mention of the
		// constraint is trustworthy; a bare duplicate-key message could come
		// from any unique index.
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
