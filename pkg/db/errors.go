package db

import (
	"errors"
	"strings"

	pkgerrors "github.com/angelmondragon/backoffice-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres or sqlite. A non-empty constraintName must also appear somewhere in
// the error chain.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if constraintName != "" {
		for e := err; e != nil; e = errors.Unwrap(e) {
			if strings.Contains(e.Error(), constraintName) {
				return true
			}
		}
		return false
	}
	if pkgerrors.IsCode(pkgerrors.FromDB(err, "unique check"), pkgerrors.CodeConflict) {
		return true
	}
	// lib/pq and pgx both render this prefix when the typed error was lost.
	return strings.Contains(err.Error(), "duplicate key value")
}
