package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrConflict marks a unique-constraint violation surfaced to callers as a
// retryable conflict. The next scheduled run re-resolves the identity and
// finds the row the other writer committed.
var ErrConflict = errors.New("conflict: identity already created by a concurrent writer")

// IsDuplicateKeyErr reports whether err is a unique-constraint violation.
// Two writers racing to create the same external identity must see this as a
// retryable conflict, not a silent no-op.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	// PostgreSQL (error code 23505)
	if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
		return true
	}

	// MySQL (error code 1062)
	if strings.Contains(err.Error(), "Error 1062") {
		return true
	}

	// SQLite (error code 2067)
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return true
	}

	return false
}
