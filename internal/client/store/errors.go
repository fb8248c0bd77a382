package store

import (
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// isRowError reports whether err was caused by the data of a single row
// (constraint violation, type mismatch, oversized value) rather than by the
// database itself.
func isRowError(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_MISMATCH, sqlite3.SQLITE_TOOBIG:
		return true
	}
	return false
}

func storageErr(op, table string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, table, err)
}
