package catalog

import (
	"database/sql"
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate indicates a unique constraint violation.
	ErrDuplicate = errors.New("duplicate entry")

	// ErrConstraint indicates a foreign key or check constraint violation.
	ErrConstraint = errors.New("constraint violation")

	// ErrClosed is returned for operations submitted after Close.
	ErrClosed = errors.New("catalog closed")

	// ErrMalformedFilter is returned for a filter clause that cannot be parsed.
	ErrMalformedFilter = errors.New("malformed filter clause")

	// ErrUnknownCategory is returned for filter or join categories that do not exist.
	ErrUnknownCategory = errors.New("unknown category")

	// ErrUnknownColumn is returned for select columns that do not exist.
	ErrUnknownColumn = errors.New("unknown column")
)

// mapSQLiteError converts SQLite errors to custom error types.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	// modernc.org/sqlite wraps errors; check error message for constraint violations
	errStr := err.Error()
	if strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed") {
		return errors.Join(ErrDuplicate, err)
	}
	if strings.Contains(errStr, "FOREIGN KEY constraint failed") ||
		strings.Contains(errStr, "CHECK constraint failed") ||
		strings.Contains(errStr, "NOT NULL constraint failed") {
		return errors.Join(ErrConstraint, err)
	}
	return err
}
