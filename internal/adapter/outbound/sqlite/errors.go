package sqlite

import "strings"

// isUniqueConstraint reports whether err is a SQLite UNIQUE constraint
// violation on the given "table.column". modernc.org/sqlite surfaces
// constraint violations as plain error strings rather than a typed
// sentinel, so substring matching is the idiomatic check here.
func isUniqueConstraint(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
