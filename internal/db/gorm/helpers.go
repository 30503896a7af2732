package gorm

import (
	"database/sql"
)

// nullString creates a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// orderByDate returns the ORDER BY clause for epoch ordering with an id tie-break.
func orderByDate(ascending bool) string {
	if ascending {
		return "created_at_epoch ASC, id ASC"
	}
	return "created_at_epoch DESC, id DESC"
}
