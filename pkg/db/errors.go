package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// IsNotFound reports whether the error is GORM's missing-record sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether the provided error references a unique
// constraint. When constraintName is provided, the helper looks for the
// constraint text in the error message; SQLite's phrasing is also matched so
// the in-memory test harness behaves like Postgres.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && strings.Contains(msg, constraintName) {
		return true
	}
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}
