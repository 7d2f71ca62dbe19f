package database

import (
	"database/sql"
	"time"
)

// toMillis normalizes timestamps into UTC millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores a stored timestamp in UTC.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// nullMillisToPtr converts a nullable millisecond column to a time pointer
func nullMillisToPtr(n sql.NullInt64) *time.Time {
	if n.Valid {
		t := fromMillis(n.Int64)
		return &t
	}
	return nil
}

// nullStringValue converts a sql.NullString to a string (empty if not valid)
func nullStringValue(n sql.NullString) string {
	if n.Valid {
		return n.String
	}
	return ""
}

// stringToNull stores empty strings as NULL
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
