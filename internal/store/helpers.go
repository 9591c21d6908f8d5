package store

import (
	"database/sql"
	"strings"
)

// formatStringArray formats a string slice as a comma-joined TEXT value
// for storage. Tags and links never contain commas, so this avoids a
// JSON round trip for the common case; nil/empty becomes "".
func formatStringArray(arr []string) string {
	if len(arr) == 0 {
		return ""
	}
	return strings.Join(arr, ",")
}

// parseStringArray is the inverse of formatStringArray.
func parseStringArray(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// parseNullableString returns the string held by ns, or "" when the
// column is NULL.
func parseNullableString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
