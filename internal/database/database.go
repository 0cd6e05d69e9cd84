package database

import (
	"strings"
)

// DatabaseType identifies the engine behind a connection string.
type DatabaseType string

const (
	DatabaseTypeMySQL    DatabaseType = "mysql"
	DatabaseTypePostgres DatabaseType = "postgres"
	DatabaseTypeSQLite   DatabaseType = "sqlite"
	DatabaseTypeLibSQL   DatabaseType = "libsql"
)

// Options adjust how a connection is opened.
type Options struct {
	// CreateDatabase creates the target database when the server reports it
	// does not exist.
	CreateDatabase bool
	// NoMulti disables native multi-statement execution.
	NoMulti bool
}

// Detect returns the database type for a connection string. Anything that
// is not recognised is treated as a MySQL DSN.
func Detect(connStr string) DatabaseType {
	lower := strings.ToLower(strings.TrimSpace(connStr))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DatabaseTypePostgres
	case strings.HasPrefix(lower, "libsql://"):
		return DatabaseTypeLibSQL
	case lower == ":memory:", IsSQLiteFilePath(lower):
		return DatabaseTypeSQLite
	default:
		return DatabaseTypeMySQL
	}
}

// IsSQLiteFilePath checks if a string looks like a SQLite file path
func IsSQLiteFilePath(s string) bool {
	s = strings.ToLower(s)

	if s == ":memory:" || strings.HasPrefix(s, "libsql://") {
		return false
	}
	if strings.HasPrefix(s, "sqlite://") || strings.HasPrefix(s, "file:") {
		return true
	}
	return strings.HasSuffix(s, ".db") ||
		strings.HasSuffix(s, ".sqlite") ||
		strings.HasSuffix(s, ".sqlite3")
}

// SQLiteFilePath extracts the file path from a SQLite connection string.
func SQLiteFilePath(connStr string) string {
	path := connStr
	for _, prefix := range []string{"sqlite://", "file:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			if idx := strings.Index(path, "?"); idx >= 0 {
				path = path[:idx]
			}
			return path
		}
	}
	return path
}
