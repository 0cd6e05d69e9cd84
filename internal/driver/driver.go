package driver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lockplane/provision/internal/classify"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/driver/libsql"
	"github.com/lockplane/provision/internal/driver/mysql"
	"github.com/lockplane/provision/internal/driver/postgres"
	"github.com/lockplane/provision/internal/driver/sqlite"
	"github.com/lockplane/provision/internal/fallback"
	"github.com/lockplane/provision/internal/splitter"
)

// Driver bundles everything engine specific about applying a script.
type Driver interface {
	// Name returns the database driver name
	Name() string

	// Open a connection to the database, and run a ping to test it
	Open(ctx context.Context, connStr string, opts database.Options) (*sql.DB, error)

	// Params extracts what the command-line client needs to connect
	Params(connStr string) (fallback.ConnParams, error)

	// SupportsMulti reports whether a connection opened with opts accepts a
	// whole script in one call
	SupportsMulti(opts database.Options) bool

	// Savepoints reports whether a failed statement aborts the transaction
	Savepoints() bool

	Classifier() classify.Classifier
	Splitter() splitter.Func

	// Fallback returns the command-line client, or nil when the engine has none
	Fallback(binary string) fallback.Runner

	// ResetSchema drops every table and returns the dropped names
	ResetSchema(ctx context.Context, db *sql.DB) ([]string, error)
}

// NewDriver creates a new database driver based on the database type.
func NewDriver(databaseType database.DatabaseType) (Driver, error) {
	switch databaseType {
	case database.DatabaseTypeMySQL:
		return mysql.NewDriver(), nil
	case database.DatabaseTypePostgres:
		return postgres.NewDriver(), nil
	case database.DatabaseTypeSQLite:
		return sqlite.NewDriver(), nil
	case database.DatabaseTypeLibSQL:
		return libsql.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", databaseType)
	}
}

// ForConnString detects the engine from connStr and returns its driver.
func ForConnString(connStr string) (Driver, error) {
	return NewDriver(database.Detect(connStr))
}

// Connect opens connStr and wraps it for the executor.
func Connect(ctx context.Context, d Driver, connStr string, opts database.Options) (*sql.DB, *database.SQLConn, error) {
	params, err := d.Params(connStr)
	if err != nil {
		return nil, nil, err
	}
	db, err := d.Open(ctx, connStr, opts)
	if err != nil {
		return nil, nil, err
	}
	conn := database.NewSQLConn(db, database.ConnOptions{
		Multi:      d.SupportsMulti(opts),
		Savepoints: d.Savepoints(),
		Params:     params,
	})
	return db, conn, nil
}
