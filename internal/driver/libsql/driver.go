package libsql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/lockplane/provision/internal/classify"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/driver/sqlite"
	"github.com/lockplane/provision/internal/fallback"
	"github.com/lockplane/provision/internal/splitter"
)

// Driver implements driver.Driver for libSQL and Turso
type Driver struct {
}

// NewDriver creates a new libSQL driver
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns the database driver name
func (d *Driver) Name() string {
	return "libsql"
}

// WithAuthToken adds an auth token to a libsql:// URL unless one is present.
func WithAuthToken(connStr, token string) string {
	if token == "" {
		return connStr
	}
	u, err := url.Parse(connStr)
	if err != nil {
		return connStr
	}
	q := u.Query()
	if q.Get("authToken") != "" {
		return connStr
	}
	q.Set("authToken", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Open a connection to the database, and run a ping to test it
func (d *Driver) Open(ctx context.Context, connStr string, opts database.Options) (*sql.DB, error) {
	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Params only carries the host; there is no command-line client.
func (d *Driver) Params(connStr string) (fallback.ConnParams, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return fallback.ConnParams{}, fmt.Errorf("invalid libSQL URL: %w", err)
	}
	return fallback.ConnParams{
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// SupportsMulti is false: the remote protocol takes one statement per request.
func (d *Driver) SupportsMulti(opts database.Options) bool {
	return false
}

func (d *Driver) Savepoints() bool {
	return false
}

func (d *Driver) Classifier() classify.Classifier {
	return classify.SQLite
}

func (d *Driver) Splitter() splitter.Func {
	return splitter.Split
}

// Fallback is nil; scripts that fail statement by statement fail the run.
func (d *Driver) Fallback(binary string) fallback.Runner {
	return nil
}

func (d *Driver) ResetSchema(ctx context.Context, db *sql.DB) ([]string, error) {
	return sqlite.NewDriver().ResetSchema(ctx, db)
}
