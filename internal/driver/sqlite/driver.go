package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lockplane/provision/internal/classify"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/fallback"
	"github.com/lockplane/provision/internal/splitter"
)

// Driver implements driver.Driver for SQLite
type Driver struct {
}

// NewDriver creates a new SQLite driver
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns the database driver name
func (d *Driver) Name() string {
	return "sqlite"
}

// dataSource turns a sqlite:// URL into something modernc accepts. file:
// URIs and plain paths pass through.
func dataSource(connStr string) string {
	if strings.HasPrefix(strings.ToLower(connStr), "sqlite://") {
		return connStr[len("sqlite://"):]
	}
	return connStr
}

// Open a connection to the database, and run a ping to test it
func (d *Driver) Open(ctx context.Context, connStr string, opts database.Options) (*sql.DB, error) {
	path := database.SQLiteFilePath(connStr)
	if path != ":memory:" {
		if _, err := os.Stat(path); os.IsNotExist(err) && !opts.CreateDatabase {
			return nil, fmt.Errorf("database file does not exist: %s", path)
		}
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", dataSource(connStr))
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own database.
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Params carries the file path in Database.
func (d *Driver) Params(connStr string) (fallback.ConnParams, error) {
	return fallback.ConnParams{Database: database.SQLiteFilePath(connStr)}, nil
}

// SupportsMulti is true: Exec runs every statement of a script.
func (d *Driver) SupportsMulti(opts database.Options) bool {
	return !opts.NoMulti
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

func (d *Driver) Fallback(binary string) fallback.Runner {
	return fallback.SQLite(binary)
}

// ResetSchema drops every user table with foreign keys disabled.
func (d *Driver) ResetSchema(ctx context.Context, db *sql.DB) ([]string, error) {
	return database.DropAllTables(ctx, db, database.DropPlan{
		Before:     []string{"PRAGMA foreign_keys = OFF"},
		After:      []string{"PRAGMA foreign_keys = ON"},
		ListTables: "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'",
		DropTable:  "DROP TABLE IF EXISTS %s",
		Quote:      QuoteIdentifier,
	})
}

// QuoteIdentifier quotes a SQLite identifier with double quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
