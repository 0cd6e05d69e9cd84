package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/lockplane/provision/internal/classify"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/fallback"
	"github.com/lockplane/provision/internal/splitter"
)

const defaultPort = 5432

var routineStart = regexp.MustCompile(`(?i)^\s*CREATE\s+(?:OR\s+REPLACE\s+)?(?:CONSTRAINT\s+)?(?:PROCEDURE|FUNCTION|TRIGGER)\b`)

// Driver implements driver.Driver for PostgreSQL
type Driver struct {
}

// NewDriver creates a new PostgreSQL driver
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns the database driver name
func (d *Driver) Name() string {
	return "postgres"
}

// Open a connection to the database, and run a ping to test it
func (d *Driver) Open(ctx context.Context, connStr string, opts database.Options) (*sql.DB, error) {
	db, err := sql.Open("postgres", withSSLMode(connStr))
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

// withSSLMode disables TLS unless the URL asks for it.
func withSSLMode(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil {
		return connStr
	}
	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Params extracts the psql connection settings.
func (d *Driver) Params(connStr string) (fallback.ConnParams, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return fallback.ConnParams{}, fmt.Errorf("invalid PostgreSQL URL: %w", err)
	}

	port := defaultPort
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return fallback.ConnParams{}, fmt.Errorf("invalid port %q: %w", p, err)
		}
	}
	host := u.Hostname()
	if host == "" {
		host = "localhost"
	}
	password, _ := u.User.Password()

	return fallback.ConnParams{
		Host:     host,
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		Database: strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// SupportsMulti is true unless disabled: lib/pq sends an argument-less Exec through
// the simple query protocol.
func (d *Driver) SupportsMulti(opts database.Options) bool {
	return !opts.NoMulti
}

// Savepoints is true: after an error PostgreSQL rejects every further
// statement until the transaction is rolled back.
func (d *Driver) Savepoints() bool {
	return true
}

func (d *Driver) Classifier() classify.Classifier {
	return classify.Postgres
}

func (d *Driver) Splitter() splitter.Func {
	return Split
}

func (d *Driver) Fallback(binary string) fallback.Runner {
	return fallback.Postgres(binary)
}

// ResetSchema drops every table in the public schema. CASCADE takes care of
// foreign keys between them.
func (d *Driver) ResetSchema(ctx context.Context, db *sql.DB) ([]string, error) {
	return database.DropAllTables(ctx, db, database.DropPlan{
		ListTables: "SELECT tablename FROM pg_tables WHERE schemaname = 'public'",
		DropTable:  "DROP TABLE IF EXISTS %s CASCADE",
		Quote:      pq.QuoteIdentifier,
	})
}

// Split uses the PostgreSQL scanner, which understands dollar quoting. It
// falls back to the generic splitter when the scanner rejects the script.
func Split(script string) splitter.Result {
	parts, err := pg_query.SplitWithScanner(script, true)
	if err != nil {
		res := splitter.Split(script)
		res.Warnings = append(res.Warnings, splitter.Warning{
			Message: fmt.Sprintf("postgres scanner failed, using generic splitter: %v", err),
		})
		return res
	}

	var res splitter.Result
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if database.FirstKeyword(part) == "" {
			continue
		}
		if !strings.HasSuffix(part, ";") {
			part += ";"
		}
		res.Statements = append(res.Statements, splitter.Statement{
			Ordinal: len(res.Statements) + 1,
			SQL:     part,
			Routine: routineStart.MatchString(database.StripLeadingComments(part)),
		})
	}
	return res
}
