package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/lockplane/provision/internal/classify"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/fallback"
	"github.com/lockplane/provision/internal/splitter"
)

// ErBadDB is returned when the selected database does not exist.
const ErBadDB = 1049

const defaultPort = 3306

// Driver implements driver.Driver for MySQL and MariaDB
type Driver struct {
}

// NewDriver creates a new MySQL driver
func NewDriver() *Driver {
	return &Driver{}
}

// Name returns the database driver name
func (d *Driver) Name() string {
	return "mysql"
}

// Config converts a mysql:// URL or a go-sql-driver DSN into a driver
// config with parseTime enabled.
func Config(connStr string) (*mysql.Config, error) {
	if !strings.HasPrefix(strings.ToLower(connStr), "mysql://") {
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
		}
		cfg.ParseTime = true
		return cfg, nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL URL: %w", err)
	}

	// Query parameters go through the driver's own DSN parser so that
	// every option it knows is honoured.
	cfg, err := mysql.ParseDSN("/?" + u.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL URL parameters: %w", err)
	}

	host := u.Hostname()
	if host == "" {
		host = "127.0.0.1"
	}
	port := u.Port()
	if port == "" {
		port = strconv.Itoa(defaultPort)
	}

	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	return cfg, nil
}

// Open a connection to the database, and run a ping to test it
func (d *Driver) Open(ctx context.Context, connStr string, opts database.Options) (*sql.DB, error) {
	cfg, err := Config(connStr)
	if err != nil {
		return nil, err
	}
	cfg.MultiStatements = !opts.NoMulti

	db, err := open(ctx, cfg)
	var myErr *mysql.MySQLError
	if err != nil && opts.CreateDatabase && errors.As(err, &myErr) && myErr.Number == ErBadDB {
		if err := createDatabase(ctx, cfg); err != nil {
			return nil, err
		}
		db, err = open(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}

func open(ctx context.Context, cfg *mysql.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", cfg.FormatDSN())
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

// createDatabase connects without selecting a database and creates it.
func createDatabase(ctx context.Context, cfg *mysql.Config) error {
	server := cfg.Clone()
	server.DBName = ""

	db, err := open(ctx, server)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", QuoteIdentifier(cfg.DBName))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create database %s: %w", cfg.DBName, err)
	}
	return nil
}

// Params extracts the client connection settings.
func (d *Driver) Params(connStr string) (fallback.ConnParams, error) {
	cfg, err := Config(connStr)
	if err != nil {
		return fallback.ConnParams{}, err
	}

	host, portStr, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		host, portStr = cfg.Addr, strconv.Itoa(defaultPort)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fallback.ConnParams{}, fmt.Errorf("invalid port %q: %w", portStr, err)
	}

	return fallback.ConnParams{
		Host:     host,
		Port:     port,
		User:     cfg.User,
		Password: cfg.Passwd,
		Database: cfg.DBName,
	}, nil
}

// SupportsMulti is true unless multi statements were turned off; Open sets
// the DSN flag accordingly.
func (d *Driver) SupportsMulti(opts database.Options) bool {
	return !opts.NoMulti
}

// Savepoints is false: a failed statement leaves a MySQL transaction usable.
func (d *Driver) Savepoints() bool {
	return false
}

func (d *Driver) Classifier() classify.Classifier {
	return classify.MySQL
}

func (d *Driver) Splitter() splitter.Func {
	return splitter.Split
}

func (d *Driver) Fallback(binary string) fallback.Runner {
	return fallback.MySQL(binary)
}

// ResetSchema drops every base table of the current database with foreign
// key checks disabled.
func (d *Driver) ResetSchema(ctx context.Context, db *sql.DB) ([]string, error) {
	return database.DropAllTables(ctx, db, database.DropPlan{
		Before:     []string{"SET FOREIGN_KEY_CHECKS = 0"},
		After:      []string{"SET FOREIGN_KEY_CHECKS = 1"},
		ListTables: "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'",
		DropTable:  "DROP TABLE IF EXISTS %s",
		Quote:      QuoteIdentifier,
	})
}

// QuoteIdentifier quotes a MySQL identifier with backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
