package wizard

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/driver"
	"github.com/lockplane/provision/internal/driver/libsql"
)

// ValidateEnvironmentName checks if an environment name is valid
func ValidateEnvironmentName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name cannot be empty")
	}

	for _, ch := range name {
		isValid := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-'
		if !isValid {
			return fmt.Errorf("environment name must contain only letters, numbers, underscores, and hyphens")
		}
	}

	return nil
}

// ValidatePort checks if a port number is valid
func ValidatePort(port string) error {
	if port == "" {
		return fmt.Errorf("port cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("port must be a number")
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	return nil
}

// ValidateConnectionString checks that connStr is well-formed for dbType
func ValidateConnectionString(connStr string, dbType string) error {
	if connStr == "" {
		return fmt.Errorf("connection string cannot be empty")
	}

	detected := string(database.Detect(connStr))
	if detected != dbType {
		switch dbType {
		case "mysql":
			return fmt.Errorf("MySQL connection string must be mysql:// or a DSN such as user:pass@tcp(host:3306)/db")
		case "postgres":
			return fmt.Errorf("PostgreSQL connection string must start with postgres:// or postgresql://")
		case "sqlite":
			return fmt.Errorf("SQLite connection string must be sqlite:// or a .db file path")
		case "libsql":
			return fmt.Errorf("libSQL connection string must start with libsql://")
		default:
			return fmt.Errorf("unsupported database type: %s", dbType)
		}
	}

	return nil
}

// TestConnection opens connStr with the matching driver and pings it.
// SQLite files are created if missing.
func TestConnection(ctx context.Context, connStr string) error {
	d, err := driver.ForConnString(connStr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := database.Options{CreateDatabase: d.Name() == "sqlite"}
	db, err := d.Open(ctx, connStr, opts)
	if err != nil {
		return err
	}
	return db.Close()
}

// ConnectionString builds the URL for env
func ConnectionString(env EnvironmentInput) string {
	switch env.DatabaseType {
	case "mysql":
		return BuildMySQLConnectionString(env)
	case "postgres":
		return BuildPostgresConnectionString(env)
	case "sqlite":
		return BuildSQLiteConnectionString(env)
	case "libsql":
		return BuildLibSQLConnectionString(env)
	}
	return ""
}

func serverURL(scheme string, env EnvironmentInput, defaultPort string) *url.URL {
	port := env.Port
	if port == "" {
		port = defaultPort
	}
	u := &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(env.Host, port),
		Path:   "/" + env.Database,
	}
	if env.Password != "" {
		u.User = url.UserPassword(env.User, env.Password)
	} else if env.User != "" {
		u.User = url.User(env.User)
	}
	return u
}

// BuildMySQLConnectionString constructs a mysql:// URL
func BuildMySQLConnectionString(env EnvironmentInput) string {
	return serverURL("mysql", env, "3306").String()
}

// BuildPostgresConnectionString constructs a PostgreSQL connection string
func BuildPostgresConnectionString(env EnvironmentInput) string {
	u := serverURL("postgresql", env, "5432")
	u.RawQuery = url.Values{"sslmode": {sslModeFor(env)}}.Encode()
	return u.String()
}

// sslModeFor defaults to disable for local hosts and require elsewhere
func sslModeFor(env EnvironmentInput) string {
	if env.SSLMode != "" {
		return env.SSLMode
	}
	if isLocalHost(env.Host) {
		return "disable"
	}
	return "require"
}

func isLocalHost(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// BuildSQLiteConnectionString constructs a SQLite connection string
func BuildSQLiteConnectionString(env EnvironmentInput) string {
	filePath := env.FilePath
	if filePath == "" {
		filePath = "./provision.db"
	} else if !strings.HasPrefix(filePath, "./") && !strings.HasPrefix(filePath, "/") && !strings.Contains(filePath, "://") {
		filePath = "./" + filePath
	}

	// Paths without a recognised extension would be mistaken for a MySQL DSN
	if !database.IsSQLiteFilePath(filePath) {
		filePath = "sqlite://" + filePath
	}
	return filePath
}

// BuildLibSQLConnectionString constructs a libSQL connection string
func BuildLibSQLConnectionString(env EnvironmentInput) string {
	return libsql.WithAuthToken(env.URL, env.AuthToken)
}

// ParseConnectionString parses a mysql:// or postgres:// URL into its parts
func ParseConnectionString(connStr string) (EnvironmentInput, error) {
	dbType := string(database.Detect(connStr))
	env := EnvironmentInput{DatabaseType: dbType}

	switch dbType {
	case "sqlite":
		env.FilePath = database.SQLiteFilePath(connStr)
		return env, nil
	case "libsql":
		u, err := url.Parse(connStr)
		if err != nil {
			return env, fmt.Errorf("invalid connection string format: %w", err)
		}
		env.AuthToken = u.Query().Get("authToken")
		u.RawQuery = ""
		env.URL = u.String()
		return env, nil
	case "mysql":
		if !strings.HasPrefix(strings.ToLower(connStr), "mysql://") {
			return env, fmt.Errorf("MySQL connection string must start with mysql://")
		}
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return env, fmt.Errorf("invalid connection string format: %w", err)
	}

	if u.User != nil {
		env.User = u.User.Username()
		if password, ok := u.User.Password(); ok {
			env.Password = password
		}
	}

	env.Host = u.Hostname()
	env.Port = u.Port()
	if env.Port == "" {
		if t, ok := databaseTypeByID(dbType); ok {
			env.Port = t.DefaultPort
		}
	}

	env.Database = strings.TrimPrefix(u.Path, "/")

	if dbType == "postgres" {
		env.SSLMode = u.Query().Get("sslmode")
		if env.SSLMode == "" {
			env.SSLMode = sslModeFor(env)
		}
	}

	if env.Host == "" {
		return env, fmt.Errorf("connection string missing host")
	}
	if env.Database == "" {
		return env, fmt.Errorf("connection string missing database name")
	}
	if env.User == "" {
		return env, fmt.Errorf("connection string missing user")
	}

	return env, nil
}
