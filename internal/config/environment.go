package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/lockplane/provision/internal/driver/libsql"
)

// ResolvedEnvironment represents a fully-resolved environment with concrete values.
type ResolvedEnvironment struct {
	Name        string
	Description string
	DatabaseURL string
	// Source names where DatabaseURL came from, e.g. "--db" or "MYSQL_*".
	Source string
	// ResetSchema drops every table before the script runs.
	ResetSchema bool
	DotenvPaths []string
	FromConfig  bool
}

// ResolveEnvironment resolves a named environment into a connection string.
// override, when set, wins over every other source.
//
// Values are looked up in .env.<name>, then .env, then the process
// environment. The first source that yields a URL wins, in this order:
// url_var, DATABASE_URL, MYSQL_*, POSTGRES_URL, SQLITE_DB_PATH, LIBSQL_URL,
// database_url from provision.toml.
func ResolveEnvironment(config *Config, name, override string) (*ResolvedEnvironment, error) {
	envName := strings.TrimSpace(name)
	if envName == "" {
		if config != nil && config.DefaultEnvironment != "" {
			envName = config.DefaultEnvironment
		} else {
			envName = defaultEnvironmentName
		}
	}

	var (
		envConfig EnvironmentConfig
		envExists bool
	)
	if config != nil && config.Environments != nil {
		envConfig, envExists = config.Environments[envName]
	}

	resolved := &ResolvedEnvironment{
		Name:        envName,
		Description: envConfig.Description,
		FromConfig:  envExists,
	}

	baseDir := config.ConfigDir()
	values := map[string]string{}
	for _, fileName := range []string{".env." + envName, ".env"} {
		path := filepath.Join(baseDir, fileName)
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to access %s: %w", path, err)
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		fileValues, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		for k, v := range fileValues {
			if _, ok := values[k]; !ok {
				values[k] = v
			}
		}
		resolved.DotenvPaths = append(resolved.DotenvPaths, path)
	}

	if config != nil && len(config.Environments) > 0 && !envExists && len(resolved.DotenvPaths) == 0 && override == "" {
		return nil, fmt.Errorf("environment %q not defined in %s and no dotenv file found in %s", envName, FileName, baseDir)
	}

	lookup := func(key string) string {
		if v, ok := values[key]; ok && v != "" {
			return v
		}
		return os.Getenv(key)
	}

	resolved.ResetSchema = parseBool(lookup("RESET_SCHEMA"))

	if override != "" {
		resolved.DatabaseURL = override
		resolved.Source = "--db"
		return resolved, nil
	}

	if envConfig.URLVar != "" {
		if v := lookup(envConfig.URLVar); v != "" {
			resolved.DatabaseURL = v
			resolved.Source = envConfig.URLVar
			return resolved, nil
		}
	}

	if v := lookup("DATABASE_URL"); v != "" {
		resolved.DatabaseURL = v
		resolved.Source = "DATABASE_URL"
		return resolved, nil
	}

	mysqlURL, err := mysqlURLFromParts(lookup)
	if err != nil {
		return nil, err
	}
	if mysqlURL != "" {
		resolved.DatabaseURL = mysqlURL
		resolved.Source = "MYSQL_*"
		return resolved, nil
	}

	for _, key := range []string{"POSTGRES_URL", "SQLITE_DB_PATH"} {
		if v := lookup(key); v != "" {
			resolved.DatabaseURL = v
			resolved.Source = key
			return resolved, nil
		}
	}

	if v := lookup("LIBSQL_URL"); v != "" {
		resolved.DatabaseURL = libsql.WithAuthToken(v, lookup("LIBSQL_AUTH_TOKEN"))
		resolved.Source = "LIBSQL_URL"
		return resolved, nil
	}

	if envConfig.DatabaseURL != "" {
		resolved.DatabaseURL = envConfig.DatabaseURL
		resolved.Source = FileName
		return resolved, nil
	}

	hint := "DATABASE_URL"
	if envConfig.URLVar != "" {
		hint = envConfig.URLVar
	}
	return nil, fmt.Errorf("no database configured for environment %q: set %s (or MYSQL_USER, MYSQL_PASSWORD and MYSQL_DATABASE) in .env.%s", envName, hint, envName)
}

// mysqlURLFromParts builds a mysql:// URL from MYSQL_HOST, MYSQL_PORT,
// MYSQL_USER, MYSQL_PASSWORD and MYSQL_DATABASE. User, password and
// database must be set together; it returns "" when none of them is.
func mysqlURLFromParts(lookup func(string) string) (string, error) {
	user := lookup("MYSQL_USER")
	password := lookup("MYSQL_PASSWORD")
	dbName := lookup("MYSQL_DATABASE")
	if user == "" && password == "" && dbName == "" {
		return "", nil
	}
	if user == "" || password == "" || dbName == "" {
		return "", fmt.Errorf("please set MYSQL_USER, MYSQL_PASSWORD and MYSQL_DATABASE together")
	}

	host := lookup("MYSQL_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	port := lookup("MYSQL_PORT")
	if port == "" {
		port = "3306"
	}

	u := url.URL{
		Scheme: "mysql",
		User:   url.UserPassword(user, password),
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + dbName,
	}
	return u.String(), nil
}

func parseBool(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "1", "YES", "TRUE", "Y":
		return true
	default:
		return false
	}
}
