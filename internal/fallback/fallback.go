// Package fallback runs a script through the engine's command-line client.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrUnavailable means no client binary could be found on this host.
var ErrUnavailable = errors.New("no fallback available")

// ConnParams are the connection settings handed to the client.
type ConnParams struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Runner executes a whole script out of process.
type Runner interface {
	Run(ctx context.Context, script string, p ConnParams) error
}

// ExitError reports a client that ran but did not exit cleanly.
type ExitError struct {
	Binary string
	Code   int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("external client exit code %d", e.Code)
}

// Client describes how to invoke one command-line client.
type Client struct {
	// Binary is a name looked up on PATH, or an explicit path.
	Binary string
	// Args builds the argument list. The password must never be part of it.
	Args func(p ConnParams) []string
	// PasswordEnv names the variable the client reads the password from.
	PasswordEnv string

	Stdout io.Writer
	Stderr io.Writer

	lookPath func(string) (string, error)
}

// Command builds the command without starting it.
func (c *Client) Command(ctx context.Context, script string, p ConnParams) (*exec.Cmd, error) {
	lookPath := c.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	bin, err := lookPath(c.Binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found: %v", ErrUnavailable, c.Binary, err)
	}

	cmd := exec.CommandContext(ctx, bin, c.Args(p)...)
	cmd.Stdin = strings.NewReader(script)
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	cmd.Env = os.Environ()
	if c.PasswordEnv != "" {
		password := p.Password
		if password == "" {
			password = os.Getenv(c.PasswordEnv)
		}
		cmd.Env = append(cmd.Env, c.PasswordEnv+"="+password)
	}
	return cmd, nil
}

// Run pipes script to the client on stdin and waits for it to exit.
func (c *Client) Run(ctx context.Context, script string, p ConnParams) error {
	cmd, err := c.Command(ctx, script, p)
	if err != nil {
		return err
	}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Binary: c.Binary, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("failed to run %s: %w", c.Binary, err)
	}
	return nil
}

// MySQL invokes `mysql -h<host> -P<port> -u<user> <database>`.
func MySQL(binary string) *Client {
	if binary == "" {
		binary = "mysql"
	}
	return &Client{
		Binary: binary,
		Args: func(p ConnParams) []string {
			return []string{
				"-h" + p.Host,
				"-P" + strconv.Itoa(p.Port),
				"-u" + p.User,
				p.Database,
			}
		},
		PasswordEnv: "MYSQL_PWD",
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Postgres invokes psql and stops on the first error.
func Postgres(binary string) *Client {
	if binary == "" {
		binary = "psql"
	}
	return &Client{
		Binary: binary,
		Args: func(p ConnParams) []string {
			return []string{
				"-h", p.Host,
				"-p", strconv.Itoa(p.Port),
				"-U", p.User,
				"-d", p.Database,
				"-v", "ON_ERROR_STOP=1",
				"-X", "-q",
			}
		},
		PasswordEnv: "PGPASSWORD",
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// SQLite invokes sqlite3 on the database file. Database holds the path.
func SQLite(binary string) *Client {
	if binary == "" {
		binary = "sqlite3"
	}
	return &Client{
		Binary: binary,
		Args: func(p ConnParams) []string {
			return []string{"-bail", p.Database}
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}
