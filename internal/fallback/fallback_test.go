package fallback

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"reflect"
	"strings"
	"testing"
)

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func shellClient(script string) *Client {
	return &Client{
		Binary:      "sh",
		Args:        func(ConnParams) []string { return []string{"-c", script} },
		PasswordEnv: "MYSQL_PWD",
	}
}

func TestMySQLArgs(t *testing.T) {
	c := MySQL("")
	p := ConnParams{Host: "db.internal", Port: 3307, User: "admin_user", Password: "s3cret", Database: "app"}

	got := c.Args(p)
	want := []string{"-hdb.internal", "-P3307", "-uadmin_user", "app"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Args() = %v, want %v", got, want)
	}
	for _, arg := range got {
		if strings.Contains(arg, "s3cret") {
			t.Fatalf("password leaked into argv: %v", got)
		}
	}
	if c.PasswordEnv != "MYSQL_PWD" {
		t.Errorf("PasswordEnv = %q", c.PasswordEnv)
	}
}

func TestPostgresArgsStopOnError(t *testing.T) {
	args := Postgres("").Args(ConnParams{Host: "localhost", Port: 5432, User: "postgres", Database: "app"})
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "ON_ERROR_STOP=1") {
		t.Errorf("psql must stop on error, got %v", args)
	}
	if !strings.Contains(joined, "-d app") {
		t.Errorf("database missing from %v", args)
	}
}

func TestCommandMissingBinary(t *testing.T) {
	c := MySQL("")
	c.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }

	err := c.Run(context.Background(), "SELECT 1;", ConnParams{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRunPipesScriptAndPassword(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	c := shellClient(`cat; printf '|%s' "$MYSQL_PWD"`)
	c.Stdout = &out

	err := c.Run(context.Background(), "CREATE TABLE t (id INT);", ConnParams{Password: "pw"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if got := out.String(); got != "CREATE TABLE t (id INT);|pw" {
		t.Errorf("client saw %q", got)
	}
}

func TestRunNonZeroExit(t *testing.T) {
	requireShell(t)

	c := shellClient("cat >/dev/null; exit 3")
	err := c.Run(context.Background(), "SELECT 1;", ConnParams{})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %v", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("exit code = %d, want 3", exitErr.Code)
	}
	if err.Error() != "external client exit code 3" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
