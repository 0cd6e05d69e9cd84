package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/executor"
)

const schema = `
-- users and an audit trigger
CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, touched INTEGER DEFAULT 0);
CREATE TABLE audit (user_id INTEGER, note TEXT);
CREATE TRIGGER users_audit AFTER INSERT ON users
BEGIN
  INSERT INTO audit (user_id, note) VALUES (NEW.id, 'created');
  UPDATE users SET touched = touched + 1 WHERE id = NEW.id;
END;
INSERT OR IGNORE INTO users (id, name) VALUES (1, 'alice');
`

func openTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nested", "test.db")
	db, err := NewDriver().Open(context.Background(), path, database.Options{CreateDatabase: true})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

func apply(t *testing.T, db *sql.DB, script string) *executor.Report {
	t.Helper()

	d := NewDriver()
	e := &executor.Executor{Classifier: d.Classifier(), Split: d.Splitter()}
	conn := database.NewSQLConn(db, database.ConnOptions{Multi: d.SupportsMulti(database.Options{})})

	report, err := e.Run(context.Background(), conn, script)
	if err != nil {
		_ = conn.Rollback()
		t.Fatalf("Run failed: %v", err)
	}
	return report
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + QuoteIdentifier(table)).Scan(&n); err != nil {
		t.Fatalf("count %s failed: %v", table, err)
	}
	return n
}

func TestDriver_Name(t *testing.T) {
	if NewDriver().Name() != "sqlite" {
		t.Errorf("Expected name 'sqlite', got '%s'", NewDriver().Name())
	}
}

func TestOpen_MissingFileWithoutCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	if _, err := NewDriver().Open(context.Background(), path, database.Options{}); err == nil {
		t.Fatal("expected an error for a missing database file")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should not have been created")
	}
}

func TestApply_IsIdempotent(t *testing.T) {
	db, _ := openTestDB(t)

	first := apply(t, db, schema)
	if first.Strategy != executor.StrategyNative {
		t.Errorf("first run strategy = %v, want native", first.Strategy)
	}

	second := apply(t, db, schema)
	if second.Strategy != executor.StrategySplit {
		t.Fatalf("second run strategy = %v, want split", second.Strategy)
	}
	if second.Skipped() != 3 {
		t.Errorf("expected 3 skipped statements, got %d: %+v", second.Skipped(), second.Outcomes)
	}
	if second.Applied() != 1 {
		t.Errorf("expected 1 applied statement, got %d", second.Applied())
	}

	if n := count(t, db, "users"); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
	if n := count(t, db, "audit"); n != 1 {
		t.Errorf("audit = %d, want 1 (trigger must fire once)", n)
	}
}

func TestApply_SplitPathKeepsTriggerIntact(t *testing.T) {
	db, _ := openTestDB(t)

	d := NewDriver()
	e := &executor.Executor{Classifier: d.Classifier()}
	conn := database.NewSQLConn(db, database.ConnOptions{Multi: false})

	report, err := e.Run(context.Background(), conn, schema)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Strategy != executor.StrategySplit || report.Applied() != 4 {
		t.Errorf("unexpected report %+v", report)
	}

	var touched int
	if err := db.QueryRow("SELECT touched FROM users WHERE id = 1").Scan(&touched); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if touched != 1 {
		t.Errorf("touched = %d, want 1", touched)
	}
}

func TestApply_SelectReturnsRows(t *testing.T) {
	db, _ := openTestDB(t)
	apply(t, db, schema)

	conn := database.NewSQLConn(db, database.ConnOptions{})
	defer func() { _ = conn.Rollback() }()

	res, err := conn.Exec(context.Background(), "SELECT id, name FROM users;")
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if len(res.Columns) != 2 || len(res.Rows) != 1 || res.Rows[0][1] != "alice" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestResetSchema(t *testing.T) {
	db, _ := openTestDB(t)
	apply(t, db, schema)

	dropped, err := NewDriver().ResetSchema(context.Background(), db)
	if err != nil {
		t.Fatalf("ResetSchema failed: %v", err)
	}
	if len(dropped) != 2 {
		t.Errorf("dropped = %v, want users and audit", dropped)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&n); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if n != 0 {
		t.Errorf("%d tables left after reset", n)
	}
}
