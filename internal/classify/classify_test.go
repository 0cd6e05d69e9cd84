package classify

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

type codedErr struct{ code int }

func (e codedErr) Error() string { return fmt.Sprintf("SQL logic error (%d)", e.code) }
func (e codedErr) Code() int     { return e.code }

func TestMySQLClassifier(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{
			name: "create user on existing user",
			err:  &mysql.MySQLError{Number: 1396, Message: "Operation CREATE USER failed for 'a'@'%'"},
			want: DuplicateObject,
		},
		{
			name: "table exists",
			err:  &mysql.MySQLError{Number: 1050, Message: "Table 'User' already exists"},
			want: DuplicateObject,
		},
		{
			name: "duplicate column",
			err:  &mysql.MySQLError{Number: 1060, Message: "Duplicate column name 'password_hash'"},
			want: DuplicateObject,
		},
		{
			name: "trigger exists",
			err:  &mysql.MySQLError{Number: 1359, Message: "Trigger already exists"},
			want: DuplicateObject,
		},
		{
			name: "syntax error",
			err:  &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"},
			want: Fatal,
		},
		{
			name: "wrapped engine error",
			err:  fmt.Errorf("statement 3: %w", &mysql.MySQLError{Number: 1304, Message: "PROCEDURE p already exists"}),
			want: DuplicateObject,
		},
		{
			name: "unknown code but duplicate message",
			err:  errors.New("Error 9999: View 'v' Already Exists"),
			want: DuplicateObject,
		},
		{
			name: "unsupported capability",
			err:  fmt.Errorf("native path: %w", ErrUnsupported),
			want: Unsupported,
		},
		{
			name: "neutral error with code",
			err:  &Error{Number: 1050, Message: "table exists"},
			want: DuplicateObject,
		},
		{
			name: "nil",
			err:  nil,
			want: Fatal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MySQL.Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPostgresClassifier(t *testing.T) {
	dup := &pq.Error{Code: "42P07", Message: `relation "users" already exists`}
	if got := Postgres.Classify(dup); got != DuplicateObject {
		t.Errorf("expected duplicate for 42P07, got %v", got)
	}

	// Message alone would not match; the SQLSTATE must.
	fn := &pq.Error{Code: "42723", Message: "function p(integer) is defined twice"}
	if got := Postgres.Classify(fn); got != DuplicateObject {
		t.Errorf("expected duplicate for 42723, got %v", got)
	}

	fatal := &pq.Error{Code: "42601", Message: "syntax error at or near \"CREAT\""}
	if got := Postgres.Classify(fatal); got != Fatal {
		t.Errorf("expected fatal for 42601, got %v", got)
	}
}

func TestSQLiteClassifierUsesMessage(t *testing.T) {
	err := fmt.Errorf("exec: %w", codedErr{code: 1})
	if got := SQLite.Classify(err); got != Fatal {
		t.Errorf("generic SQLITE_ERROR should be fatal, got %v", got)
	}

	err = errors.New("SQL logic error: table users already exists (1)")
	if got := SQLite.Classify(err); got != DuplicateObject {
		t.Errorf("expected duplicate, got %v", got)
	}
}

func TestCodeExtraction(t *testing.T) {
	if code, ok := Code(codedErr{code: 19}); !ok || code != 19 {
		t.Errorf("Code() = %d, %v", code, ok)
	}
	if _, ok := Code(errors.New("plain")); ok {
		t.Error("plain error should carry no code")
	}
	if state, ok := SQLState(&pq.Error{Code: "42710"}); !ok || state != "42710" {
		t.Errorf("SQLState() = %q, %v", state, ok)
	}
}

func TestFuncAdapter(t *testing.T) {
	var c Classifier = Func(func(error) Kind { return DuplicateObject })
	if c.Classify(errors.New("x")) != DuplicateObject {
		t.Error("Func should delegate")
	}
	if DuplicateObject.String() != "duplicate_object" || Fatal.String() != "fatal" {
		t.Error("unexpected Kind strings")
	}
}
