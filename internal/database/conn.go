package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/lockplane/provision/internal/classify"
	"github.com/lockplane/provision/internal/executor"
)

// rowKeywords start statements that return rows and must be drained.
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"CALL":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"WITH":     true,
	"VALUES":   true,
	"PRAGMA":   true,
}

// ConnOptions describe what the engine behind a SQLConn can do.
type ConnOptions struct {
	// Multi means one ExecContext call may carry a whole script.
	Multi bool
	// Savepoints wraps every statement in a savepoint, for engines where a
	// failed statement aborts the transaction.
	Savepoints bool
	Params     executor.ConnParams
}

// SQLConn adapts a *sql.DB to executor.Conn. The transaction is begun on
// first use and ends with Commit or Rollback.
type SQLConn struct {
	db   *sql.DB
	tx   *sql.Tx
	opts ConnOptions
	seq  int
}

func NewSQLConn(db *sql.DB, opts ConnOptions) *SQLConn {
	return &SQLConn{db: db, opts: opts}
}

func (c *SQLConn) begin(ctx context.Context) (*sql.Tx, error) {
	if c.tx != nil {
		return c.tx, nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx
	return tx, nil
}

func (c *SQLConn) ExecMulti(ctx context.Context, script string) error {
	if !c.opts.Multi {
		return classify.ErrUnsupported
	}
	tx, err := c.begin(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, script)
	return err
}

func (c *SQLConn) Exec(ctx context.Context, stmt string) (executor.Result, error) {
	tx, err := c.begin(ctx)
	if err != nil {
		return executor.Result{}, err
	}
	if !c.opts.Savepoints {
		return ExecStatement(ctx, tx, stmt)
	}

	c.seq++
	name := fmt.Sprintf("provision_%d", c.seq)
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return executor.Result{}, fmt.Errorf("failed to create savepoint: %w", err)
	}
	res, err := ExecStatement(ctx, tx, stmt)
	if err != nil {
		// Detached: the transaction must stay usable even if ctx expired.
		if _, rbErr := tx.ExecContext(context.WithoutCancel(ctx), "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return res, errors.Join(err, fmt.Errorf("failed to roll back to savepoint: %w", rbErr))
		}
		return res, err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return res, fmt.Errorf("failed to release savepoint: %w", err)
	}
	return res, nil
}

func (c *SQLConn) Commit() error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	return tx.Commit()
}

func (c *SQLConn) Rollback() error {
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func (c *SQLConn) Params() executor.ConnParams { return c.opts.Params }

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ExecStatement runs one statement on q, draining rows when it returns any.
func ExecStatement(ctx context.Context, q Querier, stmt string) (executor.Result, error) {
	if !ReturnsRows(stmt) {
		res, err := q.ExecContext(ctx, stmt)
		if err != nil {
			return executor.Result{}, err
		}
		n, _ := res.RowsAffected()
		return executor.Result{RowsAffected: n}, nil
	}

	rows, err := q.QueryContext(ctx, stmt)
	if err != nil {
		return executor.Result{}, err
	}
	defer func() { _ = rows.Close() }()
	return drain(rows)
}

// drain reads every result set. The columns of the first set with columns
// are kept.
func drain(rows *sql.Rows) (executor.Result, error) {
	var out executor.Result
	for {
		cols, err := rows.Columns()
		if err != nil {
			return out, err
		}
		if out.Columns == nil && len(cols) > 0 {
			out.Columns = cols
		}

		values := make([]sql.RawBytes, len(cols))
		dest := make([]any, len(cols))
		for i := range values {
			dest[i] = &values[i]
		}
		for rows.Next() {
			if err := rows.Scan(dest...); err != nil {
				return out, err
			}
			row := make([]string, len(values))
			for i, v := range values {
				if v == nil {
					row[i] = "NULL"
				} else {
					row[i] = string(v)
				}
			}
			out.Rows = append(out.Rows, row)
		}
		if err := rows.Err(); err != nil {
			return out, err
		}
		if !rows.NextResultSet() {
			break
		}
	}
	out.RowsAffected = int64(len(out.Rows))
	return out, rows.Err()
}

// ReturnsRows reports whether stmt starts with a keyword that produces a
// result set. Leading comments and parentheses are skipped.
func ReturnsRows(stmt string) bool {
	return rowKeywords[strings.ToUpper(FirstKeyword(stmt))]
}

// FirstKeyword returns the first word of stmt after comments and opening
// parentheses, or "" when there is none.
func FirstKeyword(stmt string) string {
	s := StripLeadingComments(stmt)
	for strings.HasPrefix(s, "(") {
		s = StripLeadingComments(s[1:])
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '_'
	})
	if end < 0 {
		return s
	}
	return s[:end]
}

// StripLeadingComments removes whitespace and comments that precede the
// first token of stmt.
func StripLeadingComments(stmt string) string {
	s := stmt
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "--"), strings.HasPrefix(s, "#"):
			idx := strings.IndexByte(s, '\n')
			if idx < 0 {
				return ""
			}
			s = s[idx+1:]
		case strings.HasPrefix(s, "/*"):
			idx := strings.Index(s, "*/")
			if idx < 0 {
				return ""
			}
			s = s[idx+2:]
		default:
			return s
		}
	}
}
