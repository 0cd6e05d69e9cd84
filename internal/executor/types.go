package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/lockplane/provision/internal/fallback"
	"github.com/lockplane/provision/internal/splitter"
)

// ConnParams are the settings needed to reach the database out of process.
type ConnParams = fallback.ConnParams

// ErrFallbackUnavailable is returned when the command-line fallback was
// needed but no client exists on this host.
var ErrFallbackUnavailable = fallback.ErrUnavailable

// Conn is the connection capability the executor drives. One Conn is owned
// by one Run call; it is never used concurrently.
type Conn interface {
	// ExecMulti submits the whole script in one call and drains every
	// result set. It returns classify.ErrUnsupported when the connection
	// cannot do that.
	ExecMulti(ctx context.Context, script string) error
	// Exec runs one statement and drains its rows.
	Exec(ctx context.Context, stmt string) (Result, error)
	Commit() error
	Rollback() error
	Params() ConnParams
}

// Result is what a single statement produced.
type Result struct {
	RowsAffected int64
	Columns      []string
	Rows         [][]string
}

// Strategy is one of the three ways a script can be applied.
type Strategy int

const (
	stateDone Strategy = iota
	StrategyNative
	StrategySplit
	StrategyCLI
)

func (s Strategy) String() string {
	switch s {
	case StrategyNative:
		return "native"
	case StrategySplit:
		return "split"
	case StrategyCLI:
		return "cli"
	default:
		return "done"
	}
}

// Status is the outcome of one statement.
type Status int

const (
	Success Status = iota
	SkippedIdempotent
	Failed
)

func (s Status) String() string {
	switch s {
	case SkippedIdempotent:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "ok"
	}
}

// Outcome records what happened to one statement.
type Outcome struct {
	Statement splitter.Statement
	Status    Status
	Result    Result
	// Reason explains a skip or a retry.
	Reason string
	Err    error
}

// Report describes a finished Run.
type Report struct {
	// Strategy is the strategy that finished the run, successfully or not.
	Strategy Strategy
	// Outcomes holds one entry per statement executed by the split strategy.
	Outcomes []Outcome
	Warnings []splitter.Warning
	// Escalation is the error that moved the run to the command-line client.
	Escalation error
}

// Applied counts statements that ran successfully.
func (r *Report) Applied() int { return r.count(Success) }

// Skipped counts statements skipped because the object already existed.
func (r *Report) Skipped() int { return r.count(SkippedIdempotent) }

func (r *Report) count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}

// StatementError attaches the failing statement to an execution error.
type StatementError struct {
	Ordinal int
	SQL     string
	Err     error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v\n  statement: %s", e.Ordinal, e.Err, truncate(e.SQL, 100))
}

func (e *StatementError) Unwrap() error { return e.Err }

// IsCanceled reports whether err came from a cancelled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
