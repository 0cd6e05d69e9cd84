// Package executor applies a SQL script to a database.
//
// A run moves through three strategies, first success wins:
//
//	native  the whole script in one call
//	split   statement by statement, skipping objects that already exist
//	cli     the original script piped to the engine's command-line client
//
// Each strategy is a single method that returns the next strategy, so every
// transition can be exercised on its own.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/lockplane/provision/internal/classify"
	"github.com/lockplane/provision/internal/fallback"
	"github.com/lockplane/provision/internal/splitter"
)

// Executor holds the policy for applying scripts. The zero value uses the
// default splitter and a message-only classifier and has no fallback.
type Executor struct {
	Classifier classify.Classifier
	Split      splitter.Func
	// Fallback runs the script out of process. Nil means none is available.
	Fallback fallback.Runner
	// StatementTimeout bounds each statement of the split strategy.
	StatementTimeout time.Duration
	Logger           log.Interface
}

type run struct {
	*Executor
	conn   Conn
	script string
	report *Report
	// cause is the error that sent the run to the next strategy.
	cause error
}

// Run applies script over conn and commits on success. On failure the
// caller owns rolling back whatever transaction conn still holds.
func (e *Executor) Run(ctx context.Context, conn Conn, script string) (*Report, error) {
	r := &run{Executor: e, conn: conn, script: script, report: &Report{}}

	state := StrategyNative
	if splitter.HasDelimiterDirective(script) {
		r.logger().Warn("script uses DELIMITER directives, handing it to the command-line client")
		state = StrategyCLI
	}

	for state != stateDone {
		r.report.Strategy = state
		next, err := r.step(ctx, state)
		if err != nil {
			return r.report, err
		}
		state = next
	}
	return r.report, nil
}

func (r *run) step(ctx context.Context, s Strategy) (Strategy, error) {
	switch s {
	case StrategyNative:
		return r.native(ctx)
	case StrategySplit:
		return r.split(ctx)
	case StrategyCLI:
		return r.cli(ctx)
	default:
		return stateDone, fmt.Errorf("unknown strategy %d", s)
	}
}

func (r *run) native(ctx context.Context) (Strategy, error) {
	if err := ctx.Err(); err != nil {
		return stateDone, err
	}

	// One call is one statement as far as cancellation goes.
	err := r.conn.ExecMulti(context.WithoutCancel(ctx), r.script)
	if err == nil {
		if err := r.conn.Commit(); err != nil {
			return stateDone, fmt.Errorf("failed to commit: %w", err)
		}
		return stateDone, nil
	}

	switch r.classifier().Classify(err) {
	case classify.Unsupported:
		r.logger().Debug("native multi-statement execution unsupported, splitting script")
		return StrategySplit, nil
	case classify.DuplicateObject:
		// The native path cannot skip single statements; start over on the
		// split path, which can.
		r.logger().WithError(err).Info("object already exists, re-running statement by statement")
		if rbErr := r.conn.Rollback(); rbErr != nil {
			r.logger().WithError(rbErr).Debug("rollback before split")
		}
		return StrategySplit, nil
	default:
		return stateDone, fmt.Errorf("failed to execute script: %w", err)
	}
}

func (r *run) split(ctx context.Context) (Strategy, error) {
	res := r.splitter()(r.script)
	r.report.Warnings = append(r.report.Warnings, res.Warnings...)
	for _, w := range res.Warnings {
		r.logger().WithField("ordinal", w.Ordinal).Warn(w.Message)
	}

	for _, st := range res.Statements {
		if err := ctx.Err(); err != nil {
			return stateDone, &StatementError{Ordinal: st.Ordinal, SQL: st.SQL, Err: err}
		}

		out := r.execStatement(ctx, st)
		r.report.Outcomes = append(r.report.Outcomes, out)
		if out.Status != Failed {
			continue
		}

		stmtErr := &StatementError{Ordinal: st.Ordinal, SQL: st.SQL, Err: out.Err}
		if ctx.Err() != nil {
			return stateDone, stmtErr
		}
		if st.Routine && errors.Is(out.Err, context.DeadlineExceeded) {
			// The client would run the routine again with unknown side
			// effects from the first attempt.
			r.logger().WithField("ordinal", st.Ordinal).Error("routine timed out, not retrying")
			return stateDone, stmtErr
		}
		r.cause = stmtErr
		return StrategyCLI, nil
	}

	if err := r.conn.Commit(); err != nil {
		return stateDone, fmt.Errorf("failed to commit: %w", err)
	}
	return stateDone, nil
}

func (r *run) execStatement(ctx context.Context, st splitter.Statement) Outcome {
	logger := r.logger().WithField("ordinal", st.Ordinal)
	out := Outcome{Statement: st}

	res, err := r.exec(ctx, st, st.SQL)
	if err == nil {
		out.Result = res
		logger.Debug("statement applied")
		return out
	}
	if r.skip(logger, &out, err) {
		return out
	}

	stripped := strings.TrimRight(st.SQL, "; \t\r\n")
	timedOutRoutine := st.Routine && errors.Is(err, context.DeadlineExceeded)
	if stripped == st.SQL || timedOutRoutine || ctx.Err() != nil {
		out.Status = Failed
		out.Err = err
		return out
	}

	logger.WithError(err).Debug("retrying without trailing semicolon")
	res, err = r.exec(ctx, st, stripped)
	if err == nil {
		out.Result = res
		out.Reason = "applied without trailing semicolon"
		return out
	}
	if r.skip(logger, &out, err) {
		return out
	}
	out.Status = Failed
	out.Err = err
	return out
}

func (r *run) skip(logger log.Interface, out *Outcome, err error) bool {
	if r.classifier().Classify(err) != classify.DuplicateObject {
		return false
	}
	out.Status = SkippedIdempotent
	out.Reason = classify.Message(err)
	logger.WithField("reason", out.Reason).Warn("already exists, skipping statement")
	return true
}

func (r *run) exec(ctx context.Context, st splitter.Statement, sql string) (Result, error) {
	if st.Routine {
		// Engines treat routine DDL as atomic; never interrupt one midway.
		ctx = context.WithoutCancel(ctx)
	}
	if r.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.StatementTimeout)
		defer cancel()
	}
	return r.conn.Exec(ctx, sql)
}

func (r *run) cli(ctx context.Context) (Strategy, error) {
	if r.cause != nil {
		r.report.Escalation = r.cause
		r.report.Outcomes = nil
		r.logger().WithError(r.cause).Warn("statement execution failed, falling back to command-line client")
	}

	// The client needs locks the open transaction may hold.
	if err := r.conn.Rollback(); err != nil {
		r.logger().WithError(err).Debug("rollback before fallback")
	}

	if r.Fallback == nil {
		return stateDone, errors.Join(ErrFallbackUnavailable, r.cause)
	}
	if err := r.Fallback.Run(ctx, r.script, r.conn.Params()); err != nil {
		return stateDone, errors.Join(err, r.cause)
	}
	return stateDone, nil
}

func (r *run) classifier() classify.Classifier {
	if r.Classifier == nil {
		return classify.Default
	}
	return r.Classifier
}

func (r *run) splitter() splitter.Func {
	if r.Split == nil {
		return splitter.Split
	}
	return r.Split
}

func (r *run) logger() log.Interface {
	base := r.Logger
	if base == nil {
		base = log.Log
	}
	return base.WithField("strategy", r.report.Strategy.String())
}
