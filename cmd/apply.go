package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/lockplane/provision/internal/config"
	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/executor"
	"github.com/lockplane/provision/internal/state"
	"github.com/lockplane/provision/internal/verify"
)

// dryRunPreview bounds how much of a script --dry-run prints
const dryRunPreview = 10000

type applyOptions struct {
	Script         string
	DB             string
	DryRun         bool
	Verify         bool
	Reset          bool
	CreateDatabase bool
	NoMulti        bool
	NoFallback     bool
	Client         string
	Timeout        time.Duration
}

var applyOpts applyOptions

var applyCmd = &cobra.Command{
	Use:   "apply [file]",
	Short: "Apply a SQL script to the database",
	Long: `Apply a SQL script to the database.

The script is sent in one call first. When the connection cannot run
multiple statements at once, or an object already exists, it is split into
statements; objects that already exist are skipped. A statement that still
fails hands the whole script to the engine's command-line client (mysql,
psql or sqlite3) unless --no-fallback is set.`,
	Example: `  # Apply a file against the default environment
  provision apply schema.sql

  # Apply a named script from provision.toml and run its verify queries
  provision apply --script schema --verify

  # Apply privileges as root, creating the database if needed
  provision apply setup_mysql_privileges.sql -e root --create-database`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var arg string
		if len(args) > 0 {
			arg = args[0]
		}

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runApply(cmd.Context(), cmd.OutOrStdout(), cfg, arg, applyOpts)
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVar(&applyOpts.Script, "script", "", "Named script from provision.toml")
	applyCmd.Flags().StringVar(&applyOpts.DB, "db", "", "Database connection string (overrides the environment)")
	applyCmd.Flags().BoolVar(&applyOpts.DryRun, "dry-run", false, "Print the script without executing it")
	applyCmd.Flags().BoolVar(&applyOpts.Verify, "verify", false, "Run the script's verify queries afterwards")
	applyCmd.Flags().BoolVar(&applyOpts.Reset, "reset", false, "Drop all tables before applying (also enabled by RESET_SCHEMA)")
	applyCmd.Flags().BoolVar(&applyOpts.CreateDatabase, "create-database", false, "Create the MySQL database if it does not exist")
	applyCmd.Flags().BoolVar(&applyOpts.NoMulti, "no-multi", false, "Disable native multi-statement execution")
	applyCmd.Flags().BoolVar(&applyOpts.NoFallback, "no-fallback", false, "Never hand the script to the command-line client")
	applyCmd.Flags().StringVar(&applyOpts.Client, "client", "", "Path to the command-line client used as fallback")
	applyCmd.Flags().DurationVar(&applyOpts.Timeout, "timeout", 5*time.Minute, "Timeout for each statement (0 disables)")
}

func runApply(ctx context.Context, out io.Writer, cfg *config.Config, arg string, opts applyOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	target, err := resolveScript(cfg, arg, opts.Script)
	if err != nil {
		return err
	}
	script, err := readScript(target.Path)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return printDryRun(out, target, script)
	}

	dbOpts := database.Options{CreateDatabase: opts.CreateDatabase, NoMulti: opts.NoMulti}
	env, d, db, conn, err := openTarget(ctx, cfg, environmentFor(target), opts.DB, dbOpts)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, _ = fmt.Fprintf(out, "Applying %s to %s (%s)\n", target.Name, env.Name, d.Name())

	if opts.Reset || env.ResetSchema {
		dropped, err := d.ResetSchema(ctx, db)
		if err != nil {
			return fmt.Errorf("failed to reset schema: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Dropped %d table(s)\n", len(dropped))
	}

	exec := &executor.Executor{
		Classifier:       d.Classifier(),
		Split:            d.Splitter(),
		StatementTimeout: opts.Timeout,
		Logger:           log.WithField("script", target.Name),
	}
	if !opts.NoFallback {
		exec.Fallback = d.Fallback(opts.Client)
	}

	started := time.Now()
	report, runErr := exec.Run(ctx, conn, script)
	if runErr != nil {
		if rbErr := conn.Rollback(); rbErr != nil {
			log.WithError(rbErr).Warn("rollback failed")
		}
	}

	printReport(out, report)

	record := state.RunRecord{
		Script:      target.Name,
		Checksum:    state.Checksum(script),
		Environment: env.Name,
		Strategy:    report.Strategy.String(),
		Applied:     report.Applied(),
		Skipped:     report.Skipped(),
		Succeeded:   runErr == nil,
	}
	if runErr != nil {
		record.Error = runErr.Error()
	}
	if err := recordRun(cfg, record); err != nil {
		log.WithError(err).Warn("failed to update run journal")
	}

	if runErr != nil {
		return fmt.Errorf("%s failed: %w", target.Name, runErr)
	}
	_, _ = fmt.Fprintf(out, "✓ %s applied via %s in %s\n", target.Name, report.Strategy, time.Since(started).Round(time.Millisecond))

	if opts.Verify {
		if len(target.Verify) == 0 {
			log.Warnf("no verify queries configured for %s", target.Name)
			return nil
		}
		results := verify.Run(ctx, db, target.Verify, log.Log)
		if err := verify.Render(out, results); err != nil {
			return err
		}
	}

	return nil
}

func recordRun(cfg *config.Config, record state.RunRecord) error {
	journal, err := state.Load(cfg.ConfigDir())
	if err != nil {
		return err
	}
	return journal.Record(record)
}

func printDryRun(out io.Writer, target scriptTarget, script string) error {
	preview := script
	if len(preview) > dryRunPreview {
		cut := dryRunPreview
		for cut > 0 && !utf8.RuneStart(preview[cut]) {
			cut--
		}
		preview = preview[:cut] + "\n... (truncated)"
	}
	_, _ = fmt.Fprintf(out, "-- Dry run: %s (%d bytes) --\n%s\n", target.Path, len(script), preview)
	return nil
}

func printReport(out io.Writer, report *executor.Report) {
	if report == nil {
		return
	}

	for _, w := range report.Warnings {
		_, _ = fmt.Fprintf(out, "⚠ statement %d: %s\n", w.Ordinal, w.Message)
	}

	var stmtErr *executor.StatementError
	if report.Escalation != nil && errors.As(report.Escalation, &stmtErr) {
		_, _ = fmt.Fprintf(out, "Statement %d failed, handed the script to the command-line client:\n  %v\n", stmtErr.Ordinal, stmtErr.Err)
	}

	for _, o := range report.Outcomes {
		line := fmt.Sprintf("[%d] %-7s %s", o.Statement.Ordinal, o.Status, firstLine(o.Statement.SQL, 80))
		switch {
		case o.Status == executor.Failed:
			line += fmt.Sprintf("\n          %v", o.Err)
		case o.Reason != "":
			line += fmt.Sprintf(" (%s)", o.Reason)
		case len(o.Result.Columns) > 0:
			line += fmt.Sprintf(" (%d row(s))", len(o.Result.Rows))
		case o.Result.RowsAffected > 0:
			line += fmt.Sprintf(" (%d row(s) affected)", o.Result.RowsAffected)
		}
		_, _ = fmt.Fprintln(out, line)
	}

	if len(report.Outcomes) > 0 {
		_, _ = fmt.Fprintf(out, "%d applied, %d skipped\n", report.Applied(), report.Skipped())
	}
}
