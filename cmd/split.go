package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lockplane/provision/internal/database"
	"github.com/lockplane/provision/internal/driver"
)

var splitEngine string

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Print the statements a script splits into",
	Long: `Print the statements a script splits into, numbered in execution order.

Stored procedures, functions and triggers are kept whole. Use --engine
postgres to split with the PostgreSQL scanner, which understands dollar
quoting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := readScript(args[0])
		if err != nil {
			return err
		}
		return runSplit(cmd.OutOrStdout(), script, splitEngine)
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
	splitCmd.Flags().StringVar(&splitEngine, "engine", "mysql", "Splitting dialect: mysql, postgres, sqlite or libsql")
}

func runSplit(out io.Writer, script, engine string) error {
	d, err := driver.NewDriver(database.DatabaseType(engine))
	if err != nil {
		return err
	}

	res := d.Splitter()(script)
	for _, st := range res.Statements {
		kind := ""
		if st.Routine {
			kind = " (routine)"
		}
		_, _ = fmt.Fprintf(out, "-- [%d]%s\n%s\n\n", st.Ordinal, kind, st.SQL)
	}
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(out, "⚠ statement %d: %s\n", w.Ordinal, w.Message)
	}
	_, _ = fmt.Fprintf(out, "%d statement(s)\n", len(res.Statements))
	return nil
}
