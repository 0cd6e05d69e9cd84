package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lockplane/provision/internal/config"
	"github.com/lockplane/provision/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last run of every script",
	Long: `Show the last run of every script from the run journal
(.provision-state.json). Configured scripts that were never applied are
listed as pending; scripts whose file changed since the last successful
run are marked modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return runStatus(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusHeaderStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var statusCellStyle = lipgloss.NewStyle().Padding(0, 1)

func runStatus(out io.Writer, cfg *config.Config) error {
	journal, err := state.Load(cfg.ConfigDir())
	if err != nil {
		return err
	}

	var rows [][]string
	seen := map[string]bool{}
	for _, r := range journal.Latest() {
		seen[r.Script] = true
		rows = append(rows, []string{
			r.Script,
			r.Environment,
			r.Strategy,
			strconv.Itoa(r.Applied),
			strconv.Itoa(r.Skipped),
			scriptStatus(cfg, journal, r),
			r.AppliedAt.Local().Format(time.DateTime),
		})
	}
	for _, name := range cfg.ScriptNames() {
		if !seen[name] {
			rows = append(rows, []string{name, cfg.Scripts[name].Environment, "", "", "", "pending", ""})
		}
	}

	if len(rows) == 0 {
		_, _ = fmt.Fprintln(out, "No scripts applied yet.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("SCRIPT", "ENVIRONMENT", "STRATEGY", "APPLIED", "SKIPPED", "STATUS", "WHEN").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return statusHeaderStyle
			}
			return statusCellStyle
		})
	_, _ = fmt.Fprintln(out, t.String())
	return nil
}

// scriptStatus reports failed, modified or ok for the latest run of a script
func scriptStatus(cfg *config.Config, journal *state.State, r state.RunRecord) string {
	if !r.Succeeded {
		return "failed"
	}
	sc, ok := cfg.Scripts[r.Script]
	if !ok {
		return "ok"
	}
	data, err := os.ReadFile(cfg.ScriptPath(sc))
	if err != nil {
		return "missing"
	}
	if last := journal.LastSuccess(r.Script); last != nil && last.Checksum != state.Checksum(string(data)) {
		return "modified"
	}
	return "ok"
}
