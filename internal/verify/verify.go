// Package verify runs read-only queries after a script has been applied and
// renders their results.
package verify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lockplane/provision/internal/database"
)

var (
	queryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	borderColour = lipgloss.Color("240")
)

// Result is the outcome of one verification query.
type Result struct {
	Query   string
	Columns []string
	Rows    [][]string
	Err     error
}

// Run executes each query on its own. A failing query is recorded and
// logged as a warning; the remaining queries still run.
func Run(ctx context.Context, q database.Querier, queries []string, logger log.Interface) []Result {
	if logger == nil {
		logger = log.Log
	}

	results := make([]Result, 0, len(queries))
	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			results = append(results, Result{Query: query, Err: err})
			continue
		}

		res, err := database.ExecStatement(ctx, q, query)
		if err != nil {
			logger.WithError(err).WithField("query", query).Warn("verification query failed")
			results = append(results, Result{Query: query, Err: err})
			continue
		}
		results = append(results, Result{Query: query, Columns: res.Columns, Rows: res.Rows})
	}
	return results
}

// Failed counts results that carry an error.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// Render prints every result as a table.
func Render(w io.Writer, results []Result) error {
	var b strings.Builder
	b.WriteString("\n-- Verification queries --\n")

	for _, r := range results {
		b.WriteString("\n" + queryStyle.Render(r.Query) + "\n")
		switch {
		case r.Err != nil:
			b.WriteString(warnStyle.Render(fmt.Sprintf("⚠ Warning: %v", r.Err)) + "\n")
		case len(r.Columns) == 0:
			b.WriteString(mutedStyle.Render("(no result set)") + "\n")
		default:
			b.WriteString(renderTable(r) + "\n")
			b.WriteString(mutedStyle.Render(fmt.Sprintf("%d row(s)", len(r.Rows))) + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderTable(r Result) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(borderColour)).
		Headers(r.Columns...).
		Rows(r.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}
