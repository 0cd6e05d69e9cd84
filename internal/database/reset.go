package database

import (
	"context"
	"database/sql"
	"fmt"
)

// DropPlan describes how to drop every table of a schema on one engine.
type DropPlan struct {
	// Before and After run around the drops, e.g. to toggle foreign keys.
	Before []string
	After  []string
	// ListTables returns one table name per row.
	ListTables string
	// DropTable formats the DROP statement for a quoted table name.
	DropTable string
	Quote     func(name string) string
}

// DropAllTables drops every table listed by plan.ListTables and returns the
// names it dropped. All statements share one session so session settings
// such as FOREIGN_KEY_CHECKS apply to the drops.
func DropAllTables(ctx context.Context, db *sql.DB, plan DropPlan) ([]string, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	for _, stmt := range plan.Before {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	tables, err := listTables(ctx, conn, plan.ListTables)
	if err != nil {
		return nil, err
	}

	for _, table := range tables {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf(plan.DropTable, plan.Quote(table))); err != nil {
			return nil, fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	for _, stmt := range plan.After {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return tables, fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}

	return tables, nil
}

func listTables(ctx context.Context, conn *sql.Conn, query string) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}
