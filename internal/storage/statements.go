package storage

import (
	"fmt"
	"strings"

	"complaintsync/internal/complaint"
)

// statements holds the prepared SQL text for one table and dialect.
type statements struct {
	exists string
	get    string
	insert string
	update string
	upsert string // empty when the dialect has no native upsert
}

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func buildStatements(table string, ph placeholder) statements {
	cols := complaint.ColumnNames()
	nonKey := cols[1:]

	params := make([]string, len(cols))
	for i := range cols {
		params[i] = ph(i + 1)
	}

	// UPDATE binds the non-key columns first and the key last, so its
	// parameters are Values()[1:] followed by Values()[0].
	sets := make([]string, len(nonKey))
	for i, col := range nonKey {
		sets[i] = fmt.Sprintf("%s = %s", col, ph(i+1))
	}

	return statements{
		exists: fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s", table, complaint.ColumnID, ph(1)),
		get: fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
			strings.Join(cols, ", "), table, complaint.ColumnID, ph(1)),
		insert: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table, strings.Join(cols, ", "), strings.Join(params, ", ")),
		update: fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
			table, strings.Join(sets, ", "), complaint.ColumnID, ph(len(cols))),
	}
}

// updateArgs orders c's values for the update statement.
func updateArgs(c *complaint.Complaint) []any {
	vals := c.Values()
	return append(vals[1:], vals[0])
}

// mysqlUpsert is INSERT ... ON DUPLICATE KEY UPDATE over every non-key column.
func mysqlUpsert(insert string) string {
	cols := complaint.ColumnNames()[1:]
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}
	return insert + " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// postgresUpsert reports whether the row was inserted: xmax is 0 only for
// tuples created by this statement.
func postgresUpsert(insert string) string {
	cols := complaint.ColumnNames()[1:]
	sets := make([]string, len(cols))
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s RETURNING (xmax = 0) AS inserted",
		insert, complaint.ColumnID, strings.Join(sets, ", "))
}

// createTable renders CREATE TABLE IF NOT EXISTS for a dialect.
func createTable(table, timeType, suffix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	fmt.Fprintf(&b, "  %s VARCHAR(%d) NOT NULL PRIMARY KEY,\n", complaint.ColumnID, complaint.IDMaxLen)
	fmt.Fprintf(&b, "  %s %s NOT NULL,\n", complaint.ColumnComplaintDate, timeType)
	fmt.Fprintf(&b, "  %s %s NOT NULL", complaint.ColumnLastEditDate, timeType)
	for _, col := range complaint.Columns {
		fmt.Fprintf(&b, ",\n  %s VARCHAR(%d) NOT NULL DEFAULT ''", col.Name, col.Max)
	}
	b.WriteString("\n)")
	if suffix != "" {
		b.WriteString(" " + suffix)
	}
	return b.String()
}
