package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Placeholder renders the i-th (1-based) bind parameter of a statement.
type Placeholder func(i int) string

// QuestionMark is the placeholder style of MySQL and SQLite.
func QuestionMark(int) string { return "?" }

// AtP is the SQL Server placeholder style (@p1, @p2, ...).
func AtP(i int) string { return fmt.Sprintf("@p%d", i) }

// BuildInsert renders a multi-row INSERT for nrows rows:
//
//	INSERT INTO <table> (<c1>, <c2>) VALUES (?, ?), (?, ?)
//
// table and columns must already be quoted for the target dialect.
func BuildInsert(table string, columns []string, nrows int, ph Placeholder) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(") VALUES ")

	n := 0
	for r := 0; r < nrows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			n++
			sb.WriteString(ph(n))
		}
		sb.WriteByte(')')
	}
	return sb.String()
}

// MultiRowInsert describes how a database/sql backend writes a batch.
type MultiRowInsert struct {
	// Table and Columns are already quoted for the dialect.
	Table   string
	Columns []string

	// MaxParams is the dialect's bind-parameter limit per statement.
	MaxParams int

	Placeholder Placeholder
}

// RowsPerStatement returns how many rows fit in one statement.
func (m MultiRowInsert) RowsPerStatement() int {
	if len(m.Columns) == 0 {
		return 0
	}
	n := m.MaxParams / len(m.Columns)
	if n < 1 {
		n = 1
	}
	return n
}

// Exec writes rows inside a single transaction, splitting them into as few
// multi-row statements as the parameter limit allows. Either every row is
// committed or none is.
func (m MultiRowInsert) Exec(ctx context.Context, db *sql.DB, rows [][]any) (int64, error) {
	if len(m.Columns) == 0 {
		return 0, fmt.Errorf("multi-row insert: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(m.Columns) {
			return 0, fmt.Errorf("multi-row insert: row %d has %d values, want %d", i, len(row), len(m.Columns))
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}

	per := m.RowsPerStatement()
	var inserted int64
	args := make([]any, 0, per*len(m.Columns))
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]

		args = args[:0]
		for _, row := range chunk {
			args = append(args, row...)
		}

		res, err := tx.ExecContext(ctx, BuildInsert(m.Table, m.Columns, len(chunk), m.Placeholder), args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("insert rows %d-%d: %w", start+1, end, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		} else {
			inserted += int64(len(chunk))
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}
