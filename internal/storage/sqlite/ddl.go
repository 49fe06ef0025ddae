package sqlite

import (
	"fmt"
	"strings"

	"github.com/JinheLin/hdfs-log-reader/internal/ddl"
	"github.com/JinheLin/hdfs-log-reader/internal/storage"
)

var logTypes = ddl.Types{
	ID:           "INTEGER",
	Timestamp:    "INTEGER",
	SeverityText: "VARCHAR(50)",
	Body:         "TEXT",
	TenantID:     "INTEGER",
}

// BuildDDL returns the drop/create statements for the log table.
func BuildDDL(table string) (storage.TableDDL, error) {
	stmts, err := BuildCreateTableSQL(ddl.LogTable(table, logTypes))
	if err != nil {
		return storage.TableDDL{}, err
	}
	return storage.TableDDL{
		Drop:   "DROP TABLE IF EXISTS " + quoteFQN(table),
		Create: stmts,
	}, nil
}

// BuildCreateTableSQL renders the SQLite statements for t.
//
// SQLite only supports AUTOINCREMENT on a sole INTEGER PRIMARY KEY, so the
// auto column becomes the rowid and the declared composite primary key is
// enforced by a UNIQUE index instead. The auto-increment start is seeded
// through sqlite_sequence.
func BuildCreateTableSQL(t ddl.TableDef) ([]string, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("sqlite %w", err)
	}

	var auto string
	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		var sb strings.Builder
		sb.WriteString(quoteIdent(c.Name))
		sb.WriteByte(' ')
		if c.AutoIncrement {
			if auto != "" {
				return nil, fmt.Errorf("sqlite ddl: more than one auto-increment column in %s", t.FQN)
			}
			auto = c.Name
			sb.WriteString("INTEGER PRIMARY KEY AUTOINCREMENT")
		} else {
			sb.WriteString(c.SQLType)
			if !c.Nullable {
				sb.WriteString(" NOT NULL")
			}
		}
		defs = append(defs, sb.String())
	}

	var index string
	if auto == "" && len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(mapIdent(t.PrimaryKey), ", ")))
	} else if len(t.PrimaryKey) > 1 || (len(t.PrimaryKey) == 1 && t.PrimaryKey[0] != auto) {
		parts := ddl.SplitFQN(t.FQN)
		name := parts[len(parts)-1]
		parts[len(parts)-1] = name + "_pk"
		index = fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteFQN(strings.Join(parts, ".")),
			quoteIdent(name),
			strings.Join(mapIdent(t.PrimaryKey), ", "),
		)
	}

	out := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", quoteFQN(t.FQN), strings.Join(defs, ",\n  ")),
	}
	if index != "" {
		out = append(out, index)
	}
	if auto != "" && t.AutoIncrementStart > 1 {
		parts := ddl.SplitFQN(t.FQN)
		seq := "sqlite_sequence"
		if len(parts) > 1 {
			seq = quoteIdent(parts[0]) + ".sqlite_sequence"
		}
		out = append(out, fmt.Sprintf("INSERT INTO %s (name, seq) VALUES (%s, %d)",
			seq, quoteLiteral(parts[len(parts)-1]), t.AutoIncrementStart-1))
	}
	return out, nil
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func quoteLiteral(s string) string {
	return `'` + strings.ReplaceAll(s, `'`, `''`) + `'`
}

func quoteFQN(fqn string) string {
	parts := ddl.SplitFQN(fqn)
	for i, p := range parts {
		parts[i] = quoteIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = quoteIdent(c)
	}
	return out
}
