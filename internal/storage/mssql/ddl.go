package mssql

import (
	"fmt"
	"strings"

	"github.com/JinheLin/hdfs-log-reader/internal/ddl"
	"github.com/JinheLin/hdfs-log-reader/internal/record"
	"github.com/JinheLin/hdfs-log-reader/internal/storage"
)

// NVARCHAR(n) counts UTF-16 code units and a supplementary rune takes two.
const severityUnits = 2 * record.MaxSeverityLen

var logTypes = ddl.Types{
	ID:           "BIGINT",
	Timestamp:    "BIGINT",
	SeverityText: fmt.Sprintf("NVARCHAR(%d)", severityUnits),
	Body:         "NVARCHAR(MAX)",
	TenantID:     "INT",
}

// BuildDDL returns the drop/create statements for the log table.
// DROP TABLE IF EXISTS needs SQL Server 2016 or later.
func BuildDDL(table string) (storage.TableDDL, error) {
	create, err := BuildCreateTableSQL(ddl.LogTable(table, logTypes))
	if err != nil {
		return storage.TableDDL{}, err
	}
	return storage.TableDDL{
		Drop:   "DROP TABLE IF EXISTS " + msFQN(table),
		Create: []string{create},
	}, nil
}

// BuildCreateTableSQL renders a SQL Server CREATE TABLE statement. The auto
// column becomes IDENTITY(start, 1); primary key columns are NOT NULL.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("mssql %w", err)
	}

	inPK := make(map[string]bool, len(t.PrimaryKey))
	for _, k := range t.PrimaryKey {
		inPK[k] = true
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		var sb strings.Builder
		sb.WriteString(msIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(c.SQLType)
		if c.AutoIncrement {
			start := t.AutoIncrementStart
			if start <= 0 {
				start = 1
			}
			fmt.Fprintf(&sb, " IDENTITY(%d,1)", start)
		}
		if c.Nullable && !inPK[c.Name] {
			sb.WriteString(" NULL")
		} else {
			sb.WriteString(" NOT NULL")
		}
		defs = append(defs, sb.String())
	}
	if len(t.PrimaryKey) > 0 {
		parts := ddl.SplitFQN(t.FQN)
		defs = append(defs, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)",
			msIdent("PK_"+parts[len(parts)-1]),
			strings.Join(mapIdent(t.PrimaryKey), ", "),
		))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", msFQN(t.FQN), strings.Join(defs, ",\n  ")), nil
}
