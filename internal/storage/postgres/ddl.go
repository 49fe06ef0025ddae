package postgres

import (
	"fmt"
	"strings"

	"github.com/JinheLin/hdfs-log-reader/internal/ddl"
	"github.com/JinheLin/hdfs-log-reader/internal/storage"
)

var logTypes = ddl.Types{
	ID:           "BIGINT",
	Timestamp:    "BIGINT",
	SeverityText: "VARCHAR(50)",
	Body:         "TEXT",
	TenantID:     "INTEGER",
}

// BuildDDL returns the drop/create statements for the log table.
func BuildDDL(table string) (storage.TableDDL, error) {
	create, err := BuildCreateTableSQL(ddl.LogTable(table, logTypes))
	if err != nil {
		return storage.TableDDL{}, err
	}
	return storage.TableDDL{
		Drop:   "DROP TABLE IF EXISTS " + pgFQN(table),
		Create: []string{create},
	}, nil
}

// BuildCreateTableSQL renders a Postgres CREATE TABLE statement. The auto
// column becomes an identity column starting at TableDef.AutoIncrementStart.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("postgres %w", err)
	}

	defs := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		var sb strings.Builder
		sb.WriteString(pgIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(c.SQLType)
		if c.AutoIncrement {
			start := t.AutoIncrementStart
			if start <= 0 {
				start = 1
			}
			fmt.Fprintf(&sb, " GENERATED BY DEFAULT AS IDENTITY (START WITH %d)", start)
		}
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		defs = append(defs, sb.String())
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(mapIdent(t.PrimaryKey), ", ")))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", pgFQN(t.FQN), strings.Join(defs, ",\n  ")), nil
}
