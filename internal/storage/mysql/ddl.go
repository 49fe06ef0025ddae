package mysql

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
	Body:         "LONGTEXT",
	TenantID:     "INT",
}

// BuildDDL returns the drop/create statements for the log table.
func BuildDDL(table string) (storage.TableDDL, error) {
	create, err := BuildCreateTableSQL(ddl.LogTable(table, logTypes))
	if err != nil {
		return storage.TableDDL{}, err
	}
	return storage.TableDDL{
		Drop:   "DROP TABLE IF EXISTS " + myFQN(table),
		Create: []string{create},
	}, nil
}

// BuildCreateTableSQL renders a MySQL CREATE TABLE statement.
//
// InnoDB requires an AUTO_INCREMENT column to lead some index; with a
// primary key of (tenant_id, id) a secondary KEY on the auto column is added.
// TiDB accepts the same statement.
func BuildCreateTableSQL(t ddl.TableDef) (string, error) {
	if err := t.Validate(); err != nil {
		return "", fmt.Errorf("mysql %w", err)
	}

	defs := make([]string, 0, len(t.Columns)+2)
	var auto string
	for _, c := range t.Columns {
		var sb strings.Builder
		sb.WriteString(myIdent(c.Name))
		sb.WriteByte(' ')
		sb.WriteString(c.SQLType)
		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if c.AutoIncrement {
			sb.WriteString(" AUTO_INCREMENT")
			auto = c.Name
		}
		defs = append(defs, sb.String())
	}
	if len(t.PrimaryKey) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(mapIdent(t.PrimaryKey), ", ")))
		if auto != "" && t.PrimaryKey[0] != auto {
			defs = append(defs, fmt.Sprintf("KEY %s (%s)", myIdent("idx_"+auto), myIdent(auto)))
		}
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", myFQN(t.FQN), strings.Join(defs, ",\n  "))
	if auto != "" && t.AutoIncrementStart > 0 {
		stmt += fmt.Sprintf(" AUTO_INCREMENT = %d", t.AutoIncrementStart)
	}
	return stmt, nil
}
