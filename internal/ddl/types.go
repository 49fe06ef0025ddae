// Package ddl holds a small, dialect-neutral model of the destination table.
// Backends render it into their own CREATE TABLE syntax; nothing here quotes
// identifiers or emits dialect-specific clauses.
package ddl

import (
	"fmt"
	"strings"
)

// ColumnDef describes one column.
//
//   - Name: unquoted column name; quoting happens at render time.
//   - SQLType: the backend's column type (BIGINT, VARCHAR(50), ...).
//   - Nullable: whether NULL is allowed.
//   - AutoIncrement: the database generates values for this column.
type ColumnDef struct {
	Name          string
	SQLType       string
	Nullable      bool
	AutoIncrement bool
}

// TableDef is a table name, its ordered columns and its primary key.
// AutoIncrementStart is the first generated value for the auto column.
type TableDef struct {
	FQN                string
	Columns            []ColumnDef
	PrimaryKey         []string
	AutoIncrementStart int64
}

// Types maps each logical column of the log table to a backend SQL type.
type Types struct {
	ID           string
	Timestamp    string
	SeverityText string
	Body         string
	TenantID     string
}

// IDStart is the first auto-generated id of a freshly created log table.
const IDStart = 1000

// LogTable returns the destination table definition:
//
//	id            auto-increment
//	timestamp     64-bit integer
//	severity_text text, up to 50 characters
//	body          unbounded text
//	tenant_id     32-bit integer
//	PRIMARY KEY (tenant_id, id)
func LogTable(fqn string, t Types) TableDef {
	return TableDef{
		FQN: fqn,
		Columns: []ColumnDef{
			{Name: "id", SQLType: t.ID, AutoIncrement: true},
			{Name: "timestamp", SQLType: t.Timestamp, Nullable: true},
			{Name: "severity_text", SQLType: t.SeverityText, Nullable: true},
			{Name: "body", SQLType: t.Body, Nullable: true},
			{Name: "tenant_id", SQLType: t.TenantID},
		},
		PrimaryKey:         []string{"tenant_id", "id"},
		AutoIncrementStart: IDStart,
	}
}

// Validate checks the structural invariants every renderer relies on.
func (t TableDef) Validate() error {
	if strings.TrimSpace(t.FQN) == "" {
		return fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("ddl: at least one column is required")
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return fmt.Errorf("ddl: column with empty name in table %s", t.FQN)
		}
		if strings.TrimSpace(c.SQLType) == "" {
			return fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		seen[name] = struct{}{}
	}
	for _, pk := range t.PrimaryKey {
		if _, ok := seen[pk]; !ok {
			return fmt.Errorf("ddl: primary key column %s not defined in table %s", pk, t.FQN)
		}
	}
	return nil
}

// SplitFQN splits a dotted table name into its non-empty segments.
func SplitFQN(fqn string) []string {
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
