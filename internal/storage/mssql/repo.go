// Package mssql implements a Microsoft SQL Server repository on
// github.com/microsoft/go-mssqldb. Batches are written with multi-row INSERT
// statements inside one transaction, split under the server's 2100-parameter
// and 1000-row limits.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/JinheLin/hdfs-log-reader/internal/ddl"
	"github.com/JinheLin/hdfs-log-reader/internal/storage"
)

// maxParams keeps one parameter of headroom under SQL Server's 2100 limit.
const maxParams = 2099

// maxRowsPerInsert is the row limit of a table value constructor.
const maxRowsPerInsert = 1000

// Config holds MSSQL repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository is an MSSQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}
	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	ins := storage.MultiRowInsert{
		Table:       msFQN(r.cfg.Table),
		Columns:     mapIdent(columns),
		MaxParams:   paramLimit(len(columns)),
		Placeholder: storage.AtP,
	}
	n, err := ins.Exec(ctx, r.db, rows)
	if err != nil {
		return 0, fmt.Errorf("mssql: %w", err)
	}
	return n, nil
}

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mssql: exec: %w", err)
	}
	return nil
}

// paramLimit returns the per-statement parameter budget for ncols columns,
// honouring both the parameter and the row limit.
func paramLimit(ncols int) int {
	if ncols > 0 && maxParams/ncols > maxRowsPerInsert {
		return maxRowsPerInsert * ncols
	}
	return maxParams
}

// msIdent bracket-quotes an identifier, doubling embedded closing brackets.
func msIdent(id string) string {
	return "[" + strings.ReplaceAll(id, "]", "]]") + "]"
}

func msFQN(fqn string) string {
	parts := ddl.SplitFQN(fqn)
	for i, p := range parts {
		parts[i] = msIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = msIdent(c)
	}
	return out
}
