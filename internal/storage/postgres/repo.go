// Package postgres implements a Postgres repository using pgx v5. Each batch
// is written with a single COPY FROM, which Postgres applies atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JinheLin/hdfs-log-reader/internal/ddl"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN     string   // connection string for pgx.Connect
	Table   string   // target table, optionally schema-qualified ("public.logs")
	Columns []string // ordered columns for COPY
}

// Repository is a Postgres-backed implementation of storage.Repository. It
// owns exactly one connection.
type Repository struct {
	conn *pgx.Conn
	cfg  Config
}

// NewRepository connects and returns a Repository plus a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	conn, err := pgx.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgx connect: %w", err)
	}
	closeFn := func() { _ = conn.Close(context.Background()) }
	return &Repository{conn: conn, cfg: cfg}, closeFn, nil
}

// CopyFrom streams rows into the table with COPY FROM STDIN.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("postgres: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.conn.CopyFrom(ctx, pgx.Identifier(ddl.SplitFQN(r.cfg.Table)), columns, pgx.CopyFromRows(rows))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return 0, fmt.Errorf("postgres: copy: %s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
		}
		return 0, fmt.Errorf("postgres: copy: %w", err)
	}
	return n, nil
}

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.conn.Exec(ctx, sql); err != nil {
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

// pgIdent double-quotes an identifier, doubling embedded quotes.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// pgFQN quotes each segment of a dotted name.
func pgFQN(fqn string) string {
	parts := ddl.SplitFQN(fqn)
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
