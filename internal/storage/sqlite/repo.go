// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql and modernc.org/sqlite. Batches are written as multi-row
// INSERTs inside one transaction; SQLite has no bulk-load API like Postgres
// COPY, but a single transaction keeps each batch atomic and fast.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JinheLin/hdfs-log-reader/internal/storage"
)

// maxParams matches SQLITE_MAX_VARIABLE_NUMBER of the bundled SQLite.
const maxParams = 32766

// Repository is a SQLite-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a SQLite database and returns a Repository plus a
// Close function.
//
// DSN is passed directly to database/sql; for example:
//
//	"file:logs.db?_pragma=busy_timeout(5000)"
//	"logs.db"
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Surface bad paths and DSNs before any DDL runs.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	closeFn := func() { db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows into the configured table in one transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	ins := storage.MultiRowInsert{
		Table:       quoteFQN(r.cfg.Table),
		Columns:     mapIdent(columns),
		MaxParams:   maxParams,
		Placeholder: storage.QuestionMark,
	}
	n, err := ins.Exec(ctx, r.db, rows)
	if err != nil {
		return 0, fmt.Errorf("sqlite: %w", err)
	}
	return n, nil
}

// Exec executes a single statement (typically DDL).
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("sqlite: exec: %w", err)
	}
	return nil
}

// DB exposes the underlying handle for read-back in tests and tooling.
func (r *Repository) DB() *sql.DB { return r.db }
