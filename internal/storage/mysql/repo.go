// Package mysql implements a MySQL/TiDB-backed storage.Repository using
// database/sql and github.com/go-sql-driver/mysql. Batches are written with
// multi-row INSERT statements inside one transaction.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/JinheLin/hdfs-log-reader/internal/storage"
)

// maxParams is the MySQL protocol limit on placeholders per prepared statement.
const maxParams = 65535

// Config holds MySQL repository configuration.
type Config struct {
	DSN     string
	Table   string
	Columns []string
}

// Repository is a MySQL-backed implementation of storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// DSN builds the connection string for a local TiDB/MySQL server:
// user root, empty password, database "test".
func DSN(host string, port int) string {
	c := mysql.NewConfig()
	c.User = "root"
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	c.DBName = "test"
	return c.FormatDSN()
}

// NewRepository opens a single MySQL connection and returns a Repository
// plus a Close function.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	if _, err := mysql.ParseDSN(cfg.DSN); err != nil {
		return nil, nil, fmt.Errorf("mysql dsn: %w", err)
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: open: %w", err)
	}
	// One exclusively-owned connection for the whole run.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}

	closeFn := func() { _ = db.Close() }
	return &Repository{db: db, cfg: cfg}, closeFn, nil
}

// CopyFrom inserts rows with multi-row INSERT statements inside a single
// transaction, so a batch is committed entirely or not at all.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	ins := storage.MultiRowInsert{
		Table:       myFQN(r.cfg.Table),
		Columns:     mapIdent(columns),
		MaxParams:   maxParams,
		Placeholder: storage.QuestionMark,
	}
	n, err := ins.Exec(ctx, r.db, rows)
	if err != nil {
		return 0, fmt.Errorf("mysql: %w", err)
	}
	return n, nil
}

// Exec runs a single statement.
func (r *Repository) Exec(ctx context.Context, query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

// myIdent backtick-quotes an identifier, doubling embedded backticks.
func myIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// myFQN quotes each segment of a dotted name.
func myFQN(fqn string) string {
	parts := strings.Split(fqn, ".")
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = myIdent(c)
	}
	return out
}
