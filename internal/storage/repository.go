// Package storage defines the storage-agnostic repository contract, a small
// factory registry for backends, and the batch sink that writes log records
// through a Repository.
//
// Backends live in subpackages (mysql, postgres, sqlite, mssql) and register
// themselves from init; import internal/storage/all to enable all of them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is the minimal contract a storage backend must satisfy.
type Repository interface {
	// CopyFrom writes rows (aligned to columns) into the configured table.
	// The whole call must be atomic: either every row becomes visible or none
	// does. It returns the number of rows written.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)

	// Exec runs a single statement (typically DDL).
	Exec(ctx context.Context, sql string) error

	// Close releases the underlying connection.
	Close()
}

// Config carries backend-agnostic connection settings.
type Config struct {
	// Kind selects the backend ("mysql", "postgres", "sqlite", "mssql").
	Kind string

	// DSN is passed to the backend driver unchanged.
	DSN string

	// Table is the destination table name; dotted names are schema-qualified.
	Table string

	// Columns is the ordered list of destination columns for CopyFrom.
	Columns []string
}

// Factory constructs a Repository for a backend kind.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered backend kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
