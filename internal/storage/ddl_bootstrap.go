package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TableDDL is the ordered set of statements that recreates the destination
// table for one backend.
type TableDDL struct {
	Drop   string
	Create []string
}

// DDLBuilder renders the drop/create statements for table in a backend's
// dialect. Backends register one per storage kind at init time.
type DDLBuilder func(table string) (TableDDL, error)

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBuilder{}
)

// RegisterDDL registers (or replaces) the DDLBuilder for kind.
func RegisterDDL(kind string, fn DDLBuilder) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// RecreateTable drops table if it exists and creates it again using the
// builder registered for kind. Every run starts from an empty table; there is
// no append mode.
func RecreateTable(ctx context.Context, kind string, repo Repository, table string, log *zap.SugaredLogger) error {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL builder registered for storage.kind=%q", kind)
	}

	ddl, err := fn(table)
	if err != nil {
		return fmt.Errorf("build DDL: %w", err)
	}

	if err := repo.Exec(ctx, ddl.Drop); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	log.Infof("Table %s dropped successfully", table)

	for _, stmt := range ddl.Create {
		if err := repo.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
	}
	log.Infof("Table %s created successfully", table)
	return nil
}
