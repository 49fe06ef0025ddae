package sqlite

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JinheLin/hdfs-log-reader/internal/record"
	"github.com/JinheLin/hdfs-log-reader/internal/storage"
)

// newTestRepo opens a fresh database under t.TempDir and creates the log
// table through the registered DDL builder.
func newTestRepo(t *testing.T, table string) storage.Repository {
	t.Helper()
	ctx := context.Background()
	repo, err := storage.New(ctx, storage.Config{
		Kind:    "sqlite",
		DSN:     filepath.Join(t.TempDir(), "logs.db"),
		Table:   table,
		Columns: record.Columns(),
	})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	if err := storage.RecreateTable(ctx, "sqlite", repo, table, nil); err != nil {
		t.Fatalf("RecreateTable: %v", err)
	}
	return repo
}

func rowsOf(n, tenant int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = record.LogRecord{
			Timestamp:    int64(i),
			SeverityText: "INFO",
			Body:         "body",
			TenantID:     int32(tenant),
		}.Values()
	}
	return rows
}

// TestCopyFrom_ChunksAndAssignsIDs writes a batch larger than one statement
// can hold and checks every row landed with ids starting at 1000.
func TestCopyFrom_ChunksAndAssignsIDs(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t, "hdfs_logs")
	n := maxParams/len(record.Columns()) + 10

	got, err := repo.CopyFrom(context.Background(), record.Columns(), rowsOf(n, 1))
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if got != int64(n) {
		t.Fatalf("CopyFrom = %d, want %d", got, n)
	}

	db := repo.(*wrappedRepo).DB()
	var cnt, lo, hi int64
	if err := db.QueryRow(`SELECT COUNT(*), MIN(id), MAX(id) FROM hdfs_logs`).Scan(&cnt, &lo, &hi); err != nil {
		t.Fatalf("query: %v", err)
	}
	if cnt != int64(n) || lo != 1000 || hi != int64(1000+n-1) {
		t.Fatalf("count=%d min=%d max=%d, want %d/1000/%d", cnt, lo, hi, n, 1000+n-1)
	}
}

// TestCopyFrom_DuplicateKeyRollsBack inserts a batch whose primary key
// collides with an existing row; nothing from that batch may remain.
func TestCopyFrom_DuplicateKeyRollsBack(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t, "dup_logs")
	ctx := context.Background()
	if _, err := repo.CopyFrom(ctx, []string{"id", "tenant_id"}, [][]any{{5000, 1}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err := repo.CopyFrom(ctx, []string{"id", "tenant_id"}, [][]any{{5001, 1}, {5000, 1}})
	if err == nil || !strings.Contains(err.Error(), "sqlite:") {
		t.Fatalf("expected sqlite insert error, got %v", err)
	}

	var cnt int
	if err := repo.(*wrappedRepo).DB().QueryRow(`SELECT COUNT(*) FROM dup_logs`).Scan(&cnt); err != nil {
		t.Fatal(err)
	}
	if cnt != 1 {
		t.Fatalf("rows = %d, want 1", cnt)
	}
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, _, err := NewRepository(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestExec_EmptyIsNoop(t *testing.T) {
	t.Parallel()

	repo := newTestRepo(t, "noop_logs")
	if err := repo.Exec(context.Background(), "  "); err != nil {
		t.Fatalf("Exec(blank) = %v", err)
	}
	if err := repo.Exec(context.Background(), "NOT SQL"); err == nil {
		t.Fatalf("expected syntax error")
	}
}
