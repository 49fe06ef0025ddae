package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JinheLin/hdfs-log-reader/internal/record"
)

// TableSink writes batches of log records into one table through a
// Repository. Each call is a single atomic write.
type TableSink struct {
	repo  Repository
	table string
	log   *zap.SugaredLogger
}

// NewTableSink returns a sink writing to table via repo.
func NewTableSink(repo Repository, table string, log *zap.SugaredLogger) *TableSink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TableSink{repo: repo, table: table, log: log}
}

// InsertBatch binds each record positionally as (timestamp, severity_text,
// body, tenant_id), in batch order, and writes them in one repository call.
// An empty batch issues no statement.
func (s *TableSink) InsertBatch(ctx context.Context, recs []record.LogRecord) (int64, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = r.Values()
	}

	n, err := s.repo.CopyFrom(ctx, record.Columns(), rows)
	if err != nil {
		return 0, fmt.Errorf("insert batch into %s: %w", s.table, err)
	}
	s.log.Infof("%d logs from batch inserted successfully into %s", n, s.table)
	return n, nil
}
