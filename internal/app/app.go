// Package app runs one complete load: connect, recreate the destination
// table, open the input and drive the pipeline until the input is exhausted
// or a fatal error occurs.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JinheLin/hdfs-log-reader/internal/config"
	"github.com/JinheLin/hdfs-log-reader/internal/datasource"
	"github.com/JinheLin/hdfs-log-reader/internal/datasource/file"
	"github.com/JinheLin/hdfs-log-reader/internal/metrics"
	"github.com/JinheLin/hdfs-log-reader/internal/pipeline"
	"github.com/JinheLin/hdfs-log-reader/internal/record"
	"github.com/JinheLin/hdfs-log-reader/internal/rejectlog"
	"github.com/JinheLin/hdfs-log-reader/internal/storage"
	"github.com/JinheLin/hdfs-log-reader/internal/storage/mysql"
)

// newRepositoryFn is a seam for tests; it defaults to the storage factory.
var newRepositoryFn = storage.New

// Run executes a load described by cfg. Storage backends must be registered
// by the caller (see internal/storage/all).
func Run(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) (sum pipeline.Summary, err error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.With("run_id", uuid.NewString())

	policy, err := record.ParseSeverityPolicy(cfg.SeverityOverflow)
	if err != nil {
		return sum, err
	}
	if cfg.BatchSize < 1 {
		return sum, fmt.Errorf("batch size must be >= 1, got %d", cfg.BatchSize)
	}

	input := cfg.InputPath()
	log.Infof("Processing logs from '%s' in batches of %d", input, cfg.BatchSize)

	dsn := cfg.Storage.DSN
	if dsn == "" && cfg.Storage.Kind == "mysql" {
		log.Infof("Connecting to tidb, host=%s port=%d", cfg.Storage.Host, cfg.Storage.Port)
		dsn = mysql.DSN(cfg.Storage.Host, cfg.Storage.Port)
	} else {
		log.Infof("Connecting to %s", cfg.Storage.Kind)
	}

	start := time.Now()
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:    cfg.Storage.Kind,
		DSN:     dsn,
		Table:   cfg.Table,
		Columns: record.Columns(),
	})
	metrics.RecordStep(cfg.Job, "connect", err, time.Since(start))
	if err != nil {
		return sum, fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()
	log.Infof("Successfully connected to the database")

	start = time.Now()
	err = storage.RecreateTable(ctx, cfg.Storage.Kind, repo, cfg.Table, log)
	metrics.RecordStep(cfg.Job, "recreate_table", err, time.Since(start))
	if err != nil {
		return sum, fmt.Errorf("recreate table %s: %w", cfg.Table, err)
	}

	rc, err := file.NewLocal(input).Open(ctx)
	if err != nil {
		return sum, fmt.Errorf("open input: %w", err)
	}
	defer rc.Close()

	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if cfg.RejectFile != "" {
		rl, rerr := rejectlog.Create(cfg.RejectFile)
		if rerr != nil {
			return sum, fmt.Errorf("open reject log: %w", rerr)
		}
		defer func() {
			if cerr := rl.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			if rl.Total() > 0 {
				log.Infof("%d rejected lines written to %s %v", rl.Total(), cfg.RejectFile, rl.Counts())
			}
		}()
		opts = append(opts, pipeline.WithReporter(rl))
	}

	driver, err := pipeline.New(pipeline.Config{
		Job:       cfg.Job,
		BatchSize: cfg.BatchSize,
		Source:    input,
	}, storage.NewTableSink(repo, cfg.Table, log), opts...)
	if err != nil {
		return sum, err
	}

	stream := record.NewStream(datasource.NewLines(rc, cfg.MaxRows), record.NewParser(policy))

	start = time.Now()
	sum, err = driver.Run(ctx, stream)
	metrics.RecordStep(cfg.Job, "run", err, time.Since(start))
	return sum, err
}
