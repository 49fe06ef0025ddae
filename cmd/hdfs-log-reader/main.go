// Command hdfs-log-reader loads newline-delimited JSON HDFS logs into a
// database table in fixed-size batches.
//
//	hdfs-log-reader [flags] TABLE_NAME
//	hdfs-log-reader validate [flags] [TABLE_NAME]
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JinheLin/hdfs-log-reader/internal/app"
	"github.com/JinheLin/hdfs-log-reader/internal/config"
	"github.com/JinheLin/hdfs-log-reader/internal/logging"
	"github.com/JinheLin/hdfs-log-reader/internal/metrics"
	"github.com/JinheLin/hdfs-log-reader/internal/metrics/datadog"
	"github.com/JinheLin/hdfs-log-reader/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "github.com/JinheLin/hdfs-log-reader/internal/storage/all"
)

const (
	defaultPushgatewayURL = "http://localhost:9091"
	defaultStatsdAddr     = "127.0.0.1:8125"
)

func main() {
	if err := newRootCmd(os.Getenv, run).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// flagValues holds raw flag values; only flags the user set are applied.
type flagValues struct {
	configPath       string
	job              string
	input            string
	assetDir         string
	batchSize        int
	maxRows          int
	storage          string
	dsn              string
	tidbHost         string
	tidbPort         int
	severityOverflow string
	rejectFile       string
	metricsBackend   string
	pushgatewayURL   string
	statsdAddr       string
	verbose          bool
	logFile          string
}

// runFunc performs a load with a resolved, validated config.
type runFunc func(ctx context.Context, out io.Writer, cfg config.Config) error

func newRootCmd(getenv func(string) string, runLoad runFunc) *cobra.Command {
	var fv flagValues

	root := &cobra.Command{
		Use:           "hdfs-log-reader [flags] TABLE_NAME",
		Short:         "Process HDFS logs and insert into database",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &fv, args, getenv)
			if err != nil {
				return err
			}
			if err := reportIssues(cmd.ErrOrStderr(), config.Validate(cfg)); err != nil {
				return err
			}
			return runLoad(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "", "YAML or JSON config file")
	pf.StringVar(&fv.job, "job", config.DefaultJob, "job name used for metrics")
	pf.StringVar(&fv.input, "input", "", "input NDJSON file (.gz and .zst are decompressed); default <asset-dir>/"+config.DefaultInputFile)
	pf.StringVar(&fv.assetDir, "asset-dir", "", "directory containing the asset files (when empty, uses current directory)")
	pf.IntVar(&fv.batchSize, "batch-size", config.DefaultBatchSize, "number of rows to process in each batch")
	pf.IntVar(&fv.maxRows, "max-rows", 0, "maximum number of rows to process (0 = all)")
	pf.StringVar(&fv.storage, "storage", "mysql", "storage backend: mysql, postgres, sqlite, mssql")
	pf.StringVar(&fv.dsn, "dsn", "", "database DSN (mysql default is derived from --tidb-host/--tidb-port)")
	pf.StringVar(&fv.tidbHost, "tidb-host", config.DefaultHost, "TiDB address to connect to")
	pf.IntVar(&fv.tidbPort, "tidb-port", config.DefaultPort, "TiDB port to connect to")
	pf.StringVar(&fv.severityOverflow, "severity-overflow", "truncate", "severity_text longer than 50 characters: truncate or reject")
	pf.StringVar(&fv.rejectFile, "reject-file", "", "write rejected lines to this CSV file")
	pf.StringVar(&fv.metricsBackend, "metrics-backend", "none", "metrics backend: none, prometheus, datadog")
	pf.StringVar(&fv.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (default "+defaultPushgatewayURL+")")
	pf.StringVar(&fv.statsdAddr, "statsd-addr", "", "DogStatsD address (default "+defaultStatsdAddr+")")
	pf.BoolVarP(&fv.verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&fv.logFile, "log-file", "", "also write logs to this file (rotated)")

	root.AddCommand(&cobra.Command{
		Use:   "validate [TABLE_NAME]",
		Short: "Validate the configuration and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &fv, args, getenv)
			if err != nil {
				return err
			}
			if err := reportIssues(cmd.ErrOrStderr(), config.Validate(cfg)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")
			return nil
		},
	})

	return root
}

// resolveConfig layers defaults, the config file, the environment and the
// flags the user set, in increasing precedence.
func resolveConfig(cmd *cobra.Command, fv *flagValues, args []string, getenv func(string) string) (config.Config, error) {
	cfg := config.Default()
	if fv.configPath != "" {
		var err error
		if cfg, err = config.Load(fv.configPath); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv(getenv)

	set := cmd.Flags().Changed
	if set("job") {
		cfg.Job = fv.job
	}
	if set("input") {
		cfg.Input = fv.input
	}
	if set("asset-dir") {
		cfg.AssetDir = fv.assetDir
	}
	if set("batch-size") {
		cfg.BatchSize = fv.batchSize
	}
	if set("max-rows") {
		cfg.MaxRows = fv.maxRows
	}
	if set("storage") {
		cfg.Storage.Kind = fv.storage
	}
	if set("dsn") {
		cfg.Storage.DSN = fv.dsn
	}
	if set("tidb-host") {
		cfg.Storage.Host = fv.tidbHost
	}
	if set("tidb-port") {
		cfg.Storage.Port = fv.tidbPort
	}
	if set("severity-overflow") {
		cfg.SeverityOverflow = fv.severityOverflow
	}
	if set("reject-file") {
		cfg.RejectFile = fv.rejectFile
	}
	if set("metrics-backend") {
		cfg.Metrics.Backend = fv.metricsBackend
	}
	if set("pushgateway-url") {
		cfg.Metrics.PushgatewayURL = fv.pushgatewayURL
	}
	if set("statsd-addr") {
		cfg.Metrics.StatsdAddr = fv.statsdAddr
	}
	if fv.verbose {
		cfg.Log.Level = "debug"
	}
	if set("log-file") {
		cfg.Log.File = fv.logFile
	}
	if len(args) == 1 {
		cfg.Table = args[0]
	}
	return cfg, nil
}

// reportIssues prints every issue and fails when any has error severity.
func reportIssues(w io.Writer, issues []config.Issue) error {
	for _, iss := range issues {
		fmt.Fprintf(w, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid")
	}
	return nil
}

func run(ctx context.Context, out io.Writer, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	flush := setupMetrics(cfg, log)
	defer flush()

	fmt.Fprintf(out, "\nProcessing HDFS logs into database table '%s':\n", cfg.Table)

	start := time.Now()
	if _, err := app.Run(ctx, cfg, log); err != nil {
		return err
	}
	log.Debugf("completed in %s", time.Since(start).Truncate(time.Millisecond))

	fmt.Fprintln(out, "\nData processing complete.")
	return nil
}

// setupMetrics installs the configured metrics backend and returns a function
// that flushes it. Backend failures only disable metrics.
func setupMetrics(cfg config.Config, log *zap.SugaredLogger) func() {
	nop := func() {}

	var (
		b   metrics.Backend
		err error
	)
	switch cfg.Metrics.Backend {
	case "prometheus", "pushgateway":
		url := cfg.Metrics.PushgatewayURL
		if url == "" {
			url = defaultPushgatewayURL
		}
		b, err = prompush.NewBackend(cfg.Job, url)
		if err == nil {
			log.Infof("metrics: backend=prometheus url=%s job=%s", url, cfg.Job)
		}
	case "datadog":
		addr := cfg.Metrics.StatsdAddr
		if addr == "" {
			addr = defaultStatsdAddr
		}
		b, err = datadog.NewBackend(datadog.Config{
			Addr:       addr,
			Namespace:  "hdfs_log_reader.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err == nil {
			log.Infof("metrics: backend=datadog addr=%s", addr)
		}
	case "", "none":
		log.Debugf("metrics: disabled")
		return nop
	default:
		log.Warnf("metrics: unknown backend %q; metrics disabled", cfg.Metrics.Backend)
		return nop
	}
	if err != nil {
		log.Warnf("metrics: init %s backend: %v; using nop", cfg.Metrics.Backend, err)
		return nop
	}

	metrics.SetBackend(b)
	return func() {
		if err := metrics.Flush(); err != nil {
			log.Warnf("metrics: flush error: %v", err)
		}
	}
}
