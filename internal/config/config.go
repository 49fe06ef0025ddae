// Package config defines the loader's configuration model.
//
// Values are layered: Default, then an optional YAML file (Load; JSON is valid
// YAML), then environment overrides (ApplyEnv), then command-line flags set by
// the CLI. Validate lints the result and returns a list of issues.
//
// Example file:
//
//	table: hdfs_logs
//	batch_size: 50000
//	input: /data/hdfs-logs-multitenants.json.zst
//	storage:
//	  kind: mysql
//	  host: tidb.internal
//	  port: 4000
//	metrics:
//	  backend: prometheus
//	  pushgateway_url: http://pushgateway:9091
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/JinheLin/hdfs-log-reader/internal/logging"
)

const (
	// DefaultInputFile is read from AssetDir when Input is empty.
	DefaultInputFile = "hdfs-logs-multitenants.json"
	DefaultBatchSize = 50000
	DefaultJob       = "hdfs-log-reader"
	DefaultHost      = "localhost"
	DefaultPort      = 4000
)

// Config is the full loader configuration.
type Config struct {
	// Job names the run in metrics and logs.
	Job string `yaml:"job" json:"job"`

	// Table is the destination table; it is dropped and recreated on every run.
	Table string `yaml:"table" json:"table"`

	// Input is the NDJSON file to load. Empty means AssetDir/DefaultInputFile.
	Input    string `yaml:"input" json:"input"`
	AssetDir string `yaml:"asset_dir" json:"asset_dir"`

	// BatchSize is the number of records per insert statement batch.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// MaxRows caps the number of input lines consumed; 0 means unlimited.
	MaxRows int `yaml:"max_rows" json:"max_rows"`

	// SeverityOverflow is "truncate" or "reject".
	SeverityOverflow string `yaml:"severity_overflow" json:"severity_overflow"`

	// RejectFile, when set, receives a CSV row per rejected input line.
	RejectFile string `yaml:"reject_file" json:"reject_file"`

	Storage Storage        `yaml:"storage" json:"storage"`
	Metrics Metrics        `yaml:"metrics" json:"metrics"`
	Log     logging.Config `yaml:"log" json:"log"`
}

// Storage selects the database backend.
type Storage struct {
	// Kind is one of mysql, postgres, sqlite, mssql.
	Kind string `yaml:"kind" json:"kind"`

	// DSN is passed to the driver as is. For mysql it may be left empty and is
	// then derived from Host and Port.
	DSN  string `yaml:"dsn" json:"dsn"`
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string `yaml:"backend" json:"backend"`
	PushgatewayURL string `yaml:"pushgateway_url" json:"pushgateway_url"`
	StatsdAddr     string `yaml:"statsd_addr" json:"statsd_addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Job:              DefaultJob,
		BatchSize:        DefaultBatchSize,
		SeverityOverflow: "truncate",
		Storage: Storage{
			Kind: "mysql",
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Metrics: Metrics{Backend: "none"},
		Log:     logging.Config{Level: "info"},
	}
}

// Load reads a YAML (or JSON) file over the defaults. Unknown keys are errors.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. A nil getenv uses
// os.Getenv. Malformed integers are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	setString := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	setString(&c.Table, "LOADER_TABLE")
	setString(&c.Input, "LOADER_INPUT")
	setString(&c.AssetDir, "LOADER_ASSET_DIR")
	setString(&c.Storage.Kind, "LOADER_STORAGE")
	setString(&c.Storage.DSN, "LOADER_DSN")
	setString(&c.Metrics.Backend, "METRICS_BACKEND")
	setString(&c.Metrics.PushgatewayURL, "PUSHGATEWAY_URL")
	setString(&c.Metrics.StatsdAddr, "DD_DOGSTATSD_ADDR")

	c.BatchSize = pickInt(getenvInt(getenv, "LOADER_BATCH_SIZE", 0), c.BatchSize)
	c.MaxRows = pickInt(getenvInt(getenv, "LOADER_MAX_ROWS", 0), c.MaxRows)
}

// InputPath resolves the input file.
func (c Config) InputPath() string {
	if c.Input != "" {
		return c.Input
	}
	return filepath.Join(c.AssetDir, DefaultInputFile)
}

// getenvInt reads an int from the environment or returns def.
func getenvInt(getenv func(string) string, k string, def int) int {
	if s := getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
