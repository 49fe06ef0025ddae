// Package sqlite implements a SQLite-backed storage.Repository.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:logs.db?_pragma=busy_timeout(5000)"
	//   "logs.db"
	DSN string

	// Table is the target table name, e.g. "hdfs_logs". "main.hdfs_logs" is
	// accepted and quoted segment by segment.
	Table string

	// Columns is the ordered list of destination columns.
	Columns []string
}
