// Package rejectlog writes rejected input lines to a CSV file so they can be
// inspected or replayed after a run. Columns: reason, line_number, field,
// raw_line.
package rejectlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"

	"github.com/JinheLin/hdfs-log-reader/internal/record"
)

var header = []string{"reason", "line_number", "field", "raw_line"}

// Log is a CSV reject log with per-reason counters. Not safe for concurrent use.
type Log struct {
	f       *os.File
	w       *csv.Writer
	reasons map[string]int
	total   int
	err     error
}

// Create creates (or truncates) path, creating parent directories, and
// writes the header row.
func Create(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create reject log: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write reject log header: %w", err)
	}
	return &Log{f: f, w: w, reasons: make(map[string]int)}, nil
}

// Report appends one rejected outcome. Outcomes without an error are ignored.
// Write failures are remembered and returned by Close.
func (l *Log) Report(o record.Outcome) {
	if o.Err == nil {
		return
	}
	reason, field := "error", ""
	var pe *record.ParseError
	if errors.As(o.Err, &pe) {
		reason, field = pe.Reason(), pe.Field
	}
	l.reasons[reason]++
	l.total++
	if l.err != nil {
		return
	}
	l.err = l.w.Write([]string{reason, strconv.Itoa(o.Line), field, o.Raw})
}

// Counts returns a copy of the per-reason counters.
func (l *Log) Counts() map[string]int {
	return maps.Clone(l.reasons)
}

// Total is the number of reported outcomes.
func (l *Log) Total() int { return l.total }

// Close flushes and closes the file.
func (l *Log) Close() error {
	l.w.Flush()
	err := errors.Join(l.err, l.w.Error(), l.f.Close())
	if err != nil {
		return fmt.Errorf("close reject log: %w", err)
	}
	return nil
}
