package storage

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
)

// fakeRepo records every call and can fail on demand.
type fakeRepo struct {
	mu      sync.Mutex
	execs   []string
	columns []string
	rows    [][]any
	copies  int
	closed  int

	copyErr    error
	execFailOn string // substring of a statement that makes Exec fail
}

func (f *fakeRepo) CopyFrom(_ context.Context, columns []string, rows [][]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.copies++
	if f.copyErr != nil {
		return 0, f.copyErr
	}
	f.columns = slices.Clone(columns)
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

func (f *fakeRepo) Exec(_ context.Context, sql string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.execFailOn != "" && strings.Contains(sql, f.execFailOn) {
		return errors.New("exec refused")
	}
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeRepo) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}
