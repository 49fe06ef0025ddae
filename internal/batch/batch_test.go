package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JinheLin/hdfs-log-reader/internal/record"
)

type fakeOutcomes struct {
	outs []record.Outcome
	i    int
	err  error
}

func (f *fakeOutcomes) Next() bool {
	if f.i >= len(f.outs) {
		return false
	}
	f.i++
	return true
}
func (f *fakeOutcomes) Outcome() record.Outcome { return f.outs[f.i-1] }
func (f *fakeOutcomes) Err() error              { return f.err }

// outcomes builds n outcomes; lines listed in bad are parse failures.
func outcomes(n int, bad ...int) *fakeOutcomes {
	isBad := make(map[int]bool, len(bad))
	for _, b := range bad {
		isBad[b] = true
	}
	f := &fakeOutcomes{}
	for i := 1; i <= n; i++ {
		o := record.Outcome{Line: i, Record: record.LogRecord{Timestamp: int64(i), TenantID: 1}}
		if isBad[i] {
			o = record.Outcome{Line: i, Err: &record.ParseError{Line: i, Err: record.ErrMalformedJSON}, Raw: "bad"}
		}
		f.outs = append(f.outs, o)
	}
	return f
}

func TestNew_InvalidCapacity(t *testing.T) {
	t.Parallel()

	for _, c := range []int{0, -1} {
		_, err := New(c)
		require.Error(t, err, c)
	}
}

func TestAccumulator_AddAndFlush(t *testing.T) {
	t.Parallel()

	a, err := New(2)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Cap())

	_, ok := a.Flush()
	assert.False(t, ok, "empty accumulator flushes nothing")

	_, full := a.Add(record.LogRecord{Timestamp: 1})
	assert.False(t, full)
	assert.Equal(t, 1, a.Len())

	b, full := a.Add(record.LogRecord{Timestamp: 2})
	require.True(t, full)
	assert.Len(t, b, 2)
	assert.Equal(t, 0, a.Len())

	// The handed-off batch is not reused.
	_, _ = a.Add(record.LogRecord{Timestamp: 3})
	assert.Equal(t, int64(1), b[0].Timestamp)

	rest, ok := a.Flush()
	require.True(t, ok)
	assert.Equal(t, Batch{{Timestamp: 3}}, rest)
	assert.Equal(t, 0, a.Len())
}

func TestDrain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		n         int
		bad       []int
		capacity  int
		wantSizes []int
		wantRejs  int
	}{
		{name: "empty", n: 0, capacity: 3, wantSizes: nil},
		{name: "exact multiple", n: 6, capacity: 3, wantSizes: []int{3, 3}},
		{name: "short tail", n: 7, capacity: 3, wantSizes: []int{3, 3, 1}},
		{name: "capacity one", n: 3, capacity: 1, wantSizes: []int{1, 1, 1}},
		{name: "fewer than capacity", n: 2, capacity: 50000, wantSizes: []int{2}},
		{name: "rejects take no slot", n: 7, bad: []int{2, 5, 7}, capacity: 2, wantSizes: []int{2, 2}, wantRejs: 3},
		{name: "all rejected", n: 3, bad: []int{1, 2, 3}, capacity: 2, wantSizes: nil, wantRejs: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := New(tt.capacity)
			require.NoError(t, err)

			var (
				sizes   []int
				order   []int64
				rejects int
				seen    int
			)
			err = a.Drain(context.Background(), outcomes(tt.n, tt.bad...), Handler{
				Outcome: func(record.Outcome) { seen++ },
				Reject:  func(record.Outcome) { rejects++ },
				Emit: func(_ context.Context, b Batch) error {
					sizes = append(sizes, len(b))
					for _, r := range b {
						order = append(order, r.Timestamp)
					}
					return nil
				},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantSizes, sizes)
			assert.Equal(t, tt.wantRejs, rejects)
			assert.Equal(t, tt.n, seen)
			assert.IsIncreasing(t, order)
		})
	}
}

func TestDrain_EmitErrorStops(t *testing.T) {
	t.Parallel()

	boom := errors.New("insert failed")
	a, err := New(2)
	require.NoError(t, err)

	calls := 0
	in := outcomes(10)
	err = a.Drain(context.Background(), in, Handler{
		Emit: func(context.Context, Batch) error {
			calls++
			if calls == 2 {
				return boom
			}
			return nil
		},
	})
	require.Error(t, err)
	assert.Same(t, boom, err, "emit errors are returned unchanged")
	assert.Equal(t, 2, calls)
	assert.Equal(t, 4, in.i, "no line is read after the failing batch")
}

func TestDrain_ReadError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk gone")
	in := outcomes(3)
	in.err = boom

	a, err := New(2)
	require.NoError(t, err)
	var emitted int
	err = a.Drain(context.Background(), in, Handler{
		Emit: func(_ context.Context, b Batch) error { emitted += len(b); return nil },
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "read input")
	assert.Equal(t, 2, emitted, "the partial batch is discarded")
}

func TestDrain_NilEmit(t *testing.T) {
	t.Parallel()

	a, err := New(1)
	require.NoError(t, err)
	require.Error(t, a.Drain(context.Background(), outcomes(1), Handler{}))
}
