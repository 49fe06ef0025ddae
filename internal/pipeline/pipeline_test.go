package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JinheLin/hdfs-log-reader/internal/datasource"
	"github.com/JinheLin/hdfs-log-reader/internal/record"
)

// fakeSink records every batch and can fail on a given call (1-based).
type fakeSink struct {
	batches [][]record.LogRecord
	failOn  int
	err     error
}

func (s *fakeSink) InsertBatch(_ context.Context, recs []record.LogRecord) (int64, error) {
	if s.failOn > 0 && len(s.batches)+1 == s.failOn {
		return 0, s.err
	}
	cp := append([]record.LogRecord(nil), recs...)
	s.batches = append(s.batches, cp)
	return int64(len(recs)), nil
}

func (s *fakeSink) all() []record.LogRecord {
	var out []record.LogRecord
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

// genOutcomes yields n valid outcomes without going through the parser.
type genOutcomes struct {
	n, i int
	cur  record.Outcome
}

func (g *genOutcomes) Next() bool {
	if g.i >= g.n {
		return false
	}
	g.i++
	g.cur = record.Outcome{Line: g.i, Record: rec(g.i)}
	return true
}

func (g *genOutcomes) Outcome() record.Outcome { return g.cur }
func (g *genOutcomes) Err() error              { return nil }

func rec(i int) record.LogRecord {
	return record.LogRecord{
		Timestamp:    int64(1_700_000_000 + i),
		SeverityText: "INFO",
		Body:         fmt.Sprintf("block %d replicated", i),
		TenantID:     int32(i % 7),
	}
}

func ndjson(recs ...record.LogRecord) string {
	var sb strings.Builder
	for _, r := range recs {
		fmt.Fprintf(&sb, `{"timestamp":%d,"severity_text":%q,"body":%q,"tenant_id":%d}`+"\n",
			r.Timestamp, r.SeverityText, r.Body, r.TenantID)
	}
	return sb.String()
}

func stream(input string, maxRows int) *record.Stream {
	return record.NewStream(datasource.NewLines(strings.NewReader(input), maxRows), record.NewParser(record.SeverityTruncate))
}

func newDriver(t *testing.T, batchSize int, sink Sink, opts ...Option) *Driver {
	t.Helper()
	d, err := New(Config{Job: "test", BatchSize: batchSize, Source: "input.json"}, sink, opts...)
	require.NoError(t, err)
	return d
}

func TestRun_OneValidOneMalformed(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	var reported []record.Outcome
	sink := &fakeSink{}
	d := newDriver(t, 10, sink,
		WithLogger(zap.New(core).Sugar()),
		WithReporter(ReporterFunc(func(o record.Outcome) { reported = append(reported, o) })),
	)

	sum, err := d.Run(context.Background(), stream(ndjson(rec(1))+"not json\n", 0))
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.Read)
	assert.Equal(t, int64(1), sum.Inserted)
	assert.Equal(t, int64(1), sum.Errors())
	assert.Equal(t, int64(1), sum.Batches)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, []record.LogRecord{rec(1)}, sink.batches[0])
	assert.Equal(t, Done, d.State())

	require.Len(t, reported, 1)
	assert.Equal(t, 2, reported[0].Line)
	assert.Equal(t, "not json", reported[0].Raw)

	errLogs := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errLogs, 1)
	assert.Contains(t, errLogs[0].Message, "Error processing log entry: line 2")
	assert.Equal(t, 1, logs.FilterMessage("Total logs inserted so far: 1").Len())
	assert.Equal(t, 1, logs.FilterMessage("Read 2 total log entries from input.json").Len())
}

// TestRun_InvalidUTF8Rejected sends a record with ill-formed UTF-8 in its
// body through the real line reader; it must be reported, not inserted.
func TestRun_InvalidUTF8Rejected(t *testing.T) {
	t.Parallel()

	var reported []record.Outcome
	sink := &fakeSink{}
	d := newDriver(t, 10, sink,
		WithReporter(ReporterFunc(func(o record.Outcome) { reported = append(reported, o) })),
	)

	bad := "{\"timestamp\":1,\"severity_text\":\"INFO\",\"body\":\"bad\xff\xfebytes\",\"tenant_id\":7}\n"
	sum, err := d.Run(context.Background(), stream("\ufeff"+bad+ndjson(rec(2)), 0))
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.Read)
	assert.Equal(t, int64(1), sum.Inserted)
	assert.Equal(t, int64(1), sum.Errors())
	assert.Equal(t, []record.LogRecord{rec(2)}, sink.all())

	require.Len(t, reported, 1)
	assert.Equal(t, 1, reported[0].Line)
	assert.ErrorIs(t, reported[0].Err, record.ErrInvalidUTF8)
	var pe *record.ParseError
	require.ErrorAs(t, reported[0].Err, &pe)
	assert.Equal(t, "invalid_utf8", pe.Reason())
	assert.Equal(t, strings.TrimSuffix(bad, "\n"), reported[0].Raw)
}

func TestRun_BatchCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n, batchSize int
		wantBatches  int
	}{
		{n: 0, batchSize: 3, wantBatches: 0},
		{n: 1, batchSize: 1, wantBatches: 1},
		{n: 9, batchSize: 3, wantBatches: 3},
		{n: 10, batchSize: 3, wantBatches: 4},
		{n: 2, batchSize: 50, wantBatches: 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("N=%d/B=%d", tt.n, tt.batchSize), func(t *testing.T) {
			t.Parallel()

			sink := &fakeSink{}
			d := newDriver(t, tt.batchSize, sink)
			sum, err := d.Run(context.Background(), &genOutcomes{n: tt.n})
			require.NoError(t, err)

			require.Len(t, sink.batches, tt.wantBatches)
			for i, b := range sink.batches {
				if i < len(sink.batches)-1 {
					assert.Len(t, b, tt.batchSize, "batch %d", i)
				} else {
					assert.NotEmpty(t, b)
					assert.LessOrEqual(t, len(b), tt.batchSize)
				}
			}
			assert.Equal(t, int64(tt.n), sum.Read)
			assert.Equal(t, int64(tt.n), sum.Inserted)
			assert.Equal(t, int64(tt.wantBatches), sum.Batches)

			want := make([]record.LogRecord, 0, tt.n)
			for i := 1; i <= tt.n; i++ {
				want = append(want, rec(i))
			}
			if tt.n > 0 {
				assert.Equal(t, want, sink.all(), "order preserved across batches")
			}
			assert.Equal(t, DigestOf(want), sum.Digest)
		})
	}
}

func TestRun_LargeRunThreeBatches(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d := newDriver(t, 50000, sink)
	sum, err := d.Run(context.Background(), &genOutcomes{n: 150000})
	require.NoError(t, err)

	require.Len(t, sink.batches, 3)
	for _, b := range sink.batches {
		assert.Len(t, b, 50000)
	}
	assert.Equal(t, int64(150000), sum.Inserted)
	assert.Equal(t, int64(0), sum.Errors())
}

func TestRun_SinkFailureHalts(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	sink := &fakeSink{failOn: 2, err: boom}
	d := newDriver(t, 50000, sink)

	sum, err := d.Run(context.Background(), &genOutcomes{n: 150000})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "flush batch 2")

	assert.Equal(t, Failed, d.State())
	assert.Equal(t, int64(50000), sum.Inserted)
	assert.Equal(t, int64(1), sum.Batches)
	assert.Equal(t, int64(100000), sum.Read, "no lines are read after the failing batch")
	require.Len(t, sink.batches, 1)
}

func TestRun_EmptyInput(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	d := newDriver(t, 10, sink)
	sum, err := d.Run(context.Background(), stream("", 0))
	require.NoError(t, err)

	assert.Empty(t, sink.batches)
	assert.Equal(t, Summary{Digest: DigestOf(nil)}, sum)
	assert.Equal(t, Done, d.State())
}

func TestRun_MaxRowsBelowBatchSize(t *testing.T) {
	t.Parallel()

	var recs []record.LogRecord
	for i := 1; i <= 10; i++ {
		recs = append(recs, rec(i))
	}
	sink := &fakeSink{}
	d := newDriver(t, 10, sink)
	sum, err := d.Run(context.Background(), stream(ndjson(recs...), 3))
	require.NoError(t, err)

	require.Len(t, sink.batches, 1)
	assert.Equal(t, recs[:3], sink.batches[0])
	assert.Equal(t, int64(3), sum.Read)
	assert.Equal(t, int64(3), sum.Inserted)
}

func TestRun_ReadErrorIsFatal(t *testing.T) {
	t.Parallel()

	readErr := errors.New("disk gone")
	in := io.MultiReader(strings.NewReader(ndjson(rec(1))), iotest.ErrReader(readErr))
	lines := datasource.NewLines(in, 0)

	sink := &fakeSink{}
	d := newDriver(t, 10, sink)
	sum, err := d.Run(context.Background(), record.NewStream(lines, record.NewParser(record.SeverityTruncate)))
	require.Error(t, err)
	assert.ErrorIs(t, err, readErr)
	assert.Contains(t, err.Error(), "read input")
	assert.Equal(t, Failed, d.State())
	assert.Equal(t, int64(1), sum.Read)
	assert.Empty(t, sink.batches, "buffered records are discarded on a read failure")
}

func TestRun_OnlyOnce(t *testing.T) {
	t.Parallel()

	d := newDriver(t, 1, &fakeSink{})
	_, err := d.Run(context.Background(), &genOutcomes{n: 1})
	require.NoError(t, err)

	_, err = d.Run(context.Background(), &genOutcomes{n: 1})
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	_, err := New(Config{BatchSize: 1}, nil)
	require.Error(t, err)

	_, err = New(Config{BatchSize: 0}, &fakeSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch capacity must be >= 1")
}

func TestDigestOf_OrderSensitive(t *testing.T) {
	t.Parallel()

	a := []record.LogRecord{rec(1), rec(2)}
	b := []record.LogRecord{rec(2), rec(1)}
	assert.NotEqual(t, DigestOf(a), DigestOf(b))
	assert.Equal(t, DigestOf(a), DigestOf([]record.LogRecord{rec(1), rec(2)}))

	// field boundaries matter
	x := []record.LogRecord{{SeverityText: "ab", Body: "c"}}
	y := []record.LogRecord{{SeverityText: "a", Body: "bc"}}
	assert.NotEqual(t, DigestOf(x), DigestOf(y))
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "reading", Reading.String())
	assert.Equal(t, "flushing", Flushing.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
