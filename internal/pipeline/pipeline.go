// Package pipeline drives one load run: it pulls parse outcomes from a
// stream, groups valid records into batches and writes each batch through a
// Sink before reading further.
//
// The driver is single-threaded and keeps at most one batch in flight. The
// first sink failure ends the run; batches already written stay committed.
package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"github.com/JinheLin/hdfs-log-reader/internal/batch"
	"github.com/JinheLin/hdfs-log-reader/internal/metrics"
	"github.com/JinheLin/hdfs-log-reader/internal/record"
)

// State is the driver's lifecycle position.
type State int

const (
	Idle State = iota
	Reading
	Flushing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Reading:
		return "reading"
	case Flushing:
		return "flushing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sink writes one batch atomically and returns the number of rows written.
// *storage.TableSink satisfies it.
type Sink interface {
	InsertBatch(ctx context.Context, recs []record.LogRecord) (int64, error)
}

// ErrorReporter receives every outcome that failed to parse.
type ErrorReporter interface {
	Report(o record.Outcome)
}

// ReporterFunc adapts a function to ErrorReporter.
type ReporterFunc func(o record.Outcome)

// Report calls f(o).
func (f ReporterFunc) Report(o record.Outcome) { f(o) }

// Config parameterizes a Driver.
type Config struct {
	// Job labels metrics.
	Job string
	// BatchSize is the accumulator capacity; must be >= 1.
	BatchSize int
	// Source names the input in the final log line.
	Source string
}

// Summary holds the run counters.
type Summary struct {
	// Read counts every consumed line, valid or not.
	Read int64
	// Inserted counts records confirmed by the sink.
	Inserted int64
	// Batches counts confirmed batches.
	Batches int64
	// Digest is an order-sensitive xxh3 hash over inserted records.
	Digest uint64
}

// Errors is the number of lines that did not reach the sink.
func (s Summary) Errors() int64 { return s.Read - s.Inserted }

// ErrAlreadyRun is returned when Run is called on a used Driver.
var ErrAlreadyRun = errors.New("pipeline: driver already ran")

// Driver runs a single load.
type Driver struct {
	cfg       Config
	sink      Sink
	acc       *batch.Accumulator
	log       *zap.SugaredLogger
	reporters []ErrorReporter

	state   State
	sum     Summary
	hasher  *xxh3.Hasher
	scratch []byte
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the progress logger. The default discards output.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithReporter adds a parse error reporter. Reporters run in the order added,
// after the built-in error log line.
func WithReporter(r ErrorReporter) Option {
	return func(d *Driver) {
		if r != nil {
			d.reporters = append(d.reporters, r)
		}
	}
}

// New returns an idle Driver writing to sink.
func New(cfg Config, sink Sink, opts ...Option) (*Driver, error) {
	if sink == nil {
		return nil, errors.New("pipeline: sink must not be nil")
	}
	acc, err := batch.New(cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	d := &Driver{
		cfg:    cfg,
		sink:   sink,
		acc:    acc,
		log:    zap.NewNop().Sugar(),
		hasher: xxh3.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// Summary returns the counters as of now.
func (d *Driver) Summary() Summary {
	s := d.sum
	s.Digest = d.hasher.Sum64()
	return s
}

// Run consumes in until it is exhausted or a fatal error occurs. On failure
// the returned Summary holds the counters at the time of the failure.
func (d *Driver) Run(ctx context.Context, in batch.Outcomes) (Summary, error) {
	if d.state != Idle {
		return d.Summary(), ErrAlreadyRun
	}
	d.state = Reading

	err := d.acc.Drain(ctx, in, batch.Handler{
		Outcome: func(record.Outcome) { d.sum.Read++ },
		Reject:  d.reject,
		Emit:    d.flush,
	})

	sum := d.Summary()
	metrics.RecordRow(d.cfg.Job, "read", sum.Read)
	metrics.RecordRow(d.cfg.Job, "parse_errors", sum.Errors())

	if err != nil {
		d.state = Failed
		return sum, err
	}
	d.state = Done

	d.log.Infof("Read %d total log entries from %s", sum.Read, d.cfg.Source)
	d.log.Infof("summary: read=%d inserted=%d errors=%d batches=%d digest=%016x",
		sum.Read, sum.Inserted, sum.Errors(), sum.Batches, sum.Digest)
	return sum, nil
}

func (d *Driver) reject(o record.Outcome) {
	reason := "error"
	var pe *record.ParseError
	if errors.As(o.Err, &pe) {
		reason = pe.Reason()
	}
	metrics.RecordParseError(d.cfg.Job, reason)

	d.log.Errorf("Error processing log entry: %v", o.Err)
	for _, r := range d.reporters {
		r.Report(o)
	}
}

func (d *Driver) flush(ctx context.Context, b batch.Batch) error {
	d.state = Flushing
	start := time.Now()
	n, err := d.sink.InsertBatch(ctx, b)
	metrics.RecordStep(d.cfg.Job, "flush", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("flush batch %d: %w", d.sum.Batches+1, err)
	}

	d.sum.Inserted += n
	d.sum.Batches++
	for _, r := range b {
		d.scratch = appendRecord(d.scratch[:0], r)
		_, _ = d.hasher.Write(d.scratch)
	}
	metrics.RecordRow(d.cfg.Job, "inserted", n)
	metrics.RecordBatches(d.cfg.Job, 1)

	d.log.Infof("Total logs inserted so far: %d", d.sum.Inserted)
	d.state = Reading
	return nil
}

// DigestOf returns the Summary.Digest a run would report after inserting
// recs in order.
func DigestOf(recs []record.LogRecord) uint64 {
	h := xxh3.New()
	var buf []byte
	for _, r := range recs {
		buf = appendRecord(buf[:0], r)
		_, _ = h.Write(buf)
	}
	return h.Sum64()
}

// appendRecord encodes r with length-prefixed strings so field boundaries
// cannot collide.
func appendRecord(b []byte, r record.LogRecord) []byte {
	b = binary.LittleEndian.AppendUint64(b, uint64(r.Timestamp))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(r.SeverityText)))
	b = append(b, r.SeverityText...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(r.Body)))
	b = append(b, r.Body...)
	b = binary.LittleEndian.AppendUint32(b, uint32(r.TenantID))
	return b
}
