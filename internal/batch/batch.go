// Package batch groups parsed log records into fixed-capacity batches.
//
// The accumulator holds at most one in-progress batch. A full batch is handed
// off (ownership transferred) before the next record is accepted, so memory
// stays proportional to capacity × average record size.
package batch

import (
	"context"
	"fmt"

	"github.com/JinheLin/hdfs-log-reader/internal/record"
)

// Batch is an ordered group of records written to storage in one operation.
type Batch []record.LogRecord

// Outcomes is a single-pass cursor of parse outcomes. *record.Stream
// satisfies it.
type Outcomes interface {
	Next() bool
	Outcome() record.Outcome
	Err() error
}

// Handler receives the accumulator's output while draining a stream.
type Handler struct {
	// Outcome, if set, is called for every consumed line before it is routed.
	Outcome func(record.Outcome)

	// Reject, if set, receives every outcome that failed to parse. Rejected
	// lines never occupy a batch slot.
	Reject func(record.Outcome)

	// Emit receives each full batch and the final short batch. Returning an
	// error stops the drain immediately.
	Emit func(ctx context.Context, b Batch) error
}

// Accumulator buffers records up to a fixed capacity.
type Accumulator struct {
	capacity int
	cur      Batch
}

// New returns an Accumulator with the given capacity, which must be >= 1.
func New(capacity int) (*Accumulator, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("batch capacity must be >= 1, got %d", capacity)
	}
	return &Accumulator{capacity: capacity, cur: make(Batch, 0, capacity)}, nil
}

// Cap returns the configured capacity.
func (a *Accumulator) Cap() int { return a.capacity }

// Len returns the number of records in the in-progress batch.
func (a *Accumulator) Len() int { return len(a.cur) }

// Add appends rec to the in-progress batch. When the batch reaches capacity
// it is returned with true and a new empty batch is started; the caller owns
// the returned slice.
func (a *Accumulator) Add(rec record.LogRecord) (Batch, bool) {
	a.cur = append(a.cur, rec)
	if len(a.cur) < a.capacity {
		return nil, false
	}
	full := a.cur
	a.cur = make(Batch, 0, a.capacity)
	return full, true
}

// Flush returns the non-empty remainder, if any, and resets the accumulator.
func (a *Accumulator) Flush() (Batch, bool) {
	if len(a.cur) == 0 {
		return nil, false
	}
	rest := a.cur
	a.cur = make(Batch, 0, a.capacity)
	return rest, true
}

// Drain consumes in to exhaustion, routing failed outcomes to h.Reject and
// emitting full batches as they fill, then the final short batch.
//
// Drain returns the first error from h.Emit unchanged, or the stream's read
// error wrapped with "read input". Records buffered when an error occurs are
// discarded.
func (a *Accumulator) Drain(ctx context.Context, in Outcomes, h Handler) error {
	if h.Emit == nil {
		return fmt.Errorf("batch: Emit handler must not be nil")
	}
	for in.Next() {
		o := in.Outcome()
		if h.Outcome != nil {
			h.Outcome(o)
		}
		if !o.OK() {
			if h.Reject != nil {
				h.Reject(o)
			}
			continue
		}
		if full, ok := a.Add(o.Record); ok {
			if err := h.Emit(ctx, full); err != nil {
				return err
			}
		}
	}
	if err := in.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if rest, ok := a.Flush(); ok {
		return h.Emit(ctx, rest)
	}
	return nil
}
