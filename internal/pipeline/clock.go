package pipeline

import "sync/atomic"

// Sequencer hands out increasing logical sequence numbers for the ledger.
type Sequencer interface {
	Next() int64
}

// Clock is the default Sequencer: a monotonic logical clock. Ledger rows
// are ordered by its values, never by wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClockAt creates a clock that resumes after start, e.g. the highest
// seq already present in the ledger.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
