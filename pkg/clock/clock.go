// Package clock implements a Lamport logical clock that is safe for
// concurrent use.
//
// From Lamport (1978), two implementation rules govern the clock:
//
//	IR1 (send): stamp the outgoing event with the current value, then
//	     increment the clock.
//	IR2 (receipt): on receiving an event with timestamp t, set the clock
//	     to max(own, t) + 1.
//
// Both rules are fused read-modify-write operations on a single atomic
// counter. There is no separate setter: a read followed by a write could
// interleave with another caller and lose an update.
//
// The counter is an int64. Advancing past math.MaxInt64 wraps to a negative
// value; at one tick per nanosecond that takes roughly 292 years, so the
// clock does not check for it.
package clock

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNegativeTimestamp is returned when a received timestamp is below zero.
var ErrNegativeTimestamp = errors.New("clock: negative timestamp")

// testHookReceiveLoaded, if non-nil, runs in BumpForReceive between the
// load of the current value and the compare-and-swap.
var testHookReceiveLoaded func()

// Clock is a Lamport logical clock. The zero value is a clock at 0, ready
// to use. A Clock must not be copied after first use.
type Clock struct {
	ts      atomic.Int64
	updates atomic.Uint64
}

// BumpForSend implements IR1. It atomically increments the clock and
// returns the value observed before the increment, which becomes the
// timestamp of the outgoing event.
func (c *Clock) BumpForSend() int64 {
	next := c.ts.Add(1)
	c.updates.Add(1)
	return next - 1
}

// BumpForReceive implements IR2: it atomically sets the clock to
// max(own, received) + 1 and returns the new value.
func (c *Clock) BumpForReceive(received int64) (int64, error) {
	if received < 0 {
		return 0, fmt.Errorf("%w: %d", ErrNegativeTimestamp, received)
	}
	for {
		cur := c.ts.Load()
		if testHookReceiveLoaded != nil {
			testHookReceiveLoaded()
		}
		next := max(cur, received) + 1
		if c.ts.CompareAndSwap(cur, next) {
			c.updates.Add(1)
			return next, nil
		}
	}
}

// Value returns the current clock value without advancing it.
func (c *Clock) Value() int64 { return c.ts.Load() }

// Updates returns how many send and receive operations have been applied.
// Every successful BumpForSend or BumpForReceive counts exactly once.
func (c *Clock) Updates() uint64 { return c.updates.Load() }

// TotalOrderLess defines a deterministic total order over events.
// Given two events with timestamps tsA and tsB from processes procA and
// procB, event A is "less" (has priority) if:
//
//	tsA < tsB, or
//	tsA == tsB and procA < procB
//
// This is the standard Lamport total order used for mutual exclusion.
func TotalOrderLess(tsA, procA, tsB, procB int64) bool {
	if tsA != tsB {
		return tsA < tsB
	}
	return procA < procB
}
