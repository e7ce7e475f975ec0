package engine

import "time"

// Clock supplies the timestamps stamped on entries, lots and batches.
//
// Lot FIFO order is (acquired_at, seq), so a clock that repeats a value is
// safe: ties fall back to insertion order.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time {
	return f()
}
