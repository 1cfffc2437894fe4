// Package timebase provides the process-wide monotonic microsecond clock
// that every other measurement component is built on.
package timebase

import "time"

// Clock is a monotonic microsecond counter. Its zero value is not usable;
// construct one with New. A Clock is safe to read from any goroutine,
// including the goroutines that stand in for interrupt context.
type Clock struct {
	start time.Time
}

// New creates a Clock whose epoch is the moment it is constructed.
func New() *Clock {
	return &Clock{start: time.Now()}
}

// NowUs returns microseconds elapsed since the Clock was created. Wall-clock
// alignment is not guaranteed or required; only monotonicity matters to
// callers.
func (c *Clock) NowUs() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

// process-wide default, mirroring the single free-running hardware timer a
// real board would expose to every peripheral.
var std = New()

// Now returns microseconds elapsed since the process-wide default Clock was
// created.
func Now() uint64 {
	return std.NowUs()
}
