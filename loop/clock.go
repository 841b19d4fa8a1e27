package loop

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic logical clock that numbers ticks.
//
// Every pass of every event group takes the next sequence number, so
// ticks can be ordered without comparing wall-clock timestamps.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies wall-clock time for delta times, profiling samples
// and error timestamps. Tests substitute a manual source.
type TimeSource interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// SystemTime is the TimeSource backed by time.Now.
var SystemTime TimeSource = systemTime{}
