package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time of a ManualTime.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualTime is a wall-clock source for tests.
//
// Time only moves when the test moves it: Advance and Set move it
// explicitly, and a non-zero auto step moves it forward after every Now
// call. With an auto step, a system run measured as two Now calls always
// takes exactly one step.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualTime struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewManualTime creates a source frozen at start. A zero start means Epoch.
func NewManualTime(start time.Time) *ManualTime {
	if start.IsZero() {
		start = Epoch
	}
	return &ManualTime{now: start}
}

// NewSteppingTime creates a source that advances by step after each Now.
func NewSteppingTime(start time.Time, step time.Duration) *ManualTime {
	m := NewManualTime(start)
	m.step = step
	return m
}

// Now returns the current time, then applies the auto step.
func (m *ManualTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now
	m.now = m.now.Add(m.step)
	return now
}

// Peek returns the current time without applying the auto step.
func (m *ManualTime) Peek() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the time forward by d.
func (m *ManualTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Set moves the time to t.
func (m *ManualTime) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}
