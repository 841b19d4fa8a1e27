package loop

import "time"

// DefaultSamples is the profiling ring size used when none is configured.
const DefaultSamples = 60

// ring is a bounded buffer of run durations. The oldest sample is
// overwritten once the buffer is full.
type ring struct {
	buf  []time.Duration
	next int
	full bool
}

func newRing(size int) *ring {
	return &ring{buf: make([]time.Duration, size)}
}

func (r *ring) push(d time.Duration) {
	if len(r.buf) == 0 {
		return
	}
	r.buf[r.next] = d
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// values returns the samples from oldest to newest.
func (r *ring) values() []time.Duration {
	out := make([]time.Duration, 0, r.len())
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	return append(out, r.buf[:r.next]...)
}
