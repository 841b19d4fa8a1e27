package loop

import "time"

// Phase says where a failure happened.
type Phase string

const (
	// PhaseRun is a system body that returned an error or panicked.
	PhaseRun Phase = "run"

	// PhaseRelease is a release policy that failed during a tick's sweep.
	PhaseRelease Phase = "release"

	// PhaseEvict is a release policy that failed during eviction.
	PhaseEvict Phase = "evict"
)

// Failure describes one failed system in one tick.
type Failure struct {
	Event  string
	Seq    int64
	System string
	Phase  Phase
	Err    error
	When   time.Time
}

// Sample is one system run within a tick.
type Sample struct {
	System   string
	Duration time.Duration
	Failed   bool
}

// TickReport summarizes a completed pass over an event group.
type TickReport struct {
	Event     string
	Seq       int64
	DeltaTime float64
	Started   time.Time
	Samples   []Sample
	Skipped   []string
}

// Observer receives loop notifications on the driving goroutine.
// Implementations must not call back into the Loop. A panic in an
// observer is recovered and logged; it does not abort the tick.
type Observer interface {
	SystemFailed(f Failure)
	TickCompleted(r TickReport)
}
