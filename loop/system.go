package loop

import (
	"fmt"
	"slices"
	"time"

	"github.com/roach88/topo/hook"
	"github.com/roach88/topo/schedule"
)

// SystemFunc is a system body. It receives the loop's runtime, for hooks,
// and the params bundle the loop was created with. A returned error or a
// panic counts as a failure for this tick only.
type SystemFunc[T any] func(rt *hook.Runtime, params T) error

// System declares a system and its scheduling constraints.
type System[T any] struct {
	// Name identifies the system; other systems refer to it in After.
	Name string

	// Event is the event group the system runs in. Empty means
	// schedule.DefaultEvent.
	Event string

	// Priority orders systems within a group; lower runs first.
	Priority int

	// After lists systems that must run before this one.
	After []string

	Run SystemFunc[T]
}

// State is the lifecycle state of a system.
type State int

const (
	StateUnknown State = iota
	StateRegistered
	StateScheduled
	StateRunning
	StateIdle
	StateErrored
	StateSkipped
	StateEvicted
)

var stateNames = [...]string{
	StateUnknown:    "unknown",
	StateRegistered: "registered",
	StateScheduled:  "scheduled",
	StateRunning:    "running",
	StateIdle:       "idle",
	StateErrored:    "errored",
	StateSkipped:    "skipped",
	StateEvicted:    "evicted",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrorRecord is the last failure of a system.
type ErrorRecord struct {
	Err  error
	When time.Time
	Seq  int64
}

// record is the loop's bookkeeping for one registered system.
type record[T any] struct {
	id       hook.SystemID
	name     string
	event    string
	priority int
	after    []string
	run      SystemFunc[T]
	registry *hook.Registry
	samples  *ring
	state    State
}

func (r *record[T]) node() schedule.Node {
	return schedule.Node{
		Name:     r.name,
		Event:    r.event,
		Priority: r.priority,
		After:    slices.Clone(r.after),
	}
}

// arena hands out SystemIDs. A slot's generation is bumped on every reuse
// so stale handles never alias a newer system.
type arena[T any] struct {
	slots []*record[T]
	gens  []uint32
	free  []uint32
}

func (a *arena[T]) alloc(r *record[T]) hook.SystemID {
	var slot uint32
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		slot = uint32(len(a.slots))
		a.slots = append(a.slots, nil)
		a.gens = append(a.gens, 0)
	}
	a.gens[slot]++
	a.slots[slot] = r
	r.id = hook.NewSystemID(slot, a.gens[slot])
	return r.id
}

func (a *arena[T]) get(id hook.SystemID) *record[T] {
	slot := id.Slot()
	if !id.Valid() || int(slot) >= len(a.slots) || a.gens[slot] != id.Generation() {
		return nil
	}
	return a.slots[slot]
}

func (a *arena[T]) release(id hook.SystemID) {
	if a.get(id) == nil {
		return
	}
	a.slots[id.Slot()] = nil
	a.free = append(a.free, id.Slot())
}
