package hook

import "fmt"

// Decision is the answer of a release policy for an unused entry.
type Decision int

const (
	// Discard removes the entry. It is the zero value, and the implied
	// answer for entries without a policy.
	Discard Decision = iota

	// Retain keeps the entry even though it was not used this tick.
	Retain
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Discard:
		return "discard"
	case Retain:
		return "retain"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// ReleasePolicy decides the fate of an entry that was not touched during
// the last tick. It receives the stored value.
type ReleasePolicy func(value any) (Decision, error)

type entry struct {
	key     Key
	value   any
	policy  ReleasePolicy
	touched bool
}

// Registry is one system's hook storage.
//
// Entries are kept in creation order so that sweeps release them in a
// reproducible sequence.
//
// INVARIANTS:
//   - A key maps to at most one entry
//   - An entry's value is never replaced once created
type Registry struct {
	entries map[Key]*entry
	order   []*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Key]*entry)}
}

// GetOrCreate returns the value stored under key, creating it with init on
// first use. The entry is marked touched for the current tick.
//
// A non-nil policy replaces the entry's current policy; a nil policy leaves
// it unchanged.
func (r *Registry) GetOrCreate(key Key, init func() any, policy ReleasePolicy) any {
	if e, ok := r.entries[key]; ok {
		e.touched = true
		if policy != nil {
			e.policy = policy
		}
		return e.value
	}

	var value any
	if init != nil {
		value = init()
	}
	e := &entry{key: key, value: value, policy: policy, touched: true}
	r.entries[key] = e
	r.order = append(r.order, e)
	return value
}

// Lookup returns the value under key without touching it.
func (r *Registry) Lookup(key Key) (any, bool) {
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// BeginTick clears every touched flag. Called before the owning system runs.
func (r *Registry) BeginTick() {
	for _, e := range r.order {
		e.touched = false
	}
}

// Sweep releases entries that were not touched since the last BeginTick.
//
// For each untouched entry the policy (if any) is consulted: Retain keeps
// it, anything else removes it. A policy that fails or panics yields a
// *ReleaseError and its entry is removed.
func (r *Registry) Sweep() []error {
	return r.sweep(false)
}

// ReleaseAll runs a final sweep in which every entry counts as unused and
// Retain is not honored. The registry is empty afterwards.
func (r *Registry) ReleaseAll() []error {
	return r.sweep(true)
}

func (r *Registry) sweep(final bool) []error {
	var errs []error
	kept := r.order[:0]

	for _, e := range r.order {
		if e.touched && !final {
			kept = append(kept, e)
			continue
		}

		decision, err := release(e)
		if err != nil {
			errs = append(errs, &ReleaseError{Key: e.key, Err: err})
		}
		if decision == Retain && err == nil && !final {
			e.touched = false
			kept = append(kept, e)
			continue
		}
		delete(r.entries, e.key)
	}

	// Clear the tail so dropped entries can be collected.
	for i := len(kept); i < len(r.order); i++ {
		r.order[i] = nil
	}
	r.order = kept
	return errs
}

// release invokes an entry's policy, converting a panic into an error.
func release(e *entry) (decision Decision, err error) {
	if e.policy == nil {
		return Discard, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			decision = Discard
			err = fmt.Errorf("release policy panicked: %v", rec)
		}
	}()
	return e.policy(e.value)
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return len(r.order)
}

// Keys returns the live keys in creation order.
func (r *Registry) Keys() []Key {
	keys := make([]Key, len(r.order))
	for i, e := range r.order {
		keys[i] = e.key
	}
	return keys
}
