package loop

import (
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/topo/hook"
	"github.com/roach88/topo/schedule"
)

// Loop owns a set of systems, their schedule and their hook storage.
// T is the params bundle handed to every system on every tick.
type Loop[T any] struct {
	params   T
	rt       *hook.Runtime
	clock    *Clock
	time     TimeSource
	logger   *slog.Logger
	samples  int
	tracking bool

	observers  []Observer
	middleware []Middleware
	chains     map[string]StepFunc

	systems []*record[T] // registration order
	byName  map[string]*record[T]
	ids     arena[T]
	plan    *schedule.Plan

	skipped   map[string]bool
	errs      map[string]ErrorRecord
	evicted   map[string]bool
	pending   []string
	lastStep  map[string]time.Time
	subs      []subscription
	stepping  bool
	closed    bool
	tickEvent string
	tickSeq   int64
}

// Option configures a Loop.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	time      TimeSource
	clock     *Clock
	samples   int
	tracking  bool
	observers []Observer
}

// WithLogger sets the structured logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeSource sets the wall-clock source.
func WithTimeSource(ts TimeSource) Option {
	return func(o *options) { o.time = ts }
}

// WithClock sets the logical clock that numbers ticks.
func WithClock(c *Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithProfiling sets how many run durations are kept per system.
// Zero disables profiling.
func WithProfiling(samples int) Option {
	return func(o *options) {
		if samples < 0 {
			samples = 0
		}
		o.samples = samples
	}
}

// WithErrorTracking controls whether the last failure of each system is
// retained. Tracking is on by default.
func WithErrorTracking(enabled bool) Option {
	return func(o *options) { o.tracking = enabled }
}

// WithObserver adds an observer. Observers are notified in the order added.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observers = append(o.observers, obs) }
}

// New creates an empty loop that passes params to every system.
func New[T any](params T, opts ...Option) *Loop[T] {
	o := options{
		time:     SystemTime,
		samples:  DefaultSamples,
		tracking: true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.clock == nil {
		o.clock = NewClock()
	}

	plan, _ := schedule.Resolve(nil)
	return &Loop[T]{
		params:    params,
		rt:        hook.NewRuntime(),
		clock:     o.clock,
		time:      o.time,
		logger:    o.logger,
		samples:   o.samples,
		tracking:  o.tracking,
		observers: o.observers,
		chains:    make(map[string]StepFunc),
		byName:    make(map[string]*record[T]),
		plan:      plan,
		skipped:   make(map[string]bool),
		errs:      make(map[string]ErrorRecord),
		evicted:   make(map[string]bool),
		lastStep:  make(map[string]time.Time),
	}
}

// Runtime returns the hook runtime systems run against.
func (l *Loop[T]) Runtime() *hook.Runtime {
	return l.rt
}

// Schedule registers systems as one batch. Either every system is
// installed or, when validation or resolution fails, none is.
func (l *Loop[T]) Schedule(systems ...System[T]) error {
	if l.closed {
		return errClosed
	}
	if l.stepping {
		return stepInProgress("Schedule")
	}
	for _, s := range systems {
		if s.Name == "" {
			return &Error{Code: ErrCodeInvalidSystem, Message: "system name is empty"}
		}
		if s.Run == nil {
			return &Error{Code: ErrCodeInvalidSystem, Message: "system has no body", System: s.Name}
		}
	}

	fresh := make([]*record[T], 0, len(systems))
	for _, s := range systems {
		event := s.Event
		if event == "" {
			event = schedule.DefaultEvent
		}
		fresh = append(fresh, &record[T]{
			name:     s.Name,
			event:    event,
			priority: s.Priority,
			after:    slices.Clone(s.After),
			run:      s.Run,
			state:    StateRegistered,
		})
	}

	nodes := l.nodes(nil)
	for _, r := range fresh {
		nodes = append(nodes, r.node())
	}
	plan, err := schedule.Resolve(nodes)
	if err != nil {
		return err
	}

	for _, r := range fresh {
		r.registry = hook.NewRegistry()
		r.samples = newRing(l.samples)
		r.state = StateScheduled
		l.ids.alloc(r)
		l.systems = append(l.systems, r)
		l.byName[r.name] = r
		delete(l.evicted, r.name)
		l.logger.Debug("system scheduled",
			"system", r.name,
			"id", r.id.String(),
			"event", r.event,
			"priority", r.priority)
	}
	l.plan = plan
	return nil
}

// nodes returns the scheduling view of every registered system except
// those named in exclude, in registration order.
func (l *Loop[T]) nodes(exclude map[string]bool) []schedule.Node {
	nodes := make([]schedule.Node, 0, len(l.systems))
	for _, r := range l.systems {
		if exclude[r.name] {
			continue
		}
		nodes = append(nodes, r.node())
	}
	return nodes
}

// Evict removes a system and releases all of its hook storage. The
// remaining systems must still resolve, otherwise nothing changes and the
// scheduling error is returned as a *schedule.Error, not a *Error: evicting
// a system others run after fails with schedule.ErrCodeUnknownDependency,
// which callers test with schedule.HasCode. An unregistered name fails
// with ErrCodeUnknownSystem.
//
// Called during a tick, the eviction is validated immediately and applied
// once the pass finishes.
func (l *Loop[T]) Evict(name string) error {
	if l.closed {
		return errClosed
	}
	if _, ok := l.byName[name]; !ok || slices.Contains(l.pending, name) {
		return unknownSystem(name)
	}

	exclude := map[string]bool{name: true}
	for _, p := range l.pending {
		exclude[p] = true
	}
	plan, err := schedule.Resolve(l.nodes(exclude))
	if err != nil {
		return err
	}

	if l.stepping {
		l.pending = append(l.pending, name)
		l.logger.Debug("eviction deferred", "system", name)
		return nil
	}
	l.evict(name, plan)
	return nil
}

func (l *Loop[T]) evict(name string, plan *schedule.Plan) {
	r := l.byName[name]
	l.systems = slices.DeleteFunc(l.systems, func(x *record[T]) bool { return x == r })
	delete(l.byName, name)
	delete(l.skipped, name)
	delete(l.errs, name)
	l.plan = plan

	for _, err := range r.registry.ReleaseAll() {
		l.fail(r, PhaseEvict, err)
	}
	r.state = StateEvicted
	l.ids.release(r.id)
	l.evicted[name] = true
	l.logger.Debug("system evicted", "system", name, "id", r.id.String())
}

func (l *Loop[T]) applyPending() {
	pending := l.pending
	l.pending = nil
	for _, name := range pending {
		if _, ok := l.byName[name]; !ok {
			continue
		}
		plan, err := schedule.Resolve(l.nodes(map[string]bool{name: true}))
		if err != nil {
			l.logger.Error("deferred eviction failed", "system", name, "error", err)
			continue
		}
		l.evict(name, plan)
	}
}

// Replace swaps the body of a registered system, keeping its hook storage,
// event, priority, dependencies, profiling history and last error. The
// replacement gets a fresh SystemID. When next.Name differs from the old
// name, dependents are rewritten to refer to the new name. Empty fields of
// next other than Name and Run are ignored.
func (l *Loop[T]) Replace(name string, next System[T]) error {
	if l.closed {
		return errClosed
	}
	if l.stepping {
		return stepInProgress("Replace")
	}
	old, ok := l.byName[name]
	if !ok {
		return unknownSystem(name)
	}
	if next.Run == nil {
		return &Error{Code: ErrCodeInvalidSystem, Message: "system has no body", System: next.Name}
	}
	newName := next.Name
	if newName == "" {
		newName = name
	}

	rename := func(deps []string) []string {
		out := slices.Clone(deps)
		for i, d := range out {
			if d == name {
				out[i] = newName
			}
		}
		return out
	}

	nodes := make([]schedule.Node, 0, len(l.systems))
	for _, r := range l.systems {
		n := r.node()
		if r == old {
			n.Name = newName
		}
		n.After = rename(n.After)
		nodes = append(nodes, n)
	}
	plan, err := schedule.Resolve(nodes)
	if err != nil {
		return err
	}

	r := &record[T]{
		name:     newName,
		event:    old.event,
		priority: old.priority,
		after:    rename(old.after),
		run:      next.Run,
		registry: old.registry,
		samples:  old.samples,
		state:    old.state,
	}
	l.ids.release(old.id)
	l.ids.alloc(r)
	old.state = StateEvicted

	for i, x := range l.systems {
		if x == old {
			l.systems[i] = r
		} else {
			x.after = rename(x.after)
		}
	}
	delete(l.byName, name)
	l.byName[newName] = r
	if newName != name {
		l.evicted[name] = true
		delete(l.evicted, newName)
		if rec, ok := l.errs[name]; ok {
			delete(l.errs, name)
			l.errs[newName] = rec
		}
		if l.skipped[name] {
			delete(l.skipped, name)
			l.skipped[newName] = true
		}
	}
	l.plan = plan

	l.logger.Debug("system replaced",
		"system", name,
		"replacement", newName,
		"old_id", old.id.String(),
		"id", r.id.String())
	return nil
}

// Skip excludes a system from ticks (skip=true) or re-includes it. A
// skipped system keeps its storage; sweeps do not touch it.
func (l *Loop[T]) Skip(name string, skip bool) error {
	if _, ok := l.byName[name]; !ok {
		return unknownSystem(name)
	}
	if skip {
		l.skipped[name] = true
	} else {
		delete(l.skipped, name)
	}
	return nil
}

// Skipped reports whether a system is currently skipped.
func (l *Loop[T]) Skipped(name string) bool {
	return l.skipped[name]
}

// SetErrorTracking toggles error retention at runtime. Disabling it clears
// retained errors.
func (l *Loop[T]) SetErrorTracking(enabled bool) {
	l.tracking = enabled
	if !enabled {
		clear(l.errs)
	}
}

// Errors returns the last retained failure of every system that has one.
func (l *Loop[T]) Errors() map[string]ErrorRecord {
	out := make(map[string]ErrorRecord, len(l.errs))
	for k, v := range l.errs {
		out[k] = v
	}
	return out
}

// LastError returns the retained failure of one system.
func (l *Loop[T]) LastError(name string) (ErrorRecord, bool) {
	rec, ok := l.errs[name]
	return rec, ok
}

// Profile returns the retained run durations of every system, oldest first.
// It is empty when profiling is disabled.
func (l *Loop[T]) Profile() map[string][]time.Duration {
	out := make(map[string][]time.Duration)
	if l.samples == 0 {
		return out
	}
	for _, r := range l.systems {
		out[r.name] = r.samples.values()
	}
	return out
}

// Order returns the execution order of an event group.
func (l *Loop[T]) Order(event string) []string {
	return l.plan.Order(event)
}

// Plan returns the current resolved schedule.
func (l *Loop[T]) Plan() *schedule.Plan {
	return l.plan
}

// Names returns the registered systems in registration order.
func (l *Loop[T]) Names() []string {
	names := make([]string, len(l.systems))
	for i, r := range l.systems {
		names[i] = r.name
	}
	return names
}

// State returns the lifecycle state of a system. Names never registered
// report StateUnknown.
func (l *Loop[T]) State(name string) State {
	if r, ok := l.byName[name]; ok {
		return r.state
	}
	if l.evicted[name] {
		return StateEvicted
	}
	return StateUnknown
}

// ID returns the current SystemID of a registered system.
func (l *Loop[T]) ID(name string) (hook.SystemID, error) {
	r, ok := l.byName[name]
	if !ok {
		return hook.SystemID{}, unknownSystem(name)
	}
	return r.id, nil
}

// Lookup resolves a SystemID to its system name. Stale IDs from evicted
// or replaced systems do not resolve.
func (l *Loop[T]) Lookup(id hook.SystemID) (string, bool) {
	r := l.ids.get(id)
	if r == nil {
		return "", false
	}
	return r.name, true
}

// Entries returns the number of live hook entries a system holds.
func (l *Loop[T]) Entries(name string) (int, error) {
	r, ok := l.byName[name]
	if !ok {
		return 0, unknownSystem(name)
	}
	return r.registry.Len(), nil
}

// Close stops all tick sources and evicts every system, newest first,
// releasing their storage. Release failures are joined into the result.
// The loop rejects further work afterwards.
func (l *Loop[T]) Close() error {
	if l.closed {
		return nil
	}
	if l.stepping {
		return stepInProgress("Close")
	}
	l.Stop()

	var errs []error
	for i := len(l.systems) - 1; i >= 0; i-- {
		r := l.systems[i]
		for _, err := range r.registry.ReleaseAll() {
			errs = append(errs, err)
			l.fail(r, PhaseEvict, err)
		}
		r.state = StateEvicted
		l.ids.release(r.id)
		l.evicted[r.name] = true
	}
	l.systems = nil
	clear(l.byName)
	clear(l.skipped)
	l.plan, _ = schedule.Resolve(nil)
	l.closed = true
	return errors.Join(errs...)
}
