package hook

import (
	"sync"
	"time"
)

// Option configures a hook call.
type Option func(*options)

type options struct {
	discriminator any
	policy        ReleasePolicy
}

// WithKey distinguishes several logical instances produced by one call
// site, e.g. one per entity handled in a loop.
func WithKey(discriminator any) Option {
	return func(o *options) {
		o.discriminator = discriminator
	}
}

// WithRelease attaches a release policy to a UseState slot of type T.
// A policy supplied on a later call replaces the earlier one.
func WithRelease[T any](fn func(*T) (Decision, error)) Option {
	return func(o *options) {
		if fn == nil {
			o.policy = nil
			return
		}
		o.policy = func(v any) (Decision, error) {
			return fn(v.(*T))
		}
	}
}

func collect(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// UseState returns storage private to the running system and to this call
// site. The pointer is stable across ticks for as long as the slot keeps
// being requested; init runs only when the slot is created.
//
// UseState panics with a *ContextError outside a running system.
func UseState[T any](rt *Runtime, site Site, init func() T, opts ...Option) *T {
	s := rt.mustTop("UseState")
	o := collect(opts)
	key := rt.derive(s, site, o.discriminator)

	v := s.registry.GetOrCreate(key, func() any {
		p := new(T)
		if init != nil {
			*p = init()
		}
		return p
	}, o.policy)
	return v.(*T)
}

// UseDeltaTime returns the seconds elapsed since the previous tick of the
// running system's event group.
func UseDeltaTime(rt *Runtime) float64 {
	return CurrentFrame(rt).DeltaTime
}

// UseFrameState returns the current frame.
func UseFrameState(rt *Runtime) Frame {
	return CurrentFrame(rt)
}

// UseCurrentSystem returns the handle of the running system.
func UseCurrentSystem(rt *Runtime) SystemID {
	return CurrentSystem(rt)
}

type throttle struct {
	last  time.Time
	fired bool
}

// UseThrottle reports true the first time it is called and afterwards at
// most once every seconds of frame time.
func UseThrottle(rt *Runtime, site Site, seconds float64, opts ...Option) bool {
	now := CurrentFrame(rt).Time
	t := UseState[throttle](rt, site, nil, opts...)

	if t.fired && now.Sub(t.last).Seconds() < seconds {
		return false
	}
	t.fired = true
	t.last = now
	return true
}

// Source is anything that can deliver events of type E to a callback.
// Subscribe returns a function that cancels the subscription.
type Source[E any] interface {
	Subscribe(fn func(E)) (cancel func())
}

// eventQueue buffers events between ticks. Sources may publish from any
// goroutine, so the buffer is guarded.
type eventQueue[E any] struct {
	mu      sync.Mutex
	pending []E
	cancel  func()
}

func (q *eventQueue[E]) push(ev E) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()
}

func (q *eventQueue[E]) drain() []E {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// UseEvent subscribes to source the first time the slot is created and
// returns the events received since the previous call. When the slot stops
// being requested the subscription is cancelled and the buffer dropped.
func UseEvent[E any](rt *Runtime, site Site, source Source[E], opts ...Option) []E {
	s := rt.mustTop("UseEvent")
	o := collect(opts)
	key := rt.derive(s, site, o.discriminator)

	v := s.registry.GetOrCreate(key, func() any {
		q := &eventQueue[E]{}
		q.cancel = source.Subscribe(q.push)
		return q
	}, func(v any) (Decision, error) {
		q := v.(*eventQueue[E])
		if q.cancel != nil {
			q.cancel()
		}
		return Discard, nil
	})
	return v.(*eventQueue[E]).drain()
}
