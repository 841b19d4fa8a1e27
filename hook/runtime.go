package hook

import (
	"fmt"
	"strconv"
	"time"
)

// SystemID is an opaque handle for a registered system: a slot in the
// owner's arena plus a generation that changes whenever the slot is reused.
// The zero value identifies no system.
type SystemID struct {
	slot uint32
	gen  uint32
}

// NewSystemID builds a handle. gen must be non-zero.
func NewSystemID(slot, gen uint32) SystemID {
	return SystemID{slot: slot, gen: gen}
}

// Slot returns the arena slot.
func (id SystemID) Slot() uint32 { return id.slot }

// Generation returns the slot generation.
func (id SystemID) Generation() uint32 { return id.gen }

// Valid reports whether id refers to a system.
func (id SystemID) Valid() bool { return id.gen != 0 }

func (id SystemID) String() string {
	return fmt.Sprintf("system#%d.%d", id.slot, id.gen)
}

// Frame is the tick-scoped state shared by every system in one pass.
type Frame struct {
	// DeltaTime is the number of seconds since the previous tick of the
	// same event group. Never negative.
	DeltaTime float64

	// Time is the wall-clock time at which the tick began.
	Time time.Time

	// Seq is the logical tick number.
	Seq int64
}

// scope is one context frame: a running system or a nested counting scope.
type scope struct {
	system   SystemID
	registry *Registry
	prefix   Key
	counts   map[string]int
	anon     int
}

// Runtime holds the frame and the context stack for one Loop.
type Runtime struct {
	frame  *Frame
	stack  []*scope
	frames int64
}

// NewRuntime creates an idle runtime.
func NewRuntime() *Runtime {
	return &Runtime{}
}

// BeginFrame opens a tick. Frames do not nest.
func (rt *Runtime) BeginFrame(deltaTime float64, now time.Time, seq int64) error {
	if rt.frame != nil {
		return &ContextError{Code: ErrCodeFrameActive, Op: "BeginFrame", Message: "a frame is already open"}
	}
	if deltaTime < 0 {
		deltaTime = 0
	}
	rt.frames++
	rt.frame = &Frame{DeltaTime: deltaTime, Time: now, Seq: seq}
	return nil
}

// EndFrame closes the current tick and drops any context frames left open.
func (rt *Runtime) EndFrame() {
	rt.frame = nil
	rt.stack = rt.stack[:0]
}

// BeginSystem pushes a context frame for id backed by reg.
// A frame must be open.
func (rt *Runtime) BeginSystem(id SystemID, reg *Registry) error {
	if rt.frame == nil {
		return &ContextError{Code: ErrCodeNoActiveContext, Op: "BeginSystem", Message: "no frame is open"}
	}
	rt.stack = append(rt.stack, &scope{
		system:   id,
		registry: reg,
		counts:   make(map[string]int),
	})
	return nil
}

// EndSystem pops the innermost context frame. It is a no-op on an empty stack.
func (rt *Runtime) EndSystem() {
	if n := len(rt.stack); n > 0 {
		rt.stack[n-1] = nil
		rt.stack = rt.stack[:n-1]
	}
}

// Run invokes fn as system id. The context frame is popped even if fn
// panics; the panic continues to the caller.
func (rt *Runtime) Run(id SystemID, reg *Registry, fn func() error) error {
	if err := rt.BeginSystem(id, reg); err != nil {
		return err
	}
	defer rt.EndSystem()
	return fn()
}

// Depth returns the number of open context frames.
func (rt *Runtime) Depth() int {
	return len(rt.stack)
}

func (rt *Runtime) top() *scope {
	if rt == nil || rt.frame == nil || len(rt.stack) == 0 {
		return nil
	}
	return rt.stack[len(rt.stack)-1]
}

func (rt *Runtime) mustTop(op string) *scope {
	s := rt.top()
	if s == nil {
		panic(noActiveContext(op))
	}
	return s
}

// derive resolves the key for one hook call in scope s and advances the
// occurrence counter for (site, discriminator).
func (rt *Runtime) derive(s *scope, site Site, discriminator any) Key {
	if site == "" {
		// Unannotated: unique within this tick, never repeated on the next.
		site = Site("anon#" + strconv.FormatInt(rt.frames, 10) + "#" + strconv.Itoa(s.anon))
		s.anon++
	}
	counter := string(site) + "\x00" + canonical(discriminator)
	occurrence := s.counts[counter]
	s.counts[counter] = occurrence + 1
	return DeriveKey(s.prefix, site, discriminator, occurrence)
}

// WithinContext reports whether a system is currently running on rt.
func WithinContext(rt *Runtime) bool {
	return rt.top() != nil
}

// TryCurrentFrame returns the active frame, or a NoActiveContext error.
func TryCurrentFrame(rt *Runtime) (Frame, error) {
	if rt.top() == nil {
		return Frame{}, noActiveContext("CurrentFrame")
	}
	return *rt.frame, nil
}

// CurrentFrame returns the active frame. It panics with a *ContextError
// outside a running system.
func CurrentFrame(rt *Runtime) Frame {
	rt.mustTop("CurrentFrame")
	return *rt.frame
}

// TryCurrentSystem returns the running system, or a NoActiveContext error.
func TryCurrentSystem(rt *Runtime) (SystemID, error) {
	s := rt.top()
	if s == nil {
		return SystemID{}, noActiveContext("CurrentSystem")
	}
	return s.system, nil
}

// CurrentSystem returns the running system. It panics with a *ContextError
// outside a running system.
func CurrentSystem(rt *Runtime) SystemID {
	return rt.mustTop("CurrentSystem").system
}

// Nest runs fn inside a fresh counting scope. Keys derived inside fn are
// prefixed by the scope's own key, so each execution of the scope (per
// site, discriminator and occurrence) gets isolated storage.
func Nest(rt *Runtime, site Site, discriminator any, fn func()) {
	parent := rt.mustTop("Nest")
	prefix := rt.derive(parent, site, discriminator)

	rt.stack = append(rt.stack, &scope{
		system:   parent.system,
		registry: parent.registry,
		prefix:   prefix,
		counts:   make(map[string]int),
	})
	defer rt.EndSystem()
	fn()
}
