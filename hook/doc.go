// Package hook implements topological hook state: persistent per-system
// storage whose identity comes from the call path that requested it rather
// than from a caller-managed key.
//
// ARCHITECTURE:
//
// Runtime:
// A Runtime holds the tick-scoped Frame and a stack of context frames, one
// per running system (plus any nested counting scopes opened with Nest).
// The Loop owns exactly one Runtime; there is no package-level state.
//
// Key Derivation:
// Every hook call resolves to a Key computed from
//
//	(scope prefix, call-site token, discriminator, occurrence)
//
// hashed with SHA-256 under a versioned domain prefix. The occurrence is
// the number of times the same (site, discriminator) pair was already seen
// in the current context frame, so a call site executed k times in a loop
// receives k independent slots, and the same k slots again on the next
// tick. The system identity selects which Registry is consulted and is not
// part of the key, which keeps keys identical across a hot-swap.
//
// Call-site tokens:
// Go has no source rewriting step, so callers pass a Site explicitly:
// a string constant, or a token produced by NewSite from a code generator.
// The zero Site is "unannotated": each such call is unique per tick and
// its storage does not survive to the next tick.
//
// Registry lifecycle:
//
//	BeginTick -> GetOrCreate (touch) ... -> Sweep
//
// Sweep releases every entry not touched this tick, unless its release
// policy answers Retain.
//
// CONCURRENCY:
// A Runtime and its registries must only be used from the goroutine that
// drives ticks. UseEvent is the exception: its sources may publish from any
// goroutine.
package hook
