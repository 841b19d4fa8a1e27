// Package schedule resolves system constraints into a stable execution
// order per event group.
//
// Systems declare:
//   - the event group they run in (DefaultEvent when empty)
//   - a numeric priority (lower runs first, default 0)
//   - the systems they must run after
//
// The resolver partitions systems by event group, builds a dependency
// graph with an edge from each dependency to its dependent, and runs Kahn's
// algorithm with ties broken by (priority, registration index). The same
// input always produces the same order.
//
// A dependency may not have a higher priority than its dependent: priority
// order and "runs after" order would then disagree, and the resolver fails
// with UNSCHEDULABLE_CONSTRAINT instead of silently picking one. When every
// edge satisfies this rule the resulting order is non-decreasing in
// priority, so priority keeps its plain meaning.
//
// Validation order (the first failure wins, nothing partial is returned):
//
//  1. Empty or duplicate names
//  2. Dependencies on unknown systems
//  3. Dependencies across event groups
//  4. Cycles, reported with a witness path (Tarjan SCC)
//  5. Priority conflicts
//
// Resolution is deliberately done in full on every call. Callers should
// batch registrations rather than resolve once per system.
package schedule
