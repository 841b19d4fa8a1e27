// Package loop runs registered systems once per tick of an external tick
// source, in an order resolved by package schedule, with per-system hook
// storage from package hook.
//
// ARCHITECTURE:
//
// Single-Driver Model:
// A Loop has no internal locking. Every method, and every tick callback,
// must be invoked from the one goroutine that drives ticks. Tick sources
// shipped here (Signal, Interval) call their subscribers on the goroutine
// that fires them, which makes that goroutine the driver. Violating this
// precondition is a data race.
//
// Tick Processing Flow:
//  1. A tick source fires the step function bound to an event group
//  2. Middleware (outermost last-added) wraps the pass
//  3. The pass opens a hook frame (delta time, wall time, logical seq)
//  4. Each scheduled, non-skipped system runs inside its own context frame
//  5. Failures (errors and panics) are recorded; siblings keep running
//  6. Every executed system's registry is swept
//  7. Deferred evictions are applied; observers receive a TickReport
//
// System States:
//
//	Registered -> Scheduled -> Running -> Idle | Errored | Skipped -> Evicted
//
// A system is only Scheduled once a full resolve including it succeeded;
// a failed Schedule call installs nothing.
//
// Cooperative execution:
// Systems run synchronously and to completion. Nothing here times out a
// system; a hung system stalls its tick.
package loop
