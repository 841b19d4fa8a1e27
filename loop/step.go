package loop

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// StepFunc runs one pass over an event group.
type StepFunc func() error

// Middleware wraps the pass of an event group. It is called once per event
// group when the chain is first built, and the StepFunc it returns is then
// invoked on every tick. Middleware added later wraps earlier middleware.
type Middleware func(next StepFunc, event string) StepFunc

// Use adds middleware around every event group's pass.
func (l *Loop[T]) Use(m Middleware) {
	l.middleware = append(l.middleware, m)
	clear(l.chains)
}

// Step runs one tick of an event group. Failures of individual systems are
// recorded and reported to observers, never returned; Step itself fails
// only when the loop is closed, a tick is already running, or middleware
// returns an error.
func (l *Loop[T]) Step(event string) error {
	if l.closed {
		return errClosed
	}
	if l.stepping {
		return stepInProgress("Step")
	}
	chain, ok := l.chains[event]
	if !ok {
		chain = func() error { return l.pass(event) }
		for _, m := range l.middleware {
			chain = m(chain, event)
		}
		l.chains[event] = chain
	}
	return chain()
}

// StepFunc returns a tick callback for event. Errors from Step are logged.
func (l *Loop[T]) StepFunc(event string) func() {
	return func() {
		if err := l.Step(event); err != nil {
			l.logger.Error("tick failed", "event", event, "error", err)
		}
	}
}

func (l *Loop[T]) pass(event string) error {
	if l.stepping {
		return stepInProgress("Step")
	}

	now := l.time.Now()
	dt := 0.0
	if last, ok := l.lastStep[event]; ok {
		dt = now.Sub(last).Seconds()
	}
	l.lastStep[event] = now
	seq := l.clock.Next()

	if err := l.rt.BeginFrame(dt, now, seq); err != nil {
		return err
	}
	defer func() { l.tickEvent, l.tickSeq = "", 0 }()

	report := l.runPass(TickReport{Event: event, Seq: seq, DeltaTime: dt, Started: now})
	l.applyPending()

	l.notify(func(obs Observer) { obs.TickCompleted(report) })
	return nil
}

// runPass executes and sweeps the systems of one event group. The frame
// opened by pass is closed on every exit path.
func (l *Loop[T]) runPass(report TickReport) TickReport {
	l.stepping = true
	l.tickEvent, l.tickSeq = report.Event, report.Seq
	defer func() {
		l.rt.EndFrame()
		l.stepping = false
	}()

	var executed []*record[T]
	for _, name := range l.plan.Order(report.Event) {
		r, ok := l.byName[name]
		if !ok {
			continue
		}
		if l.skipped[name] {
			r.state = StateSkipped
			report.Skipped = append(report.Skipped, name)
			continue
		}
		report.Samples = append(report.Samples, l.runSystem(r))
		executed = append(executed, r)
	}

	for i, r := range executed {
		errs := r.registry.Sweep()
		if len(errs) == 0 {
			continue
		}
		r.state = StateErrored
		report.Samples[i].Failed = true
		l.fail(r, PhaseRelease, errors.Join(errs...))
	}
	return report
}

func (l *Loop[T]) runSystem(r *record[T]) Sample {
	r.registry.BeginTick()
	r.state = StateRunning

	start := l.time.Now()
	err := l.invoke(r)
	elapsed := l.time.Now().Sub(start)

	if l.samples > 0 {
		r.samples.push(elapsed)
	}
	if err != nil {
		r.state = StateErrored
		l.fail(r, PhaseRun, err)
	} else {
		r.state = StateIdle
	}
	return Sample{System: r.name, Duration: elapsed, Failed: err != nil}
}

func (l *Loop[T]) invoke(r *record[T]) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return l.rt.Run(r.id, r.registry, func() error {
		return r.run(l.rt, l.params)
	})
}

func (l *Loop[T]) fail(r *record[T], phase Phase, err error) {
	f := Failure{
		Event:  l.tickEvent,
		Seq:    l.tickSeq,
		System: r.name,
		Phase:  phase,
		Err:    err,
		When:   l.time.Now(),
	}
	if l.tracking && phase != PhaseEvict {
		l.errs[r.name] = ErrorRecord{Err: err, When: f.When, Seq: f.Seq}
	}
	l.logger.Warn("system failed",
		"system", r.name,
		"phase", string(phase),
		"seq", f.Seq,
		"error", err)
	l.notify(func(obs Observer) { obs.SystemFailed(f) })
}

// notify calls every observer. A panicking observer is logged and does not
// stop the others or the tick.
func (l *Loop[T]) notify(call func(Observer)) {
	for _, obs := range l.observers {
		func() {
			defer func() {
				if v := recover(); v != nil {
					l.logger.Error("observer panicked",
						"observer", fmt.Sprintf("%T", obs),
						"panic", v)
				}
			}()
			call(obs)
		}()
	}
}
