package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/roach88/topo/hook"
	"github.com/roach88/topo/internal/manifest"
	"github.com/roach88/topo/internal/testutil"
	"github.com/roach88/topo/loop"
	"github.com/roach88/topo/schedule"
)

// FrameInterval is how far the manual clock advances before each tick.
const FrameInterval = time.Second / 60

// Harness executes one scenario. It is the params bundle handed to every
// scripted system and the loop's observer.
type Harness struct {
	loop     *loop.Loop[*Harness]
	clock    *loop.Clock
	time     *testutil.ManualTime
	logger   *slog.Logger
	defs     map[string]SystemDef
	result   *Result
	runs     map[string]int
	released map[string]int
	codes    []string
}

// Option configures Run.
type Option func(*config)

type config struct {
	observers []loop.Observer
	logger    *slog.Logger
}

// WithObserver attaches an extra loop observer, such as a journal.
func WithObserver(obs loop.Observer) Option {
	return func(c *config) { c.observers = append(c.observers, obs) }
}

// WithLogger sets the loop's logger. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Run executes a test scenario and returns the result.
//
// Execution flow:
//  1. Schedule the manifest's systems and the non-deferred declared systems
//  2. Execute steps, checking expected step errors
//  3. Evaluate assertions
//  4. Record the final order of every event group
//
// A returned error means the scenario could not be set up; failed steps
// and assertions are reported in the Result instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Harness{
		clock:    loop.NewClock(),
		time:     testutil.NewManualTime(testutil.Epoch),
		logger:   cfg.logger,
		defs:     make(map[string]SystemDef, len(scenario.Systems)),
		result:   NewResult(),
		runs:     make(map[string]int),
		released: make(map[string]int),
	}
	for _, def := range scenario.Systems {
		h.defs[def.Name] = def
	}

	loopOpts := []loop.Option{
		loop.WithLogger(cfg.logger),
		loop.WithTimeSource(h.time),
		loop.WithClock(h.clock),
		loop.WithObserver(h),
	}
	for _, obs := range cfg.observers {
		loopOpts = append(loopOpts, loop.WithObserver(obs))
	}
	h.loop = loop.New(h, loopOpts...)

	initial, err := h.initialSystems(scenario)
	if err != nil {
		return nil, err
	}
	if err := h.loop.Schedule(initial...); err != nil {
		return nil, fmt.Errorf("failed to schedule systems: %w", err)
	}

	for i, step := range scenario.Steps {
		err := h.execute(step)
		code := errorCode(err)
		switch {
		case err != nil && step.ExpectError == "":
			h.result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
		case err == nil && step.ExpectError != "":
			h.result.AddError(fmt.Sprintf("steps[%d]: expected error %s, step succeeded", i, step.ExpectError))
		case err != nil && code != step.ExpectError:
			h.result.AddError(fmt.Sprintf("steps[%d]: expected error %s, got %s: %v", i, step.ExpectError, code, err))
		}
		if err != nil {
			h.codes = append(h.codes, code)
			h.result.add(TraceEvent{Type: TraceStepError, Seq: h.clock.Current(), Detail: code})
		}
	}

	for _, msg := range h.evaluate(scenario.Assertions) {
		h.result.AddError(msg)
	}

	plan := h.loop.Plan()
	for _, event := range plan.Events() {
		h.result.Order[event] = plan.Order(event)
	}
	return h.result, nil
}

// initialSystems builds the first batch: manifest systems in manifest
// order, then non-deferred declared systems the manifest does not cover.
func (h *Harness) initialSystems(scenario *Scenario) ([]loop.System[*Harness], error) {
	var systems []loop.System[*Harness]
	covered := make(map[string]bool)

	if scenario.Manifest != "" {
		m, err := manifest.Load(scenario.Manifest)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		for _, node := range m.Nodes() {
			def, ok := h.defs[node.Name]
			if !ok {
				def = SystemDef{Name: node.Name}
			}
			def.Event, def.Priority, def.After = node.Event, node.Priority, node.After
			h.defs[node.Name] = def
			covered[node.Name] = true
			systems = append(systems, h.system(def))
		}
	}

	for _, def := range scenario.Systems {
		if def.Deferred || covered[def.Name] {
			continue
		}
		systems = append(systems, h.system(def))
	}
	return systems, nil
}

func (h *Harness) system(def SystemDef) loop.System[*Harness] {
	return loop.System[*Harness]{
		Name:     def.Name,
		Event:    def.Event,
		Priority: def.Priority,
		After:    def.After,
		Run:      scripted(def),
	}
}

// scripted builds a system body that follows def.
func scripted(def SystemDef) loop.SystemFunc[*Harness] {
	return func(rt *hook.Runtime, h *Harness) error {
		seq := hook.CurrentFrame(rt).Seq
		h.runs[def.Name]++
		h.result.add(TraceEvent{Type: TraceRun, Seq: seq, System: def.Name})

		for _, hd := range def.Hooks {
			if hd.Until > 0 && seq > hd.Until {
				continue
			}
			n := max(hd.Count, 1)
			for i := 0; i < n; i++ {
				opts := []hook.Option{hook.WithRelease(h.policy(def.Name, hd, i))}
				if hd.Key != "" {
					opts = append(opts, hook.WithKey(hd.Key))
				}
				v := hook.UseState[int](rt, hook.Site(hd.Site), nil, opts...)
				*v++
			}
		}

		if slices.Contains(def.PanicOn, seq) {
			panic(fmt.Sprintf("scripted panic at tick %d", seq))
		}
		if slices.Contains(def.FailOn, seq) {
			return fmt.Errorf("scripted failure at tick %d", seq)
		}
		return nil
	}
}

// policy records a release of an entry created by owner.
func (h *Harness) policy(owner string, hd HookDef, occurrence int) func(*int) (hook.Decision, error) {
	label := fmt.Sprintf("%s#%d", hd.Site, occurrence)
	if hd.Key != "" {
		label = fmt.Sprintf("%s[%s]#%d", hd.Site, hd.Key, occurrence)
	}
	return func(*int) (hook.Decision, error) {
		h.released[owner]++
		h.result.add(TraceEvent{Type: TraceRelease, Seq: h.clock.Current(), System: owner, Detail: label})
		if hd.Retain {
			return hook.Retain, nil
		}
		return hook.Discard, nil
	}
}

func (h *Harness) execute(st Step) error {
	switch {
	case st.Tick != "":
		n := max(st.Count, 1)
		for i := 0; i < n; i++ {
			h.time.Advance(FrameInterval)
			if err := h.loop.Step(st.Tick); err != nil {
				return err
			}
		}
		return nil

	case st.Evict != "":
		if err := h.loop.Evict(st.Evict); err != nil {
			return err
		}
		h.result.add(TraceEvent{Type: TraceEvict, Seq: h.clock.Current(), System: st.Evict})
		return nil

	case st.Replace != "":
		if err := h.loop.Replace(st.Replace, h.system(h.defs[st.With])); err != nil {
			return err
		}
		h.result.add(TraceEvent{Type: TraceReplace, Seq: h.clock.Current(), System: st.Replace, Detail: st.With})
		return nil

	case st.Skip != "":
		return h.loop.Skip(st.Skip, true)

	case st.Unskip != "":
		return h.loop.Skip(st.Unskip, false)

	default:
		batch := make([]loop.System[*Harness], 0, len(st.Schedule))
		for _, name := range st.Schedule {
			batch = append(batch, h.system(h.defs[name]))
		}
		if err := h.loop.Schedule(batch...); err != nil {
			return err
		}
		h.result.add(TraceEvent{Type: TraceSchedule, Seq: h.clock.Current(), Detail: strings.Join(st.Schedule, ",")})
		return nil
	}
}

// SystemFailed implements loop.Observer.
func (h *Harness) SystemFailed(f loop.Failure) {
	h.result.add(TraceEvent{
		Type:   TraceFail,
		Seq:    f.Seq,
		Event:  f.Event,
		System: f.System,
		Detail: fmt.Sprintf("%s: %v", f.Phase, f.Err),
	})
}

// TickCompleted implements loop.Observer.
func (h *Harness) TickCompleted(r loop.TickReport) {
	ev := TraceEvent{Type: TraceTick, Seq: r.Seq, Event: r.Event}
	if len(r.Skipped) > 0 {
		ev.Detail = "skipped: " + strings.Join(r.Skipped, ",")
	}
	h.result.add(ev)
}

// errorCode extracts the code of a scheduling or loop error.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var se *schedule.Error
	if errors.As(err, &se) {
		return string(se.Code)
	}
	var le *loop.Error
	if errors.As(err, &le) {
		return string(le.Code)
	}
	return "ERROR"
}
