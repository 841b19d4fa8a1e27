package harness

// Trace event types.
const (
	TraceRun       = "run"
	TraceFail      = "fail"
	TraceTick      = "tick"
	TraceRelease   = "release"
	TraceEvict     = "evict"
	TraceReplace   = "replace"
	TraceSchedule  = "schedule"
	TraceStepError = "step_error"
)

// TraceEvent is one observable thing that happened while a scenario ran.
type TraceEvent struct {
	Type   string `json:"type"`
	Seq    int64  `json:"seq"`
	Event  string `json:"event,omitempty"`
	System string `json:"system,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step behaved as expected and every assertion held.
	Pass bool `json:"pass"`

	// Trace contains all events in the order they happened.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Order is the final resolved order of every event group.
	Order map[string][]string `json:"order"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Order:  make(map[string][]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
