package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] seq=%d %s %s %s\n", i+1, ev.Seq, ev.Type, ev.System, ev.Detail)
		}
	}
	return buf.String()
}

// evaluate checks every assertion and returns one message per failure.
func (h *Harness) evaluate(assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := h.check(a); err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

func (h *Harness) check(a Assertion) error {
	fail := func(expected, actual string) error {
		return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: h.result.Trace}
	}

	switch a.Type {
	case AssertOrder:
		got := h.loop.Order(a.Event)
		if !slices.Equal(got, a.Systems) {
			return fail(fmt.Sprintf("%s order %v", a.Event, a.Systems), fmt.Sprintf("%v", got))
		}

	case AssertRuns:
		if got := h.runs[a.System]; got != *a.Count {
			return fail(fmt.Sprintf("%s ran %d times", a.System, *a.Count), fmt.Sprintf("%d", got))
		}

	case AssertReleased:
		if got := h.released[a.System]; got != *a.Count {
			return fail(fmt.Sprintf("%d releases for %s", *a.Count, a.System), fmt.Sprintf("%d", got))
		}

	case AssertEntries:
		got, err := h.loop.Entries(a.System)
		if err != nil {
			return fail(fmt.Sprintf("%d entries for %s", *a.Count, a.System), err.Error())
		}
		if got != *a.Count {
			return fail(fmt.Sprintf("%d entries for %s", *a.Count, a.System), fmt.Sprintf("%d", got))
		}

	case AssertError:
		rec, ok := h.loop.LastError(a.System)
		if !ok {
			return fail(fmt.Sprintf("an error for %s", a.System), "no error")
		}
		if a.Contains != "" && !strings.Contains(rec.Err.Error(), a.Contains) {
			return fail(fmt.Sprintf("error containing %q", a.Contains), rec.Err.Error())
		}

	case AssertNoErrors:
		if errs := h.loop.Errors(); len(errs) > 0 {
			names := make([]string, 0, len(errs))
			for name := range errs {
				names = append(names, name)
			}
			sort.Strings(names)
			return fail("no errors", "errors for "+strings.Join(names, ", "))
		}

	case AssertState:
		if got := h.loop.State(a.System).String(); got != a.State {
			return fail(fmt.Sprintf("%s in state %s", a.System, a.State), got)
		}

	case AssertStepError:
		if !slices.Contains(h.codes, a.Code) {
			return fail(fmt.Sprintf("a step failing with %s", a.Code), fmt.Sprintf("%v", h.codes))
		}

	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
