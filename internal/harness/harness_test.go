package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_GoldenScenarios(t *testing.T) {
	for _, name := range []string{
		"evict_and_reschedule",
		"failure_isolation",
		"hot_swap",
		"manifest_pipeline",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := RunWithGolden(t, load(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_CycleRejected(t *testing.T) {
	result, err := Run(load(t, "cycle_rejected"))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, map[string][]string{"default": {"base"}}, result.Order)

	var codes []string
	for _, ev := range result.Trace {
		if ev.Type == TraceStepError {
			codes = append(codes, ev.Detail)
		}
	}
	assert.Equal(t, []string{"CYCLIC_DEPENDENCY", "UNKNOWN_SYSTEM"}, codes)
}

func TestRun_UnexpectedStepErrorFails(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: unexpected
description: "evicting an unknown system without expecting it"
systems: [{name: a}]
steps:
  - evict: ghost
assertions:
  - type: no_errors
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "UNKNOWN_SYSTEM")
}

func TestRun_ExpectedErrorThatDoesNotHappen(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: missing_error
description: "a step expected to fail succeeds"
systems: [{name: a}]
steps:
  - tick: default
    expect_error: CYCLIC_DEPENDENCY
assertions:
  - type: no_errors
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "step succeeded")
}

func TestRun_FailingAssertions(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: wrong
description: "every assertion is wrong"
systems:
  - name: a
    fail_on: [1]
  - name: b
    after: [a]
steps:
  - tick: default
assertions:
  - type: order
    event: default
    systems: [b, a]
  - type: runs
    system: a
    count: 5
  - type: no_errors
  - type: error
    system: b
  - type: state
    system: b
    state: skipped
  - type: step_error
    code: CYCLIC_DEPENDENCY
  - type: entries
    system: ghost
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], "Assertion failed: order")
	assert.Contains(t, result.Errors[2], "errors for a")
	assert.Contains(t, result.Errors[6], "UNKNOWN_SYSTEM")
}

func TestRun_InitialScheduleFailure(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: broken
description: "initial systems conflict"
systems:
  - name: heavy
    priority: 5
  - name: light
    priority: 1
    after: [heavy]
steps:
  - tick: default
assertions:
  - type: no_errors
`))
	require.NoError(t, err)

	_, err = Run(s)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNSCHEDULABLE_CONSTRAINT")
}

func TestRun_HookLoopOccurrences(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: occurrences
description: "one site executed three times per tick keeps three entries"
systems:
  - name: spawner
    hooks:
      - site: particle
        count: 3
steps:
  - tick: default
    count: 4
assertions:
  - type: entries
    system: spawner
    count: 3
  - type: released
    system: spawner
    count: 0
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
