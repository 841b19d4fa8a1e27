package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreate_InitOnce(t *testing.T) {
	r := NewRegistry()
	calls := 0
	init := func() any {
		calls++
		return &calls
	}

	v1 := r.GetOrCreate("k", init, nil)
	v2 := r.GetOrCreate("k", init, nil)

	assert.Same(t, v1, v2)
	assert.Equal(t, 1, calls, "init must run only on creation")
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Sweep_RemovesUntouched(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("a", func() any { return 1 }, nil)
	r.GetOrCreate("b", func() any { return 2 }, nil)

	// Tick 1: both touched at creation.
	assert.Empty(t, r.Sweep())
	assert.Equal(t, 2, r.Len())

	// Tick 2: only "a" is used.
	r.BeginTick()
	r.GetOrCreate("a", nil, nil)
	assert.Empty(t, r.Sweep())

	assert.Equal(t, []Key{"a"}, r.Keys())
	_, ok := r.Lookup("b")
	assert.False(t, ok)
}

func TestRegistry_Sweep_RetainSurvives(t *testing.T) {
	r := NewRegistry()
	consulted := 0
	retain := func(any) (Decision, error) {
		consulted++
		return Retain, nil
	}
	r.GetOrCreate("held", func() any { return "socket" }, retain)

	for i := 0; i < 5; i++ {
		r.BeginTick()
		assert.Empty(t, r.Sweep())
	}

	assert.Equal(t, 1, r.Len(), "retained entry survives unused ticks")
	assert.Equal(t, 5, consulted)
}

func TestRegistry_Sweep_RetainThenDiscard(t *testing.T) {
	r := NewRegistry()
	keep := true
	r.GetOrCreate("k", func() any { return 0 }, func(any) (Decision, error) {
		if keep {
			return Retain, nil
		}
		return Discard, nil
	})

	r.BeginTick()
	r.Sweep()
	assert.Equal(t, 1, r.Len())

	keep = false
	r.BeginTick()
	r.Sweep()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_PolicyReplacement(t *testing.T) {
	r := NewRegistry()
	var released []string

	first := func(any) (Decision, error) {
		released = append(released, "first")
		return Discard, nil
	}
	second := func(any) (Decision, error) {
		released = append(released, "second")
		return Discard, nil
	}

	v1 := r.GetOrCreate("k", func() any { return "value" }, first)
	v2 := r.GetOrCreate("k", func() any { return "other" }, second)
	assert.Equal(t, "value", v1)
	assert.Equal(t, "value", v2, "policy replacement must not replace the value")

	// A nil policy keeps the current one.
	r.GetOrCreate("k", nil, nil)

	r.BeginTick()
	r.Sweep()
	assert.Equal(t, []string{"second"}, released)
}

func TestRegistry_Sweep_PolicyError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("close failed")
	r.GetOrCreate("k", nil, func(any) (Decision, error) { return Retain, boom })

	r.BeginTick()
	errs := r.Sweep()

	require.Len(t, errs, 1)
	var re *ReleaseError
	require.ErrorAs(t, errs[0], &re)
	assert.Equal(t, Key("k"), re.Key)
	assert.ErrorIs(t, errs[0], boom)
	assert.Equal(t, 0, r.Len(), "a failed policy removes its entry")
}

func TestRegistry_Sweep_PolicyPanic(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("k", nil, func(any) (Decision, error) { panic("bad cleanup") })

	r.BeginTick()
	errs := r.Sweep()

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "bad cleanup")
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ReleaseAll_IgnoresRetain(t *testing.T) {
	r := NewRegistry()
	var order []any
	policy := func(v any) (Decision, error) {
		order = append(order, v)
		return Retain, nil
	}
	r.GetOrCreate("a", func() any { return "a" }, policy)
	r.GetOrCreate("b", func() any { return "b" }, policy)
	r.GetOrCreate("c", func() any { return "c" }, nil)

	errs := r.ReleaseAll()

	assert.Empty(t, errs)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []any{"a", "b"}, order, "policies run once each, in creation order")
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "discard", Discard.String())
	assert.Equal(t, "retain", Retain.String())
	assert.Equal(t, "Decision(7)", Decision(7).String())
}
