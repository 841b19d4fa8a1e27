package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Empty(t *testing.T) {
	plan, err := Resolve(nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Events())
	assert.Equal(t, 0, plan.Len())
	assert.Nil(t, plan.Order(DefaultEvent))
}

func TestResolve_PriorityAndDependency(t *testing.T) {
	// X priority 0, Y priority 0 runs after X, Z priority -1.
	nodes := []Node{
		{Name: "X"},
		{Name: "Y", After: []string{"X"}},
		{Name: "Z", Priority: -1},
	}

	plan, err := Resolve(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "X", "Y"}, plan.Order(DefaultEvent))
}

func TestResolve_EvictedSubset(t *testing.T) {
	plan, err := Resolve([]Node{{Name: "X"}, {Name: "Z", Priority: -1}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "X"}, plan.Order(DefaultEvent))
}

func TestResolve_RegistrationOrderBreaksTies(t *testing.T) {
	nodes := []Node{{Name: "c"}, {Name: "a"}, {Name: "b"}}

	plan, err := Resolve(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, plan.Order(DefaultEvent),
		"equal priorities run in registration order, not name order")
}

func TestResolve_Deterministic(t *testing.T) {
	nodes := []Node{
		{Name: "input", Priority: -10},
		{Name: "physics"},
		{Name: "collide", After: []string{"physics"}},
		{Name: "ai"},
		{Name: "animate", Priority: 5, After: []string{"collide", "ai"}},
		{Name: "render", Event: "render", Priority: 100},
		{Name: "hud", Event: "render", Priority: 100, After: []string{"render"}},
	}

	first, err := Resolve(nodes)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Resolve(nodes)
		require.NoError(t, err)
		assert.Equal(t, first.String(), again.String())
	}

	assert.Equal(t, []string{"default", "render"}, first.Events())
	assert.Equal(t, []string{"input", "physics", "collide", "ai", "animate"}, first.Order("default"))
	assert.Equal(t, []string{"render", "hud"}, first.Order("render"))
	assert.Equal(t, "default: input, physics, collide, ai, animate\nrender: render, hud\n", first.String())
}

func TestResolve_DependencyOverridesRegistration(t *testing.T) {
	nodes := []Node{
		{Name: "late", After: []string{"early"}},
		{Name: "early"},
	}

	plan, err := Resolve(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, plan.Order(DefaultEvent))
}

func TestResolve_OrderIsPriorityMonotone(t *testing.T) {
	nodes := []Node{
		{Name: "a", Priority: 1},
		{Name: "b", Priority: 3, After: []string{"a"}},
		{Name: "c", Priority: 2},
		{Name: "d", Priority: 3, After: []string{"c", "b"}},
		{Name: "e", Priority: 0},
	}

	plan, err := Resolve(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "a", "c", "b", "d"}, plan.Order(DefaultEvent))
}

func TestResolve_TwoCycle(t *testing.T) {
	nodes := []Node{
		{Name: "A", After: []string{"B"}},
		{Name: "B", After: []string{"A"}},
	}

	plan, err := Resolve(nodes)
	assert.Nil(t, plan)
	require.Error(t, err)
	assert.True(t, IsCycle(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"A", "B", "A"}, se.Systems)
	assert.Equal(t, DefaultEvent, se.Event)
	assert.Contains(t, se.Error(), "A -> B -> A")
}

func TestResolve_SelfDependency(t *testing.T) {
	_, err := Resolve([]Node{{Name: "loop", After: []string{"loop"}}})

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeCyclicDependency, se.Code)
	assert.Equal(t, []string{"loop", "loop"}, se.Systems)
}

func TestResolve_LongCycleWitness(t *testing.T) {
	nodes := []Node{
		{Name: "ok"},
		{Name: "a", After: []string{"c"}},
		{Name: "b", After: []string{"a"}},
		{Name: "c", After: []string{"b"}},
	}

	_, err := Resolve(nodes)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"a", "b", "c", "a"}, se.Systems)
}

func TestResolve_Unschedulable(t *testing.T) {
	nodes := []Node{
		{Name: "B", Priority: 5},
		{Name: "A", Priority: 1, After: []string{"B"}},
	}

	_, err := Resolve(nodes)
	require.Error(t, err)
	assert.True(t, IsUnschedulable(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"A", "B"}, se.Systems)
	assert.Contains(t, se.Message, `"A" (priority 1) runs after "B" (priority 5)`)
}

func TestResolve_EqualPriorityDependencyIsFine(t *testing.T) {
	nodes := []Node{
		{Name: "B", Priority: 2},
		{Name: "A", Priority: 2, After: []string{"B"}},
	}

	plan, err := Resolve(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, plan.Order(DefaultEvent))
}

func TestResolve_CrossEvent(t *testing.T) {
	nodes := []Node{
		{Name: "render", Event: "render"},
		{Name: "physics", After: []string{"render"}},
	}

	_, err := Resolve(nodes)
	require.Error(t, err)
	assert.True(t, IsCrossEvent(err))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"physics", "render"}, se.Systems)
}

func TestResolve_UnknownDependency(t *testing.T) {
	_, err := Resolve([]Node{{Name: "a", After: []string{"ghost"}}})
	assert.True(t, HasCode(err, ErrCodeUnknownDependency))
}

func TestResolve_DuplicateAndInvalid(t *testing.T) {
	_, err := Resolve([]Node{{Name: "a"}, {Name: "a"}})
	assert.True(t, HasCode(err, ErrCodeDuplicateSystem))

	_, err = Resolve([]Node{{Name: ""}})
	assert.True(t, HasCode(err, ErrCodeInvalidSystem))
}

func TestResolve_DuplicateAfterEntries(t *testing.T) {
	nodes := []Node{
		{Name: "a"},
		{Name: "b", After: []string{"a", "a"}},
	}

	plan, err := Resolve(nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, plan.Order(DefaultEvent))
}

func TestPlan_OrderIsACopy(t *testing.T) {
	plan, err := Resolve([]Node{{Name: "a"}, {Name: "b"}})
	require.NoError(t, err)

	order := plan.Order(DefaultEvent)
	order[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, plan.Order(DefaultEvent))
}

func TestHasCode_NonScheduleError(t *testing.T) {
	assert.False(t, IsCycle(nil))
	assert.False(t, IsCycle(assert.AnError))
}
