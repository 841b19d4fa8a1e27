package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_Deterministic(t *testing.T) {
	s := load(t, "evict_and_reschedule")

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
}

func TestSnapshot_Format(t *testing.T) {
	r := NewResult()
	r.add(TraceEvent{Type: TraceRun, Seq: 1, System: "a"})
	r.Order["default"] = []string{"a"}

	data, err := Snapshot("tiny", r)
	require.NoError(t, err)

	want := `{
  "scenario_name": "tiny",
  "trace": [
    {
      "type": "run",
      "seq": 1,
      "system": "a"
    }
  ],
  "order": {
    "default": [
      "a"
    ]
  }
}
`
	assert.Equal(t, want, string(data))
}
