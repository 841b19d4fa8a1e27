package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDs_ReturnsInOrder(t *testing.T) {
	gen := NewFixedIDs("run-a", "run-b")

	assert.Equal(t, "run-a", gen.Generate())
	assert.Equal(t, "run-b", gen.Generate())
}

func TestFixedIDs_FallsBackWhenExhausted(t *testing.T) {
	gen := NewFixedIDs("run-a")

	assert.Equal(t, "run-a", gen.Generate())
	assert.Equal(t, "test-id-2", gen.Generate())
	assert.Equal(t, "test-id-3", gen.Generate())
}

func TestFixedIDs_Empty(t *testing.T) {
	gen := NewFixedIDs()

	assert.Equal(t, "test-id-1", gen.Generate())
}
