package testutil

import (
	"fmt"
	"sync"
)

// FixedIDs returns predetermined identifiers in order, for deterministic
// run IDs in journal tests and golden traces.
//
// Once the list is exhausted it falls back to "test-id-<n>" so that long
// scenarios do not need to enumerate every ID.
//
// Thread-safety: FixedIDs is safe for concurrent use via internal mutex.
type FixedIDs struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedIDs creates a generator that returns ids in order.
func NewFixedIDs(ids ...string) *FixedIDs {
	return &FixedIDs{ids: ids}
}

// Generate returns the next identifier.
func (g *FixedIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.idx++
	if g.idx <= len(g.ids) {
		return g.ids[g.idx-1]
	}
	return fmt.Sprintf("test-id-%d", g.idx)
}
