package registry

import (
	"sync/atomic"

	"github.com/webitel/pricing-sync-service/internal/domain/model"
)

// StateCell holds the single current Shared State.
//
// Writes go through the Hub (under its lock) so that replacement and
// fan-out are atomic. Reads are lock-free and always observe a complete
// value.
type StateCell struct {
	current atomic.Pointer[versioned]
}

type versioned struct {
	snapshot model.Snapshot
	revision uint64
}

// NewStateCell creates a cell seeded with the given snapshot at revision 0.
func NewStateCell(initial model.Snapshot) *StateCell {
	c := &StateCell{}
	c.current.Store(&versioned{snapshot: initial})
	return c
}

// Load returns the current snapshot and its revision.
func (c *StateCell) Load() (model.Snapshot, uint64) {
	v := c.current.Load()
	return v.snapshot, v.revision
}

// replace swaps in snap and returns the new revision. Callers hold Hub.mu.
func (c *StateCell) replace(snap model.Snapshot) uint64 {
	next := c.current.Load().revision + 1
	c.current.Store(&versioned{snapshot: snap, revision: next})
	return next
}
