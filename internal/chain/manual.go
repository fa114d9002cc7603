// Package chain provides sources for the external block counter that drives
// every lottery window check.
package chain

import (
	"context"
	"sync/atomic"
)

// ManualClock is an in-process counter advanced explicitly by the owner of
// the process (the demo driver, or tests). It never advances on its own,
// which matches the engine's assumption that the counter only moves between
// operations.
type ManualClock struct {
	block atomic.Uint64
}

// NewManualClock creates a clock starting at the given block.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.block.Store(start)
	return c
}

// BlockNumber returns the current counter value.
func (c *ManualClock) BlockNumber(_ context.Context) (uint64, error) {
	return c.block.Load(), nil
}

// Advance moves the counter forward by n blocks and returns the new value.
func (c *ManualClock) Advance(n uint64) uint64 {
	return c.block.Add(n)
}

// AdvanceTo moves the counter to block if it is ahead of the current value.
// The counter is monotonic; moving backwards is silently ignored.
func (c *ManualClock) AdvanceTo(block uint64) {
	for {
		cur := c.block.Load()
		if block <= cur {
			return
		}
		if c.block.CompareAndSwap(cur, block) {
			return
		}
	}
}
