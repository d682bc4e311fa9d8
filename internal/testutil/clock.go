// Package testutil holds deterministic stand-ins for the engine's clock
// and call id generator, so repeated runs produce identical traces.
package testutil

import (
	"sync"

	"github.com/roach88/covenant/internal/engine"
)

var _ engine.Sequencer = (*DeterministicClock)(nil)

// DeterministicClock is a resettable logical clock for engine.WithClock.
// The first Next after creation or Reset returns 1.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last value handed out, 0 if none.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so a scenario can be replayed with the same
// sequence numbers.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
