// Package adapters holds the narrow interfaces through which the runtime
// reaches the outside world (wall clock, artifact storage, language
// models) together with local implementations that keep a single-binary
// deployment self-contained.
package adapters

import (
	"sync"
	"time"
)

// Clock abstracts time so tests can drive eviction, budgets, and license
// expiry deterministically. Every timestamp in the runtime flows through one.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FakeClock is a manually advanced clock for tests. It never moves on its
// own; callers control time with Advance and Set.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a fake clock frozen at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// Set jumps the clock to t. Moving backwards is allowed; the sink still
// guarantees monotonic emission stamps on its own.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}
