// Package recurrence materializes tasks from recurring templates.
package recurrence

import "time"

// Clock supplies the current instant. Injectable so next-run computation
// is deterministic under test.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// FixedClock is a Clock pinned to a settable instant.
type FixedClock struct {
	Instant time.Time
}

func (c *FixedClock) Now() time.Time { return c.Instant }

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) { c.Instant = c.Instant.Add(d) }
