package util

import "time"

type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// FixedClock is a settable clock for tests and deterministic replays.
type FixedClock struct {
	Time time.Time
}

func (c *FixedClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Time.Add(d)
	return ch
}

func (c *FixedClock) Now() time.Time { return c.Time }

// Advance moves the clock forward.
func (c *FixedClock) Advance(d time.Duration) { c.Time = c.Time.Add(d) }
