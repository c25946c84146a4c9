package twamm

import "time"

// Clock supplies the current time in Unix seconds.
type Clock interface {
	Now() uint64
}

type SystemClock struct{}

func (SystemClock) Now() uint64 {
	return uint64(time.Now().Unix())
}

// ManualClock only moves when told to. Simulations and tests drive it.
type ManualClock struct {
	now uint64
}

func NewManualClock(now uint64) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() uint64 {
	return c.now
}

// Set moves the clock to t. Time never runs backwards.
func (c *ManualClock) Set(t uint64) {
	if t > c.now {
		c.now = t
	}
}

func (c *ManualClock) Advance(seconds uint64) {
	c.now += seconds
}
