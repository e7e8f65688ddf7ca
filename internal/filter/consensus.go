package filter

import "github.com/sweeney/rclights/internal/pulse"

// Consensus holds a stable value and only adopts a new one once every sample
// in its window is exactly equal to it. A single noisy sample never gets
// through; a genuine change takes len(window) samples to be accepted.
//
// Equality is exact. A signal jittering by one unit never locks in.
type Consensus struct {
	samples []pulse.Width
	curr    int
	stable  pulse.Width
}

// NewConsensus creates a filter with a window of n samples (minimum 1).
func NewConsensus(n int) *Consensus {
	if n < 1 {
		n = 1
	}
	return &Consensus{samples: make([]pulse.Width, n)}
}

// Filter records raw and returns the stable value.
func (c *Consensus) Filter(raw pulse.Width) pulse.Width {
	c.samples[c.curr] = raw

	if raw != c.stable && c.allEqual(raw) {
		c.stable = raw
	}

	c.curr = (c.curr + 1) % len(c.samples)
	return c.stable
}

func (c *Consensus) allEqual(w pulse.Width) bool {
	for _, s := range c.samples {
		if s != w {
			return false
		}
	}
	return true
}

// Stable returns the last accepted value without consuming a sample.
func (c *Consensus) Stable() pulse.Width {
	return c.stable
}

// Window returns the window size.
func (c *Consensus) Window() int {
	return len(c.samples)
}
