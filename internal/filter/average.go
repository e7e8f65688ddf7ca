package filter

import "github.com/sweeney/rclights/internal/pulse"

// Average is a moving average over the last n samples. Each sample is stored
// pre-divided by n and the running sum is updated incrementally, so a sample
// costs O(1). Output lags a step change by n samples.
type Average struct {
	n       int
	samples []pulse.Width // n+1 slots; the slot after curr is the evicted one
	curr    int
	sum     pulse.Width
}

// NewAverage creates a moving average over n samples (minimum 1).
func NewAverage(n int) *Average {
	if n < 1 {
		n = 1
	}
	return &Average{n: n, samples: make([]pulse.Width, n+1)}
}

// Filter adds raw and returns the running average.
func (a *Average) Filter(raw pulse.Width) pulse.Width {
	oldest := (a.curr + 1) % len(a.samples)

	a.samples[a.curr] = raw / pulse.Width(a.n)
	a.sum += a.samples[a.curr] - a.samples[oldest]
	a.curr = oldest

	return a.sum
}
