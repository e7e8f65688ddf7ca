package lights

import "time"

// BlinkTimer is the shared blink phase. Both blinkers read the same phase so
// they stay in step during hazard.
type BlinkTimer struct {
	interval time.Duration
	next     time.Time
	on       bool
}

// NewBlinkTimer creates a timer whose first Advance switches the phase on.
func NewBlinkTimer(interval time.Duration) *BlinkTimer {
	return &BlinkTimer{interval: interval}
}

// Advance flips the phase once now has reached the deadline and returns the
// current phase. Call it at most once per cycle.
func (b *BlinkTimer) Advance(now time.Time) bool {
	if !now.Before(b.next) {
		b.next = now.Add(b.interval)
		b.on = !b.on
	}
	return b.on
}

// On returns the current phase without advancing.
func (b *BlinkTimer) On() bool {
	return b.on
}

// Interval returns the half period.
func (b *BlinkTimer) Interval() time.Duration {
	return b.interval
}
