// Package pulse measures the receiver's pulse width, one input period at a time.
package pulse

import (
	"time"

	"tinygo.org/x/drivers"

	"github.com/sweeney/rclights/internal/capture"
)

// Width is a pulse high time in microseconds.
type Width float64

// DefaultInputHz is the receiver's frame rate.
const DefaultInputHz = 62

// Sampler wraps an InputCapture and performs one blocking measurement per
// input period.
type Sampler struct {
	capture capture.InputCapture
	period  time.Duration
	sleep   func(time.Duration)
	last    Width
}

var _ drivers.Sensor = (*Sampler)(nil)

// NewSampler creates a Sampler whose window is one period of an inputHz signal.
func NewSampler(c capture.InputCapture, inputHz float64) *Sampler {
	return &Sampler{
		capture: c,
		period:  PeriodFor(inputHz),
		sleep:   time.Sleep,
	}
}

// PeriodFor returns the duration of one period at hz.
func PeriodFor(hz float64) time.Duration {
	if hz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / hz)
}

// SetSleep replaces the blocking wait. Tests use it to avoid real sleeps.
func (s *Sampler) SetSleep(fn func(time.Duration)) {
	s.sleep = fn
}

// Period returns the measurement window.
func (s *Sampler) Period() time.Duration {
	return s.period
}

// Measure resets and enables the capture, blocks for one period, disables it
// and returns the high time. A malformed sample is returned as-is.
func (s *Sampler) Measure() Width {
	s.capture.Reset()
	s.capture.Enable(true)
	s.sleep(s.period)
	s.capture.Enable(false)

	ticks := s.capture.ElapsedHighTime()
	hz := s.capture.Identity().ClockHz
	if hz == 0 || hz == capture.DefaultClockHz {
		return Width(ticks)
	}
	return Width(float64(ticks) * 1e6 / float64(hz))
}

// Update performs one measurement when drivers.Time is requested and caches it.
func (s *Sampler) Update(which drivers.Measurement) error {
	if which&drivers.Time == 0 {
		return nil
	}
	s.last = s.Measure()
	return nil
}

// Width returns the width cached by the last Update.
func (s *Sampler) Width() Width {
	return s.last
}
