// Package capture provides pulse high-time measurement with hardware abstraction.
// The real implementation timestamps both edges of a Linux GPIO line.
// The fake implementation allows testing without hardware.
package capture

import (
	"errors"
	"fmt"
)

// InputCapture measures how long a periodic digital input stays high.
type InputCapture interface {
	// Reset zeroes the high-time counter.
	Reset()

	// Enable starts (true) or stops (false) accumulating high time.
	Enable(on bool)

	// ElapsedHighTime returns the high time accumulated while enabled,
	// in counter ticks (microseconds at the default clock).
	ElapsedHighTime() uint32

	// Identity reports the binding and counter clock of the peripheral.
	Identity() Identity
}

// Identity describes which input the peripheral is bound to and how fast its
// counter runs.
type Identity struct {
	Chip    string
	Line    int
	ClockHz uint32
}

// ErrIdentityMismatch means the peripheral is bound to a different input or
// runs at a different clock than configured. Startup must not continue.
var ErrIdentityMismatch = errors.New("capture: identity mismatch")

// Default binding (RC receiver channel wired to GPIO27).
const (
	DefaultChip    = "gpiochip0"
	DefaultLine    = 27
	DefaultClockHz = 1000000
)

// Verify checks the peripheral against the expected identity. Any mismatch
// is wrapped in ErrIdentityMismatch.
func Verify(c InputCapture, want Identity) error {
	got := c.Identity()
	if got.ClockHz != want.ClockHz {
		return fmt.Errorf("%w: clock %d Hz, want %d Hz", ErrIdentityMismatch, got.ClockHz, want.ClockHz)
	}
	if got.Chip != want.Chip {
		return fmt.Errorf("%w: chip %q, want %q", ErrIdentityMismatch, got.Chip, want.Chip)
	}
	if got.Line != want.Line {
		return fmt.Errorf("%w: line %d, want %d", ErrIdentityMismatch, got.Line, want.Line)
	}
	return nil
}
