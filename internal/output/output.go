// Package output drives light channels at a duty-cycle level.
// The real implementation runs software PWM on Linux GPIO output lines.
// The fake implementation records writes for tests.
package output

// Intensity sets per-line duty-cycle levels in [0, MaxLevel].
type Intensity interface {
	// SetLevel sets the duty cycle of the line. Levels above MaxLevel are clamped.
	SetLevel(line int, level uint16) error

	// Enable starts or stops driving the line.
	Enable(line int, on bool) error
}

// Level constants. MaxLevel is the wrap value of every channel.
const (
	MaxLevel  uint16 = 100
	LevelOff  uint16 = 0
	LevelOn   uint16 = 20
	LevelHigh uint16 = 100
)

// DefaultPWMHz is the software PWM frequency. High enough that LEDs do not
// visibly flicker, low enough for goroutine timing.
const DefaultPWMHz = 200
