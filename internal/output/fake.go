package output

import "github.com/sweeney/rclights/internal/mathx"

// Write is one recorded SetLevel call.
type Write struct {
	Line  int
	Level uint16
}

// FakeIntensity records writes for test assertions.
type FakeIntensity struct {
	// Writes contains every successful SetLevel call in order.
	Writes []Write

	// Levels holds the last level per line.
	Levels map[int]uint16

	// Enabled holds the enable state per line.
	Enabled map[int]bool

	// SetLevelError, if set, is returned by SetLevel and nothing is recorded.
	SetLevelError error

	// EnableError, if set, is returned by Enable.
	EnableError error
}

// NewFakeIntensity creates an empty FakeIntensity.
func NewFakeIntensity() *FakeIntensity {
	return &FakeIntensity{
		Levels:  make(map[int]uint16),
		Enabled: make(map[int]bool),
	}
}

// SetLevel records the write.
func (f *FakeIntensity) SetLevel(line int, level uint16) error {
	if f.SetLevelError != nil {
		return f.SetLevelError
	}
	level = mathx.Clamp(level, 0, MaxLevel)
	f.Writes = append(f.Writes, Write{Line: line, Level: level})
	f.Levels[line] = level
	return nil
}

// Enable records the enable state.
func (f *FakeIntensity) Enable(line int, on bool) error {
	if f.EnableError != nil {
		return f.EnableError
	}
	f.Enabled[line] = on
	return nil
}

// WritesTo returns the writes made to one line.
func (f *FakeIntensity) WritesTo(line int) []Write {
	var out []Write
	for _, w := range f.Writes {
		if w.Line == line {
			out = append(out, w)
		}
	}
	return out
}

// Reset clears recorded writes and errors.
func (f *FakeIntensity) Reset() {
	f.Writes = nil
	f.Levels = make(map[int]uint16)
	f.Enabled = make(map[int]bool)
	f.SetLevelError = nil
	f.EnableError = nil
}
