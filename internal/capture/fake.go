package capture

// FakeCapture is a test double that returns scripted high times.
type FakeCapture struct {
	// Widths contains scripted high times. Each enable consumes the next
	// value; once exhausted the last value repeats.
	Widths []uint32

	// ID is returned by Identity.
	ID Identity

	// Resets, Enables and Disables count calls for assertions.
	Resets   int
	Enables  int
	Disables int

	index   int
	enabled bool
	current uint32
}

// NewFakeCapture creates a FakeCapture with the given widths and the default
// identity.
func NewFakeCapture(widths []uint32) *FakeCapture {
	return &FakeCapture{
		Widths: widths,
		ID:     Identity{Chip: DefaultChip, Line: DefaultLine, ClockHz: DefaultClockHz},
	}
}

// Reset zeroes the counter.
func (f *FakeCapture) Reset() {
	f.Resets++
	f.current = 0
}

// Enable loads the next scripted width when switched on.
func (f *FakeCapture) Enable(on bool) {
	if on == f.enabled {
		return
	}
	f.enabled = on
	if !on {
		f.Disables++
		return
	}
	f.Enables++
	if len(f.Widths) == 0 {
		return
	}
	f.current = f.Widths[f.index]
	if f.index < len(f.Widths)-1 {
		f.index++
	}
}

// ElapsedHighTime returns the width loaded by the last enable.
func (f *FakeCapture) ElapsedHighTime() uint32 {
	return f.current
}

// Identity returns f.ID.
func (f *FakeCapture) Identity() Identity {
	return f.ID
}

// Enabled reports whether the fake is currently counting.
func (f *FakeCapture) Enabled() bool {
	return f.enabled
}

// Rewind restarts the script from the first width.
func (f *FakeCapture) Rewind() {
	f.index = 0
	f.current = 0
	f.enabled = false
}
