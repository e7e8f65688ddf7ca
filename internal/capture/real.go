//go:build linux

package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

// RealCapture measures high time on a Linux GPIO line from kernel edge
// timestamps. Edge events arrive on a gpiocdev goroutine, so state is guarded
// by mu.
type RealCapture struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	id   Identity

	mu        sync.Mutex
	enabled   bool
	enabledAt time.Duration // CLOCK_MONOTONIC, same base as event timestamps
	high      bool
	riseAt    time.Duration
	elapsed   time.Duration
}

// NewRealCapture requests the given line as an input with edge detection on
// both edges.
func NewRealCapture(chipName string, offset int) (*RealCapture, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	if offset < 0 || offset >= chip.Lines() {
		chip.Close()
		return nil, fmt.Errorf("%w: line %d not on %s (%d lines)", ErrIdentityMismatch, offset, chipName, chip.Lines())
	}

	c := &RealCapture{
		chip: chip,
		id:   Identity{Chip: chip.Name, Line: offset, ClockHz: DefaultClockHz},
	}

	line, err := chip.RequestLine(offset,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(c.handleEvent))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request input line %d: %w", offset, err)
	}
	c.line = line

	// Seed the level so a pulse already in progress when counting starts is
	// measured from the enable time.
	v, err := line.Value()
	if err != nil {
		line.Close()
		chip.Close()
		return nil, fmt.Errorf("read input line %d: %w", offset, err)
	}
	c.mu.Lock()
	c.high = v == 1
	c.riseAt = monotonicNow()
	c.mu.Unlock()

	return c, nil
}

func (c *RealCapture) handleEvent(evt gpiocdev.LineEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch evt.Type {
	case gpiocdev.LineEventRisingEdge:
		c.high = true
		c.riseAt = evt.Timestamp
	case gpiocdev.LineEventFallingEdge:
		if c.enabled && c.high {
			c.elapsed += evt.Timestamp - c.windowStart()
		}
		c.high = false
	}
}

// windowStart is the later of the last rising edge and the enable time.
// Caller holds mu.
func (c *RealCapture) windowStart() time.Duration {
	if c.riseAt > c.enabledAt {
		return c.riseAt
	}
	return c.enabledAt
}

// Reset zeroes the accumulated high time.
func (c *RealCapture) Reset() {
	c.mu.Lock()
	c.elapsed = 0
	c.mu.Unlock()
}

// Enable starts or stops accumulation. Stopping while the input is high
// counts the partial pulse up to now.
func (c *RealCapture) Enable(on bool) {
	now := monotonicNow()

	c.mu.Lock()
	defer c.mu.Unlock()

	if on == c.enabled {
		return
	}
	if on {
		c.enabledAt = now
		c.enabled = true
		return
	}
	if c.high {
		if start := c.windowStart(); now > start {
			c.elapsed += now - start
		}
	}
	c.enabled = false
}

// ElapsedHighTime returns the accumulated high time in microseconds.
func (c *RealCapture) ElapsedHighTime() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint32(c.elapsed / time.Microsecond)
}

// Identity reports the chip, line and counter clock.
func (c *RealCapture) Identity() Identity {
	return c.id
}

// Close releases GPIO resources.
func (c *RealCapture) Close() error {
	var errs []error

	if c.line != nil {
		if err := c.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input line: %w", err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func monotonicNow() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}
