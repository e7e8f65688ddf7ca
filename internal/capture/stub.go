//go:build !linux

package capture

import "errors"

// RealCapture is not available on non-Linux platforms.
type RealCapture struct{}

// NewRealCapture returns an error on non-Linux platforms.
func NewRealCapture(chip string, line int) (*RealCapture, error) {
	return nil, errors.New("capture: not supported on this platform (requires Linux)")
}

// Reset is not implemented on non-Linux platforms.
func (c *RealCapture) Reset() {}

// Enable is not implemented on non-Linux platforms.
func (c *RealCapture) Enable(on bool) {}

// ElapsedHighTime is not implemented on non-Linux platforms.
func (c *RealCapture) ElapsedHighTime() uint32 { return 0 }

// Identity is not implemented on non-Linux platforms.
func (c *RealCapture) Identity() Identity { return Identity{} }

// Close is not implemented on non-Linux platforms.
func (c *RealCapture) Close() error { return nil }
