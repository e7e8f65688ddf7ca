//go:build !linux

package output

import (
	"errors"

	"github.com/sirupsen/logrus"
)

// RealIntensity is not available on non-Linux platforms.
type RealIntensity struct{}

// NewRealIntensity returns an error on non-Linux platforms.
func NewRealIntensity(chipName string, offsets []int, pwmHz int, log logrus.FieldLogger) (*RealIntensity, error) {
	return nil, errors.New("output: not supported on this platform (requires Linux)")
}

// SetLevel is not implemented on non-Linux platforms.
func (r *RealIntensity) SetLevel(line int, level uint16) error {
	return errors.New("output: not supported")
}

// Enable is not implemented on non-Linux platforms.
func (r *RealIntensity) Enable(line int, on bool) error {
	return errors.New("output: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealIntensity) Close() error {
	return nil
}
