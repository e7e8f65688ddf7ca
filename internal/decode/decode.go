// Package decode quantizes a stabilized pulse width into a master light
// configuration and unpacks its fields.
//
// The calibrated range is split into Count evenly spaced buckets centered on
// RangeMin, RangeMin+size, ... RangeMax. A bucket id is packed as
// (id % 3) | (id / 3) << 2, so the low two bits hold the brake/reverse axis
// (never 3) and bits 2..5 hold blink, high beam and day/night.
package decode

import (
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/rclights/internal/mathx"
	"github.com/sweeney/rclights/internal/pulse"
)

// Defaults calibrated for the transmitter's switch mixer.
const (
	DefaultRangeMin = 1019
	DefaultRangeMax = 1971
	DefaultCount    = 48
)

// MaxCount is the largest count whose packed value fits in six bits.
const MaxCount = 3 * 16

// Config is a packed master light configuration.
type Config uint8

// Blink modes.
type Blink uint8

const (
	BlinkOff Blink = iota
	BlinkLeft
	BlinkRight
	BlinkHazard
)

func (b Blink) String() string {
	switch b {
	case BlinkOff:
		return "OFF"
	case BlinkLeft:
		return "LEFT"
	case BlinkRight:
		return "RIGHT"
	default:
		return "HAZARD"
	}
}

// Fields are the five sub-fields of a Config.
type Fields struct {
	Brake    bool
	Reverse  bool
	Blink    Blink
	HighBeam bool
	DayNight bool
}

// Unpack splits c into its fields.
func Unpack(c Config) Fields {
	return Fields{
		Brake:    c&1 != 0,
		Reverse:  (c>>1)&1 != 0,
		Blink:    Blink((c >> 2) & 3),
		HighBeam: (c>>4)&1 != 0,
		DayNight: (c>>5)&1 != 0,
	}
}

// Pack encodes a bucket id. id must be in [0, MaxCount).
func Pack(id int) Config {
	return Config((id % 3) | ((id / 3) << 2))
}

// ID recovers the bucket id from a packed configuration.
func (c Config) ID() int {
	return int(c&3) + 3*int(c>>2)
}

func (c Config) String() string {
	return fmt.Sprintf("%06b", uint8(c))
}

// ErrInvalidRange is returned by New for unusable calibration.
var ErrInvalidRange = errors.New("decode: invalid range")

// Decoder maps pulse widths to configurations. It holds no mutable state.
type Decoder struct {
	min, max   float64
	count      int
	bucketSize float64
}

// New creates a Decoder for the calibrated range and configuration count.
func New(rangeMin, rangeMax float64, count int) (*Decoder, error) {
	if rangeMax <= rangeMin {
		return nil, fmt.Errorf("%w: min %v >= max %v", ErrInvalidRange, rangeMin, rangeMax)
	}
	if count < 2 || count > MaxCount {
		return nil, fmt.Errorf("%w: count %d not in [2, %d]", ErrInvalidRange, count, MaxCount)
	}
	return &Decoder{
		min:        rangeMin,
		max:        rangeMax,
		count:      count,
		bucketSize: (rangeMax - rangeMin) / float64(count-1),
	}, nil
}

// BucketSize returns the width of one bucket in microseconds.
func (d *Decoder) BucketSize() float64 {
	return d.bucketSize
}

// Count returns the number of configurations.
func (d *Decoder) Count() int {
	return d.count
}

// BucketID returns the unclamped bucket id for w. The quotient is truncated
// toward zero, which with the half-bucket offset rounds to the nearest
// center inside the range. Widths outside the range give ids outside
// [0, Count). The quotient is limited to the int32 range before conversion,
// so infinite widths land on the far ends and NaN on the low end.
func (d *Decoder) BucketID(w pulse.Width) int {
	q := (float64(w) - d.min + d.bucketSize/2) / d.bucketSize
	if math.IsNaN(q) {
		return math.MinInt32
	}
	return int(mathx.Clamp(q, math.MinInt32, math.MaxInt32))
}

// Decode returns the configuration for w. The id is clamped to
// [0, Count-1] before packing.
func (d *Decoder) Decode(w pulse.Width) Config {
	return Pack(mathx.Clamp(d.BucketID(w), 0, d.count-1))
}

// Result is a fully annotated decode, used for status and diagnostics.
type Result struct {
	Width   pulse.Width
	RawID   int
	ID      int
	Clamped bool
	Config  Config
	Fields  Fields
}

// Result decodes w and keeps the intermediate values.
func (d *Decoder) Result(w pulse.Width) Result {
	raw := d.BucketID(w)
	id := mathx.Clamp(raw, 0, d.count-1)
	c := Pack(id)
	return Result{
		Width:   w,
		RawID:   raw,
		ID:      id,
		Clamped: id != raw,
		Config:  c,
		Fields:  Unpack(c),
	}
}
