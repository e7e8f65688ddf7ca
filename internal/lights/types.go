// Package lights applies master light configurations to the six vehicle
// light channels. Output goes through an output.Intensity; time is always
// injected as a time.Time parameter.
package lights

import (
	"time"

	"github.com/sweeney/rclights/internal/output"
)

// State is the logical state of a light channel.
type State string

const (
	StateOff  State = "OFF"
	StateOn   State = "ON"
	StateHigh State = "HIGH"
)

// Level returns the output duty cycle for the state.
func (s State) Level() uint16 {
	switch s {
	case StateOn:
		return output.LevelOn
	case StateHigh:
		return output.LevelHigh
	default:
		return output.LevelOff
	}
}

// Name identifies one of the six light channels.
type Name string

const (
	FrontWhite   Name = "front_white"
	FrontBlue    Name = "front_blue"
	LeftBlinker  Name = "left_blinker"
	RightBlinker Name = "right_blinker"
	Stop         Name = "stop"
	Reverse      Name = "reverse"
)

// Names lists the channels in display order.
var Names = []Name{FrontWhite, FrontBlue, LeftBlinker, RightBlinker, Stop, Reverse}

// Channel is one physical light.
type Channel struct {
	Name  Name
	Line  int
	State State
}

// Pins maps each channel to its output line.
type Pins struct {
	FrontWhite   int `toml:"front_white"`
	FrontBlue    int `toml:"front_blue"`
	LeftBlinker  int `toml:"left_blinker"`
	RightBlinker int `toml:"right_blinker"`
	Stop         int `toml:"stop"`
	Reverse      int `toml:"reverse"`
}

// DefaultPins is the wiring of the reference board.
func DefaultPins() Pins {
	return Pins{
		FrontWhite:   17,
		FrontBlue:    18,
		LeftBlinker:  20,
		RightBlinker: 21,
		Stop:         22,
		Reverse:      28,
	}
}

// Lines returns the output lines in Names order.
func (p Pins) Lines() []int {
	return []int{p.FrontWhite, p.FrontBlue, p.LeftBlinker, p.RightBlinker, p.Stop, p.Reverse}
}

// DefaultBlinkInterval is the half period of a blinking light.
const DefaultBlinkInterval = 400 * time.Millisecond

// Event is a state transition that reached the output.
type Event struct {
	Timestamp time.Time
	Channel   Name
	From      State
	To        State
	Level     uint16
	// Blink is set when the transition was a blink phase toggle.
	Blink bool
}
