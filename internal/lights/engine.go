package lights

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/rclights/internal/decode"
	"github.com/sweeney/rclights/internal/output"
)

// Engine owns the light channels and applies configurations to them.
type Engine struct {
	out      output.Intensity
	channels []Channel
	index    map[Name]int
	blink    *BlinkTimer
	writes   int
}

// NewEngine creates an engine with every channel Off. Nothing is written
// until Start.
func NewEngine(out output.Intensity, pins Pins, blinkInterval time.Duration) *Engine {
	lines := pins.Lines()
	e := &Engine{
		out:      out,
		channels: make([]Channel, len(Names)),
		index:    make(map[Name]int, len(Names)),
		blink:    NewBlinkTimer(blinkInterval),
	}
	for i, name := range Names {
		e.channels[i] = Channel{Name: name, Line: lines[i], State: StateOff}
		e.index[name] = i
	}
	return e
}

// Start enables every output line and turns FrontBlue on. FrontBlue is not
// touched again by Apply.
func (e *Engine) Start(now time.Time) ([]Event, error) {
	for _, ch := range e.channels {
		if err := e.out.Enable(ch.Line, true); err != nil {
			return nil, fmt.Errorf("enable %s (line %d): %w", ch.Name, ch.Line, err)
		}
	}
	ev, err := e.Turn(FrontBlue, StateOn, now)
	if err != nil {
		return nil, err
	}
	return appendEvent(nil, ev), nil
}

// Apply drives every controlled channel from cfg. It returns the transitions
// that reached the output. A failed write leaves the channel's state
// unchanged so the next cycle retries it; all failures are joined.
func (e *Engine) Apply(cfg decode.Config, now time.Time) ([]Event, error) {
	f := decode.Unpack(cfg)
	a := applier{e: e, now: now}

	a.turn(Stop, stopState(f))
	a.turn(Reverse, reverseState(f))
	e.applyBlink(&a, f.Blink)
	a.turn(FrontWhite, frontWhiteState(f))

	return a.events, errors.Join(a.errs...)
}

func frontWhiteState(f decode.Fields) State {
	if f.HighBeam {
		return StateHigh
	}
	if f.DayNight {
		return StateOn
	}
	return StateOff
}

func stopState(f decode.Fields) State {
	if f.Brake {
		return StateHigh
	}
	if f.DayNight {
		return StateOn
	}
	return StateOff
}

func reverseState(f decode.Fields) State {
	if f.Reverse {
		return StateOn
	}
	return StateOff
}

// applyBlink advances the shared timer once and applies the same phase to
// every blinking channel.
func (e *Engine) applyBlink(a *applier, mode decode.Blink) {
	switch mode {
	case decode.BlinkOff:
		a.turn(LeftBlinker, StateOff)
		a.turn(RightBlinker, StateOff)
	case decode.BlinkLeft:
		phase := e.blink.Advance(a.now)
		a.blink(LeftBlinker, phase)
		a.turn(RightBlinker, StateOff)
	case decode.BlinkRight:
		phase := e.blink.Advance(a.now)
		a.turn(LeftBlinker, StateOff)
		a.blink(RightBlinker, phase)
	default:
		phase := e.blink.Advance(a.now)
		a.blink(LeftBlinker, phase)
		a.blink(RightBlinker, phase)
	}
}

// applier collects events and errors for one Apply call.
type applier struct {
	e      *Engine
	now    time.Time
	events []Event
	errs   []error
}

func (a *applier) turn(name Name, target State) {
	ev, err := a.e.Turn(name, target, a.now)
	if err != nil {
		a.errs = append(a.errs, err)
		return
	}
	a.events = appendEvent(a.events, ev)
}

// blink drives the channel On in the on phase; in the off phase it only
// writes Off if the channel is currently On.
func (a *applier) blink(name Name, phaseOn bool) {
	var target State
	switch {
	case phaseOn:
		target = StateOn
	case a.e.State(name) == StateOn:
		target = StateOff
	default:
		return
	}
	ev, err := a.e.Turn(name, target, a.now)
	if err != nil {
		a.errs = append(a.errs, err)
		return
	}
	if ev != nil {
		ev.Blink = true
	}
	a.events = appendEvent(a.events, ev)
}

func appendEvent(events []Event, ev *Event) []Event {
	if ev == nil {
		return events
	}
	return append(events, *ev)
}

// Turn sets a channel to target. It is idempotent: when the channel is
// already in target nothing is written and nil is returned.
func (e *Engine) Turn(name Name, target State, now time.Time) (*Event, error) {
	i, ok := e.index[name]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", name)
	}
	ch := &e.channels[i]
	if ch.State == target {
		return nil, nil
	}

	level := target.Level()
	if err := e.out.SetLevel(ch.Line, level); err != nil {
		return nil, fmt.Errorf("set %s to %s: %w", ch.Name, target, err)
	}
	e.writes++

	ev := &Event{
		Timestamp: now,
		Channel:   ch.Name,
		From:      ch.State,
		To:        target,
		Level:     level,
	}
	ch.State = target
	return ev, nil
}

// Shutdown turns every channel off, FrontBlue included, and disables the
// output lines.
func (e *Engine) Shutdown(now time.Time) ([]Event, error) {
	var events []Event
	var errs []error
	for _, ch := range e.channels {
		ev, err := e.Turn(ch.Name, StateOff, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = appendEvent(events, ev)
	}
	for _, ch := range e.channels {
		if err := e.out.Enable(ch.Line, false); err != nil {
			errs = append(errs, fmt.Errorf("disable %s (line %d): %w", ch.Name, ch.Line, err))
		}
	}
	return events, errors.Join(errs...)
}

// State returns the current state of a channel (Off for unknown names).
func (e *Engine) State(name Name) State {
	i, ok := e.index[name]
	if !ok {
		return StateOff
	}
	return e.channels[i].State
}

// Channels returns a copy of all channels in Names order.
func (e *Engine) Channels() []Channel {
	out := make([]Channel, len(e.channels))
	copy(out, e.channels)
	return out
}

// States returns the current state of every channel.
func (e *Engine) States() map[Name]State {
	m := make(map[Name]State, len(e.channels))
	for _, ch := range e.channels {
		m[ch.Name] = ch.State
	}
	return m
}

// Writes returns the number of output writes made so far.
func (e *Engine) Writes() int {
	return e.writes
}

// BlinkOn reports the shared blink phase.
func (e *Engine) BlinkOn() bool {
	return e.blink.On()
}
