//go:build linux

package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/rclights/internal/mathx"
)

// RealIntensity drives GPIO output lines with one software PWM goroutine per
// enabled line.
type RealIntensity struct {
	chip   *gpiocdev.Chip
	period time.Duration
	log    logrus.FieldLogger

	mu    sync.Mutex
	lines map[int]*pwmLine
}

type pwmLine struct {
	offset  int
	line    *gpiocdev.Line
	level   uint16
	levels  chan uint16
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewRealIntensity requests every offset as an output driven low.
func NewRealIntensity(chipName string, offsets []int, pwmHz int, log logrus.FieldLogger) (*RealIntensity, error) {
	if pwmHz <= 0 {
		pwmHz = DefaultPWMHz
	}
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealIntensity{
		chip:   chip,
		period: time.Second / time.Duration(pwmHz),
		log:    log,
		lines:  make(map[int]*pwmLine, len(offsets)),
	}

	for _, offset := range offsets {
		l, err := chip.RequestLine(offset, gpiocdev.AsOutput(0))
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request output line %d: %w", offset, err)
		}
		r.lines[offset] = &pwmLine{offset: offset, line: l}
	}

	return r, nil
}

func (r *RealIntensity) lookup(line int) (*pwmLine, error) {
	p, ok := r.lines[line]
	if !ok {
		return nil, fmt.Errorf("output line %d not requested", line)
	}
	return p, nil
}

// SetLevel hands the new level to the line's PWM goroutine, or records it
// for when the line is enabled.
func (r *RealIntensity) SetLevel(line int, level uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(line)
	if err != nil {
		return err
	}
	p.level = mathx.Clamp(level, 0, MaxLevel)
	if !p.running {
		return nil
	}
	// Keep only the newest level.
	select {
	case <-p.levels:
	default:
	}
	p.levels <- p.level
	return nil
}

// Enable starts or stops the line's PWM goroutine. A stopped line is driven low.
func (r *RealIntensity) Enable(line int, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.lookup(line)
	if err != nil {
		return err
	}
	if on == p.running {
		return nil
	}
	if on {
		p.levels = make(chan uint16, 1)
		p.stop = make(chan struct{})
		p.done = make(chan struct{})
		p.running = true
		go p.run(r.period, p.level, r.log)
		return nil
	}
	close(p.stop)
	<-p.done
	p.running = false
	return nil
}

func (p *pwmLine) run(period time.Duration, level uint16, log logrus.FieldLogger) {
	defer close(p.done)

	set := func(v int) {
		if err := p.line.SetValue(v); err != nil {
			log.WithField("line", p.offset).Debugf("output: set value: %v", err)
		}
	}
	defer set(0)

	for {
		if level == LevelOff || level >= MaxLevel {
			if level == LevelOff {
				set(0)
			} else {
				set(1)
			}
			select {
			case level = <-p.levels:
				continue
			case <-p.stop:
				return
			}
		}

		on := period * time.Duration(level) / time.Duration(MaxLevel)
		set(1)
		if !p.wait(on, &level) {
			return
		}
		set(0)
		if !p.wait(period-on, &level) {
			return
		}
	}
}

// wait sleeps for d, picking up level changes. It returns false when stopped.
func (p *pwmLine) wait(d time.Duration, level *uint16) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			return true
		case *level = <-p.levels:
		case <-p.stop:
			return false
		}
	}
}

// Close stops every PWM goroutine, drives lines low and releases them.
func (r *RealIntensity) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for offset, p := range r.lines {
		if p.running {
			close(p.stop)
			<-p.done
			p.running = false
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close output line %d: %w", offset, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
