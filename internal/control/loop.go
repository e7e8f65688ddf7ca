// Package control runs one sample → filter → decode → apply cycle at a time.
package control

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/rclights/internal/decode"
	"github.com/sweeney/rclights/internal/filter"
	"github.com/sweeney/rclights/internal/lights"
	"github.com/sweeney/rclights/internal/pulse"
)

// Sampler performs one blocking pulse measurement.
type Sampler interface {
	Measure() pulse.Width
}

// Cycle is the outcome of one Step.
type Cycle struct {
	Time   time.Time
	Raw    pulse.Width
	Stable pulse.Width
	Result decode.Result
	Events []lights.Event
}

// Counts tracks loop activity since startup.
type Counts struct {
	Cycles       uint64
	Transitions  uint64
	BlinkToggles uint64
	Clamped      uint64
	WriteErrors  uint64
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    Counts
}

// Loop ties the pipeline stages together. It is not safe for concurrent use;
// every stage runs on the caller's goroutine.
type Loop struct {
	sampler Sampler
	filter  filter.Filter
	decoder *decode.Decoder
	engine  *lights.Engine
	now     func() time.Time
	log     logrus.FieldLogger

	startTime     time.Time
	lastHeartbeat time.Time
	counts        Counts
	last          Cycle
}

// New creates a Loop. startTime is used for uptime in heartbeats.
func New(s Sampler, f filter.Filter, d *decode.Decoder, e *lights.Engine, now func() time.Time, log logrus.FieldLogger) *Loop {
	start := now()
	return &Loop{
		sampler:       s,
		filter:        f,
		decoder:       d,
		engine:        e,
		now:           now,
		log:           log,
		startTime:     start,
		lastHeartbeat: start,
	}
}

// Step runs one cycle. It blocks for one input period inside the sampler.
// Output write failures are returned with the cycle; the next Step retries
// them.
func (l *Loop) Step() (Cycle, error) {
	raw := l.sampler.Measure()
	stable := l.filter.Filter(raw)
	res := l.decoder.Result(stable)
	now := l.now()

	if res.Clamped {
		l.counts.Clamped++
		l.log.WithFields(logrus.Fields{
			"width_us": float64(stable),
			"raw_id":   res.RawID,
			"id":       res.ID,
		}).Debug("control: width outside calibrated range, clamped")
	}

	events, err := l.engine.Apply(res.Config, now)
	if err != nil {
		l.counts.WriteErrors++
	}

	l.counts.Cycles++
	for _, ev := range events {
		if ev.Blink {
			l.counts.BlinkToggles++
		} else {
			l.counts.Transitions++
		}
	}

	c := Cycle{
		Time:   now,
		Raw:    raw,
		Stable: stable,
		Result: res,
		Events: events,
	}
	l.last = c
	return c, err
}

// Last returns the most recent cycle.
func (l *Loop) Last() Cycle {
	return l.last
}

// Counts returns a copy of the activity counters.
func (l *Loop) Counts() Counts {
	return l.counts
}

// Engine returns the rule engine driven by the loop.
func (l *Loop) Engine() *lights.Engine {
	return l.engine
}

// StartTime returns when the loop was created.
func (l *Loop) StartTime() time.Time {
	return l.startTime
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if interval is <= 0 (disabled).
func (l *Loop) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(l.lastHeartbeat) < interval {
		return nil
	}

	l.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(l.startTime),
		Counts:    l.counts,
	}
}
