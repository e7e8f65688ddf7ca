// Package status provides a thread-safe status tracker for the light
// controller. It is read by the HTTP handlers and the MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/rclights/internal/control"
	"github.com/sweeney/rclights/internal/lights"
)

// NetworkInfo contains network state reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains controller configuration for display.
type Config struct {
	InputHz         float64
	RangeMinUs      float64
	RangeMaxUs      float64
	Configurations  int
	Filter          string
	BlinkIntervalMs int64
	HeartbeatMs     int64
	Broker          string
	HTTPAddr        string
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Cycle         control.Cycle
	Channels      []lights.Channel
	BlinkOn       bool
	Counts        control.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether the debounce filter has produced a stable width.
func (s Snapshot) Ready() bool {
	return s.Cycle.Stable != 0
}

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the latest cycle, the channel states and the counters.
// Called from runLoop after every step.
func (t *Tracker) Update(c control.Cycle, channels []lights.Channel, blinkOn bool, counts control.Counts) {
	chs := make([]lights.Channel, len(channels))
	copy(chs, channels)
	c.Events = nil

	t.mu.Lock()
	t.snap.Cycle = c
	t.snap.Channels = chs
	t.snap.BlinkOn = blinkOn
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = append([]lights.Channel(nil), t.snap.Channels...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
