// Package config loads the controller settings. Every setting has a compiled-in
// default; a TOML file may override any subset of them.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sweeney/rclights/internal/capture"
	"github.com/sweeney/rclights/internal/decode"
	"github.com/sweeney/rclights/internal/filter"
	"github.com/sweeney/rclights/internal/lights"
	"github.com/sweeney/rclights/internal/mathx"
	"github.com/sweeney/rclights/internal/output"
	"github.com/sweeney/rclights/internal/pulse"
)

// maxPWMHz bounds the software PWM rate.
const maxPWMHz = 2000

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full controller configuration.
type Config struct {
	LogLevel string  `toml:"log_level"`
	Input    Input   `toml:"input"`
	Decoder  Decoder `toml:"decoder"`
	Filter   Filter  `toml:"filter"`
	Lights   Lights  `toml:"lights"`
	MQTT     MQTT    `toml:"mqtt"`
	HTTP     HTTP    `toml:"http"`
}

// Input describes the receiver signal and the capture line it is wired to.
type Input struct {
	Chip        string  `toml:"chip"`
	Line        int     `toml:"line"`
	ClockHz     uint32  `toml:"clock_hz"`
	FrequencyHz float64 `toml:"frequency_hz"`
}

// Decoder holds the calibrated pulse width range.
type Decoder struct {
	RangeMinUs     float64 `toml:"range_min_us"`
	RangeMaxUs     float64 `toml:"range_max_us"`
	Configurations int     `toml:"configurations"`
}

// Filter selects the debounce strategy.
type Filter struct {
	Strategy         string `toml:"strategy"`
	AverageSamples   int    `toml:"average_samples"`
	ConsensusSamples int    `toml:"consensus_samples"`
}

// Lights holds the output wiring.
type Lights struct {
	Chip            string      `toml:"chip"`
	Pins            lights.Pins `toml:"pins"`
	BlinkIntervalMs int64       `toml:"blink_interval_ms"`
	PWMHz           int         `toml:"pwm_hz"`
}

// MQTT holds telemetry settings. An empty broker disables publishing.
type MQTT struct {
	Broker      string `toml:"broker"`
	ClientID    string `toml:"client_id"`
	HeartbeatMs int64  `toml:"heartbeat_ms"`
	BufferSize  int    `toml:"buffer_size"`
}

// HTTP holds the status server address. Empty disables it.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Default returns the settings of the reference board.
func Default() Config {
	return Config{
		LogLevel: "info",
		Input: Input{
			Chip:        capture.DefaultChip,
			Line:        capture.DefaultLine,
			ClockHz:     capture.DefaultClockHz,
			FrequencyHz: pulse.DefaultInputHz,
		},
		Decoder: Decoder{
			RangeMinUs:     decode.DefaultRangeMin,
			RangeMaxUs:     decode.DefaultRangeMax,
			Configurations: decode.DefaultCount,
		},
		Filter: Filter{
			Strategy:         filter.StrategyConsensus,
			AverageSamples:   filter.DefaultAverageSamples,
			ConsensusSamples: filter.DefaultConsensusSamples,
		},
		Lights: Lights{
			Chip:            capture.DefaultChip,
			Pins:            lights.DefaultPins(),
			BlinkIntervalMs: lights.DefaultBlinkInterval.Milliseconds(),
			PWMHz:           output.DefaultPWMHz,
		},
		MQTT: MQTT{
			Broker:      "tcp://192.168.1.200:1883",
			ClientID:    "rclights",
			HeartbeatMs: (15 * time.Minute).Milliseconds(),
			BufferSize:  100,
		},
		HTTP: HTTP{
			Addr: ":80",
		},
	}
}

// BlinkInterval returns the blink half period.
func (l Lights) BlinkInterval() time.Duration {
	return time.Duration(l.BlinkIntervalMs) * time.Millisecond
}

// Heartbeat returns the heartbeat interval (0 disables).
func (m MQTT) Heartbeat() time.Duration {
	return time.Duration(m.HeartbeatMs) * time.Millisecond
}

// Identity is the capture identity the board must report at startup.
func (i Input) Identity() capture.Identity {
	return capture.Identity{Chip: i.Chip, Line: i.Line, ClockHz: i.ClockHz}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Unknown keys are rejected so typos do not silently fall back.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Parse reads TOML text over the defaults.
func Parse(data string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := checkUndecoded(md); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func checkUndecoded(md toml.MetaData) error {
	undecoded := md.Undecoded()
	if len(undecoded) == 0 {
		return nil
	}
	keys := make([]string, len(undecoded))
	for i, k := range undecoded {
		keys[i] = k.String()
	}
	return fmt.Errorf("%w: unknown keys %s", ErrInvalid, strings.Join(keys, ", "))
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Validate reports settings the controller cannot run with.
func (c Config) Validate() error {
	if c.Input.FrequencyHz <= 0 {
		return fmt.Errorf("%w: input frequency %v Hz", ErrInvalid, c.Input.FrequencyHz)
	}
	if c.Input.ClockHz == 0 {
		return fmt.Errorf("%w: input clock must be set", ErrInvalid)
	}
	if c.Decoder.RangeMaxUs <= c.Decoder.RangeMinUs {
		return fmt.Errorf("%w: range %v..%v us", ErrInvalid, c.Decoder.RangeMinUs, c.Decoder.RangeMaxUs)
	}
	if !mathx.Between(c.Decoder.Configurations, 2, decode.MaxCount) {
		return fmt.Errorf("%w: %d configurations, want 2..%d", ErrInvalid, c.Decoder.Configurations, decode.MaxCount)
	}
	if c.Filter.AverageSamples < 1 || c.Filter.ConsensusSamples < 1 {
		return fmt.Errorf("%w: filter windows must be positive", ErrInvalid)
	}
	switch c.Filter.Strategy {
	case filter.StrategyConsensus, filter.StrategyAverage, filter.StrategyChain:
	default:
		return fmt.Errorf("%w: filter strategy %q", ErrInvalid, c.Filter.Strategy)
	}
	if !mathx.Between(c.Lights.PWMHz, 1, maxPWMHz) {
		return fmt.Errorf("%w: pwm frequency %d Hz, want 1..%d", ErrInvalid, c.Lights.PWMHz, maxPWMHz)
	}
	if c.Lights.BlinkIntervalMs <= 0 {
		return fmt.Errorf("%w: blink interval %dms", ErrInvalid, c.Lights.BlinkIntervalMs)
	}
	seen := make(map[int]bool)
	for _, line := range c.Lights.Pins.Lines() {
		if seen[line] {
			return fmt.Errorf("%w: output line %d used twice", ErrInvalid, line)
		}
		seen[line] = true
	}
	if c.Lights.Chip == c.Input.Chip && seen[c.Input.Line] {
		return fmt.Errorf("%w: input line %d is also an output", ErrInvalid, c.Input.Line)
	}
	if c.MQTT.HeartbeatMs < 0 {
		return fmt.Errorf("%w: negative heartbeat", ErrInvalid)
	}
	return nil
}
