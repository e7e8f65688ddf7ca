package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string            `json:"event,omitempty"`
	Reason        string            `json:"reason,omitempty"`
	Ready         bool              `json:"ready"`
	Lights        map[string]string `json:"lights"`
	BlinkOn       bool              `json:"blink_on"`
	Input         InputJSON         `json:"input"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	StartTime     string            `json:"start_time"`
	Timestamp     string            `json:"timestamp"`
	MQTT          MQTTStatus        `json:"mqtt"`
	Counts        CountsJSON        `json:"counts"`
	Network       *NetworkJSON      `json:"network,omitempty"`
	Config        ConfigJSON        `json:"config"`
}

// InputJSON describes the last decoded input.
type InputJSON struct {
	RawUs    float64    `json:"raw_us"`
	StableUs float64    `json:"stable_us"`
	RawID    int        `json:"raw_id"`
	ID       int        `json:"id"`
	Clamped  bool       `json:"clamped"`
	Config   string     `json:"config"`
	Fields   FieldsJSON `json:"fields"`
}

// FieldsJSON is the JSON representation of decoded configuration fields.
type FieldsJSON struct {
	Brake    bool   `json:"brake"`
	Reverse  bool   `json:"reverse"`
	Blink    string `json:"blink"`
	HighBeam bool   `json:"high_beam"`
	DayNight bool   `json:"day_night"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of loop counters.
type CountsJSON struct {
	Cycles       uint64 `json:"cycles"`
	Transitions  uint64 `json:"transitions"`
	BlinkToggles uint64 `json:"blink_toggles"`
	Clamped      uint64 `json:"clamped"`
	WriteErrors  uint64 `json:"write_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	InputHz         float64 `json:"input_hz"`
	RangeMinUs      float64 `json:"range_min_us"`
	RangeMaxUs      float64 `json:"range_max_us"`
	Configurations  int     `json:"configurations"`
	Filter          string  `json:"filter"`
	BlinkIntervalMs int64   `json:"blink_interval_ms"`
	HeartbeatMs     int64   `json:"heartbeat_ms"`
	Broker          string  `json:"broker"`
	HTTPAddr        string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	lightStates := make(map[string]string, len(snap.Channels))
	for _, ch := range snap.Channels {
		lightStates[string(ch.Name)] = string(ch.State)
	}

	res := snap.Cycle.Result
	return StatusInner{
		Ready:   snap.Ready(),
		Lights:  lightStates,
		BlinkOn: snap.BlinkOn,
		Input: InputJSON{
			RawUs:    float64(snap.Cycle.Raw),
			StableUs: float64(snap.Cycle.Stable),
			RawID:    res.RawID,
			ID:       res.ID,
			Clamped:  res.Clamped,
			Config:   res.Config.String(),
			Fields: FieldsJSON{
				Brake:    res.Fields.Brake,
				Reverse:  res.Fields.Reverse,
				Blink:    res.Fields.Blink.String(),
				HighBeam: res.Fields.HighBeam,
				DayNight: res.Fields.DayNight,
			},
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Cycles:       snap.Counts.Cycles,
			Transitions:  snap.Counts.Transitions,
			BlinkToggles: snap.Counts.BlinkToggles,
			Clamped:      snap.Counts.Clamped,
			WriteErrors:  snap.Counts.WriteErrors,
		},
		Config: ConfigJSON{
			InputHz:         snap.Config.InputHz,
			RangeMinUs:      snap.Config.RangeMinUs,
			RangeMaxUs:      snap.Config.RangeMaxUs,
			Configurations:  snap.Config.Configurations,
			Filter:          snap.Config.Filter,
			BlinkIntervalMs: snap.Config.BlinkIntervalMs,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
