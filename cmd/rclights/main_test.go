package main

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sweeney/rclights/internal/capture"
	"github.com/sweeney/rclights/internal/config"
	"github.com/sweeney/rclights/internal/control"
	"github.com/sweeney/rclights/internal/decode"
	"github.com/sweeney/rclights/internal/filter"
	"github.com/sweeney/rclights/internal/lights"
	"github.com/sweeney/rclights/internal/mqtt"
	"github.com/sweeney/rclights/internal/output"
	"github.com/sweeney/rclights/internal/pulse"
	"github.com/sweeney/rclights/internal/status"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo when NETWORK_STATUS is set")
	}
	if info.Status != "connected" {
		t.Errorf("Status: got %q, want %q", info.Status, "connected")
	}
	if info.IP != "" {
		t.Errorf("IP: got %q, want empty", info.IP)
	}
}

func TestSignalName(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := signalName(tt.sig); got != tt.want {
			t.Errorf("signalName(%v): got %q, want %q", tt.sig, got, tt.want)
		}
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of width.
func repeat(width uint32, n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = width
	}
	return out
}

type loopHarness struct {
	out       *output.FakeIntensity
	pub       *mqtt.FakePublisher
	publisher mqtt.Publisher // what runLoop publishes through; defaults to pub
	tracker   *status.Tracker
	loop      *control.Loop
	hook      *logtest.Hook
	err       error
}

// runRunLoop drives runLoop over widths. The signal is delivered from inside
// the sampler's sleep on the last cycle, so exactly len(widths) cycles run.
func runRunLoop(t *testing.T, widths []uint32, heartbeat time.Duration, clock func() time.Time, signal os.Signal, setup func(*loopHarness)) *loopHarness {
	t.Helper()

	sig := make(chan os.Signal, 1)
	cycles := 0

	fc := capture.NewFakeCapture(widths)
	sampler := pulse.NewSampler(fc, pulse.DefaultInputHz)
	sampler.SetSleep(func(time.Duration) {
		cycles++
		if cycles == len(widths) {
			sig <- signal
		}
	})

	d, err := decode.New(decode.DefaultRangeMin, decode.DefaultRangeMax, decode.DefaultCount)
	if err != nil {
		t.Fatalf("decode.New: %v", err)
	}
	logger, hook := logtest.NewNullLogger()

	h := &loopHarness{
		out:  output.NewFakeIntensity(),
		pub:  mqtt.NewFakePublisher(),
		hook: hook,
	}
	h.publisher = h.pub
	engine := lights.NewEngine(h.out, lights.DefaultPins(), lights.DefaultBlinkInterval)
	h.loop = control.New(sampler, filter.NewConsensus(filter.DefaultConsensusSamples), d, engine, clock, logger)
	h.tracker = status.NewTracker(h.loop.StartTime(), statusConfig(config.Default()))
	if setup != nil {
		setup(h)
	}

	h.err = runLoop(h.loop, h.publisher, h.pub, h.tracker, heartbeat, clock, sig, logger)
	return h
}

func testClock() func() time.Time {
	return fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 16*time.Millisecond)
}

func TestRunLoopStartupAndShutdown(t *testing.T) {
	// 1019us decodes to all-off, so only FrontBlue changes
	h := runRunLoop(t, repeat(1019, 8), 0, testClock(), syscall.SIGTERM, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}

	names := h.pub.SystemEventNames()
	if len(names) != 2 || names[0] != mqtt.EventStartup || names[1] != mqtt.EventShutdown {
		t.Fatalf("expected STARTUP, SHUTDOWN; got %v", names)
	}
	if !h.pub.SystemEvents[0].Retained || !h.pub.SystemEvents[1].Retained {
		t.Error("lifecycle events should be retained")
	}
	if h.pub.SystemEvents[1].Reason != "SIGTERM" {
		t.Errorf("shutdown reason: got %q, want SIGTERM", h.pub.SystemEvents[1].Reason)
	}
	if !strings.Contains(string(h.pub.SystemPayloads[1]), `"reason":"SIGTERM"`) {
		t.Errorf("shutdown payload missing reason: %s", h.pub.SystemPayloads[1])
	}

	// FrontBlue on at startup, off at shutdown
	if len(h.pub.Events) != 2 {
		t.Fatalf("expected 2 light events, got %d: %+v", len(h.pub.Events), h.pub.Events)
	}
	on, off := h.pub.Events[0], h.pub.Events[1]
	if on.Channel != lights.FrontBlue || on.To != lights.StateOn {
		t.Errorf("first event: got %s -> %s", on.Channel, on.To)
	}
	if off.Channel != lights.FrontBlue || off.To != lights.StateOff {
		t.Errorf("last event: got %s -> %s", off.Channel, off.To)
	}

	if h.loop.Counts().Cycles != 8 {
		t.Errorf("Cycles: got %d, want 8", h.loop.Counts().Cycles)
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	h := runRunLoop(t, repeat(1500, 2), 0, testClock(), syscall.SIGINT, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}
	last := h.pub.SystemEvents[len(h.pub.SystemEvents)-1]
	if last.Event != mqtt.EventShutdown || last.Reason != "SIGINT" {
		t.Errorf("got %s/%s, want SHUTDOWN/SIGINT", last.Event, last.Reason)
	}
}

func TestRunLoopShutdownTurnsEverythingOff(t *testing.T) {
	h := runRunLoop(t, repeat(1971, 10), 0, testClock(), syscall.SIGTERM, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}

	for _, line := range lights.DefaultPins().Lines() {
		if lvl := h.out.Levels[line]; lvl != output.LevelOff {
			t.Errorf("line %d: level %d after shutdown, want 0", line, lvl)
		}
		if h.out.Enabled[line] {
			t.Errorf("line %d still enabled after shutdown", line)
		}
	}

	snap := h.tracker.Snapshot()
	for _, ch := range snap.Channels {
		if ch.State != lights.StateOff {
			t.Errorf("tracker %s: got %s, want OFF", ch.Name, ch.State)
		}
	}
}

func TestRunLoopPublishesSteadyTransitionsOnly(t *testing.T) {
	// id 47: reverse, hazard, high beam, night
	h := runRunLoop(t, repeat(1971, 60), 0, testClock(), syscall.SIGTERM, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}

	got := make(map[lights.Name][]lights.State)
	for _, ev := range h.pub.Events {
		if ev.Blink {
			t.Errorf("blink toggle published: %+v", ev)
		}
		got[ev.Channel] = append(got[ev.Channel], ev.To)
	}

	want := map[lights.Name][]lights.State{
		lights.FrontBlue:  {lights.StateOn, lights.StateOff},
		lights.FrontWhite: {lights.StateHigh, lights.StateOff},
		lights.Stop:       {lights.StateOn, lights.StateOff},
		lights.Reverse:    {lights.StateOn, lights.StateOff},
	}
	for name, states := range want {
		if len(got[name]) != len(states) {
			t.Errorf("%s: got %v, want %v", name, got[name], states)
			continue
		}
		for i := range states {
			if got[name][i] != states[i] {
				t.Errorf("%s[%d]: got %s, want %s", name, i, got[name][i], states[i])
			}
		}
	}

	if h.loop.Counts().BlinkToggles == 0 {
		t.Error("expected blink toggles to be counted")
	}
}

func TestRunLoopSpikeIgnored(t *testing.T) {
	widths := append(repeat(1019, 6), 1971)
	widths = append(widths, repeat(1019, 6)...)

	h := runRunLoop(t, widths, 0, testClock(), syscall.SIGTERM, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}

	for _, ev := range h.pub.Events {
		if ev.Channel != lights.FrontBlue {
			t.Errorf("spike caused a transition: %+v", ev)
		}
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// One clock step per second; heartbeat every 5s over 12 cycles
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	h := runRunLoop(t, repeat(1500, 12), 5*time.Second, clock, syscall.SIGTERM, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}

	names := h.pub.SystemEventNames()
	heartbeats := 0
	for _, n := range names {
		if n == mqtt.EventHeartbeat {
			heartbeats++
		}
	}
	if heartbeats < 2 {
		t.Errorf("expected at least 2 heartbeats, got %d (%v)", heartbeats, names)
	}
	if names[0] != mqtt.EventStartup || names[len(names)-1] != mqtt.EventShutdown {
		t.Errorf("unexpected lifecycle order: %v", names)
	}

	for i, e := range h.pub.SystemEvents {
		if e.Event != mqtt.EventHeartbeat {
			continue
		}
		if e.Retained {
			t.Error("heartbeat should not be retained")
		}
		if !strings.Contains(string(h.pub.SystemPayloads[i]), `"event":"HEARTBEAT"`) {
			t.Errorf("heartbeat payload: %s", h.pub.SystemPayloads[i])
		}
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute)
	h := runRunLoop(t, repeat(1500, 30), 0, clock, syscall.SIGTERM, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}
	for _, n := range h.pub.SystemEventNames() {
		if n == mqtt.EventHeartbeat {
			t.Fatal("heartbeat published while disabled")
		}
	}
}

func TestRunLoopHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkIP, "10.0.0.7")

	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	h := runRunLoop(t, repeat(1500, 8), 5*time.Second, clock, syscall.SIGTERM, nil)
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}

	found := false
	for i, e := range h.pub.SystemEvents {
		if e.Event == mqtt.EventHeartbeat {
			found = true
			if !strings.Contains(string(h.pub.SystemPayloads[i]), `"ip":"10.0.0.7"`) {
				t.Errorf("heartbeat payload missing network: %s", h.pub.SystemPayloads[i])
			}
		}
	}
	if !found {
		t.Fatal("expected a heartbeat")
	}
}

func TestRunLoopPublishError(t *testing.T) {
	h := runRunLoop(t, repeat(1971, 8), 0, testClock(), syscall.SIGTERM, func(h *loopHarness) {
		h.pub.PublishError = errors.New("broker down")
	})
	if h.err != nil {
		t.Fatalf("publish errors must not stop the loop: %v", h.err)
	}
	if h.loop.Counts().Cycles != 8 {
		t.Errorf("Cycles: got %d, want 8", h.loop.Counts().Cycles)
	}
	// Lights still follow the input
	if lvl := h.out.Levels[lights.DefaultPins().Reverse]; lvl != output.LevelOff {
		t.Errorf("reverse should be off after shutdown, got %d", lvl)
	}
	if h.loop.Counts().Transitions == 0 {
		t.Error("expected transitions despite publish errors")
	}
}

func TestRunLoopKeepsSteppingWhenBrokerStalls(t *testing.T) {
	asyncLog, _ := logtest.NewNullLogger()
	var async *mqtt.AsyncPublisher

	done := make(chan *loopHarness, 1)
	go func() {
		done <- runRunLoop(t, repeat(1971, 60), time.Second, testClock(), syscall.SIGTERM, func(h *loopHarness) {
			h.pub.Block = make(chan struct{})
			async = mqtt.NewAsyncPublisher(h.pub, 4, asyncLog)
			h.publisher = async
		})
	}()

	var h *loopHarness
	select {
	case h = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runLoop stopped stepping while the broker was stalled")
	}
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}
	if h.loop.Counts().Cycles != 60 {
		t.Errorf("Cycles: got %d, want 60", h.loop.Counts().Cycles)
	}
	if h.loop.Counts().BlinkToggles == 0 {
		t.Error("blinkers should keep toggling while the broker is stalled")
	}
	if async.Dropped() == 0 {
		t.Error("expected messages dropped while the queue was full")
	}
	if h.hook.LastEntry() == nil {
		t.Error("expected the dropped messages to be logged")
	}

	close(h.pub.Block)
	if err := async.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if names := h.pub.SystemEventNames(); len(names) == 0 || names[0] != mqtt.EventStartup {
		t.Errorf("startup should be delivered once the link recovers, got %v", names)
	}
	if len(h.pub.Events) == 0 || h.pub.Events[0].Channel != lights.FrontBlue {
		t.Errorf("first light event should be FrontBlue, got %+v", h.pub.Events)
	}
}

func TestRunLoopStartupOutputError(t *testing.T) {
	h := runRunLoop(t, repeat(1500, 4), 0, testClock(), syscall.SIGTERM, func(h *loopHarness) {
		h.out.EnableError = errors.New("line busy")
	})
	if h.err == nil {
		t.Fatal("expected startup error")
	}
	if len(h.pub.SystemEvents) != 0 {
		t.Errorf("no lifecycle events expected after failed startup, got %v", h.pub.SystemEventNames())
	}
}

func TestRunLoopTracksMQTTConnection(t *testing.T) {
	h := runRunLoop(t, repeat(1500, 3), 0, testClock(), syscall.SIGTERM, func(h *loopHarness) {
		h.pub.Connected = true
	})
	if h.err != nil {
		t.Fatalf("runLoop returned error: %v", h.err)
	}
	if !h.tracker.Snapshot().MQTTConnected {
		t.Error("tracker should report MQTT connected")
	}
}

// --- offline commands ---

func TestPrintDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := printDecode(&buf, config.Default(), []string{"1971", "900", "1000"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d:\n%s", len(lines), buf.String())
	}
	wants := []string{
		"width=1971us id=47 config=111110 brake=false reverse=true blink=HAZARD high_beam=true day_night=true",
		"width=900us id=0 (clamped from -5) config=000000",
		"width=1000us id=0 config=000000",
	}
	for i, want := range wants {
		if !strings.HasPrefix(lines[i], want) {
			t.Errorf("line %d:\ngot:  %s\nwant: %s", i, lines[i], want)
		}
	}
}

func TestPrintDecodeBadWidth(t *testing.T) {
	for _, arg := range []string{"wide", "Inf", "-Inf", "NaN"} {
		var buf bytes.Buffer
		if err := printDecode(&buf, config.Default(), []string{arg}); err == nil {
			t.Errorf("%s: expected parse error, got %q", arg, buf.String())
		}
	}
}

func TestPrintDecodeHugeWidthClampsHigh(t *testing.T) {
	var buf bytes.Buffer
	if err := printDecode(&buf, config.Default(), []string{"1e30"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "id=47 (clamped from 2147483647) config=111110"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("got %q, want it to contain %q", buf.String(), want)
	}
}

func TestPrintState(t *testing.T) {
	fc := capture.NewFakeCapture([]uint32{1500, 1971, 1971, 1971, 1971})
	s := pulse.NewSampler(fc, pulse.DefaultInputHz)
	s.SetSleep(func(time.Duration) {})
	d, _ := decode.New(decode.DefaultRangeMin, decode.DefaultRangeMax, decode.DefaultCount)

	var buf bytes.Buffer
	if err := printState(&buf, s, filter.NewConsensus(4), d, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "sample 1: raw=1500us stable=0us") {
		t.Errorf("missing first sample line:\n%s", out)
	}
	if !strings.Contains(out, "sample 5: raw=1971us stable=1971us") {
		t.Errorf("missing locked sample line:\n%s", out)
	}
	if !strings.Contains(out, "id=47") {
		t.Errorf("missing decoded result:\n%s", out)
	}

	if err := printState(&buf, s, filter.NewConsensus(4), d, 0); err == nil {
		t.Error("expected error for zero samples")
	}
}

func TestDecodeCommand(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"decode", "1019", "1971"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(buf.String(), "id=0 config=000000") || !strings.Contains(buf.String(), "id=47 config=111110") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestDecodeCommandRequiresArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"decode"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error without widths")
	}
}

func TestDefaultConfigCommandRoundTrips(t *testing.T) {
	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"default-config"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("default-config: %v", err)
	}
	cfg, err := config.Parse(buf.String())
	if err != nil {
		t.Fatalf("printed config does not parse: %v\n%s", err, buf.String())
	}
	if cfg.Decoder.RangeMaxUs != decode.DefaultRangeMax {
		t.Errorf("RangeMaxUs: got %v", cfg.Decoder.RangeMaxUs)
	}
}

func TestConfigFlagMissingFile(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"decode", "--config", t.TempDir() + "/missing.toml", "1500"})
	if err := cmd.Execute(); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfigFileUsedByDecode(t *testing.T) {
	path := t.TempDir() + "/rclights.toml"
	data := "[decoder]\nrange_min_us = 1000\nrange_max_us = 2000\nconfigurations = 3\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cmd := newRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"decode", "--config", path, "2000"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(buf.String(), "id=2 config=000010") {
		t.Errorf("expected calibrated id 2:\n%s", buf.String())
	}
}

func TestLogLevelFlagValidated(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"decode", "--log-level", "loud", "1500"})

	err := cmd.Execute()
	if !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
}
