package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

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
	"github.com/sweeney/rclights/internal/web"
)

func run(cfg config.Config, logger log.FieldLogger) error {
	capt, err := capture.NewRealCapture(cfg.Input.Chip, cfg.Input.Line)
	if err != nil {
		return fmt.Errorf("init capture: %w", err)
	}
	defer capt.Close()

	// A capture bound to the wrong input or clock would decode garbage.
	if err := capture.Verify(capt, cfg.Input.Identity()); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	out, err := output.NewRealIntensity(cfg.Lights.Chip, cfg.Lights.Pins.Lines(), cfg.Lights.PWMHz, logger)
	if err != nil {
		return fmt.Errorf("init outputs: %w", err)
	}
	defer out.Close()

	sampler, f, d, err := newPipeline(cfg, capt)
	if err != nil {
		return err
	}
	engine := lights.NewEngine(out, cfg.Lights.Pins, cfg.Lights.BlinkInterval())
	loop := control.New(sampler, f, d, engine, time.Now, logger)

	var (
		publisher  mqtt.Publisher        = mqtt.NopPublisher{}
		connStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	)
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			BufferSize: cfg.MQTT.BufferSize,
		}, logger)
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		connStatus = p
		// Broker round trips happen on the sender goroutine, never in runLoop.
		publisher = mqtt.NewAsyncPublisher(p, mqtt.DefaultQueueSize, logger)
	}
	defer publisher.Close()

	tracker := status.NewTracker(loop.StartTime(), statusConfig(cfg))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Errorf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Infof("http status server listening on %s", cfg.HTTP.Addr)
	}

	logger.WithFields(log.Fields{
		"input":     fmt.Sprintf("%s:%d", cfg.Input.Chip, cfg.Input.Line),
		"input_hz":  cfg.Input.FrequencyHz,
		"range_us":  fmt.Sprintf("%v..%v", cfg.Decoder.RangeMinUs, cfg.Decoder.RangeMaxUs),
		"filter":    cfg.Filter.Strategy,
		"broker":    cfg.MQTT.Broker,
		"heartbeat": cfg.MQTT.Heartbeat(),
	}).Info("started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop, publisher, connStatus, tracker, cfg.MQTT.Heartbeat(), time.Now, sigCh, logger)
}

// newPipeline builds the sampler, filter and decoder described by cfg.
func newPipeline(cfg config.Config, c capture.InputCapture) (*pulse.Sampler, filter.Filter, *decode.Decoder, error) {
	f, err := filter.New(cfg.Filter.Strategy, cfg.Filter.AverageSamples, cfg.Filter.ConsensusSamples)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init filter: %w", err)
	}
	d, err := decode.New(cfg.Decoder.RangeMinUs, cfg.Decoder.RangeMaxUs, cfg.Decoder.Configurations)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init decoder: %w", err)
	}
	return pulse.NewSampler(c, cfg.Input.FrequencyHz), f, d, nil
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		InputHz:         cfg.Input.FrequencyHz,
		RangeMinUs:      cfg.Decoder.RangeMinUs,
		RangeMaxUs:      cfg.Decoder.RangeMaxUs,
		Configurations:  cfg.Decoder.Configurations,
		Filter:          cfg.Filter.Strategy,
		BlinkIntervalMs: cfg.Lights.BlinkIntervalMs,
		HeartbeatMs:     cfg.MQTT.HeartbeatMs,
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
	}
}

// runLoop switches FrontBlue on, then steps the control loop until a signal
// arrives. Each step blocks for one input period inside the sampler, so the
// signal is seen within a period.
func runLoop(loop *control.Loop, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, sig <-chan os.Signal, logger log.FieldLogger) error {
	engine := loop.Engine()

	events, err := engine.Start(now())
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	publishEvents(publisher, events, logger)

	refresh := func(c control.Cycle) {
		tracker.Update(c, engine.Channels(), engine.BlinkOn(), loop.Counts())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}
	refresh(loop.Last())

	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  now(),
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warnf("failed to publish startup event: %v", err)
	} else {
		logger.Info("published startup event")
	}

	for {
		select {
		case s := <-sig:
			name := signalName(s)
			logger.Infof("received %v, shutting down", s)

			events, err := engine.Shutdown(now())
			if err != nil {
				logger.Errorf("lights off: %v", err)
			}
			publishEvents(publisher, events, logger)

			refresh(loop.Last())
			event := mqtt.SystemEvent{
				Timestamp:  now(),
				Event:      mqtt.EventShutdown,
				Reason:     name,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), mqtt.EventShutdown, name),
			}
			if err := publisher.PublishSystem(event); err != nil {
				logger.Warnf("failed to publish shutdown event: %v", err)
			} else {
				logger.Info("published shutdown event")
			}
			return nil
		default:
		}

		c, err := loop.Step()
		if err != nil {
			// Failed channels keep their old state and are retried next step.
			logger.Warnf("output write error: %v", err)
		}
		publishEvents(publisher, c.Events, logger)
		refresh(c)

		if hb := loop.CheckHeartbeat(c.Time, heartbeat); hb != nil {
			logger.WithFields(log.Fields{
				"uptime":      hb.Uptime,
				"cycles":      hb.Counts.Cycles,
				"transitions": hb.Counts.Transitions,
				"clamped":     hb.Counts.Clamped,
			}).Info("heartbeat")

			if net := readNetworkInfo(); net != nil {
				tracker.SetNetwork(net)
			}
			hbEvent := mqtt.SystemEvent{
				Timestamp:  hb.Timestamp,
				Event:      mqtt.EventHeartbeat,
				RawPayload: status.FormatStatusEvent(tracker.Snapshot(), mqtt.EventHeartbeat, ""),
			}
			if err := publisher.PublishSystem(hbEvent); err != nil {
				logger.Warnf("heartbeat publish error: %v", err)
			}
		}
	}
}

// publishEvents logs and publishes steady transitions. Blink toggles are
// logged at debug level only.
func publishEvents(publisher mqtt.Publisher, events []lights.Event, logger log.FieldLogger) {
	for _, ev := range events {
		entry := logger.WithFields(log.Fields{
			"channel": ev.Channel,
			"state":   ev.To,
			"level":   ev.Level,
		})
		if ev.Blink {
			entry.Debug("blink")
			continue
		}
		entry.Infof("light: %s -> %s", ev.From, ev.To)
		if err := publisher.Publish(ev); err != nil {
			// Don't crash on publish failure
			logger.Warnf("publish error: %v", err)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
