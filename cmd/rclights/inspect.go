package main

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/sweeney/rclights/internal/capture"
	"github.com/sweeney/rclights/internal/config"
	"github.com/sweeney/rclights/internal/control"
	"github.com/sweeney/rclights/internal/decode"
	"github.com/sweeney/rclights/internal/filter"
	"github.com/sweeney/rclights/internal/pulse"
)

func printHardwareState(w io.Writer, cfg config.Config, samples int) error {
	capt, err := capture.NewRealCapture(cfg.Input.Chip, cfg.Input.Line)
	if err != nil {
		return fmt.Errorf("init capture: %w", err)
	}
	defer capt.Close()

	if err := capture.Verify(capt, cfg.Input.Identity()); err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	sampler, f, d, err := newPipeline(cfg, capt)
	if err != nil {
		return err
	}
	return printState(w, sampler, f, d, samples)
}

// printState samples n periods, printing each raw and filtered width, and
// finishes with the decoded configuration of the last stable width.
func printState(w io.Writer, s control.Sampler, f filter.Filter, d *decode.Decoder, n int) error {
	if n < 1 {
		return fmt.Errorf("samples must be positive, got %d", n)
	}
	var stable pulse.Width
	for i := 0; i < n; i++ {
		raw := s.Measure()
		stable = f.Filter(raw)
		fmt.Fprintf(w, "sample %d: raw=%.0fus stable=%.0fus\n", i+1, float64(raw), float64(stable))
	}
	writeResult(w, d.Result(stable))
	return nil
}

func printDecode(w io.Writer, cfg config.Config, args []string) error {
	d, err := decode.New(cfg.Decoder.RangeMinUs, cfg.Decoder.RangeMaxUs, cfg.Decoder.Configurations)
	if err != nil {
		return fmt.Errorf("init decoder: %w", err)
	}
	for _, arg := range args {
		us, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fmt.Errorf("parse width %q: %w", arg, err)
		}
		if math.IsInf(us, 0) || math.IsNaN(us) {
			return fmt.Errorf("parse width %q: not a finite number", arg)
		}
		writeResult(w, d.Result(pulse.Width(us)))
	}
	return nil
}

func writeResult(w io.Writer, r decode.Result) {
	clamped := ""
	if r.Clamped {
		clamped = fmt.Sprintf(" (clamped from %d)", r.RawID)
	}
	f := r.Fields
	fmt.Fprintf(w, "width=%.0fus id=%d%s config=%s brake=%t reverse=%t blink=%s high_beam=%t day_night=%t\n",
		float64(r.Width), r.ID, clamped, r.Config, f.Brake, f.Reverse, f.Blink, f.HighBeam, f.DayNight)
}
