package output

import (
	"errors"
	"testing"
)

func TestFakeIntensityRecordsWrites(t *testing.T) {
	f := NewFakeIntensity()

	if err := f.SetLevel(17, LevelOn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.SetLevel(22, LevelHigh); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.SetLevel(17, LevelOff); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(f.Writes))
	}
	if got := f.WritesTo(17); len(got) != 2 {
		t.Errorf("expected 2 writes to line 17, got %d", len(got))
	}
	if f.Levels[17] != LevelOff {
		t.Errorf("line 17 level: got %d, want %d", f.Levels[17], LevelOff)
	}
	if f.Levels[22] != LevelHigh {
		t.Errorf("line 22 level: got %d, want %d", f.Levels[22], LevelHigh)
	}
}

func TestFakeIntensityClampsLevel(t *testing.T) {
	f := NewFakeIntensity()
	f.SetLevel(18, 250)
	if f.Levels[18] != MaxLevel {
		t.Errorf("expected level clamped to %d, got %d", MaxLevel, f.Levels[18])
	}
}

func TestFakeIntensityErrors(t *testing.T) {
	f := NewFakeIntensity()
	f.SetLevelError = errors.New("simulated error")
	f.EnableError = errors.New("simulated enable error")

	if err := f.SetLevel(17, LevelOn); err == nil {
		t.Error("expected SetLevel error")
	}
	if len(f.Writes) != 0 {
		t.Errorf("failed write must not be recorded, got %d", len(f.Writes))
	}
	if err := f.Enable(17, true); err == nil {
		t.Error("expected Enable error")
	}
}

func TestFakeIntensityReset(t *testing.T) {
	f := NewFakeIntensity()
	f.Enable(17, true)
	f.SetLevel(17, LevelOn)
	f.Reset()

	if len(f.Writes) != 0 || len(f.Levels) != 0 || len(f.Enabled) != 0 {
		t.Error("expected empty fake after Reset")
	}
}

func TestLevels(t *testing.T) {
	if LevelOff != 0 || LevelOn != 20 || LevelHigh != 100 || MaxLevel != 100 {
		t.Errorf("unexpected levels: off=%d on=%d high=%d max=%d", LevelOff, LevelOn, LevelHigh, MaxLevel)
	}
}
