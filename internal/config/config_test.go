package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Model != "double_integrator" {
		t.Errorf("expected model double_integrator, got %s", cfg.Model)
	}
	if cfg.Dt <= 0 {
		t.Error("dt should be positive")
	}
	if cfg.N < 2 {
		t.Error("horizon should be at least 2")
	}
	if len(cfg.X0) != len(cfg.Xf) {
		t.Error("x0 and xf should have matching dimensions")
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("cartpole", "stabilize")
	if cfg == nil {
		t.Fatal("expected preset, got nil")
	}
	if cfg.N != 101 {
		t.Errorf("expected horizon 101, got %d", cfg.N)
	}
	if len(cfg.ControlUpper) != 1 || cfg.ControlUpper[0] != 5 {
		t.Error("cartpole preset should bound the control at 5")
	}
}

func TestGetPreset_NotFound(t *testing.T) {
	if cfg := GetPreset("cartpole", "nonexistent"); cfg != nil {
		t.Error("expected nil for nonexistent preset")
	}
	if cfg := GetPreset("nonexistent", "stabilize"); cfg != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestListPresets(t *testing.T) {
	presets := ListPresets("double_integrator")
	if len(presets) == 0 {
		t.Error("expected presets for double_integrator")
	}
	if presets := ListPresets("nonexistent"); presets != nil {
		t.Error("expected nil for nonexistent model")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")

	cfg := GetPreset("cartpole", "stabilize")
	cfg.Solver.Iterations = 42
	cfg.Solver.SquareRoot = true

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Model != "cartpole" || loaded.N != 101 {
		t.Error("round trip lost basic fields")
	}
	if loaded.Solver.Iterations != 42 || !loaded.Solver.SquareRoot {
		t.Error("round trip lost solver options")
	}
	if len(loaded.ControlUpper) != 1 || loaded.ControlUpper[0] != 5 {
		t.Error("round trip lost bound vectors")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
