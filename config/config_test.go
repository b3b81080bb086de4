package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Derived.Dims != 2 {
		t.Errorf("expected 2D default space, got %d", cfg.Derived.Dims)
	}
	if cfg.Derived.Max != [3]float64{100, 100, 0} || cfg.Derived.Wrap != [3]bool{true, true, false} {
		t.Errorf("unexpected bounds %v wrap %v", cfg.Derived.Max, cfg.Derived.Wrap)
	}
	if cfg.Layer("scent") == nil || cfg.Layer("scent").Diffusion.GreenSteps != 4 {
		t.Error("expected scent layer with 4 green steps")
	}
	if cfg.Layer("missing") != nil {
		t.Error("expected nil for unknown layer")
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	data := []byte(`
space:
  min: [0, 0, 0]
  max: [10, 20, 30]
  mode: serial
layers:
  - name: heat
    kind: parallel
agents:
  count: 7
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Space.Mode != "serial" || cfg.Derived.Dims != 3 {
		t.Errorf("expected serial 3D space, got %q %dD", cfg.Space.Mode, cfg.Derived.Dims)
	}
	if len(cfg.Layers) != 1 || cfg.Layers[0].Cells[2] != 64 {
		t.Errorf("expected one layer with default 3D cells, got %+v", cfg.Layers)
	}
	if cfg.Agents.Count != 7 || cfg.Agents.Speed != 0.8 {
		t.Errorf("expected count override and default speed, got %+v", cfg.Agents)
	}
	if cfg.Agents.MaxCount != 1600 {
		t.Errorf("max_count from defaults should be kept, got %d", cfg.Agents.MaxCount)
	}
}

func TestLoadRejectsBadDims(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("space:\n  min: [0]\n  max: [1]\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for 1D space")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	MustInit("")
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Cfg().WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents != Cfg().Agents || len(cfg.Layers) != len(Cfg().Layers) {
		t.Error("written config does not reload to the same values")
	}
}
