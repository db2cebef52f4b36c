package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultInstrumentConstants(t *testing.T) {
	cfg := Default()
	if cfg.Instrument.SubbandWidthKHz != 195.3125 {
		t.Fatalf("unexpected subband width %v", cfg.Instrument.SubbandWidthKHz)
	}
	if cfg.Instrument.RemoteMiniArrayThreshold != 96 {
		t.Fatalf("unexpected remote threshold %d", cfg.Instrument.RemoteMiniArrayThreshold)
	}
	if cfg.Instrument.Site.LatitudeDeg == 0 {
		t.Fatalf("expected a default site latitude")
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Instrument.SubbandWidthKHz != 195.3125 {
		t.Fatalf("expected default subband width, got %v", cfg.Instrument.SubbandWidthKHz)
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	raw := []byte(`
name: test-pipeline
logging:
  level: debug
  format: text
instrument:
  site:
    longitude_deg: 10.0
    latitude_deg: 50.0
  remote_ma_threshold: 80
`)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %q", cfg.Logging.Level)
	}
	if cfg.Instrument.Site.LatitudeDeg != 50.0 {
		t.Fatalf("expected overridden latitude, got %v", cfg.Instrument.Site.LatitudeDeg)
	}
	// Unset values keep their defaults.
	if cfg.Instrument.SubbandWidthKHz != 195.3125 {
		t.Fatalf("expected default subband width, got %v", cfg.Instrument.SubbandWidthKHz)
	}
	if cfg.Instrument.RemoteMiniArrayThreshold != 80 {
		t.Fatalf("expected overridden threshold, got %d", cfg.Instrument.RemoteMiniArrayThreshold)
	}
}

func TestLoadRejectsInvalidSite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	raw := []byte("instrument:\n  site:\n    latitude_deg: 120.0\n    longitude_deg: 1.0\n")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for latitude out of range")
	}
}
