package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8000" {
		t.Errorf("HTTPAddr = %q, want :8000", cfg.HTTPAddr)
	}
	if cfg.Pipeline.HashThreshold != 7 || cfg.Pipeline.HashSize != 16 {
		t.Errorf("hash settings = %d/%d, want 7/16", cfg.Pipeline.HashThreshold, cfg.Pipeline.HashSize)
	}
	if cfg.Capture.Interval != 100*time.Millisecond {
		t.Errorf("Capture.Interval = %v", cfg.Capture.Interval)
	}
	if cfg.Overlay.FontSize != 35 || cfg.Overlay.Margin != 20 || cfg.Overlay.HeightBudget != 500 {
		t.Errorf("overlay = %+v", cfg.Overlay)
	}
	if len(cfg.Pipeline.ExcludeKeywords) != 2 {
		t.Errorf("ExcludeKeywords = %v", cfg.Pipeline.ExcludeKeywords)
	}
	if cfg.Recognition.Kind != "stub" || cfg.Translation.Kind != "stub" {
		t.Errorf("provider kinds = %q/%q", cfg.Recognition.Kind, cfg.Translation.Kind)
	}
	if cfg.OverlayMode() != overlay.Translate {
		t.Errorf("OverlayMode = %v", cfg.OverlayMode())
	}
	if cfg.Server.MaxFramePixels != 4096*4096 {
		t.Errorf("MaxFramePixels = %d", cfg.Server.MaxFramePixels)
	}
	if cfg.Resilience.Retry.MaxRetries != 2 || cfg.Resilience.Breaker.Threshold != 5 {
		t.Errorf("resilience = %+v", cfg.Resilience)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("OVERLAY_HTTP_ADDR", ":9000")
	t.Setenv("OVERLAY_LANGUAGE", "jp")
	t.Setenv("OVERLAY_PIPELINE_HASH_THRESHOLD", "5")
	t.Setenv("OVERLAY_CAPTURE_INTERVAL", "250ms")
	t.Setenv("OVERLAY_PIPELINE_TRANSLATE", "true")
	t.Setenv("OVERLAY_TRANSLATION_SETTINGS_API_KEY", "secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" || cfg.Language != "jp" {
		t.Errorf("HTTPAddr/Language = %q/%q", cfg.HTTPAddr, cfg.Language)
	}
	if cfg.Pipeline.HashThreshold != 5 || !cfg.Pipeline.Translate {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Capture.Interval != 250*time.Millisecond {
		t.Errorf("Capture.Interval = %v", cfg.Capture.Interval)
	}
	if cfg.Translation.Settings["api_key"] != "secret" {
		t.Errorf("translation settings = %v", cfg.Translation.Settings)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	data := `
language: en
overlay:
  mode: debug
recognition:
  kind: remote
  settings:
    addr: localhost:50051
cue:
  enabled: true
  cooldown: 3s
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OverlayMode() != overlay.Debug {
		t.Errorf("mode = %v", cfg.OverlayMode())
	}
	if cfg.Recognition.Kind != "remote" || cfg.Recognition.Settings["addr"] != "localhost:50051" {
		t.Errorf("recognition = %+v", cfg.Recognition)
	}
	if !cfg.Cue.Enabled || cfg.Cue.Cooldown != 3*time.Second {
		t.Errorf("cue = %+v", cfg.Cue)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("err = %v, want CONFIG_INVALID", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad source", func(c *Config) { c.Capture.Source = "camera" }},
		{"bad hash size", func(c *Config) { c.Pipeline.HashSize = 10 }},
		{"zero hash threshold", func(c *Config) { c.Pipeline.HashThreshold = 0 }},
		{"negative pixel cap", func(c *Config) { c.Server.MaxFramePixels = -1 }},
		{"bad mode", func(c *Config) { c.Overlay.Mode = "sparkle" }},
		{"bad quality", func(c *Config) { c.Overlay.JPEGQuality = 0 }},
		{"empty addr", func(c *Config) { c.HTTPAddr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
				t.Errorf("Validate = %v, want CONFIG_INVALID", err)
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	c := &Config{LogLevel: "debug"}
	if c.SlogLevel().String() != "DEBUG" {
		t.Errorf("SlogLevel = %v", c.SlogLevel())
	}
	c.LogLevel = "loud"
	if c.SlogLevel().String() != "INFO" {
		t.Errorf("unknown level should fall back to info, got %v", c.SlogLevel())
	}
}
