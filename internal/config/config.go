// Package config loads service configuration from defaults, an optional file
// and OVERLAY_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/overlay"
	"github.com/GriffinCanCode/dialogue-overlay/internal/provider"
	"github.com/GriffinCanCode/dialogue-overlay/internal/resilience"
)

// EnvPrefix prefixes every environment override, e.g. OVERLAY_HTTP_ADDR.
const EnvPrefix = "OVERLAY"

type Config struct {
	HTTPAddr    string `mapstructure:"http_addr"`
	LogLevel    string `mapstructure:"log_level"`
	CacheDir    string `mapstructure:"cache_dir"`
	ScriptPath  string `mapstructure:"script_path"`
	DatabaseURL string `mapstructure:"database_url"`
	ScriptName  string `mapstructure:"script_name"`
	Language    string `mapstructure:"language"`

	Capture     CaptureConfig    `mapstructure:"capture"`
	Pipeline    PipelineConfig   `mapstructure:"pipeline"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Overlay     OverlayConfig    `mapstructure:"overlay"`
	Recognition provider.Config  `mapstructure:"recognition"`
	Translation provider.Config  `mapstructure:"translation"`
	Resilience  ResilienceConfig `mapstructure:"resilience"`
	Cue         CueConfig        `mapstructure:"cue"`
	Server      ServerConfig     `mapstructure:"server"`
}

type CaptureConfig struct {
	Source   string        `mapstructure:"source"` // "push" or "screen"
	Interval time.Duration `mapstructure:"interval"`
	TitleBar int           `mapstructure:"title_bar"`
}

// PipelineConfig tunes frame processing. Translate requests translations in
// every render mode; sessions in translate mode request them regardless.
type PipelineConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	HashThreshold   int           `mapstructure:"hash_threshold"`
	HashSize        int           `mapstructure:"hash_size"`
	Translate       bool          `mapstructure:"translate"`
	TargetLanguage  string        `mapstructure:"target_language"`
	ExcludeKeywords []string      `mapstructure:"exclude_keywords"`
	Noise           []string      `mapstructure:"noise"`
}

type CacheConfig struct {
	BatchSize  int           `mapstructure:"batch_size"`
	FlushDelay time.Duration `mapstructure:"flush_delay"`
}

type OverlayConfig struct {
	Mode         string `mapstructure:"mode"`
	FontPath     string `mapstructure:"font_path"`
	FontSize     int    `mapstructure:"font_size"`
	Margin       int    `mapstructure:"margin"`
	HeightBudget int    `mapstructure:"height_budget"`
	JPEGQuality  int    `mapstructure:"jpeg_quality"`
}

type ResilienceConfig struct {
	Breaker resilience.Config      `mapstructure:"breaker"`
	Retry   resilience.RetryConfig `mapstructure:"retry"`
}

type CueConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Dir        string        `mapstructure:"dir"`
	Cooldown   time.Duration `mapstructure:"cooldown"`
	SampleRate int           `mapstructure:"sample_rate"`
}

type ServerConfig struct {
	MaxSessions     int           `mapstructure:"max_sessions"`
	PushRateLimit   int           `mapstructure:"push_rate_limit"`
	PushRateWindow  time.Duration `mapstructure:"push_rate_window"`
	MaxFrameBytes   int64         `mapstructure:"max_frame_bytes"`
	MaxFramePixels  int           `mapstructure:"max_frame_pixels"`
	StreamInterval  time.Duration `mapstructure:"stream_interval"`
	HistorySize     int           `mapstructure:"history_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("log_level", "info")
	v.SetDefault("cache_dir", "cache")
	v.SetDefault("script_path", "")
	v.SetDefault("database_url", "")
	v.SetDefault("script_name", "default")
	v.SetDefault("language", "en")

	v.SetDefault("capture.source", "push")
	v.SetDefault("capture.interval", 100*time.Millisecond)
	v.SetDefault("capture.title_bar", 0)

	v.SetDefault("pipeline.interval", 50*time.Millisecond)
	v.SetDefault("pipeline.hash_threshold", 7)
	v.SetDefault("pipeline.hash_size", 16)
	v.SetDefault("pipeline.translate", false)
	v.SetDefault("pipeline.target_language", "en")
	v.SetDefault("pipeline.exclude_keywords", provider.DefaultExcludeKeywords)
	v.SetDefault("pipeline.noise", []string{"Contentless Cores Explore"})

	v.SetDefault("cache.batch_size", 16)
	v.SetDefault("cache.flush_delay", 500*time.Millisecond)

	v.SetDefault("overlay.mode", "translate")
	v.SetDefault("overlay.font_path", "")
	v.SetDefault("overlay.font_size", 35)
	v.SetDefault("overlay.margin", 20)
	v.SetDefault("overlay.height_budget", 500)
	v.SetDefault("overlay.jpeg_quality", 80)

	v.SetDefault("recognition.kind", "stub")
	v.SetDefault("recognition.settings.api_key", "")
	v.SetDefault("translation.kind", "stub")
	v.SetDefault("translation.settings.api_key", "")

	v.SetDefault("resilience.breaker.threshold", resilience.DefaultThreshold)
	v.SetDefault("resilience.breaker.reset_timeout", resilience.DefaultResetTimeout)
	v.SetDefault("resilience.breaker.half_open_successes", resilience.DefaultHalfOpenSuccesses)
	v.SetDefault("resilience.retry.max_retries", resilience.DefaultMaxRetries)
	v.SetDefault("resilience.retry.base_delay", resilience.DefaultBaseDelay)
	v.SetDefault("resilience.retry.max_delay", resilience.DefaultMaxDelay)
	v.SetDefault("resilience.retry.jitter", resilience.DefaultJitterFactor)

	v.SetDefault("cue.enabled", false)
	v.SetDefault("cue.dir", "")
	v.SetDefault("cue.cooldown", 2*time.Second)
	v.SetDefault("cue.sample_rate", 22050)

	v.SetDefault("server.max_sessions", 16)
	v.SetDefault("server.push_rate_limit", 30)
	v.SetDefault("server.push_rate_window", time.Second)
	v.SetDefault("server.max_frame_bytes", 8<<20)
	v.SetDefault("server.max_frame_pixels", 4096*4096)
	v.SetDefault("server.stream_interval", 100*time.Millisecond)
	v.SetDefault("server.history_size", 100)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfigInvalid, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	var problems []string
	if c.HTTPAddr == "" {
		problems = append(problems, "http_addr is empty")
	}
	switch c.Capture.Source {
	case "push", "screen":
	default:
		problems = append(problems, fmt.Sprintf("capture.source %q is not push or screen", c.Capture.Source))
	}
	if c.Pipeline.HashThreshold < 1 {
		problems = append(problems, "pipeline.hash_threshold must be at least 1")
	}
	if c.Pipeline.HashSize <= 0 || c.Pipeline.HashSize%8 != 0 {
		problems = append(problems, "pipeline.hash_size must be a positive multiple of 8")
	}
	if _, err := overlay.ParseMode(c.Overlay.Mode); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Server.MaxFramePixels < 0 {
		problems = append(problems, "server.max_frame_pixels is negative")
	}
	if c.Overlay.JPEGQuality < 1 || c.Overlay.JPEGQuality > 100 {
		problems = append(problems, "overlay.jpeg_quality must be in [1, 100]")
	}
	if len(problems) > 0 {
		return apperrors.New(apperrors.CodeConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// OverlayMode returns the configured default overlay mode.
func (c *Config) OverlayMode() overlay.Mode {
	m, _ := overlay.ParseMode(c.Overlay.Mode)
	return m
}
