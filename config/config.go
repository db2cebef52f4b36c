package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig configures runtime telemetry exporters.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"`
}

// SiteConfig locates the ground station used for coordinate transforms.
type SiteConfig struct {
	LongitudeDeg float64 `yaml:"longitude_deg"`
	LatitudeDeg  float64 `yaml:"latitude_deg"`
	ElevationM   float64 `yaml:"elevation_m,omitempty"`
}

// InstrumentConfig carries the fixed instrument constants the pipeline
// depends on. They are injected into the resolver and the frequency
// compressor at construction rather than read from package globals.
type InstrumentConfig struct {
	Site SiteConfig `yaml:"site"`
	// SubbandWidthKHz is the width of one frequency subband.
	SubbandWidthKHz float64 `yaml:"subband_width_khz,omitempty"`
	// RemoteMiniArrayThreshold separates core from remote mini-arrays:
	// indices strictly above the threshold denote remote stations.
	RemoteMiniArrayThreshold int `yaml:"remote_ma_threshold,omitempty"`
}

// DatabaseConfig configures the optional archive database connection.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn,omitempty"`
}

// Config is the root configuration structure for the pipeline.
type Config struct {
	Name       string           `yaml:"name,omitempty"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Instrument InstrumentConfig `yaml:"instrument"`
	Database   DatabaseConfig   `yaml:"database"`
}

// NenuFAR station defaults. A configuration file only needs to override
// these when targeting a different deployment.
const (
	defaultLongitudeDeg    = 2.192400
	defaultLatitudeDeg     = 47.376511
	defaultElevationM      = 150.0
	defaultSubbandWidthKHz = 195.3125
	defaultRemoteThreshold = 96
)

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and decodes the configuration file from disk. An empty path
// yields the default configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", abs, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", abs, err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Instrument.Site == (SiteConfig{}) {
		c.Instrument.Site = SiteConfig{
			LongitudeDeg: defaultLongitudeDeg,
			LatitudeDeg:  defaultLatitudeDeg,
			ElevationM:   defaultElevationM,
		}
	}
	if c.Instrument.SubbandWidthKHz == 0 {
		c.Instrument.SubbandWidthKHz = defaultSubbandWidthKHz
	}
	if c.Instrument.RemoteMiniArrayThreshold == 0 {
		c.Instrument.RemoteMiniArrayThreshold = defaultRemoteThreshold
	}
}

func (c *Config) validate() error {
	if c.Instrument.SubbandWidthKHz < 0 {
		return errors.New("instrument subband width must not be negative")
	}
	site := c.Instrument.Site
	if site.LatitudeDeg < -90 || site.LatitudeDeg > 90 {
		return fmt.Errorf("site latitude %v out of range", site.LatitudeDeg)
	}
	if site.LongitudeDeg < -180 || site.LongitudeDeg > 360 {
		return fmt.Errorf("site longitude %v out of range", site.LongitudeDeg)
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		return errors.New("database enabled but no dsn configured")
	}
	return nil
}
