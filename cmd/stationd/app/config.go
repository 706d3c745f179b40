package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration
type Config struct {
	Settings  Settings        `yaml:"settings"`
	Replay    ReplayConfig    `yaml:"replay"`
	Chart     ChartConfig     `yaml:"chart"`
	Server    ServerConfig    `yaml:"server"`
	Health    HealthConfig    `yaml:"health"`
	Snapshots SnapshotsConfig `yaml:"snapshots"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// Level maps the configured log level name onto slog.Level,
// defaulting to info for unknown values.
func (s Settings) Level() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ReplayConfig represents the flight log replay settings
type ReplayConfig struct {
	Source          string  `yaml:"source"`
	Realtime        bool    `yaml:"realtime"`
	Speed           float64 `yaml:"speed"`
	DefaultInterval float64 `yaml:"defaultInterval"` // seconds
	Loop            bool    `yaml:"loop"`
	Autostart       bool    `yaml:"autostart"`
}

// Interval converts the configured default inter-record interval.
func (c ReplayConfig) Interval() time.Duration {
	return time.Duration(c.DefaultInterval * float64(time.Second))
}

// ChartConfig represents the trajectory chart settings
type ChartConfig struct {
	Title       string `yaml:"title"`
	UpdateEvery int    `yaml:"updateEvery"`
	MaxPoints   int    `yaml:"maxPoints"`
	ShowMarkers *bool  `yaml:"showMarkers"`
	MarkerSize  int    `yaml:"markerSize"`
}

// ServerConfig represents the HTTP/WebSocket server settings
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// HealthConfig represents the ground computer health monitor settings
type HealthConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Interval float64 `yaml:"interval"` // seconds
}

// SnapshotsConfig represents the snapshot storage settings
type SnapshotsConfig struct {
	Directory string `yaml:"directory"`
}

// LoadConfig reads and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err = yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Replay.Source == "" {
		return nil, fmt.Errorf("replay.source is required")
	}
	if config.Replay.Speed < 0 {
		return nil, fmt.Errorf("replay.speed must be positive, got %f", config.Replay.Speed)
	}
	if config.Server.Enabled && config.Server.Listen == "" {
		config.Server.Listen = ":8080"
	}

	return &config, nil
}
