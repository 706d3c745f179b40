package app

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: debug
replay:
  source: flight.ndjson
  realtime: true
  speed: 2.5
  defaultInterval: 0.25
  loop: true
  autostart: true
chart:
  updateEvery: 10
  maxPoints: 5000
server:
  enabled: true
health:
  enabled: true
  interval: 5
snapshots:
  directory: /var/lib/balloonsat
`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.Settings.Level() != slog.LevelDebug {
		t.Errorf("log level = %v, want debug", config.Settings.Level())
	}
	if config.Replay.Source != "flight.ndjson" || config.Replay.Speed != 2.5 {
		t.Errorf("replay = %+v", config.Replay)
	}
	if got := config.Replay.Interval(); got != 250*time.Millisecond {
		t.Errorf("interval = %v, want 250ms", got)
	}
	if !config.Replay.Loop || !config.Replay.Autostart {
		t.Errorf("replay flags = %+v", config.Replay)
	}
	if config.Server.Listen != ":8080" {
		t.Errorf("listen = %q, want default :8080", config.Server.Listen)
	}
	if config.Chart.UpdateEvery != 10 || config.Chart.MaxPoints != 5000 {
		t.Errorf("chart = %+v", config.Chart)
	}
}

func TestLoadConfig_MissingSource(t *testing.T) {
	path := writeConfig(t, `
settings:
  logLevel: info
`)

	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for missing replay.source")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing configuration file")
	}
}

func TestSettings_LevelDefaults(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := (Settings{LogLevel: tt.name}).Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestChartProfile_Overrides(t *testing.T) {
	markers := false
	profile := chartProfile(ChartConfig{UpdateEvery: 3, MaxPoints: 100, ShowMarkers: &markers})

	if profile.UpdateEvery != 3 || profile.MaxPoints != 100 || profile.ShowMarkers {
		t.Errorf("profile = %+v", profile)
	}
}
