package app

import (
	"context"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFlightLog(t *testing.T) string {
	t.Helper()

	content := `{"ts": 1000, "telemetry": {"gps_lat": 12.97, "gps_lon": 77.59, "alt_gps": 100}}
{"ts": 1010, "telemetry": {"gps_lat": 12.98, "gps_lon": 77.60, "alt_gps": 250}}
{"ts": 1020, "telemetry": {"gps_lat": 12.99, "gps_lon": 77.61, "alt_gps": 420}}
`
	path := filepath.Join(t.TempDir(), "flight.ndjson")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing flight log: %v", err)
	}
	return path
}

func TestRun_RendersPNG(t *testing.T) {
	output := filepath.Join(t.TempDir(), "chart.png")
	config := &Config{
		InputFile:  writeFlightLog(t),
		OutputFile: output,
		Format:     FormatPNG,
		Title:      "Test Flight",
		MarkerSize: 6,
	}

	if err := Run(context.Background(), config, discardLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatalf("opening output: %v", err)
	}
	defer f.Close()

	if _, err = png.Decode(f); err != nil {
		t.Errorf("output is not a valid PNG: %v", err)
	}
}

func TestRun_RendersHTML(t *testing.T) {
	output := filepath.Join(t.TempDir(), "chart.html")
	config := &Config{
		InputFile:  writeFlightLog(t),
		OutputFile: output,
		Format:     FormatHTML,
		Title:      "Test Flight",
		MarkerSize: 6,
	}

	if err := Run(context.Background(), config, discardLogger()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !strings.Contains(string(data), "Test Flight") {
		t.Error("rendered HTML does not contain the chart title")
	}
}

func TestRun_MissingInput(t *testing.T) {
	config := &Config{
		InputFile:  filepath.Join(t.TempDir(), "nope.ndjson"),
		OutputFile: filepath.Join(t.TempDir(), "chart.png"),
		Format:     FormatPNG,
	}

	if err := Run(context.Background(), config, discardLogger()); err == nil {
		t.Error("expected error for a missing flight log")
	}
}

func TestRun_NoFixRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nofix.ndjson")
	if err := os.WriteFile(path, []byte(`{"ts": 1000, "telemetry": {"alt_bmp": 10}}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	config := &Config{
		InputFile:  path,
		OutputFile: filepath.Join(t.TempDir(), "chart.png"),
		Format:     FormatPNG,
	}

	if err := Run(context.Background(), config, discardLogger()); err == nil {
		t.Error("expected error for a log without GPS fixes")
	}
}
