package replay

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/roman-kulish/balloon-telemetry/internal/bus"
	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
)

type busCapture struct {
	telemetry  []map[string]any
	sensors    []map[string]bool
	trajectory []telemetry.Point
}

func newBusCapture(b *bus.Bus) *busCapture {
	c := busCapture{}
	b.SubscribeTelemetry(func(data map[string]any) { c.telemetry = append(c.telemetry, data) })
	b.SubscribeSensorStatus(func(status map[string]bool) { c.sensors = append(c.sensors, status) })
	b.SubscribeTrajectory(func(p telemetry.Point) { c.trajectory = append(c.trajectory, p) })
	return &c
}

func TestEmitter_FormatsGPSPair(t *testing.T) {
	b := bus.New()
	capture := newBusCapture(b)
	e := NewEmitter(b)

	epoch := 1700000000.0
	e.Emit(telemetry.Record{
		Epoch: &epoch,
		Telemetry: map[string]any{
			"gps_lat": 12.971598,
			"gps_lon": 77.594566,
			"alt_gps": 512.5,
		},
	})

	if len(capture.telemetry) != 1 {
		t.Fatalf("telemetry broadcasts = %d, want 1", len(capture.telemetry))
	}
	if got := capture.telemetry[0]["gps_latlon"]; got != "12.971598, 77.594566" {
		t.Errorf("gps_latlon = %q, want %q", got, "12.971598, 77.594566")
	}

	want := telemetry.Point{T: epoch, Lat: 12.971598, Lon: 77.594566, AltExpected: 512.5, AltActual: 512.5}
	if len(capture.trajectory) != 1 {
		t.Fatalf("trajectory broadcasts = %d, want 1", len(capture.trajectory))
	}
	if diff := cmp.Diff(want, capture.trajectory[0]); diff != "" {
		t.Errorf("trajectory point mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitter_SensorBroadcastOnlyWhenPresent(t *testing.T) {
	b := bus.New()
	capture := newBusCapture(b)
	e := NewEmitter(b)

	e.Emit(telemetry.Record{Telemetry: map[string]any{"alt_bmp": 10.0}})
	if len(capture.sensors) != 0 {
		t.Fatalf("sensor broadcasts = %d, want 0", len(capture.sensors))
	}

	e.Emit(telemetry.Record{
		Telemetry: map[string]any{"alt_bmp": 10.0},
		Sensors:   map[string]bool{"bmp": true, "gps": false},
	})
	if len(capture.sensors) != 1 {
		t.Fatalf("sensor broadcasts = %d, want 1", len(capture.sensors))
	}
	if diff := cmp.Diff(map[string]bool{"bmp": true, "gps": false}, capture.sensors[0]); diff != "" {
		t.Errorf("sensor status mismatch (-want +got):\n%s", diff)
	}
}

func TestEmitter_NoTrajectoryWithoutFix(t *testing.T) {
	b := bus.New()
	capture := newBusCapture(b)
	e := NewEmitter(b)

	// Latitude alone is not a fix.
	e.Emit(telemetry.Record{Telemetry: map[string]any{"gps_lat": 12.97, "alt_bmp": 100.0}})

	if len(capture.trajectory) != 0 {
		t.Errorf("trajectory broadcasts = %d, want 0", len(capture.trajectory))
	}
	if _, ok := capture.telemetry[0]["gps_latlon"]; ok {
		t.Error("gps_latlon must not be synthesized without a full fix")
	}
}

func TestEmitter_ClockFallbackAndZeroAltitude(t *testing.T) {
	b := bus.New()
	capture := newBusCapture(b)

	fixed := time.Unix(1700000123, 0)
	e := NewEmitter(b, WithClock(func() time.Time { return fixed }))

	// No timestamp and no altitude field at all: time comes from the
	// injected clock, altitude defaults to zero.
	e.Emit(telemetry.Record{Telemetry: map[string]any{"gps_lat": 12.97, "gps_lon": 77.59}})

	if len(capture.trajectory) != 1 {
		t.Fatalf("trajectory broadcasts = %d, want 1", len(capture.trajectory))
	}
	p := capture.trajectory[0]
	if p.T != 1700000123.0 {
		t.Errorf("point T = %f, want 1700000123", p.T)
	}
	if p.AltActual != 0.0 || p.AltExpected != 0.0 {
		t.Errorf("altitudes = (%f, %f), want (0, 0)", p.AltExpected, p.AltActual)
	}
}

func TestEmitter_ExpectedAltitudeOverride(t *testing.T) {
	b := bus.New()
	capture := newBusCapture(b)
	e := NewEmitter(b)

	e.Emit(telemetry.Record{Telemetry: map[string]any{
		"gps_lat":      12.97,
		"gps_lon":      77.59,
		"alt_gps":      480.0,
		"alt_expected": 500.0,
	}})

	p := capture.trajectory[0]
	if p.AltExpected != 500.0 {
		t.Errorf("AltExpected = %f, want 500", p.AltExpected)
	}
	if p.AltActual != 480.0 {
		t.Errorf("AltActual = %f, want 480", p.AltActual)
	}
}

func TestEmitter_DoesNotMutateRecord(t *testing.T) {
	b := bus.New()
	e := NewEmitter(b)

	rec := telemetry.Record{Telemetry: map[string]any{"gps_lat": 12.97, "gps_lon": 77.59}}
	e.Emit(rec)

	if _, ok := rec.Telemetry["gps_latlon"]; ok {
		t.Error("Emit must publish a copy, not write into the source record")
	}
}
