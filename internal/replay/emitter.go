package replay

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/roman-kulish/balloon-telemetry/internal/bus"
	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
)

// WithEmitterLogger sets the emitter logger.
func WithEmitterLogger(logger *slog.Logger) func(*BusEmitter) {
	return func(e *BusEmitter) {
		e.logger = logger
	}
}

// WithClock overrides the wall clock used when a record carries no
// parseable timestamp. Intended for tests.
func WithClock(now func() time.Time) func(*BusEmitter) {
	return func(e *BusEmitter) {
		e.now = now
	}
}

// BusEmitter fans one record out over the event bus as up to three
// independent broadcasts: the telemetry map, the sensor health map
// (only when present) and a derived trajectory point (only when the
// record resolves to a GPS fix). Each broadcast is best-effort; a
// consumer failure in one never blocks the others.
type BusEmitter struct {
	bus    *bus.Bus
	logger *slog.Logger
	now    func() time.Time
}

// NewEmitter creates a BusEmitter publishing to b.
func NewEmitter(b *bus.Bus, options ...func(*BusEmitter)) *BusEmitter {
	e := BusEmitter{
		bus:    b,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}

	for _, option := range options {
		option(&e)
	}

	return &e
}

// Emit broadcasts one record.
func (e *BusEmitter) Emit(rec telemetry.Record) {
	lat, latOK := rec.Lat()
	lon, lonOK := rec.Lon()
	hasFix := latOK && lonOK

	data := maps.Clone(rec.Telemetry)
	if data == nil {
		data = map[string]any{}
	}
	if hasFix {
		// The display tables expect the pair as one formatted field.
		data["gps_latlon"] = fmt.Sprintf("%.6f, %.6f", lat, lon)
	}
	e.bus.PublishTelemetry(data)

	if rec.Sensors != nil {
		e.bus.PublishSensorStatus(maps.Clone(rec.Sensors))
	}

	if hasFix {
		fallback := float64(e.now().UnixNano()) / float64(time.Second)
		if p, ok := PointFromRecord(rec, fallback); ok {
			e.bus.PublishTrajectory(p)
		}
	}
}

// PointFromRecord derives the trajectory sample for a record. It
// reports false when the record has no GPS fix. Time falls back to
// fallbackT when the record carries no parseable timestamp; altitude
// falls back from GPS to barometric to zero; the expected altitude
// comes from the flight plan field when the payload sends one,
// otherwise it mirrors the actual value.
func PointFromRecord(rec telemetry.Record, fallbackT float64) (telemetry.Point, bool) {
	lat, latOK := rec.Lat()
	lon, lonOK := rec.Lon()
	if !latOK || !lonOK {
		return telemetry.Point{}, false
	}

	t := fallbackT
	if rec.Epoch != nil {
		t = *rec.Epoch
	}

	alt := rec.Altitude()
	expected := alt
	if v, ok := telemetry.Coerce(rec.Telemetry["alt_expected"]); ok {
		expected = v
	}

	return telemetry.Point{
		T:           t,
		Lat:         lat,
		Lon:         lon,
		AltExpected: expected,
		AltActual:   alt,
	}, true
}
