package telemetry

import (
	"encoding/json"
	"strconv"
)

// Record is one parsed unit of a telemetry stream. The loose JSON
// shape of the wire format (ts/timestamp, telemetry/data aliases,
// free-form value types) is resolved here, once, at the parse
// boundary; downstream consumers only ever see this structure.
type Record struct {
	// Epoch is the record timestamp in epoch seconds, nil when the
	// source carried no parseable timestamp.
	Epoch *float64

	// Telemetry maps sensor field keys to raw values.
	Telemetry map[string]any

	// Sensors maps sensor ids to health flags, nil when the record
	// carried no sensor block.
	Sensors map[string]bool
}

// rawRecord mirrors the wire format before resolution.
type rawRecord struct {
	TS        any            `json:"ts"`
	Timestamp any            `json:"timestamp"`
	Telemetry map[string]any `json:"telemetry"`
	Data      map[string]any `json:"data"`
	Sensors   map[string]any `json:"sensors"`
}

// UnmarshalRecord parses a single JSON object into a Record.
func UnmarshalRecord(data []byte) (Record, error) {
	var raw rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return Record{}, err
	}
	return raw.resolve(), nil
}

func (r rawRecord) resolve() Record {
	var rec Record

	ts := r.TS
	if ts == nil {
		ts = r.Timestamp
	}
	if epoch, ok := ParseEpoch(ts); ok {
		rec.Epoch = &epoch
	}

	rec.Telemetry = r.Telemetry
	if rec.Telemetry == nil {
		rec.Telemetry = r.Data
	}
	if rec.Telemetry == nil {
		rec.Telemetry = map[string]any{}
	}

	// Keep boolean health flags only; anything else in the sensors
	// block is noise from the recording side.
	if len(r.Sensors) > 0 {
		sensors := make(map[string]bool, len(r.Sensors))
		for id, v := range r.Sensors {
			if b, ok := v.(bool); ok {
				sensors[id] = b
			}
		}
		if len(sensors) > 0 {
			rec.Sensors = sensors
		}
	}

	return rec
}

// Lat returns the GPS latitude when present and numeric.
func (r Record) Lat() (float64, bool) {
	return Coerce(r.Telemetry["gps_lat"])
}

// Lon returns the GPS longitude when present and numeric.
func (r Record) Lon() (float64, bool) {
	return Coerce(r.Telemetry["gps_lon"])
}

// Altitude returns the best available altitude reading, preferring
// GPS over barometric, defaulting to 0 when neither is present.
func (r Record) Altitude() float64 {
	if alt, ok := Coerce(r.Telemetry["alt_gps"]); ok {
		return alt
	}
	if alt, ok := Coerce(r.Telemetry["alt_bmp"]); ok {
		return alt
	}
	return 0.0
}

// Coerce coerces the value types the wire format produces for
// numeric fields. Recorders occasionally quote numbers, so numeric
// strings are accepted too.
func Coerce(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
