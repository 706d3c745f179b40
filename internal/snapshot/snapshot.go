// Package snapshot writes point-in-time captures of the mission state
// (latest telemetry, sensor health, trajectory series) as JSON files.
package snapshot

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

const fileTimeFormat = "20060102_150405"

// Capture is the serialized snapshot shape.
type Capture struct {
	TakenAt      time.Time        `json:"takenAt"`
	Telemetry    map[string]any   `json:"telemetry"`
	SensorStatus map[string]bool  `json:"sensorStatus"`
	Trajectory   TrajectorySeries `json:"trajectory"`
}

// TrajectorySeries carries the chart series. Altitude values are
// pointers so NaN samples serialize as null instead of breaking the
// encoder.
type TrajectorySeries struct {
	T        []float64  `json:"t"`
	Expected []*float64 `json:"expected"`
	Actual   []*float64 `json:"actual"`
}

// Store writes snapshot files into a pre-existing directory.
type Store struct {
	dir string
	now func() time.Time
}

// WithClock overrides the wall clock. Intended for tests.
func WithClock(now func() time.Time) func(*Store) {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store rooted at dir. The directory must already exist;
// a missing or non-directory path is a configuration error, not
// something to silently create.
func New(dir string, options ...func(*Store)) (*Store, error) {
	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking snapshot directory: %w", err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid snapshot directory '%s'", dir)
	}

	s := Store{dir: dir, now: time.Now}
	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Save writes one capture and returns the path of the created file.
// File names carry a UTC timestamp; a same-second collision gets a
// numeric suffix instead of overwriting.
func (s *Store) Save(telemetry map[string]any, sensors map[string]bool, t, expected, actual []float64) (string, error) {
	capture := Capture{
		TakenAt:      s.now().UTC(),
		Telemetry:    telemetry,
		SensorStatus: sensors,
		Trajectory: TrajectorySeries{
			T:        t,
			Expected: nullableSeries(expected),
			Actual:   nullableSeries(actual),
		},
	}
	if capture.Telemetry == nil {
		capture.Telemetry = map[string]any{}
	}
	if capture.SensorStatus == nil {
		capture.SensorStatus = map[string]bool{}
	}

	data, err := json.MarshalIndent(capture, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}

	path, err := s.nextPath(capture.TakenAt)
	if err != nil {
		return "", err
	}

	if err = os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}

	return path, nil
}

func (s *Store) nextPath(takenAt time.Time) (string, error) {
	stamp := takenAt.Format(fileTimeFormat)

	path := filepath.Join(s.dir, fmt.Sprintf("balloonsat_%s.json", stamp))
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("checking snapshot path: %w", err)
		}
		if i > 100 {
			return "", fmt.Errorf("too many snapshot collisions for %s", stamp)
		}
		path = filepath.Join(s.dir, fmt.Sprintf("balloonsat_%s_%d.json", stamp, i))
	}
}

// nullableSeries converts a float series to pointers, mapping NaN to
// nil for JSON.
func nullableSeries(vs []float64) []*float64 {
	out := make([]*float64, len(vs))
	for i, v := range vs {
		if math.IsNaN(v) {
			continue
		}
		value := v
		out[i] = &value
	}
	return out
}
