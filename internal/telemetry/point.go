package telemetry

// Point is a single trajectory sample derived from a telemetry
// record. T is epoch seconds at the producer side; the trajectory
// buffer converts it to seconds relative to its base time. Clear
// signals consumers to reset their buffers before applying the point.
type Point struct {
	T           float64 `json:"t"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	AltExpected float64 `json:"alt_expected"`
	AltActual   float64 `json:"alt_actual"`
	Clear       bool    `json:"clear,omitempty"`
}
