// Package trajectory maintains the rolling altitude-vs-time series
// behind the ground-station chart: bounded parallel buffers with a
// base-time anchor and batched repaint notification.
package trajectory

import (
	"math"
	"os"
	"sync"

	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
)

// EmbeddedEnv selects the constrained profile when set to "1":
// smaller rolling window, coarser repaint batching, markers off.
const EmbeddedEnv = "BALLOONSAT_EMBEDDED"

// Profile carries the chart-facing buffer tuning.
type Profile struct {
	// UpdateEvery is the number of appended points per repaint
	// notification.
	UpdateEvery int

	// MaxPoints bounds the rolling window; oldest samples are
	// evicted first.
	MaxPoints int

	// ShowMarkers and MarkerSize are display hints consumed by the
	// renderers; the buffer only carries them.
	ShowMarkers bool
	MarkerSize  int
}

// DefaultProfile returns the buffer tuning for the current target,
// driven by the BALLOONSAT_EMBEDDED environment variable.
func DefaultProfile() Profile {
	if os.Getenv(EmbeddedEnv) == "1" {
		return Profile{UpdateEvery: 10, MaxPoints: 2000, ShowMarkers: false, MarkerSize: 4}
	}
	return Profile{UpdateEvery: 5, MaxPoints: 10000, ShowMarkers: true, MarkerSize: 6}
}

// FlushFunc receives copies of the buffered series on each batched
// repaint notification.
type FlushFunc func(t, expected, actual []float64)

// WithProfile overrides the default buffer tuning.
func WithProfile(profile Profile) func(*Buffer) {
	return func(b *Buffer) {
		if profile.UpdateEvery > 0 {
			b.updateEvery = profile.UpdateEvery
		}
		if profile.MaxPoints > 0 {
			b.maxPoints = profile.MaxPoints
		}
		b.profile = profile
	}
}

// Buffer is the chart data backing store: three parallel, equally
// sized series (relative time, expected altitude, actual altitude)
// with FIFO eviction at capacity. Safe for concurrent use.
type Buffer struct {
	onFlush FlushFunc

	mu          sync.Mutex
	t           []float64
	expected    []float64
	actual      []float64
	baseTime    *float64
	pending     int
	updateEvery int
	maxPoints   int
	profile     Profile
}

// New creates a Buffer. onFlush may be nil when no repaint
// notification is needed (offline rendering).
func New(onFlush FlushFunc, options ...func(*Buffer)) *Buffer {
	profile := DefaultProfile()
	b := Buffer{
		onFlush:     onFlush,
		updateEvery: profile.UpdateEvery,
		maxPoints:   profile.MaxPoints,
		profile:     profile,
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// Profile returns the display tuning the buffer was built with.
func (b *Buffer) Profile() Profile {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.profile
}

// Append adds one trajectory sample. The first sample establishes the
// base time; stored times are seconds relative to it. A point whose
// actual altitude is NaN is rejected silently. The point's Clear flag
// resets the buffer before the point is applied. Every updateEvery-th
// accepted point triggers the flush callback.
func (b *Buffer) Append(p telemetry.Point) {
	b.mu.Lock()

	if p.Clear {
		b.clearLocked()
	}

	if math.IsNaN(p.AltActual) {
		b.mu.Unlock()
		return
	}

	if b.baseTime == nil {
		base := p.T
		b.baseTime = &base
	}

	b.t = append(b.t, p.T-*b.baseTime)
	b.expected = append(b.expected, p.AltExpected)
	b.actual = append(b.actual, p.AltActual)

	if n := len(b.t); n > b.maxPoints {
		// Keep the last maxPoints samples. Copy down instead of
		// re-slicing so the backing arrays do not pin evicted data.
		keep := b.maxPoints
		copy(b.t, b.t[n-keep:])
		copy(b.expected, b.expected[n-keep:])
		copy(b.actual, b.actual[n-keep:])
		b.t = b.t[:keep]
		b.expected = b.expected[:keep]
		b.actual = b.actual[:keep]
	}

	b.pending++
	if b.pending < b.updateEvery {
		b.mu.Unlock()
		return
	}
	b.pending = 0

	t, expected, actual := b.samplesLocked()
	onFlush := b.onFlush
	b.mu.Unlock()

	if onFlush != nil {
		onFlush(t, expected, actual)
	}
}

// Flush forces a repaint notification for any pending samples.
func (b *Buffer) Flush() {
	b.mu.Lock()
	b.pending = 0
	t, expected, actual := b.samplesLocked()
	onFlush := b.onFlush
	b.mu.Unlock()

	if onFlush != nil {
		onFlush(t, expected, actual)
	}
}

// Clear resets the series, the base-time anchor and the pending
// repaint counter. Idempotent.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked()
}

func (b *Buffer) clearLocked() {
	b.t = b.t[:0]
	b.expected = b.expected[:0]
	b.actual = b.actual[:0]
	b.baseTime = nil
	b.pending = 0
}

// Len reports the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.t)
}

// Samples returns copies of the three series.
func (b *Buffer) Samples() (t, expected, actual []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.samplesLocked()
}

func (b *Buffer) samplesLocked() (t, expected, actual []float64) {
	return append([]float64(nil), b.t...),
		append([]float64(nil), b.expected...),
		append([]float64(nil), b.actual...)
}
