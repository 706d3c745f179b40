// Package bus provides the in-process event channels connecting the
// replay player to its consumers (WebSocket hub, trajectory buffer,
// snapshot state). It replaces the global signal dispatcher of the
// original ground software with an explicit object passed by
// reference, with a typed payload contract per channel.
package bus

import (
	"io"
	"log/slog"
	"sync"

	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
)

// Handler signatures, one per channel.
type (
	TelemetryFunc    func(map[string]any)
	SensorStatusFunc func(map[string]bool)
	TrajectoryFunc   func(telemetry.Point)
	HealthFunc       func(cpu, mem float64)
)

// WithLogger sets the logger used to report recovered subscriber
// panics.
func WithLogger(logger *slog.Logger) func(*Bus) {
	return func(b *Bus) {
		b.logger = logger
	}
}

// Bus is a synchronous fan-out hub. Publishing never fails: a panic
// in one subscriber is recovered and logged, and the remaining
// subscribers still run. Safe for concurrent use.
type Bus struct {
	logger *slog.Logger

	mu     sync.RWMutex
	nextID int

	telemetry    map[int]TelemetryFunc
	sensorStatus map[int]SensorStatusFunc
	trajectory   map[int]TrajectoryFunc
	health       map[int]HealthFunc
}

// New creates an empty Bus with a discard logger.
func New(options ...func(*Bus)) *Bus {
	b := Bus{
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		telemetry:    make(map[int]TelemetryFunc),
		sensorStatus: make(map[int]SensorStatusFunc),
		trajectory:   make(map[int]TrajectoryFunc),
		health:       make(map[int]HealthFunc),
	}

	for _, option := range options {
		option(&b)
	}

	return &b
}

// SubscribeTelemetry registers a handler for telemetry updates and
// returns its unsubscribe function.
func (b *Bus) SubscribeTelemetry(fn TelemetryFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.telemetry[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.telemetry, id)
	}
}

// SubscribeSensorStatus registers a handler for sensor health updates
// and returns its unsubscribe function.
func (b *Bus) SubscribeSensorStatus(fn SensorStatusFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.sensorStatus[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.sensorStatus, id)
	}
}

// SubscribeTrajectory registers a handler for trajectory points and
// returns its unsubscribe function.
func (b *Bus) SubscribeTrajectory(fn TrajectoryFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.trajectory[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.trajectory, id)
	}
}

// SubscribeHealth registers a handler for ground computer health
// updates and returns its unsubscribe function.
func (b *Bus) SubscribeHealth(fn HealthFunc) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.health[id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.health, id)
	}
}

// PublishTelemetry fans a telemetry map out to all subscribers.
func (b *Bus) PublishTelemetry(data map[string]any) {
	for _, fn := range snapshotHandlers(b, b.telemetry) {
		b.deliver("telemetry", func() { fn(data) })
	}
}

// PublishSensorStatus fans a sensor health map out to all subscribers.
func (b *Bus) PublishSensorStatus(status map[string]bool) {
	for _, fn := range snapshotHandlers(b, b.sensorStatus) {
		b.deliver("sensorStatus", func() { fn(status) })
	}
}

// PublishTrajectory fans a trajectory point out to all subscribers.
func (b *Bus) PublishTrajectory(p telemetry.Point) {
	for _, fn := range snapshotHandlers(b, b.trajectory) {
		b.deliver("trajectory", func() { fn(p) })
	}
}

// PublishHealth fans CPU and memory usage out to all subscribers.
func (b *Bus) PublishHealth(cpu, mem float64) {
	for _, fn := range snapshotHandlers(b, b.health) {
		b.deliver("health", func() { fn(cpu, mem) })
	}
}

// Counts reports the number of subscribers per channel.
func (b *Bus) Counts() map[string]int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]int{
		"telemetry":    len(b.telemetry),
		"sensorStatus": len(b.sensorStatus),
		"trajectory":   len(b.trajectory),
		"health":       len(b.health),
	}
}

// deliver runs one handler, isolating the publisher from panics.
func (b *Bus) deliver(channel string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Warn("subscriber panicked", slog.String("channel", channel), slog.Any("panic", r))
		}
	}()

	fn()
}

// snapshotHandlers copies the handler set under the read lock so
// publishing does not hold the lock while handlers run.
func snapshotHandlers[T any](b *Bus, m map[int]T) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, 0, len(m))
	for _, fn := range m {
		out = append(out, fn)
	}
	return out
}
