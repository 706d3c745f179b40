// Package health samples ground computer CPU and memory usage and
// publishes readings on the event bus for the dashboard status bar.
package health

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"

	"github.com/roman-kulish/balloon-telemetry/internal/bus"
)

// DefaultInterval is the sampling period when none is configured.
const DefaultInterval = 2 * time.Second

// WithInterval sets the sampling period.
func WithInterval(interval time.Duration) func(*Monitor) {
	return func(m *Monitor) {
		if interval > 0 {
			m.interval = interval
		}
	}
}

// WithLogger sets the monitor logger.
func WithLogger(logger *slog.Logger) func(*Monitor) {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// Monitor periodically samples host usage and broadcasts it. A
// Monitor runs at most once; Stop is idempotent.
type Monitor struct {
	bus      *bus.Bus
	logger   *slog.Logger
	interval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Monitor publishing to b.
func New(b *bus.Bus, options ...func(*Monitor)) *Monitor {
	m := Monitor{
		bus:      b,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		interval: DefaultInterval,
	}

	for _, option := range options {
		option(&m)
	}

	return &m
}

// Start launches the sampling loop. Calling Start on a running
// monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	if !m.running.CompareAndSwap(false, true) {
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go m.run(ctx)
}

// Stop terminates the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}

	m.cancel()
	<-m.done
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

// sample reads one usage snapshot and publishes it. Read failures are
// logged and skipped; the loop keeps running.
func (m *Monitor) sample(ctx context.Context) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		m.logger.Warn("reading cpu usage", slog.Any("error", err))
		return
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		m.logger.Warn("reading memory usage", slog.Any("error", err))
		return
	}

	m.bus.PublishHealth(percents[0], vm.UsedPercent)
}
