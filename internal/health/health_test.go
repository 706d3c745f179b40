package health

import (
	"context"
	"testing"
	"time"

	"github.com/roman-kulish/balloon-telemetry/internal/bus"
)

func TestMonitor_PublishesReadings(t *testing.T) {
	b := bus.New()
	got := make(chan [2]float64, 16)
	b.SubscribeHealth(func(cpu, mem float64) {
		select {
		case got <- [2]float64{cpu, mem}:
		default:
		}
	})

	m := New(b, WithInterval(10*time.Millisecond))
	m.Start(context.Background())
	defer m.Stop()

	select {
	case reading := <-got:
		if reading[0] < 0 || reading[0] > 100 {
			t.Errorf("cpu usage = %f, want 0..100", reading[0])
		}
		if reading[1] <= 0 || reading[1] > 100 {
			t.Errorf("memory usage = %f, want 0..100", reading[1])
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a health reading")
	}
}

func TestMonitor_StartStopIdempotent(t *testing.T) {
	m := New(bus.New(), WithInterval(10*time.Millisecond))

	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
	m.Stop()

	// A stopped monitor can be observed as not running; a second Stop
	// must not block or panic.
}
