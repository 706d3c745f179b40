// Package replay turns a recorded telemetry log back into a live
// stream: it reads NDJSON or JSON-array files and re-emits the
// records over the event bus, optionally paced by the original
// inter-record time deltas.
package replay

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/balloon-telemetry/internal/telemetry"
)

const (
	// DefaultInterval paces records that carry no timestamp.
	DefaultInterval = 500 * time.Millisecond

	// loopPause separates two passes in looping mode. Not scaled by
	// the speed multiplier.
	loopPause = 100 * time.Millisecond

	// stopJoinTimeout bounds how long Stop waits for the playback
	// goroutine to observe the stop signal.
	stopJoinTimeout = time.Second
)

// State is the playback state of a Player.
type State int32

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Emitter consumes one record per playback tick. Implementations
// must not assume they are called from any particular goroutine.
type Emitter interface {
	Emit(telemetry.Record)
}

// WithRealtime controls whether record timestamps pace the replay.
func WithRealtime(realtime bool) func(*Player) {
	return func(p *Player) {
		p.realtime = realtime
	}
}

// WithSpeed sets the replay speed multiplier. Values less than or
// equal to zero are coerced to 1.0.
func WithSpeed(speed float64) func(*Player) {
	return func(p *Player) {
		if speed > 0 {
			p.speed = speed
		}
	}
}

// WithDefaultInterval sets the inter-record delay used when
// timestamps are absent.
func WithDefaultInterval(interval time.Duration) func(*Player) {
	return func(p *Player) {
		if interval >= 0 {
			p.interval = interval
		}
	}
}

// WithLoop makes the player restart from the first record after the
// last one.
func WithLoop(loop bool) func(*Player) {
	return func(p *Player) {
		p.loop = loop
	}
}

// WithLogger sets the player logger.
func WithLogger(logger *slog.Logger) func(*Player) {
	return func(p *Player) {
		p.logger = logger.With(slog.String("source", p.path))
	}
}

// Player replays a telemetry log through an Emitter. It is an
// explicit state machine (idle, playing, paused, finished) with an
// inspectable cursor. One goroutine drives playback and owns the
// record list and cursor while playing; Start and Stop only touch
// them when that goroutine is not running.
type Player struct {
	path     string
	emitter  Emitter
	realtime bool
	speed    float64
	interval time.Duration
	loop     bool
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	records []telemetry.Record
	loaded  bool
	cursor  int

	stop chan struct{}
	done chan struct{}
}

// New creates a Player for the given log file. Records are not read
// until Start.
func New(path string, emitter Emitter, options ...func(*Player)) *Player {
	p := Player{
		path:     path,
		emitter:  emitter,
		realtime: true,
		speed:    1.0,
		interval: DefaultInterval,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&p)
	}

	return &p
}

// Start begins or resumes playback. When restart is true the record
// list is reloaded and the cursor reset; otherwise playback resumes
// from the retained cursor, wrapping to the first record when a
// previous pass already consumed the whole log. The record at the
// cursor is emitted immediately; subsequent records follow at the
// paced intervals. The only fatal error is a log that cannot be read.
func (p *Player) Start(restart bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePlaying {
		return nil
	}

	if !p.loaded || restart {
		records, err := ReadRecords(p.path)
		if err != nil {
			return fmt.Errorf("loading records: %w", err)
		}
		p.records = records
		p.loaded = true
		p.cursor = 0
	}
	if restart {
		p.cursor = 0
	}

	if len(p.records) == 0 {
		p.logger.Warn("no records to replay")
		p.state = StateFinished
		return nil
	}

	// Past the end: a looping player wraps, a finished one restarts.
	if p.cursor >= len(p.records) {
		p.cursor = 0
	}

	p.state = StatePlaying
	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	p.logger.Info("replay started",
		slog.Int("records", len(p.records)),
		slog.Int("cursor", p.cursor),
		slog.Float64("speed", p.speed),
		slog.Bool("realtime", p.realtime),
		slog.Bool("loop", p.loop))

	go p.run(p.stop, p.done)
	return nil
}

// Stop pauses playback, retaining the cursor so a later Start(false)
// resumes where playback left off. It waits (bounded) for the
// playback goroutine to observe the signal; cancellation is
// cooperative, so an in-flight inter-record delay is interrupted but
// an in-flight emission completes first.
func (p *Player) Stop() {
	p.mu.Lock()
	if p.state != StatePlaying {
		p.mu.Unlock()
		return
	}
	stop, done := p.stop, p.done
	p.state = StatePaused
	p.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(stopJoinTimeout):
		p.logger.Warn("playback goroutine did not stop in time")
	}

	p.mu.Lock()
	p.logger.Info("replay paused", slog.Int("cursor", p.cursor))
	p.mu.Unlock()
}

// State reports the current playback state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Cursor reports the current playback position.
func (p *Player) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Len reports the number of loaded records.
func (p *Player) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}

// run is the playback loop: emit the record at the cursor, compute
// the delay to the next one, advance, sleep, repeat. It exits on the
// stop signal or when the final record of a non-looping pass has been
// emitted.
func (p *Player) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		p.mu.Lock()
		rec := p.records[p.cursor]
		p.mu.Unlock()

		p.emit(rec)

		p.mu.Lock()
		next := p.cursor + 1
		var wrapped bool
		if next >= len(p.records) {
			if !p.loop {
				p.cursor = next // retain the end position for resume semantics
				p.state = StateFinished
				p.mu.Unlock()
				p.logger.Info("replay finished")
				return
			}
			next = 0
			wrapped = true
		}
		delay := p.delay(rec.Epoch, p.records[next].Epoch, wrapped)
		p.cursor = next
		p.mu.Unlock()

		timer := time.NewTimer(delay)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// delay computes the pause before the next emission. With realtime
// pacing and two resolvable timestamps it is the scaled timestamp
// delta, floored at zero so out-of-order records never stall the
// replay; in every other case the scaled default interval applies.
// Wrapping between passes uses the fixed loop pause instead.
func (p *Player) delay(curr, next *float64, wrapped bool) time.Duration {
	if wrapped {
		return loopPause
	}
	if p.realtime && curr != nil && next != nil {
		dt := (*next - *curr) / p.speed
		if dt < 0 {
			dt = 0
		}
		return time.Duration(dt * float64(time.Second))
	}
	return time.Duration(float64(p.interval) / p.speed)
}

// emit forwards one record to the emitter, isolating the playback
// loop from emitter failures: one bad record must not halt playback.
func (p *Player) emit(rec telemetry.Record) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Warn("emitter panicked", slog.Any("panic", r))
		}
	}()

	p.emitter.Emit(rec)
}
