package countdown

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/config"
	"github.com/mcdev12/celebration/go/internal/events"
)

// Clock is the subset of clockwork.Clock the ticker needs.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// Options configures a Ticker.
type Options struct {
	ViewID      string
	Target      config.MonthDay
	DisplayName string
	Interval    time.Duration
	Clock       Clock
	Publisher   events.Publisher
}

// Ticker recomputes the countdown once per interval and emits a
// countdown.state_changed signal on every tick.
type Ticker struct {
	opts Options

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewTicker creates a ticker. Nothing runs until Start or Run.
func NewTicker(opts Options) *Ticker {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.LogPublisher{}
	}
	return &Ticker{opts: opts}
}

// State returns the last computed state.
func (t *Ticker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Start runs the ticker in the background until Stop or ctx is done.
func (t *Ticker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true
	done := t.done
	t.mu.Unlock()

	go func() {
		defer close(done)
		t.run(ctx)
	}()
}

// Stop cancels the recurring tick and waits for it to exit. No signal is
// emitted after Stop returns.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
}

// Run blocks, ticking until ctx is done.
func (t *Ticker) Run(ctx context.Context) error {
	t.run(ctx)
	return nil
}

func (t *Ticker) run(ctx context.Context) {
	tk := t.opts.Clock.NewTicker(t.opts.Interval)
	defer tk.Stop()

	log.Debug().
		Str("view_id", t.opts.ViewID).
		Str("target_date", t.opts.Target.String()).
		Dur("interval", t.opts.Interval).
		Msg("countdown started")

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("view_id", t.opts.ViewID).Msg("countdown stopped")
			return
		case <-tk.Chan():
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	now := t.opts.Clock.Now()
	state := Compute(t.opts.Target, now)

	t.mu.Lock()
	t.state = state
	t.mu.Unlock()

	ev, err := events.New(t.opts.ViewID, events.EventTypeCountdownStateChanged, now, Payload(state, t.opts.Target, t.opts.DisplayName))
	if err != nil {
		log.Error().Err(err).Msg("failed to build countdown event")
		return
	}
	events.Emit(ctx, t.opts.Publisher, ev)
}

// Payload renders a state as a signal payload.
func Payload(s State, target config.MonthDay, name string) events.CountdownPayload {
	return events.CountdownPayload{
		DisplayName: name,
		TargetDate:  target.String(),
		Days:        s.Days,
		Hours:       s.Hours,
		Minutes:     s.Minutes,
		Seconds:     s.Seconds,
		IsTargetDay: s.IsTargetDay,
	}
}
