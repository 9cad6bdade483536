package cake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/playback"
)

var (
	// ErrNotReady is returned when the birthday song has not been loaded.
	ErrNotReady = errors.New("song not ready")
	ErrClosed   = errors.New("cake view closed")
)

// Player is the shared playback handle. Implemented by playback.Service.
type Player interface {
	Ready() bool
	Play(ctx context.Context, owner string, pub events.Publisher, cue playback.Cue) error
	Release(ctx context.Context, owner string)
}

type Options struct {
	ViewID              string
	Name                string
	CelebrationDuration time.Duration
	Clock               clockwork.Clock
	Publisher           events.Publisher
	Player              Player
}

// State is a snapshot of the cake.
type State struct {
	FlameLit    bool
	Celebrating bool
}

// Cake blows out the candle, plays the song and relights after the
// celebration.
type Cake struct {
	opts Options

	mu          sync.Mutex
	state       State
	closed      bool
	resetTimer  clockwork.Timer
	resetQueued bool
	wg          sync.WaitGroup
}

func New(opts Options) *Cake {
	if opts.CelebrationDuration <= 0 {
		opts.CelebrationDuration = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.LogPublisher{}
	}
	return &Cake{opts: opts, state: State{FlameLit: true}}
}

func (c *Cake) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Blow starts a celebration. It returns false without error when one is
// already in progress.
func (c *Cake) Blow(ctx context.Context) (bool, error) {
	if c.opts.Player != nil && !c.opts.Player.Ready() {
		return false, ErrNotReady
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}
	if c.state.Celebrating {
		c.mu.Unlock()
		return false, nil
	}
	c.state = State{FlameLit: false, Celebrating: true}
	// One slot for the relight timer and one for the playback below, so Stop
	// releases the song only after this view has finished claiming it.
	c.wg.Add(2)
	c.resetQueued = true
	c.resetTimer = c.opts.Clock.AfterFunc(c.opts.CelebrationDuration, c.relight)
	c.mu.Unlock()
	defer c.wg.Done()

	log.Info().Str("view_id", c.opts.ViewID).Dur("duration", c.opts.CelebrationDuration).Msg("cake celebration started")
	c.emit(ctx, events.EventTypeCelebrationStarted, events.CelebrationPayload{
		Name:       c.opts.Name,
		FlameLit:   false,
		DurationMs: c.opts.CelebrationDuration.Milliseconds(),
	})
	c.play(ctx, playback.CueBirthdaySong)
	c.play(ctx, playback.CueConfetti)
	return true, nil
}

// Stop cancels a pending relight and releases the song.
func (c *Cake) Stop() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.resetQueued && c.resetTimer.Stop() {
		c.resetQueued = false
		c.wg.Done()
	}
	c.mu.Unlock()

	c.wg.Wait()
	if c.opts.Player != nil {
		c.opts.Player.Release(context.Background(), c.opts.ViewID)
	}
}

func (c *Cake) relight() {
	defer c.wg.Done()

	c.mu.Lock()
	c.resetQueued = false
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state = State{FlameLit: true}
	c.mu.Unlock()

	ctx := context.Background()
	c.emit(ctx, events.EventTypeCelebrationEnded, events.CelebrationPayload{Name: c.opts.Name, FlameLit: true})
	if c.opts.Player != nil {
		c.opts.Player.Release(ctx, c.opts.ViewID)
	}
}

func (c *Cake) emit(ctx context.Context, typ events.EventType, payload events.CelebrationPayload) {
	ev, err := events.New(c.opts.ViewID, typ, c.opts.Clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to build cake event")
		return
	}
	events.Emit(ctx, c.opts.Publisher, ev)
}

func (c *Cake) play(ctx context.Context, cue playback.Cue) {
	if c.opts.Player == nil {
		return
	}
	if err := c.opts.Player.Play(ctx, c.opts.ViewID, c.opts.Publisher, cue); err != nil {
		log.Error().Err(err).Str("view_id", c.opts.ViewID).Str("cue", string(cue)).Msg("audio playback failed")
	}
}
