package balloons

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/playback"
)

// SoundPlayer plays effect cues for a view. Implemented by playback.Service.
type SoundPlayer interface {
	Play(ctx context.Context, owner string, pub events.Publisher, cue playback.Cue) error
}

// Options configures a Game. Zero values take the defaults.
type Options struct {
	ViewID               string
	MaxActive            int
	InitialBatch         int
	MilestoneInterval    int
	BigMilestoneInterval int
	MilestoneDisplay     time.Duration
	StartDelay           time.Duration
	Triggers             []Trigger
	ReplenishDelays      []time.Duration
	Clock                clockwork.Clock
	Publisher            events.Publisher
	Sounds               SoundPlayer
	Rand                 *rand.Rand
}

func (o *Options) setDefaults() {
	if o.MaxActive <= 0 {
		o.MaxActive = 25
	}
	if o.InitialBatch < 0 {
		o.InitialBatch = 0
	}
	if o.MilestoneInterval <= 0 {
		o.MilestoneInterval = 10
	}
	if o.BigMilestoneInterval <= 0 {
		o.BigMilestoneInterval = 25
	}
	if o.MilestoneDisplay <= 0 {
		o.MilestoneDisplay = 3 * time.Second
	}
	if o.Triggers == nil {
		o.Triggers = DefaultTriggers()
	}
	if o.ReplenishDelays == nil {
		o.ReplenishDelays = DefaultReplenishDelays()
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Publisher == nil {
		o.Publisher = events.LogPublisher{}
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

// Game is one balloon-popping session. All mutations are serialized by mu;
// signals are published after it is released.
type Game struct {
	opts Options

	mu       sync.Mutex
	phase    Phase
	closed   bool
	balloons []Balloon
	popped   int

	milestone   *Milestone
	dismissKey  uint64
	timers      map[uint64]clockwork.Timer
	nextTimerID uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGame creates an idle session.
func NewGame(opts Options) *Game {
	opts.setDefaults()
	return &Game{
		opts:   opts,
		timers: make(map[uint64]clockwork.Timer),
	}
}

// Run waits StartDelay, starts the game and blocks until ctx is done, then
// tears the session down.
func (g *Game) Run(ctx context.Context) error {
	defer g.Stop()

	if g.opts.StartDelay > 0 {
		t := g.opts.Clock.NewTimer(g.opts.StartDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.Chan():
		}
	}

	if err := g.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

// Start moves Idle to Running, seeds the initial batch and starts the
// replenishment triggers. Starting a running game is a no-op.
func (g *Game) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrSessionClosed
	}
	if g.phase == PhaseRunning {
		g.mu.Unlock()
		return nil
	}
	g.phase = PhaseRunning
	g.spawnLocked(g.opts.InitialBatch)
	seeded := g.payloadsLocked(g.balloons)
	active := len(g.balloons)

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	for _, tr := range g.opts.Triggers {
		if tr.Period <= 0 || tr.Max <= 0 {
			continue
		}
		tk := g.opts.Clock.NewTicker(tr.Period)
		g.wg.Add(1)
		go g.runTrigger(runCtx, tk, tr)
	}
	g.mu.Unlock()

	log.Info().
		Str("view_id", g.opts.ViewID).
		Int("balloons", active).
		Int("max_active", g.opts.MaxActive).
		Msg("balloon game started")

	g.emit(ctx, events.EventTypeGameStarted, events.GameStartedPayload{Balloons: seeded, Active: active})
	return nil
}

// Stop ends the session: every trigger and pending timer is cancelled and
// no callback runs after Stop returns. Safe to call more than once.
func (g *Game) Stop() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	for key, t := range g.timers {
		if t.Stop() {
			// The callback will never run, so release its slot here.
			g.wg.Done()
		}
		delete(g.timers, key)
	}
	if g.cancel != nil {
		g.cancel()
	}
	g.mu.Unlock()

	g.wg.Wait()
	log.Debug().Str("view_id", g.opts.ViewID).Int("popped", g.Popped()).Msg("balloon game stopped")
}

// Spawn appends up to n balloons, truncated to MaxActive, and returns the
// balloons actually added.
func (g *Game) Spawn(ctx context.Context, n int) ([]Balloon, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil, ErrSessionClosed
	}
	added := g.spawnLocked(n)
	payloads := g.payloadsLocked(added)
	active := len(g.balloons)
	g.mu.Unlock()

	if len(added) > 0 {
		g.emit(ctx, events.EventTypeBalloonsSpawned, events.BalloonsSpawnedPayload{Balloons: payloads, Active: active})
	}
	return added, nil
}

// Pop removes the balloon with id, counts the pop, schedules the follow-up
// replenishment and fires a milestone when the total crosses one.
func (g *Game) Pop(ctx context.Context, id uuid.UUID) (int, error) {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return 0, ErrSessionClosed
	}
	idx := -1
	for i, b := range g.balloons {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return 0, ErrUnknownBalloon
	}
	g.balloons = append(g.balloons[:idx], g.balloons[idx+1:]...)

	prev := g.popped
	g.popped++
	total := g.popped
	active := len(g.balloons)

	milestone, hit := checkMilestone(prev, total, g.opts.MilestoneInterval, g.opts.BigMilestoneInterval)
	if hit {
		g.showMilestoneLocked(milestone)
	}
	for _, d := range g.opts.ReplenishDelays {
		g.scheduleLocked(d, func() { g.replenish(context.Background(), 1) })
	}
	g.mu.Unlock()

	g.emit(ctx, events.EventTypeBalloonPopped, events.BalloonPoppedPayload{ID: id.String(), Total: total, Active: active})
	g.play(ctx, playback.CuePop)
	g.play(ctx, playback.CueConfetti)

	if hit {
		log.Info().
			Str("view_id", g.opts.ViewID).
			Int("total", total).
			Bool("enhanced", milestone.Enhanced).
			Msg("milestone reached")
		g.emit(ctx, events.EventTypeMilestoneReached, events.MilestonePayload{
			Total:    milestone.Total,
			Enhanced: milestone.Enhanced,
			Message:  milestone.Message,
		})
		if milestone.Enhanced {
			g.play(ctx, playback.CueFireworks)
		} else {
			g.play(ctx, playback.CueConfetti)
		}
	}

	return total, nil
}

// Popped returns the pop counter.
func (g *Game) Popped() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.popped
}

// Snapshot returns a copy of the current session state.
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Snapshot{
		Phase:    g.phase,
		Balloons: append([]Balloon(nil), g.balloons...),
		Popped:   g.popped,
	}
	if g.milestone != nil {
		m := *g.milestone
		s.Milestone = &m
	}
	return s
}

func (g *Game) runTrigger(ctx context.Context, tk clockwork.Ticker, tr Trigger) {
	defer g.wg.Done()
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.Chan():
			n := tr.Min
			if tr.Max > tr.Min {
				g.mu.Lock()
				n += g.opts.Rand.IntN(tr.Max - tr.Min + 1)
				g.mu.Unlock()
			}
			g.replenish(ctx, n)
		}
	}
}

// replenish spawns n balloons while running and below the ceiling.
func (g *Game) replenish(ctx context.Context, n int) {
	g.mu.Lock()
	if g.closed || g.phase != PhaseRunning || len(g.balloons) >= g.opts.MaxActive {
		g.mu.Unlock()
		return
	}
	added := g.spawnLocked(n)
	payloads := g.payloadsLocked(added)
	active := len(g.balloons)
	g.mu.Unlock()

	if len(added) > 0 {
		g.emit(ctx, events.EventTypeBalloonsSpawned, events.BalloonsSpawnedPayload{Balloons: payloads, Active: active})
	}
}

func (g *Game) spawnLocked(n int) []Balloon {
	room := g.opts.MaxActive - len(g.balloons)
	if n > room {
		n = room
	}
	if n <= 0 {
		return nil
	}

	start := len(g.balloons)
	for i := 0; i < n; i++ {
		g.balloons = append(g.balloons, Balloon{
			ID:      uuid.New(),
			Color:   colors[g.opts.Rand.IntN(len(colors))],
			Message: messages[g.opts.Rand.IntN(len(messages))],
			X:       g.opts.Rand.IntN(100),
		})
	}

	if len(g.balloons) > g.opts.MaxActive {
		log.Warn().
			Str("view_id", g.opts.ViewID).
			Int("active", len(g.balloons)).
			Int("max_active", g.opts.MaxActive).
			Msg("balloon ceiling exceeded, clamping")
		g.balloons = g.balloons[:g.opts.MaxActive]
	}
	if start >= len(g.balloons) {
		return nil
	}
	return append([]Balloon(nil), g.balloons[start:]...)
}

// showMilestoneLocked displays m and replaces any pending dismissal.
func (g *Game) showMilestoneLocked(m Milestone) {
	if t, ok := g.timers[g.dismissKey]; ok {
		if t.Stop() {
			g.wg.Done()
		}
		delete(g.timers, g.dismissKey)
	}
	g.milestone = &m
	g.dismissKey = g.scheduleLocked(g.opts.MilestoneDisplay, func() { g.dismiss(m.Total) })
}

func (g *Game) dismiss(total int) {
	g.mu.Lock()
	if g.closed || g.milestone == nil || g.milestone.Total != total {
		g.mu.Unlock()
		return
	}
	m := *g.milestone
	g.milestone = nil
	g.mu.Unlock()

	g.emit(context.Background(), events.EventTypeMilestoneDismissed, events.MilestonePayload{Total: m.Total, Enhanced: m.Enhanced})
}

// scheduleLocked runs fn after d unless Stop comes first. Every scheduled
// callback holds a WaitGroup slot until it finishes or is stopped.
func (g *Game) scheduleLocked(d time.Duration, fn func()) uint64 {
	g.nextTimerID++
	key := g.nextTimerID
	g.wg.Add(1)
	g.timers[key] = g.opts.Clock.AfterFunc(d, func() {
		defer g.wg.Done()

		g.mu.Lock()
		if _, ok := g.timers[key]; !ok {
			g.mu.Unlock()
			return
		}
		delete(g.timers, key)
		closed := g.closed
		g.mu.Unlock()

		if !closed {
			fn()
		}
	})
	return key
}

func (g *Game) payloadsLocked(bs []Balloon) []events.BalloonPayload {
	out := make([]events.BalloonPayload, len(bs))
	for i, b := range bs {
		out[i] = b.payload()
	}
	return out
}

func (g *Game) emit(ctx context.Context, typ events.EventType, payload interface{}) {
	ev, err := events.New(g.opts.ViewID, typ, g.opts.Clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(typ)).Msg("failed to build game event")
		return
	}
	events.Emit(ctx, g.opts.Publisher, ev)
}

// play requests an effect cue. Failures are logged and never reach the game.
func (g *Game) play(ctx context.Context, cue playback.Cue) {
	if g.opts.Sounds == nil {
		return
	}
	if err := g.opts.Sounds.Play(ctx, g.opts.ViewID, g.opts.Publisher, cue); err != nil {
		log.Warn().Err(err).Str("view_id", g.opts.ViewID).Str("cue", string(cue)).Msg("effect playback failed")
	}
}
