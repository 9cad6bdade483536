package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/balloons"
	"github.com/mcdev12/celebration/go/internal/cake"
	"github.com/mcdev12/celebration/go/internal/config"
	"github.com/mcdev12/celebration/go/internal/countdown"
	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/meter"
)

// View is the state a single connection renders. Stop must leave no timer or
// goroutine behind and is safe to call twice.
type View interface {
	Kind() ViewKind
	Start(ctx context.Context) error
	Handle(ctx context.Context, cmd Command) error
	State() interface{}
	Stop()
}

// ViewFactory builds views from the application config.
type ViewFactory struct {
	Config config.Config
	Clock  clockwork.Clock
	Song   cake.Player // may be nil
}

func (f *ViewFactory) clock() clockwork.Clock {
	if f.Clock == nil {
		return clockwork.NewRealClock()
	}
	return f.Clock
}

// NewView creates an unstarted view that publishes to pub.
func (f *ViewFactory) NewView(kind ViewKind, viewID string, pub events.Publisher) (View, error) {
	switch kind {
	case ViewHome:
		return f.newHome(viewID, pub), nil
	case ViewGame:
		return f.newGame(viewID, pub), nil
	case ViewCake:
		return f.newCake(viewID, pub), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, kind)
	}
}

// homeView shows the countdown next to the happiness meter.
type homeView struct {
	target config.MonthDay
	name   string
	clock  clockwork.Clock
	ticker *countdown.Ticker
	meter  *meter.Meter
}

func (f *ViewFactory) newHome(viewID string, pub events.Publisher) *homeView {
	clock := f.clock()
	return &homeView{
		target: f.Config.TargetDate,
		name:   f.Config.DisplayName,
		clock:  clock,
		ticker: countdown.NewTicker(countdown.Options{
			ViewID:      viewID,
			Target:      f.Config.TargetDate,
			DisplayName: f.Config.DisplayName,
			Interval:    f.Config.Timing.TickInterval,
			Clock:       clock,
			Publisher:   pub,
		}),
		meter: meter.New(viewID, f.Config.InitialValue, clock, pub),
	}
}

func (v *homeView) Kind() ViewKind { return ViewHome }

func (v *homeView) Start(ctx context.Context) error {
	v.ticker.Start(ctx)
	v.meter.Announce(ctx)
	return nil
}

func (v *homeView) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionIncrement:
		v.meter.Increment(ctx)
	case ActionDecrement:
		v.meter.Decrement(ctx)
	case ActionReset:
		v.meter.Reset(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	return nil
}

type homeState struct {
	Countdown events.CountdownPayload `json:"countdown"`
	Meter     int                     `json:"meter"`
}

func (v *homeView) State() interface{} {
	return homeState{
		Countdown: countdown.Payload(countdown.Compute(v.target, v.clock.Now()), v.target, v.name),
		Meter:     v.meter.Value(),
	}
}

func (v *homeView) Stop() {
	v.ticker.Stop()
}

// gameView runs one balloon session for the lifetime of the connection.
type gameView struct {
	game *balloons.Game

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (f *ViewFactory) newGame(viewID string, pub events.Publisher) *gameView {
	g := f.Config.Game
	opts := balloons.Options{
		ViewID:               viewID,
		MaxActive:            g.MaxActive,
		InitialBatch:         g.InitialBatch,
		MilestoneInterval:    g.MilestoneInterval,
		BigMilestoneInterval: g.BigMilestoneInterval,
		MilestoneDisplay:     f.Config.Timing.MilestoneDisplay,
		StartDelay:           f.Config.Timing.StartDelay,
		Clock:                f.clock(),
		Publisher:            pub,
	}
	if f.Song != nil {
		opts.Sounds = f.Song
	}
	return &gameView{game: balloons.NewGame(opts)}
}

func (v *gameView) Kind() ViewKind { return ViewGame }

func (v *gameView) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done != nil {
		return nil
	}
	v.ctx, v.cancel = context.WithCancel(ctx)
	v.done = make(chan struct{})

	go func(ctx context.Context, done chan struct{}) {
		defer close(done)
		if err := v.game.Run(ctx); err != nil {
			log.Error().Err(err).Msg("balloon game exited")
		}
	}(v.ctx, v.done)
	return nil
}

func (v *gameView) Handle(ctx context.Context, cmd Command) error {
	switch cmd.Action {
	case ActionStart:
		// Skip the start delay. The session lives as long as the view, not
		// the command.
		v.mu.Lock()
		runCtx := v.ctx
		v.mu.Unlock()
		if runCtx == nil {
			return balloons.ErrSessionClosed
		}
		return v.game.Start(runCtx)
	case ActionPop:
		id, err := uuid.Parse(cmd.ID)
		if err != nil {
			return fmt.Errorf("%w: %q", balloons.ErrUnknownBalloon, cmd.ID)
		}
		_, err = v.game.Pop(ctx, id)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
}

func (v *gameView) State() interface{} {
	snap := v.game.Snapshot()
	out := gameState{
		Phase:    snap.Phase.String(),
		Balloons: make([]events.BalloonPayload, 0, len(snap.Balloons)),
		Popped:   snap.Popped,
	}
	for _, b := range snap.Balloons {
		out.Balloons = append(out.Balloons, events.BalloonPayload{ID: b.ID.String(), Color: b.Color, Message: b.Message, X: b.X})
	}
	if snap.Milestone != nil {
		out.Milestone = &events.MilestonePayload{Total: snap.Milestone.Total, Enhanced: snap.Milestone.Enhanced, Message: snap.Milestone.Message}
	}
	return out
}

type gameState struct {
	Phase     string                   `json:"phase"`
	Balloons  []events.BalloonPayload  `json:"balloons"`
	Popped    int                      `json:"popped"`
	Milestone *events.MilestonePayload `json:"milestone,omitempty"`
}

func (v *gameView) Stop() {
	v.mu.Lock()
	cancel, done := v.cancel, v.done
	v.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	v.game.Stop()
}

// cakeView is the candle and the song.
type cakeView struct {
	cake *cake.Cake
	song cake.Player
}

func (f *ViewFactory) newCake(viewID string, pub events.Publisher) *cakeView {
	return &cakeView{
		cake: cake.New(cake.Options{
			ViewID:              viewID,
			Name:                f.Config.DisplayName,
			CelebrationDuration: f.Config.Cake.CelebrationDuration,
			Clock:               f.clock(),
			Publisher:           pub,
			Player:              f.Song,
		}),
		song: f.Song,
	}
}

func (v *cakeView) Kind() ViewKind { return ViewCake }

func (v *cakeView) Start(ctx context.Context) error { return nil }

func (v *cakeView) Handle(ctx context.Context, cmd Command) error {
	if cmd.Action != ActionBlow {
		return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	_, err := v.cake.Blow(ctx)
	return err
}

type cakeState struct {
	FlameLit    bool `json:"flame_lit"`
	Celebrating bool `json:"celebrating"`
	SongReady   bool `json:"song_ready"`
}

func (v *cakeView) State() interface{} {
	s := v.cake.State()
	ready := true
	if v.song != nil {
		ready = v.song.Ready()
	}
	return cakeState{FlameLit: s.FlameLit, Celebrating: s.Celebrating, SongReady: ready}
}

func (v *cakeView) Stop() {
	v.cake.Stop()
}
