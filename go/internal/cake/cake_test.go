package cake

import (
	"context"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/events/eventstest"
	"github.com/mcdev12/celebration/go/internal/playback"
)

func newSongService(t *testing.T, present bool) *playback.Service {
	t.Helper()
	fsys := fstest.MapFS{}
	if present {
		fsys["song.mp3"] = &fstest.MapFile{Data: []byte("ID3")}
	}
	return playback.NewService("song.mp3", playback.WithFS(fsys))
}

func types(evs []events.Event) []events.EventType {
	out := make([]events.EventType, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.Type)
	}
	return out
}

func TestBlowCelebratesAndRelights(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fc := clockwork.NewFakeClock()
	rec := eventstest.NewRecorder(32)
	songs := newSongService(t, true)
	c := New(Options{
		ViewID:              "cake-1",
		Name:                "Kashish",
		CelebrationDuration: 10 * time.Second,
		Clock:               fc,
		Publisher:           rec,
		Player:              songs,
	})
	defer c.Stop()

	assert.Equal(t, State{FlameLit: true}, c.State())

	started, err := c.Blow(ctx)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, State{Celebrating: true}, c.State())
	assert.Equal(t, "cake-1", songs.Owner())

	// A second blow during the celebration changes nothing.
	again, err := c.Blow(ctx)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(9 * time.Second)
	assert.True(t, c.State().Celebrating)

	fc.Advance(time.Second)
	var got []events.Event
	require.Eventually(t, func() bool {
		got = append(got, rec.Drain()...)
		return len(got) >= 5
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, c.State().FlameLit)
	assert.Equal(t, "", songs.Owner())

	assert.Equal(t, []events.EventType{
		events.EventTypeCelebrationStarted,
		events.EventTypePlaybackRequested,
		events.EventTypePlaybackRequested,
		events.EventTypeCelebrationEnded,
		events.EventTypePlaybackStopped,
	}, types(got))
}

func TestBlowRequiresLoadedSong(t *testing.T) {
	rec := eventstest.NewRecorder(4)
	c := New(Options{
		ViewID:    "cake-1",
		Clock:     clockwork.NewFakeClock(),
		Publisher: rec,
		Player:    newSongService(t, false),
	})
	defer c.Stop()

	started, err := c.Blow(context.Background())
	assert.ErrorIs(t, err, ErrNotReady)
	assert.False(t, started)
	assert.Equal(t, State{FlameLit: true}, c.State())
	assert.Empty(t, rec.Drain())
}

func TestStopCancelsPendingRelight(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	fc := clockwork.NewFakeClock()
	rec := eventstest.NewRecorder(32)
	songs := newSongService(t, true)
	c := New(Options{ViewID: "cake-1", Clock: fc, Publisher: rec, Player: songs})

	_, err := c.Blow(ctx)
	require.NoError(t, err)
	require.NoError(t, fc.BlockUntilContext(ctx, 1))

	c.Stop()
	c.Stop()
	assert.Equal(t, "", songs.Owner())

	fc.Advance(time.Minute)
	for _, e := range rec.Drain() {
		assert.NotEqual(t, events.EventTypeCelebrationEnded, e.Type)
	}

	_, err = c.Blow(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSecondViewTakesOverSong(t *testing.T) {
	ctx := context.Background()
	songs := newSongService(t, true)
	first := New(Options{ViewID: "a", Clock: clockwork.NewFakeClock(), Publisher: eventstest.NewRecorder(16), Player: songs})
	defer first.Stop()
	second := New(Options{ViewID: "b", Clock: clockwork.NewFakeClock(), Publisher: eventstest.NewRecorder(16), Player: songs})
	defer second.Stop()

	_, err := first.Blow(ctx)
	require.NoError(t, err)
	_, err = second.Blow(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", songs.Owner())

	// Stopping the former owner leaves the new owner playing.
	first.Stop()
	assert.Equal(t, "b", songs.Owner())
}

func TestNilPlayerIsAlwaysReady(t *testing.T) {
	c := New(Options{ViewID: "cake", Clock: clockwork.NewFakeClock(), Publisher: eventstest.NewRecorder(4)})
	defer c.Stop()

	started, err := c.Blow(context.Background())
	require.NoError(t, err)
	assert.True(t, started)
}

// gatedPlayer blocks the first Play until release is closed.
type gatedPlayer struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	owner string
}

func newGatedPlayer() *gatedPlayer {
	return &gatedPlayer{entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *gatedPlayer) Ready() bool { return true }

func (p *gatedPlayer) Play(ctx context.Context, owner string, pub events.Publisher, cue playback.Cue) error {
	if cue == playback.CueBirthdaySong {
		close(p.entered)
		<-p.release
	}
	p.mu.Lock()
	p.owner = owner
	p.mu.Unlock()
	return nil
}

func (p *gatedPlayer) Release(ctx context.Context, owner string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.owner == owner {
		p.owner = ""
	}
}

func (p *gatedPlayer) Owner() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owner
}

func TestStopDuringBlowReleasesSong(t *testing.T) {
	defer goleak.VerifyNone(t)

	player := newGatedPlayer()
	c := New(Options{ViewID: "cake-1", Clock: clockwork.NewFakeClock(), Publisher: eventstest.NewRecorder(16), Player: player})

	blowDone := make(chan struct{})
	go func() {
		defer close(blowDone)
		_, _ = c.Blow(context.Background())
	}()
	<-player.entered

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		c.Stop()
	}()

	// Stop waits for the in-flight playback.
	select {
	case <-stopped:
		t.Fatal("Stop returned while Blow was still playing")
	case <-time.After(50 * time.Millisecond):
	}

	close(player.release)
	<-blowDone
	<-stopped
	assert.Equal(t, "", player.Owner())
}
