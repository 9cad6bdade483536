package playback

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/events"
)

var (
	// ErrDisposed is returned by every call made after Dispose.
	ErrDisposed = errors.New("playback disposed")
	// ErrAssetUnavailable is returned when the song asset cannot be loaded.
	ErrAssetUnavailable = errors.New("song asset unavailable")
)

// Cue names a sound or visual effect for the renderer.
type Cue string

const (
	// CueBirthdaySong plays on the shared track; only one view owns it at a time.
	CueBirthdaySong Cue = "birthday_song"

	CuePop       Cue = "pop"
	CueConfetti  Cue = "confetti"
	CueFireworks Cue = "fireworks"
)

// Track is the loaded song handle.
type Track struct {
	Asset    string
	Size     int64
	LoadedAt time.Time
}

// Service is the process-wide playback handle. Create it once in main,
// inject it into views, Dispose it on shutdown.
type Service struct {
	asset string
	fsys  fs.FS
	clock clockwork.Clock

	loadOnce sync.Once
	track    *Track
	loadErr  error

	mu       sync.Mutex
	owner    string
	ownerPub events.Publisher
	disposed bool
}

// Option configures a Service.
type Option func(*Service)

// WithFS sets the filesystem the song asset is read from.
func WithFS(fsys fs.FS) Option {
	return func(s *Service) { s.fsys = fsys }
}

// WithClock sets the clock used for event timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates the service. The asset is not touched until the first
// Ready or Play. An empty asset means a silent track that is always ready.
func NewService(asset string, opts ...Option) *Service {
	s := &Service{
		asset: asset,
		fsys:  os.DirFS("."),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track loads the song handle on first use and returns it.
func (s *Service) Track() (*Track, error) {
	s.loadOnce.Do(func() {
		if s.asset == "" {
			s.track = &Track{LoadedAt: s.clock.Now()}
			return
		}
		info, err := fs.Stat(s.fsys, s.asset)
		if err != nil {
			s.loadErr = fmt.Errorf("%w: %s: %v", ErrAssetUnavailable, s.asset, err)
			log.Warn().Err(err).Str("asset", s.asset).Msg("song asset could not be loaded")
			return
		}
		s.track = &Track{Asset: s.asset, Size: info.Size(), LoadedAt: s.clock.Now()}
		log.Info().Str("asset", s.asset).Int64("size", info.Size()).Msg("song asset loaded")
	})
	return s.track, s.loadErr
}

// Ready reports whether the song can be played.
func (s *Service) Ready() bool {
	s.mu.Lock()
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return false
	}
	_, err := s.Track()
	return err == nil
}

// Owner returns the view currently holding the song track.
func (s *Service) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// Play asks the owner's renderer to play cue. The song cue moves track
// ownership to owner and stops it for the previous owner. Effect cues are
// fire-and-forget.
func (s *Service) Play(ctx context.Context, owner string, pub events.Publisher, cue Cue) error {
	if cue != CueBirthdaySong {
		s.mu.Lock()
		disposed := s.disposed
		s.mu.Unlock()
		if disposed {
			return ErrDisposed
		}
		return s.publish(ctx, owner, pub, events.EventTypePlaybackRequested, events.PlaybackPayload{Cue: string(cue), Volume: volumeFor(cue)})
	}

	track, err := s.Track()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	prevOwner, prevPub := s.owner, s.ownerPub
	s.owner, s.ownerPub = owner, pub
	s.mu.Unlock()

	if prevOwner != "" && prevOwner != owner {
		s.emitStopped(ctx, prevOwner, prevPub)
	}

	return s.publish(ctx, owner, pub, events.EventTypePlaybackRequested, events.PlaybackPayload{
		Cue:    string(CueBirthdaySong),
		Asset:  track.Asset,
		Volume: 1,
	})
}

// Release stops the song if owner holds it.
func (s *Service) Release(ctx context.Context, owner string) {
	s.mu.Lock()
	if s.owner != owner || owner == "" {
		s.mu.Unlock()
		return
	}
	pub := s.ownerPub
	s.owner, s.ownerPub = "", nil
	s.mu.Unlock()

	s.emitStopped(ctx, owner, pub)
}

// Dispose stops the song and rejects further use. Safe to call twice.
func (s *Service) Dispose(ctx context.Context) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	owner, pub := s.owner, s.ownerPub
	s.owner, s.ownerPub = "", nil
	s.mu.Unlock()

	if owner != "" {
		s.emitStopped(ctx, owner, pub)
	}
	log.Info().Msg("playback disposed")
}

func (s *Service) emitStopped(ctx context.Context, owner string, pub events.Publisher) {
	if err := s.publish(ctx, owner, pub, events.EventTypePlaybackStopped, events.PlaybackPayload{Cue: string(CueBirthdaySong)}); err != nil {
		log.Error().Err(err).Str("view_id", owner).Msg("failed to stop playback")
	}
}

func (s *Service) publish(ctx context.Context, owner string, pub events.Publisher, typ events.EventType, payload events.PlaybackPayload) error {
	if pub == nil {
		return nil
	}
	ev, err := events.New(owner, typ, s.clock.Now(), payload)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s: %w", typ, err)
	}
	return nil
}

func volumeFor(cue Cue) float64 {
	if cue == CuePop {
		return 0.5
	}
	return 1
}
