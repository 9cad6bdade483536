package main

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/config"
	"github.com/mcdev12/celebration/go/internal/eventbus"
	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/gateway"
	"github.com/mcdev12/celebration/go/internal/metrics"
	"github.com/mcdev12/celebration/go/internal/playback"
)

type Services struct {
	Song     *playback.Service
	Bus      *eventbus.JetStreamPublisher // nil when NATS is disabled
	Registry *metrics.Registry
	Gateway  *gateway.Service
}

func setupServices(ctx context.Context, cfg config.Config) (*Services, error) {
	clock := clockwork.NewRealClock()

	// One song track for the whole process, loaded on first use.
	song := playback.NewService(cfg.Cake.SongAsset, playback.WithClock(clock))
	if !song.Ready() {
		log.Warn().Str("asset", cfg.Cake.SongAsset).Msg("song asset unavailable, cake celebration disabled")
	}

	registry := metrics.NewRegistry(clock)
	deps := gateway.Dependencies{
		Clock:    clock,
		Song:     song,
		Registry: registry,
	}

	var bus *eventbus.JetStreamPublisher
	if cfg.NATSURL != "" {
		var err error
		bus, err = eventbus.NewJetStreamPublisher(ctx, eventbus.DefaultConfig(cfg.NATSURL))
		if err != nil {
			return nil, fmt.Errorf("failed to create event bus: %w", err)
		}
		deps.Bus = events.Publisher(bus)
		deps.BusConn = bus
		log.Info().Str("nats_url", cfg.NATSURL).Msg("event bus enabled")
	} else {
		log.Info().Msg("NATS_URL not set, event bus disabled")
	}

	return &Services{
		Song:     song,
		Bus:      bus,
		Registry: registry,
		Gateway:  gateway.NewService(gateway.DefaultConfig(cfg), deps),
	}, nil
}

// Close releases process-wide resources after the gateway has stopped.
func (s *Services) Close(ctx context.Context) {
	s.Song.Dispose(ctx)
	if s.Bus != nil {
		if err := s.Bus.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event bus")
		}
	}
}
