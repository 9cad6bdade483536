package events

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// LogPublisher writes every signal to the global logger. Used when no
// renderer is attached.
type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event Event) error {
	log.Debug().
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("view_id", event.ViewID).
		RawJSON("data", event.Data).
		Msg("publishing event")
	return nil
}

// Fanout publishes to every publisher in order. A failing publisher does not
// stop delivery to the rest; the errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit publishes and logs failures. Rendering side effects must never
// interrupt a state machine, so the error is not returned.
func Emit(ctx context.Context, pub Publisher, event Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, event); err != nil {
		log.Error().
			Err(err).
			Str("event_type", string(event.Type)).
			Str("view_id", event.ViewID).
			Msg("failed to publish event")
	}
}
