// Package eventstest provides in-memory publishers for tests.
package eventstest

import (
	"context"
	"errors"

	"github.com/mcdev12/celebration/go/internal/events"
)

var ErrRecorderFull = errors.New("recorder full")

// PublisherFunc adapts a function to events.Publisher.
type PublisherFunc func(ctx context.Context, event events.Event) error

func (f PublisherFunc) Publish(ctx context.Context, event events.Event) error {
	return f(ctx, event)
}

// Recorder keeps every published event in memory.
type Recorder struct {
	ch chan events.Event
}

// NewRecorder returns a Recorder that buffers up to size events; further
// events are dropped with an error.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan events.Event, size)}
}

func (r *Recorder) Publish(ctx context.Context, event events.Event) error {
	select {
	case r.ch <- event:
		return nil
	default:
		return ErrRecorderFull
	}
}

// Events exposes the recorded events in publish order.
func (r *Recorder) Events() <-chan events.Event {
	return r.ch
}

// Drain returns every event recorded so far without blocking.
func (r *Recorder) Drain() []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
