package meter

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/events"
)

// Meter is the happiness meter shown next to the countdown.
type Meter struct {
	viewID  string
	initial int
	clock   clockwork.Clock
	pub     events.Publisher

	mu    sync.Mutex
	value int
}

// New creates a meter starting at initial.
func New(viewID string, initial int, clock clockwork.Clock, pub events.Publisher) *Meter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if pub == nil {
		pub = events.LogPublisher{}
	}
	return &Meter{viewID: viewID, initial: initial, clock: clock, pub: pub, value: initial}
}

func (m *Meter) Value() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

func (m *Meter) Increment(ctx context.Context) int {
	return m.update(ctx, func(v int) int { return v + 1 })
}

func (m *Meter) Decrement(ctx context.Context) int {
	return m.update(ctx, func(v int) int { return v - 1 })
}

// Reset restores the initial value.
func (m *Meter) Reset(ctx context.Context) int {
	return m.update(ctx, func(int) int { return m.initial })
}

// Announce publishes the current value without changing it.
func (m *Meter) Announce(ctx context.Context) {
	m.publish(ctx, m.Value())
}

func (m *Meter) update(ctx context.Context, fn func(int) int) int {
	m.mu.Lock()
	m.value = fn(m.value)
	v := m.value
	m.mu.Unlock()

	m.publish(ctx, v)
	return v
}

func (m *Meter) publish(ctx context.Context, v int) {
	ev, err := events.New(m.viewID, events.EventTypeMeterChanged, m.clock.Now(), events.MeterPayload{Value: v})
	if err != nil {
		log.Error().Err(err).Msg("failed to build meter event")
		return
	}
	events.Emit(ctx, m.pub, ev)
}
