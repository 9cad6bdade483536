package meter

import (
	"context"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/events/eventstest"
)

func TestMeter(t *testing.T) {
	ctx := context.Background()
	rec := eventstest.NewRecorder(16)
	m := New("home", 100, clockwork.NewFakeClock(), rec)

	assert.Equal(t, 100, m.Value())
	assert.Equal(t, 101, m.Increment(ctx))
	assert.Equal(t, 102, m.Increment(ctx))
	assert.Equal(t, 101, m.Decrement(ctx))
	assert.Equal(t, 100, m.Reset(ctx))

	// The meter is a free counter and may go below zero.
	m2 := New("home", 0, nil, nil)
	assert.Equal(t, -1, m2.Decrement(ctx))

	var values []int
	for _, e := range rec.Drain() {
		require.Equal(t, events.EventTypeMeterChanged, e.Type)
		require.Equal(t, "home", e.ViewID)
		var p events.MeterPayload
		require.NoError(t, e.Decode(&p))
		values = append(values, p.Value)
	}
	assert.Equal(t, []int{101, 102, 101, 100}, values)
}

func TestAnnounce(t *testing.T) {
	rec := eventstest.NewRecorder(1)
	m := New("home", 7, clockwork.NewFakeClock(), rec)
	m.Announce(context.Background())

	got := rec.Drain()
	require.Len(t, got, 1)
	var p events.MeterPayload
	require.NoError(t, got[0].Decode(&p))
	assert.Equal(t, 7, p.Value)
	assert.Equal(t, 7, m.Value())
}
