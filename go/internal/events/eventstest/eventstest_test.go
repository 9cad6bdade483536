package eventstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/celebration/go/internal/events"
)

func TestRecorderFull(t *testing.T) {
	rec := NewRecorder(1)
	require.NoError(t, rec.Publish(context.Background(), events.Event{}))
	require.ErrorIs(t, rec.Publish(context.Background(), events.Event{}), ErrRecorderFull)
}

func TestDrainKeepsOrder(t *testing.T) {
	rec := NewRecorder(4)
	ctx := context.Background()
	require.NoError(t, rec.Publish(ctx, events.Event{Type: events.EventTypeMeterChanged}))
	require.NoError(t, rec.Publish(ctx, events.Event{Type: events.EventTypeGameStarted}))

	got := rec.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, events.EventTypeMeterChanged, got[0].Type)
	assert.Equal(t, events.EventTypeGameStarted, got[1].Type)
	assert.Empty(t, rec.Drain())
}
