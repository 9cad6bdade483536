package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/events/eventstest"
)

type fakeConn bool

func (c fakeConn) IsConnected() bool { return bool(c) }

type fakeSong bool

func (s fakeSong) Ready() bool { return bool(s) }

type ownedSong string

func (s ownedSong) Ready() bool   { return true }
func (s ownedSong) Owner() string { return string(s) }

func TestMetricPublisherCountsByType(t *testing.T) {
	fc := clockwork.NewFakeClock()
	reg := NewRegistry(fc)

	fail := false
	inner := eventstest.PublisherFunc(func(ctx context.Context, e events.Event) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	})
	pub := NewMetricPublisher(inner, reg, fc)

	ctx := context.Background()
	require.NoError(t, pub.Publish(ctx, events.Event{Type: events.EventTypeBalloonPopped}))
	require.NoError(t, pub.Publish(ctx, events.Event{Type: events.EventTypeBalloonPopped}))
	require.NoError(t, pub.Publish(ctx, events.Event{Type: events.EventTypeMeterChanged}))
	fail = true
	require.Error(t, pub.Publish(ctx, events.Event{Type: events.EventTypeMeterChanged}))

	snap := reg.Snapshot()
	assert.Equal(t, []TypeCount{
		{Type: events.EventTypeBalloonPopped, Count: 2},
		{Type: events.EventTypeMeterChanged, Count: 1},
	}, snap.Published)
	assert.Equal(t, []TypeCount{{Type: events.EventTypeMeterChanged, Count: 1}}, snap.Failed)
	assert.Equal(t, uint64(3), snap.TotalPublished())
	assert.Equal(t, uint64(1), snap.TotalFailed())
	assert.Equal(t, fc.Now(), snap.LastEventTime)
}

func TestViewGauge(t *testing.T) {
	reg := NewRegistry(clockwork.NewFakeClock())
	reg.ViewOpened("game")
	reg.ViewOpened("game")
	reg.ViewOpened("cake")
	reg.ViewClosed("game")
	reg.ViewClosed("home") // never opened

	snap := reg.Snapshot()
	assert.Equal(t, map[string]int{"game": 1, "cake": 1}, snap.ActiveViews)
	assert.Equal(t, 2, snap.TotalViews())
}

func TestCheckReportsViewsAndSongOwner(t *testing.T) {
	reg := NewRegistry(clockwork.NewFakeClock())
	reg.ViewOpened("cake")
	reg.ViewOpened("home")

	status := NewChecker(reg, nil, ownedSong("cake-1")).Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.SongReady)
	assert.Equal(t, "cake-1", status.SongOwner)
	assert.Equal(t, 2, status.TotalViews)

	// Readiness without an owner leaves the field empty.
	status = NewChecker(reg, nil, fakeSong(true)).Check(context.Background())
	assert.Empty(t, status.SongOwner)
}

func TestHealthHandler(t *testing.T) {
	reg := NewRegistry(clockwork.NewFakeClock())

	tests := []struct {
		name    string
		bus     Connection
		song    Readiness
		code    int
		healthy bool
	}{
		{name: "no bus", song: fakeSong(true), code: http.StatusOK, healthy: true},
		{name: "bus up", bus: fakeConn(true), song: fakeSong(true), code: http.StatusOK, healthy: true},
		{name: "bus down", bus: fakeConn(false), song: fakeSong(true), code: http.StatusServiceUnavailable, healthy: false},
		{name: "song missing", song: fakeSong(false), code: http.StatusOK, healthy: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			NewChecker(reg, tt.bus, tt.song).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rr.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.healthy, body["healthy"])
		})
	}
}

func TestPrometheusExport(t *testing.T) {
	fc := clockwork.NewFakeClockAt(time.Unix(1_750_000_000, 0))
	reg := NewRegistry(fc)
	reg.RecordPublished(events.EventTypeGameStarted, true, time.Millisecond)
	reg.RecordPublished(events.EventTypeGameStarted, false, time.Millisecond)
	reg.ViewOpened("game")

	exp := NewPrometheusExporter(reg, NewChecker(reg, fakeConn(true), fakeSong(true)))
	out := exp.Export(context.Background())

	assert.Contains(t, out, "celebration_healthy 1\n")
	assert.Contains(t, out, `celebration_events_published_total{type="game.started"} 1`)
	assert.Contains(t, out, `celebration_events_failed_total{type="game.started"} 1`)
	assert.Contains(t, out, `celebration_active_views{view="game"} 1`)
	assert.Contains(t, out, "celebration_nats_connected 1\n")
	assert.Contains(t, out, "celebration_last_event_timestamp 1750000000\n")

	rr := httptest.NewRecorder()
	exp.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
}
