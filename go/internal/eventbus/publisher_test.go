package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/celebration/go/internal/events"
)

func TestBuildMsg(t *testing.T) {
	at := time.Date(2025, time.June, 28, 12, 0, 0, 0, time.UTC)
	ev, err := events.New("game-1", events.EventTypeBalloonPopped, at, events.BalloonPoppedPayload{ID: "b1", Total: 3, Active: 9})
	require.NoError(t, err)

	msg, err := buildMsg("celebration.events", ev)
	require.NoError(t, err)

	assert.Equal(t, "celebration.events.game.balloon_popped", msg.Subject)
	assert.Equal(t, "game.balloon_popped", msg.Header.Get("Event-Type"))
	assert.Equal(t, "game-1", msg.Header.Get("View-ID"))
	assert.Equal(t, ev.ID, msg.Header.Get("Event-ID"))

	var env envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, ev.ID, env.EventID)
	assert.Equal(t, "game-1", env.ViewID)
	assert.True(t, at.Equal(env.Timestamp))

	var p events.BalloonPoppedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &p))
	assert.Equal(t, events.BalloonPoppedPayload{ID: "b1", Total: 3, Active: 9}, p)
}

func TestBuildMsgEmptyPayload(t *testing.T) {
	msg, err := buildMsg("p", events.Event{ID: "x", Type: events.EventTypeMeterChanged})
	require.NoError(t, err)
	assert.Contains(t, string(msg.Data), `"payload":null`)
}

func TestStreamConfig(t *testing.T) {
	cfg := DefaultConfig("nats://localhost:4222")
	sc := streamConfig(cfg)

	assert.Equal(t, "CELEBRATION_EVENTS", sc.Name)
	assert.Equal(t, []string{"celebration.events.>"}, sc.Subjects)
	assert.Equal(t, cfg.DuplicateWindow, sc.Duplicates)
	assert.True(t, isStreamConfigEqual(sc, streamConfig(cfg)))

	changed := cfg
	changed.MaxAge = time.Hour
	assert.False(t, isStreamConfigEqual(sc, streamConfig(changed)))

	renamed := cfg
	renamed.SubjectPrefix = "party"
	assert.False(t, isStreamConfigEqual(sc, streamConfig(renamed)))

	assert.False(t, isStreamConfigEqual(sc, jetstream.StreamConfig{Name: sc.Name}))
}
