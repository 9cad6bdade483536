package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope of every signal emitted to external renderers.
type Event struct {
	ID        string          `json:"id"`        // Event UUID
	ViewID    string          `json:"view_id"`   // View that produced the signal
	Type      EventType       `json:"type"`      // Event type
	Timestamp time.Time       `json:"timestamp"` // Event creation time
	Data      json.RawMessage `json:"data"`      // Event-specific payload
}

// EventType represents the type of signal
type EventType string

const (
	EventTypeCountdownStateChanged EventType = "countdown.state_changed"

	EventTypeGameStarted        EventType = "game.started"
	EventTypeBalloonsSpawned    EventType = "game.balloons_spawned"
	EventTypeBalloonPopped      EventType = "game.balloon_popped"
	EventTypeMilestoneReached   EventType = "game.milestone_reached"
	EventTypeMilestoneDismissed EventType = "game.milestone_dismissed"

	EventTypeMeterChanged EventType = "meter.changed"

	EventTypeCelebrationStarted EventType = "cake.celebration_started"
	EventTypeCelebrationEnded   EventType = "cake.celebration_ended"

	EventTypePlaybackRequested EventType = "playback.requested"
	EventTypePlaybackStopped   EventType = "playback.stopped"
)

// Publisher delivers signals to a renderer, a bus, or a log.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// New builds an event with a fresh id, marshaling payload as its data.
func New(viewID string, eventType EventType, at time.Time, payload interface{}) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New().String(),
		ViewID:    viewID,
		Type:      eventType,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// Decode unmarshals the event data into dst.
func (e Event) Decode(dst interface{}) error {
	if err := json.Unmarshal(e.Data, dst); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", e.Type, err)
	}
	return nil
}
