package balloons

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/celebration/go/internal/events"
)

var (
	// ErrUnknownBalloon is returned when popping an id that is not on screen.
	ErrUnknownBalloon = errors.New("unknown balloon")
	// ErrSessionClosed is returned for any operation after Stop.
	ErrSessionClosed = errors.New("game session closed")
)

// Phase of the game session.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Balloon is one poppable entity.
type Balloon struct {
	ID      uuid.UUID
	Color   string
	Message string
	X       int // horizontal position, percent of the play area
}

func (b Balloon) payload() events.BalloonPayload {
	return events.BalloonPayload{
		ID:      b.ID.String(),
		Color:   b.Color,
		Message: b.Message,
		X:       b.X,
	}
}

// Milestone is a pop total that triggered a notification.
type Milestone struct {
	Total    int
	Enhanced bool
	Message  string
}

// Trigger replenishes between Min and Max balloons every Period.
type Trigger struct {
	Period time.Duration
	Min    int
	Max    int
}

// DefaultTriggers are the three concurrent replenishment cadences.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{Period: 200 * time.Millisecond, Min: 1, Max: 1},
		{Period: 500 * time.Millisecond, Min: 2, Max: 2},
		{Period: 1500 * time.Millisecond, Min: 3, Max: 4},
	}
}

// DefaultReplenishDelays are the follow-up spawns scheduled after each pop.
func DefaultReplenishDelays() []time.Duration {
	return []time.Duration{100 * time.Millisecond, 300 * time.Millisecond}
}

// Snapshot is a point-in-time copy of the game.
type Snapshot struct {
	Phase     Phase
	Balloons  []Balloon
	Popped    int
	Milestone *Milestone // currently displayed, nil when dismissed
}

var colors = []string{
	"pink", "purple", "blue", "green",
	"yellow", "red", "indigo", "rose",
	"cyan", "amber", "emerald", "violet",
}

var messages = []string{
	"🎉 Happy Birthday!",
	"🎂 Make a wish!",
	"🎁 Special day!",
	"💖 Lots of love!",
	"✨ Birthday sparkles!",
	"🥳 Party time!",
	"🌟 You're a star!",
	"🎵 Dance & celebrate!",
	"🎈 Pop pop hooray!",
	"🥂 Cheers to you!",
	"🍰 Cake day!",
	"🌸 Bloom & grow!",
	"😊 Smile, it's your day!",
}
