package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcdev12/celebration/go/internal/events"
)

var (
	ErrUnknownView      = errors.New("unknown view")
	ErrUnknownAction    = errors.New("unknown action")
	ErrConnectionClosed = errors.New("connection closed")
	ErrSlowConsumer     = errors.New("connection send buffer full")
)

// Gateway-level signals. These only go to the connection that caused them.
const (
	EventTypeConnected       events.EventType = "gateway.connected"
	EventTypeCommandRejected events.EventType = "gateway.command_rejected"
)

// ViewKind selects what a connection renders.
type ViewKind string

const (
	ViewHome ViewKind = "home"
	ViewGame ViewKind = "game"
	ViewCake ViewKind = "cake"
)

func ParseViewKind(s string) (ViewKind, error) {
	switch k := ViewKind(s); k {
	case ViewHome, ViewGame, ViewCake:
		return k, nil
	case "":
		return ViewHome, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

// Client actions.
const (
	ActionPop       = "pop"
	ActionStart     = "start"
	ActionIncrement = "increment"
	ActionDecrement = "decrement"
	ActionReset     = "reset"
	ActionBlow      = "blow"
)

// Command is a message sent by the client.
type Command struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"` // balloon id for pop
}

// ParseCommand decodes a client message.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	if cmd.Action == "" {
		return Command{}, fmt.Errorf("%w: empty", ErrUnknownAction)
	}
	return cmd, nil
}

// ConnectedPayload is sent once when a view is opened.
type ConnectedPayload struct {
	ConnectionID string      `json:"connection_id"`
	View         ViewKind    `json:"view"`
	State        interface{} `json:"state"`
}

// CommandRejectedPayload reports a command the view could not apply.
type CommandRejectedPayload struct {
	Action string `json:"action"`
	Error  string `json:"error"`
}
