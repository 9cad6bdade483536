package events

// Payload types shared by the state machines and the gateway.

// CountdownPayload is the payload for a countdown.state_changed event
type CountdownPayload struct {
	DisplayName string `json:"display_name"`
	TargetDate  string `json:"target_date"`
	Days        int    `json:"days"`
	Hours       int    `json:"hours"`
	Minutes     int    `json:"minutes"`
	Seconds     int    `json:"seconds"`
	IsTargetDay bool   `json:"is_target_day"`
}

// BalloonPayload describes one balloon on screen
type BalloonPayload struct {
	ID      string `json:"id"`
	Color   string `json:"color"`
	Message string `json:"message"`
	X       int    `json:"x"`
}

// GameStartedPayload is the payload for a game.started event
type GameStartedPayload struct {
	Balloons []BalloonPayload `json:"balloons"`
	Active   int              `json:"active"`
}

// BalloonsSpawnedPayload is the payload for a game.balloons_spawned event
type BalloonsSpawnedPayload struct {
	Balloons []BalloonPayload `json:"balloons"`
	Active   int              `json:"active"`
}

// BalloonPoppedPayload is the payload for a game.balloon_popped event
type BalloonPoppedPayload struct {
	ID     string `json:"id"`
	Total  int    `json:"total"`
	Active int    `json:"active"`
}

// MilestonePayload is the payload for game.milestone_reached and game.milestone_dismissed
type MilestonePayload struct {
	Total    int    `json:"total"`
	Enhanced bool   `json:"enhanced"`
	Message  string `json:"message,omitempty"`
}

// MeterPayload is the payload for a meter.changed event
type MeterPayload struct {
	Value int `json:"value"`
}

// CelebrationPayload is the payload for cake.celebration_started and cake.celebration_ended
type CelebrationPayload struct {
	Name       string `json:"name"`
	FlameLit   bool   `json:"flame_lit"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// PlaybackPayload is the payload for playback.requested and playback.stopped
type PlaybackPayload struct {
	Cue    string  `json:"cue"`
	Asset  string  `json:"asset,omitempty"`
	Volume float64 `json:"volume,omitempty"`
}
