package gateway

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/config"
	"github.com/mcdev12/celebration/go/internal/countdown"
	"github.com/mcdev12/celebration/go/internal/events"
)

// CountdownResponse is the body of GET /api/countdown.
type CountdownResponse struct {
	events.CountdownPayload
	NextOccurrence   time.Time `json:"next_occurrence"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

// StateHandler serves point-in-time state over plain HTTP.
type StateHandler struct {
	target config.MonthDay
	name   string
	clock  clockwork.Clock
}

func NewStateHandler(cfg config.Config, clock clockwork.Clock) *StateHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StateHandler{target: cfg.TargetDate, name: cfg.DisplayName, clock: clock}
}

// HandleGetCountdown handles GET /api/countdown. The optional date query
// parameter (MM-DD) overrides the configured target.
func (h *StateHandler) HandleGetCountdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	target := h.target
	if raw := r.URL.Query().Get("date"); raw != "" {
		md, err := config.ParseMonthDay(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		target = md
	}

	now := h.clock.Now()
	state := countdown.Compute(target, now)
	resp := CountdownResponse{
		CountdownPayload: countdown.Payload(state, target, h.name),
		RemainingSeconds: int64(state.Remaining() / time.Second),
	}
	if !state.IsTargetDay {
		resp.NextOccurrence = countdown.NextOccurrence(target, now)
	}

	log.Debug().Str("target_date", target.String()).Int("days", state.Days).Msg("countdown requested")
	writeJSON(w, http.StatusOK, resp)
}

func (h *StateHandler) RegisterStateRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/countdown", h.HandleGetCountdown)
}
