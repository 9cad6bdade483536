package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy         bool
	Uptime          time.Duration
	EventsPublished uint64
	PublishFailures uint64
	ActiveViews     map[string]int
	TotalViews      int
	LastEventTime   time.Time
	BusEnabled      bool
	BusConnected    bool
	SongReady       bool
	SongOwner       string
	Errors          []string
}

// Connection reports the state of the event bus. Satisfied by
// eventbus.JetStreamPublisher.
type Connection interface {
	IsConnected() bool
}

// Readiness reports whether the shared song track is usable. Satisfied by
// playback.Service.
type Readiness interface {
	Ready() bool
}

// songOwner is implemented by playback.Service.
type songOwner interface {
	Owner() string
}

type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

type Checker struct {
	registry *Registry
	bus      Connection
	song     Readiness
}

// NewChecker builds a checker. bus and song may be nil.
func NewChecker(registry *Registry, bus Connection, song Readiness) *Checker {
	return &Checker{registry: registry, bus: bus, song: song}
}

func (c *Checker) Check(ctx context.Context) HealthStatus {
	snap := c.registry.Snapshot()
	status := HealthStatus{
		Healthy:         true,
		Uptime:          snap.Uptime,
		EventsPublished: snap.TotalPublished(),
		PublishFailures: snap.TotalFailed(),
		ActiveViews:     snap.ActiveViews,
		TotalViews:      snap.TotalViews(),
		LastEventTime:   snap.LastEventTime,
		Errors:          []string{},
	}

	if c.bus != nil {
		status.BusEnabled = true
		status.BusConnected = c.bus.IsConnected()
		if !status.BusConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	// A missing song only disables the cake celebration.
	if c.song != nil {
		status.SongReady = c.song.Ready()
		if !status.SongReady {
			status.Errors = append(status.Errors, "song asset unavailable")
		}
		if o, ok := c.song.(songOwner); ok {
			status.SongOwner = o.Owner()
		}
	}

	return status
}

// HTTP handler helper
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := c.Check(ctx)

	response := map[string]interface{}{
		"healthy":          status.Healthy,
		"uptime":           status.Uptime.String(),
		"events_published": status.EventsPublished,
		"publish_failures": status.PublishFailures,
		"active_views":     status.ActiveViews,
		"total_views":      status.TotalViews,
		"last_event_time":  status.LastEventTime,
		"bus_enabled":      status.BusEnabled,
		"bus_connected":    status.BusConnected,
		"song_ready":       status.SongReady,
		"song_owner":       status.SongOwner,
		"errors":           status.Errors,
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("failed to encode health response")
	}
}

// PrometheusExporter renders the registry in the Prometheus text format.
type PrometheusExporter struct {
	registry *Registry
	checker  HealthChecker
}

func NewPrometheusExporter(registry *Registry, checker HealthChecker) *PrometheusExporter {
	return &PrometheusExporter{registry: registry, checker: checker}
}

func (e *PrometheusExporter) Export(ctx context.Context) string {
	status := e.checker.Check(ctx)
	snap := e.registry.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "# HELP celebration_healthy Whether the service is healthy\n")
	fmt.Fprintf(&b, "# TYPE celebration_healthy gauge\n")
	fmt.Fprintf(&b, "celebration_healthy %d\n\n", boolToInt(status.Healthy))

	fmt.Fprintf(&b, "# HELP celebration_events_published_total Signals published by type\n")
	fmt.Fprintf(&b, "# TYPE celebration_events_published_total counter\n")
	for _, c := range snap.Published {
		fmt.Fprintf(&b, "celebration_events_published_total{type=%q} %d\n", c.Type, c.Count)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "# HELP celebration_events_failed_total Signals that failed to publish by type\n")
	fmt.Fprintf(&b, "# TYPE celebration_events_failed_total counter\n")
	for _, c := range snap.Failed {
		fmt.Fprintf(&b, "celebration_events_failed_total{type=%q} %d\n", c.Type, c.Count)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "# HELP celebration_active_views Open views by kind\n")
	fmt.Fprintf(&b, "# TYPE celebration_active_views gauge\n")
	for _, kind := range sortedKeys(snap.ActiveViews) {
		fmt.Fprintf(&b, "celebration_active_views{view=%q} %d\n", kind, snap.ActiveViews[kind])
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "# HELP celebration_nats_connected Whether NATS is connected\n")
	fmt.Fprintf(&b, "# TYPE celebration_nats_connected gauge\n")
	fmt.Fprintf(&b, "celebration_nats_connected %d\n\n", boolToInt(status.BusConnected))

	fmt.Fprintf(&b, "# HELP celebration_song_ready Whether the birthday song is loaded\n")
	fmt.Fprintf(&b, "# TYPE celebration_song_ready gauge\n")
	fmt.Fprintf(&b, "celebration_song_ready %d\n\n", boolToInt(status.SongReady))

	fmt.Fprintf(&b, "# HELP celebration_last_event_timestamp Unix timestamp of last published signal\n")
	fmt.Fprintf(&b, "# TYPE celebration_last_event_timestamp gauge\n")
	last := int64(0)
	if !snap.LastEventTime.IsZero() {
		last = snap.LastEventTime.Unix()
	}
	fmt.Fprintf(&b, "celebration_last_event_timestamp %d\n", last)

	return b.String()
}

func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	if _, err := w.Write([]byte(e.Export(r.Context()))); err != nil {
		log.Error().Err(err).Msg("failed to write metrics")
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
