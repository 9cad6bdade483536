package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/celebration/go/internal/events"
)

// Collector records signal and view activity.
type Collector interface {
	RecordPublished(eventType events.EventType, success bool, duration time.Duration)
	ViewOpened(kind string)
	ViewClosed(kind string)
}

// NoOpCollector is used when metrics aren't needed
type NoOpCollector struct{}

func (NoOpCollector) RecordPublished(events.EventType, bool, time.Duration) {}
func (NoOpCollector) ViewOpened(string)                                     {}
func (NoOpCollector) ViewClosed(string)                                     {}

// Registry is an in-memory Collector read by the health and Prometheus
// handlers.
type Registry struct {
	clock clockwork.Clock

	mu          sync.Mutex
	published   map[events.EventType]uint64
	failed      map[events.EventType]uint64
	views       map[string]int
	publishTime time.Duration
	lastEvent   time.Time
	startedAt   time.Time
}

func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		clock:     clock,
		published: make(map[events.EventType]uint64),
		failed:    make(map[events.EventType]uint64),
		views:     make(map[string]int),
		startedAt: clock.Now(),
	}
}

func (r *Registry) RecordPublished(eventType events.EventType, success bool, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.published[eventType]++
		r.lastEvent = r.clock.Now()
	} else {
		r.failed[eventType]++
	}
	r.publishTime += duration
}

func (r *Registry) ViewOpened(kind string) {
	r.mu.Lock()
	r.views[kind]++
	r.mu.Unlock()
}

func (r *Registry) ViewClosed(kind string) {
	r.mu.Lock()
	if r.views[kind] > 0 {
		r.views[kind]--
	}
	r.mu.Unlock()
}

// TypeCount is a per-type counter value.
type TypeCount struct {
	Type  events.EventType `json:"type"`
	Count uint64           `json:"count"`
}

// Snapshot is a point-in-time copy of the registry.
type Snapshot struct {
	Published     []TypeCount    `json:"published"`
	Failed        []TypeCount    `json:"failed"`
	ActiveViews   map[string]int `json:"active_views"`
	LastEventTime time.Time      `json:"last_event_time"`
	PublishTime   time.Duration  `json:"publish_time_ns"`
	Uptime        time.Duration  `json:"uptime_ns"`
}

// TotalPublished sums the per-type published counters.
func (s Snapshot) TotalPublished() uint64 {
	var n uint64
	for _, c := range s.Published {
		n += c.Count
	}
	return n
}

func (s Snapshot) TotalFailed() uint64 {
	var n uint64
	for _, c := range s.Failed {
		n += c.Count
	}
	return n
}

func (s Snapshot) TotalViews() int {
	n := 0
	for _, v := range s.ActiveViews {
		n += v
	}
	return n
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	views := make(map[string]int, len(r.views))
	for k, v := range r.views {
		views[k] = v
	}
	return Snapshot{
		Published:     sortedCounts(r.published),
		Failed:        sortedCounts(r.failed),
		ActiveViews:   views,
		LastEventTime: r.lastEvent,
		PublishTime:   r.publishTime,
		Uptime:        r.clock.Since(r.startedAt),
	}
}

func sortedCounts(m map[events.EventType]uint64) []TypeCount {
	out := make([]TypeCount, 0, len(m))
	for t, c := range m {
		out = append(out, TypeCount{Type: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher events.Publisher
	metrics   Collector
	clock     clockwork.Clock
}

func NewMetricPublisher(publisher events.Publisher, metrics Collector, clock clockwork.Clock) *MetricPublisher {
	if metrics == nil {
		metrics = NoOpCollector{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MetricPublisher{publisher: publisher, metrics: metrics, clock: clock}
}

func (p *MetricPublisher) Publish(ctx context.Context, event events.Event) error {
	start := p.clock.Now()
	err := p.publisher.Publish(ctx, event)
	p.metrics.RecordPublished(event.Type, err == nil, p.clock.Since(start))
	return err
}
