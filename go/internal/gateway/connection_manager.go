package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/metrics"
)

// ConnectionManager owns every open view connection.
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	factory *ViewFactory
	bus     events.Publisher // optional, receives every view signal
	metrics metrics.Collector
	clock   clockwork.Clock
}

// Connection is one WebSocket client and the view it renders.
type Connection struct {
	ID      string
	Kind    ViewKind
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	view      View
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	lastPong  time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig, factory *ViewFactory, bus events.Publisher, collector metrics.Collector) *ConnectionManager {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	if config.SendBufferSize <= 0 {
		config.SendBufferSize = 256
	}
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		factory: factory,
		bus:     bus,
		metrics: collector,
		clock:   factory.clock(),
	}
}

// UpgradeConnection upgrades the request and opens a view of the given kind.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, kind ViewKind) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		ID:          uuid.New().String(),
		Kind:        kind,
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
	c.lastPong = c.ConnectedAt

	// Signals go to the client and, when configured, to the bus.
	pub := metrics.NewMetricPublisher(events.Fanout{c, cm.bus}, cm.metrics, cm.clock)
	view, err := cm.factory.NewView(kind, c.ID, pub)
	if err != nil {
		cancel()
		conn.Close()
		return err
	}
	c.view = view

	cm.registerConnection(c)

	// The view starts before the pumps so a client that hangs up at once
	// cannot stop it before it has started. Send is buffered meanwhile.
	c.sendConnected()
	if err := view.Start(ctx); err != nil {
		c.Conn.Close()
		c.teardown()
		return fmt.Errorf("start %s view: %w", kind, err)
	}

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("view", string(kind)).
		Msg("WebSocket connection established")
	return nil
}

func (cm *ConnectionManager) registerConnection(c *Connection) {
	cm.mu.Lock()
	cm.connections[c.ID] = c
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.metrics.ViewOpened(string(c.Kind))
	log.Debug().
		Str("connection_id", c.ID).
		Str("view", string(c.Kind)).
		Int("total_connections", total).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(c *Connection) {
	cm.mu.Lock()
	_, exists := cm.connections[c.ID]
	delete(cm.connections, c.ID)
	cm.mu.Unlock()

	if exists {
		cm.metrics.ViewClosed(string(c.Kind))
		log.Info().
			Str("connection_id", c.ID).
			Str("view", string(c.Kind)).
			Msg("connection unregistered")
	}
}

// Shutdown closes every connection and waits for its view to stop.
func (cm *ConnectionManager) Shutdown() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, c := range cm.connections {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		c.Conn.Close()
		c.teardown()
	}
	log.Info().Int("connections", len(conns)).Msg("connection manager shut down")
}

// ConnectionStats summarizes open connections.
type ConnectionStats struct {
	TotalConnections int              `json:"total_connections"`
	Views            map[ViewKind]int `json:"views"`
	Connections      []ConnectionInfo `json:"connections"`
}

// ConnectionInfo describes one open connection. LastPong starts at
// ConnectedAt and moves with every pong from the client.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	View        ViewKind  `json:"view"`
	ConnectedAt time.Time `json:"connected_at"`
	LastPong    time.Time `json:"last_pong"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		TotalConnections: len(cm.connections),
		Views:            make(map[ViewKind]int),
		Connections:      make([]ConnectionInfo, 0, len(cm.connections)),
	}
	for _, c := range cm.connections {
		stats.Views[c.Kind]++
		c.mu.Lock()
		lastPong := c.lastPong
		c.mu.Unlock()
		stats.Connections = append(stats.Connections, ConnectionInfo{
			ID:          c.ID,
			View:        c.Kind,
			ConnectedAt: c.ConnectedAt,
			LastPong:    lastPong,
		})
	}
	sort.Slice(stats.Connections, func(i, j int) bool {
		return stats.Connections[i].ConnectedAt.Before(stats.Connections[j].ConnectedAt)
	})
	return stats
}

// Publish queues a signal for the client. It never blocks: a client that
// cannot keep up is disconnected.
func (c *Connection) Publish(ctx context.Context, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.Send <- data:
		return nil
	default:
		log.Warn().Str("connection_id", c.ID).Msg("connection send buffer full, closing connection")
		c.Conn.Close()
		return ErrSlowConsumer
	}
}

// teardown stops the view before the send channel is closed so no signal is
// produced for a dead client.
func (c *Connection) teardown() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.view.Stop()

		c.mu.Lock()
		c.closed = true
		close(c.Send)
		c.mu.Unlock()

		c.Manager.unregisterConnection(c)
	})
}

func (c *Connection) sendConnected() {
	ev, err := events.New(c.ID, EventTypeConnected, c.Manager.clock.Now(), ConnectedPayload{
		ConnectionID: c.ID,
		View:         c.Kind,
		State:        c.view.State(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build connected event")
		return
	}
	if err := c.Publish(c.ctx, ev); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("failed to send connected event")
	}
}

func (c *Connection) reject(cmd Command, cause error) {
	ev, err := events.New(c.ID, EventTypeCommandRejected, c.Manager.clock.Now(), CommandRejectedPayload{
		Action: cmd.Action,
		Error:  cause.Error(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to build rejection event")
		return
	}
	if err := c.Publish(c.ctx, ev); err != nil && !errors.Is(err, ErrConnectionClosed) {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("failed to send rejection")
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	cfg := c.Manager.config
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump reads client commands until the socket closes, then tears the
// view down.
func (c *Connection) readPump() {
	cfg := c.Manager.config
	defer func() {
		c.Conn.Close()
		c.teardown()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		c.mu.Lock()
		c.lastPong = c.Manager.clock.Now()
		c.mu.Unlock()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

func (c *Connection) handleClientMessage(message []byte) {
	cmd, err := ParseCommand(message)
	if err != nil {
		c.reject(cmd, err)
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("view", string(c.Kind)).
		Str("action", cmd.Action).
		Msg("received client command")

	if err := c.view.Handle(c.ctx, cmd); err != nil {
		c.reject(cmd, err)
	}
}
