package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/celebration/go/internal/cake"
	"github.com/mcdev12/celebration/go/internal/config"
	"github.com/mcdev12/celebration/go/internal/events"
	"github.com/mcdev12/celebration/go/internal/metrics"
)

const (
	serviceName    = "celebration"
	serviceVersion = "1.0.0"
)

// Service serves the views over WebSocket along with the REST and
// operational endpoints.
type Service struct {
	config            Config
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	stateHandler      *StateHandler
	health            *metrics.Checker
	exporter          *metrics.PrometheusExporter
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	App              config.Config
}

func DefaultConfig(app config.Config) Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		App:              app,
	}
}

// Dependencies are the process-wide collaborators shared by every view.
// Everything except Registry may be nil.
type Dependencies struct {
	Clock    clockwork.Clock
	Song     cake.Player
	Bus      events.Publisher
	BusConn  metrics.Connection
	Registry *metrics.Registry
}

func NewService(cfg Config, deps Dependencies) *Service {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Registry == nil {
		deps.Registry = metrics.NewRegistry(deps.Clock)
	}

	factory := &ViewFactory{Config: cfg.App, Clock: deps.Clock, Song: deps.Song}
	cm := NewConnectionManager(cfg.ConnectionConfig, factory, deps.Bus, deps.Registry)

	var song metrics.Readiness
	if deps.Song != nil {
		song = deps.Song
	}
	checker := metrics.NewChecker(deps.Registry, deps.BusConn, song)

	return &Service{
		config:            cfg,
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		stateHandler:      NewStateHandler(cfg.App, deps.Clock),
		health:            checker,
		exporter:          metrics.NewPrometheusExporter(deps.Registry, checker),
	}
}

// Start blocks until ctx is done, then closes every connection.
func (s *Service) Start(ctx context.Context) error {
	log.Info().
		Str("target_date", s.config.App.TargetDate.String()).
		Str("display_name", s.config.App.DisplayName).
		Msg("starting celebration gateway")

	<-ctx.Done()

	log.Info().Msg("celebration gateway shutting down")
	return s.Stop()
}

// Stop tears down every open view.
func (s *Service) Stop() error {
	s.connectionManager.Shutdown()
	log.Info().Msg("celebration gateway stopped")
	return nil
}

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	s.stateHandler.RegisterStateRoutes(mux)
	mux.Handle("/health", s.health)
	mux.Handle("/metrics", s.exporter)
	mux.HandleFunc("/info", s.handleInfo)
	log.Info().Msg("celebration gateway routes registered")
}

type infoResponse struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	TargetDate  string `json:"target_date"`
	DisplayName string `json:"display_name"`
	Connections int    `json:"connections"`
}

func (s *Service) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Service:     serviceName,
		Version:     serviceVersion,
		TargetDate:  s.config.App.TargetDate.String(),
		DisplayName: s.config.App.DisplayName,
		Connections: s.GetStats().TotalConnections,
	})
}

func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
