package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/changeling-watch/internal/history"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/config"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/logging"
	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// Publisher sends commands to the broker. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthChecker is an optional backend whose state /health reports.
// *database.DB and *influxdb.Client satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies for the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Watch    config.WatchConfig
	Logger   *logging.Logger
	MQTT     Publisher          // optional; commands answer 503 without it
	History  history.Repository // optional; /history answers 503 without it
	Database HealthChecker      // optional; reported by /health when set
	InfluxDB HealthChecker      // optional; reported by /health when set
	Version  string
}

// Server is the HTTP API server and a watch.Handler.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	watchCfg  config.WatchConfig
	logger    *logging.Logger
	history   history.Repository
	database  HealthChecker
	influxdb  HealthChecker
	tracker   *status.Tracker
	hub       *Hub
	version   string
	startTime time.Time

	pubMu sync.RWMutex
	mqtt  Publisher

	server   *http.Server
	listener net.Listener
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		watchCfg:  deps.Watch,
		logger:    deps.Logger,
		history:   deps.History,
		database:  deps.Database,
		influxdb:  deps.InfluxDB,
		mqtt:      deps.MQTT,
		tracker:   status.NewTracker(),
		hub:       NewHub(deps.WS, deps.Logger),
		version:   deps.Version,
		startTime: time.Now(),
	}, nil
}

// SetPublisher attaches the MQTT publisher once the connection exists.
func (s *Server) SetPublisher(p Publisher) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mqtt = p
}

func (s *Server) publisher() Publisher {
	s.pubMu.RLock()
	defer s.pubMu.RUnlock()
	return s.mqtt
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// HandleMessage records status lines and relays msg to WebSocket clients.
func (s *Server) HandleMessage(_ context.Context, msg mqtt.Message) error {
	event := MessageEvent{
		Topic:   msg.Topic,
		QoS:     msg.QoS,
		Payload: string(msg.Payload),
	}

	if st, err := status.Parse(msg.Payload); err == nil {
		s.tracker.Observe(st)
		event.Status = &st
	}

	s.hub.Broadcast(EventMessage, event)
	return nil
}

// Start binds the listen address and serves in the background.
// The hub runs until ctx is cancelled or Close is called.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.logger.Info("API server starting", "address", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
