package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-eltako/internal/audit"
	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/mqtt"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the part of the MQTT bridge the API drives.
// *eltako.Bridge implements it.
type Bridge interface {
	Execute(ctx context.Context, cmd eltako.CommandMessage) eltako.AckMessage
	DeviceState(deviceID string) (map[string]any, bool)
	Health() eltako.HealthMessage
	GetMetrics() eltako.BridgeMetrics
}

// Session is the bus session events and counters are read from.
// *bus.Session implements it.
type Session interface {
	Subscribe(fn func(bus.Event)) (cancel func())
	Stats() bus.Stats
}

// DiscoveryStore lists senders heard on the bus that no device claims.
// *eltako.DiscoveryRecorder implements it.
type DiscoveryStore interface {
	List(ctx context.Context, limit int) ([]eltako.DiscoveredAddress, error)
	Forget(ctx context.Context, addr enocean.Address) error
	Count(ctx context.Context) (int, error)
}

// AuditStore lists executed commands.
// *audit.SQLiteRepository implements it.
type AuditStore interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// Broker exposes the MQTT client's traffic counters.
// *mqtt.Client implements it.
type Broker interface {
	Stats() mqtt.Stats
}

// TelemetrySink reports points queued to InfluxDB and failed batches.
// *influxdb.Client implements it.
type TelemetrySink interface {
	Counts() (queued, writeErrors uint64)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Directory *directory.Directory
	Bridge    Bridge
	Session   Session
	Discovery DiscoveryStore // optional
	Audit     AuditStore     // optional
	Broker    Broker         // optional
	Telemetry TelemetrySink  // optional
	DB        DBStats        // optional, for /stats
	Version   string
}

// DBStats is the connection pool view of the database. *database.DB
// implements it.
type DBStats interface {
	Stats() sql.DBStats
}

// Server is the HTTP API server of the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	logger      *logging.Logger
	dir         *directory.Directory
	bridge      Bridge
	session     Session
	discovery   DiscoveryStore
	audit       AuditStore
	broker      Broker
	telemetry   TelemetrySink
	db          DBStats
	version     string
	startTime   time.Time
	registry    *prometheus.Registry
	httpMetrics *httpMetrics
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
	unsub       func()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (logger, directory, bridge, session)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("device directory is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}
	if deps.Session == nil {
		return nil, fmt.Errorf("bus session is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		dir:       deps.Directory,
		bridge:    deps.Bridge,
		session:   deps.Session,
		discovery: deps.Discovery,
		audit:     deps.Audit,
		broker:    deps.Broker,
		telemetry: deps.Telemetry,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
	}
	s.hub = NewHub(s.wsCfg, s.logger)

	s.registry = prometheus.NewRegistry()
	if err := s.registry.Register(newBusCollector(s.session, s.bridge)); err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	if s.broker != nil {
		if err := s.registry.Register(newBrokerCollector(s.broker)); err != nil {
			return nil, fmt.Errorf("registering MQTT metrics: %w", err)
		}
	}
	hm, err := newHTTPMetrics(s.registry)
	if err != nil {
		return nil, fmt.Errorf("registering HTTP metrics: %w", err)
	}
	s.httpMetrics = hm
	return s, nil
}

// Handler returns the HTTP handler with every route and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes it to the bus session and launches
// the HTTP listener in a background goroutine. The server can be stopped
// with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: Always nil; listener errors are logged
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	s.unsub = s.session.Subscribe(s.relayEvent)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.Timeouts.ReadTimeout(),
		ReadHeaderTimeout: s.cfg.Timeouts.ReadTimeout(),
		WriteTimeout:      s.cfg.Timeouts.WriteTimeout(),
		IdleTimeout:       s.cfg.Timeouts.IdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.unsub != nil {
		s.unsub()
	}
	// Cancel background goroutines (hub)
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

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
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
