package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-eltako/migrations"

	"github.com/nerrad567/gray-logic-eltako/internal/api"
	"github.com/nerrad567/gray-logic-eltako/internal/audit"
	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/capture"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/mqtt"
)

// run is the bridge itself, separated from the command for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Eltako bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	if !cfg.MQTT.Enabled {
		return errors.New("mqtt.enabled must be true to run the bridge")
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	schema, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	log.Info("database migrations complete", "schema_version", schema)

	// Device directory. Duplicate addresses are skipped, not fatal.
	dir, err := eltako.BuildDirectory(cfg.Devices, cfg.GetGatewayKind(), cfg.GetBaseID(), log)
	if err != nil {
		log.Warn("some devices were not registered", "error", err)
	}
	log.Info("device directory built", "devices", dir.Len(), "configured", len(cfg.Devices))

	// Connect to MQTT broker with the offline health message as LWT
	will, err := eltako.Will(cfg.Gateway.ID)
	if err != nil {
		return fmt.Errorf("building MQTT will: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, will)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Raw capture of the serial stream (optional)
	var recorder *capture.Writer
	if cfg.Capture.Enabled {
		recorder, err = capture.Create(cfg.Capture.Path, string(cfg.GetGatewayProtocol()))
		if err != nil {
			return fmt.Errorf("opening capture file: %w", err)
		}
		defer func() {
			log.Info("closing capture file", "records", recorder.Count())
			if closeErr := recorder.Close(); closeErr != nil {
				log.Error("error closing capture file", "error", closeErr)
			}
		}()
		log.Info("capturing serial traffic", "path", cfg.Capture.Path)
	}

	session, err := bus.New(eltako.SessionConfig(cfg), dir)
	if err != nil {
		return fmt.Errorf("creating bus session: %w", err)
	}
	session.SetLogger(log.Component("bus"))

	discovery := eltako.NewDiscoveryRecorder(db.DB)
	discovery.SetLogger(log.Component("discovery"))
	if startErr := discovery.Start(); startErr != nil {
		return fmt.Errorf("starting discovery recorder: %w", startErr)
	}
	defer func() {
		log.Info("stopping discovery recorder")
		discovery.Stop()
	}()

	// Command log, written in the background so acks are never delayed
	auditRepo := audit.NewSQLiteRepository(db.DB)
	auditWriter := audit.NewWriter(auditRepo, log.Component("audit"))
	auditCtx, stopAudit := context.WithCancel(context.Background())
	auditDone := make(chan struct{})
	go func() {
		auditWriter.Run(auditCtx)
		close(auditDone)
	}()
	defer func() {
		stopAudit()
		<-auditDone
	}()

	bridge, err := startBridge(ctx, cfg, session, dir, mqttClient, influxClient, discovery, auditWriter, recorder, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("stopping Eltako bridge")
		bridge.Stop()
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:    cfg.API,
			WS:        cfg.WebSocket,
			Logger:    log.Component("api"),
			Directory: dir,
			Bridge:    bridge,
			Session:   session,
			Discovery: discovery,
			Audit:     auditRepo,
			Broker:    mqttClient,
			DB:        db,
			Version:   version,
		}
		if influxClient != nil {
			deps.Telemetry = influxClient
		}
		srv, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(gctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		g.Go(func() error {
			<-gctx.Done()
			return srv.Close()
		})
	} else {
		log.Info("API server disabled")
	}

	if influxClient != nil {
		g.Go(func() error {
			writeBusCounters(gctx, influxClient, session, cfg.Gateway.ID, cfg.GetHealthInterval())
			return nil
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, cleaning up")
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Deferred Close() calls run in reverse order:
	// bridge, command log, discovery, capture, InfluxDB, MQTT, database
	log.Info("Eltako bridge stopped")
	return nil
}

// startBridge creates and starts the MQTT bridge.
//
// Parameters:
//   - ctx: Context for the first connection
//   - cfg: Application configuration
//   - session: Bus session the bridge opens
//   - dir: Device directory
//   - mqttClient: Connected MQTT client
//   - influxClient: Telemetry sink (may be nil if disabled)
//   - discovery: Records senders no device claims
//   - auditor: Records executed commands
//   - recorder: Raw capture writer (may be nil)
//   - log: Logger instance
//
// Returns:
//   - *eltako.Bridge: Running bridge
//   - error: If the bridge fails to start
func startBridge(
	ctx context.Context,
	cfg *config.Config,
	session *bus.Session,
	dir *directory.Directory,
	mqttClient *mqtt.Client,
	influxClient *influxdb.Client,
	discovery *eltako.DiscoveryRecorder,
	auditor eltako.CommandAuditor,
	recorder *capture.Writer,
	log *logging.Logger,
) (*eltako.Bridge, error) {
	bcfg := eltako.FromConfig(cfg, version)

	opts := eltako.BridgeOptions{
		Config:     bcfg,
		Session:    session,
		Directory:  dir,
		MQTTClient: mqttClient,
		Dial:       eltako.SerialDialer(bcfg, recorder, log.Component("bus")),
		Logger:     log.Component("bridge"),
		Recorder:   discovery,
		Auditor:    auditor,
	}
	// A nil *influxdb.Client must not become a non-nil interface.
	if influxClient != nil {
		opts.Telemetry = influxClient
	}

	bridge, err := eltako.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating Eltako bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting Eltako bridge: %w", err)
	}
	log.Info("Eltako bridge started",
		"gateway", string(bcfg.Kind),
		"port", bcfg.Port,
		"baud", bcfg.Baud,
		"devices", dir.Len(),
	)
	return bridge, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// The serial port is not checked: the bridge reconnects on its own and
	// reports the port state in its health messages.
	return nil
}

// busCounterSource is the part of the session writeBusCounters reads.
type busCounterSource interface {
	Stats() bus.Stats
}

// busCounterSink is the part of the InfluxDB client writeBusCounters uses.
type busCounterSink interface {
	WriteBusCounters(gateway string, counters map[string]uint64)
}

// writeBusCounters stores a snapshot of the session counters every interval
// until ctx is cancelled.
func writeBusCounters(ctx context.Context, sink busCounterSink, session busCounterSource, gateway string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sink.WriteBusCounters(gateway, busCounters(session.Stats()))
		}
	}
}

func busCounters(st bus.Stats) map[string]uint64 {
	return map[string]uint64{
		"rx":           st.Rx,
		"tx":           st.Tx,
		"frame_errors": st.FrameErrors,
		"decoded":      st.Decoded,
		"unresolved":   st.Unresolved,
		"skipped":      st.Skipped,
		"dropped":      st.Dropped,
		"retries":      st.Retries,
		"no_acks":      st.NoAcks,
	}
}
