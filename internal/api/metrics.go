package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/bus"
	"github.com/nerrad567/gray-logic-eltako/internal/infrastructure/mqtt"
)

// SystemMetrics represents the complete statistics response.
type SystemMetrics struct {
	Timestamp     string               `json:"timestamp"`
	Version       string               `json:"version"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Runtime       RuntimeMetrics       `json:"runtime"`
	WebSocket     WSMetrics            `json:"websocket"`
	Bus           BusMetrics           `json:"bus"`
	Bridge        eltako.BridgeMetrics `json:"bridge"`
	MQTT          *mqtt.Stats          `json:"mqtt,omitempty"`
	Telemetry     *TelemetryMetrics    `json:"telemetry,omitempty"`
	Discovered    *int                 `json:"discovered,omitempty"`
	Database      *DatabaseMetrics     `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	Dropped          uint64 `json:"dropped"`
}

// BusMetrics contains the serial session counters.
type BusMetrics struct {
	State        string     `json:"state"`
	Rx           uint64     `json:"rx"`
	Tx           uint64     `json:"tx"`
	FrameErrors  uint64     `json:"frame_errors"`
	Decoded      uint64     `json:"decoded"`
	Unresolved   uint64     `json:"unresolved"`
	Skipped      uint64     `json:"skipped"`
	Dropped      uint64     `json:"dropped"`
	Retries      uint64     `json:"retries"`
	NoAcks       uint64     `json:"no_acks"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// TelemetryMetrics counts InfluxDB writes.
type TelemetryMetrics struct {
	Queued      uint64 `json:"queued"`
	WriteErrors uint64 `json:"write_errors"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

func busMetrics(st bus.Stats) BusMetrics {
	m := BusMetrics{
		State:       st.State.String(),
		Rx:          st.Rx,
		Tx:          st.Tx,
		FrameErrors: st.FrameErrors,
		Decoded:     st.Decoded,
		Unresolved:  st.Unresolved,
		Skipped:     st.Skipped,
		Dropped:     st.Dropped,
		Retries:     st.Retries,
		NoAcks:      st.NoAcks,
	}
	if !st.LastActivity.IsZero() {
		last := st.LastActivity.UTC()
		m.LastActivity = &last
	}
	return m
}

// handleStats returns bus, bridge and runtime statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
			Dropped:          s.hub.Dropped(),
		},
		Bus:    busMetrics(s.session.Stats()),
		Bridge: s.bridge.GetMetrics(),
	}

	if s.broker != nil {
		st := s.broker.Stats()
		metrics.MQTT = &st
	}

	if s.telemetry != nil {
		queued, failed := s.telemetry.Counts()
		metrics.Telemetry = &TelemetryMetrics{Queued: queued, WriteErrors: failed}
	}

	if s.discovery != nil {
		if n, err := s.discovery.Count(r.Context()); err == nil {
			metrics.Discovered = &n
		}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}

// metricsNamespace prefixes every exported metric.
const metricsNamespace = "eltako"

// busCollector exports session and bridge counters, read on each scrape.
type busCollector struct {
	session Session
	bridge  Bridge

	up          *prometheus.Desc
	frames      *prometheus.Desc
	telegrams   *prometheus.Desc
	frameErrors *prometheus.Desc
	retries     *prometheus.Desc
	noAcks      *prometheus.Desc
	dropped     *prometheus.Desc
	commands    *prometheus.Desc
	failures    *prometheus.Desc
	reconnects  *prometheus.Desc
	resends     *prometheus.Desc
	devices     *prometheus.Desc
}

func newBusCollector(session Session, bridge Bridge) *busCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, labels, nil)
	}
	return &busCollector{
		session:     session,
		bridge:      bridge,
		up:          desc("session_open", "1 when the serial session is open."),
		frames:      desc("frames_total", "Frames crossing the serial port.", "direction"),
		telegrams:   desc("telegrams_total", "Received telegrams by outcome.", "outcome"),
		frameErrors: desc("frame_errors_total", "Frames discarded for checksum or header errors."),
		retries:     desc("send_retries_total", "Telegrams resent after a missing or negative response."),
		noAcks:      desc("send_no_ack_total", "Sends that never got a gateway response."),
		dropped:     desc("events_dropped_total", "Events dropped on full subscriber queues."),
		commands:    desc("commands_total", "Commands executed by the bridge."),
		failures:    desc("command_failures_total", "Commands that were not accepted."),
		reconnects:  desc("reconnects_total", "Successful serial reconnections."),
		resends:     desc("climate_resends_total", "Heating set points repeated."),
		devices:     desc("devices", "Configured devices."),
	}
}

// Describe implements prometheus.Collector.
func (c *busCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.up, c.frames, c.telegrams, c.frameErrors, c.retries, c.noAcks,
		c.dropped, c.commands, c.failures, c.reconnects, c.resends, c.devices,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *busCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.session.Stats()
	bm := c.bridge.GetMetrics()

	up := 0.0
	if st.State == bus.StateOpen {
		up = 1
	}
	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, up)
	counter(c.frames, st.Rx, "rx")
	counter(c.frames, st.Tx, "tx")
	counter(c.telegrams, st.Decoded, "decoded")
	counter(c.telegrams, st.Unresolved, "unresolved")
	counter(c.telegrams, st.Skipped, "skipped")
	counter(c.frameErrors, st.FrameErrors)
	counter(c.retries, st.Retries)
	counter(c.noAcks, st.NoAcks)
	counter(c.dropped, st.Dropped)
	counter(c.commands, bm.Commands)
	counter(c.failures, bm.CommandFailures)
	counter(c.reconnects, bm.Reconnects)
	counter(c.resends, bm.ClimateResends)
	ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(bm.DevicesManaged))
}

// brokerCollector exports the MQTT client's counters.
type brokerCollector struct {
	broker Broker

	connected *prometheus.Desc
	messages  *prometheus.Desc
	failures  *prometheus.Desc
	sessions  *prometheus.Desc
}

func newBrokerCollector(broker Broker) *brokerCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "mqtt", name), help, labels, nil)
	}
	return &brokerCollector{
		broker:    broker,
		connected: desc("connected", "1 while the broker connection is up."),
		messages:  desc("messages_total", "MQTT messages by direction.", "direction"),
		failures:  desc("failures_total", "Failed publishes and handler errors.", "kind"),
		sessions:  desc("connection_events_total", "Broker connects and disconnects.", "event"),
	}
}

// Describe implements prometheus.Collector.
func (c *brokerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.messages
	ch <- c.failures
	ch <- c.sessions
}

// Collect implements prometheus.Collector.
func (c *brokerCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.broker.Stats()
	connected := 0.0
	if st.Connected {
		connected = 1
	}
	counter := func(d *prometheus.Desc, v uint64, label string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), label)
	}

	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected)
	counter(c.messages, st.Published, "published")
	counter(c.messages, st.Received, "received")
	counter(c.failures, st.PublishFailures, "publish")
	counter(c.failures, st.HandlerErrors, "handler")
	counter(c.sessions, st.Connects, "connect")
	counter(c.sessions, st.Disconnects, "disconnect")
}
