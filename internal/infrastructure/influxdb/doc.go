// Package influxdb records decoded EnOcean telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, non-blocking batched writes and health checks.
//
// # Data Model
//
//   - enocean_sensor: one point per scaled quantity (temperature, power,
//     illuminance), tagged address, eep, device_id, field and unit
//   - enocean_state: binary and enumerated members of a telegram
//   - enocean_bus: periodic snapshots of the bus session counters
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteTelemetry(influxdb.Telemetry{
//	    DeviceID: "humidity-office",
//	    Address:  addr,
//	    EEP:      eep.MustParseID("A5-04-02"),
//	    Value:    value,
//	})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking; batch failures are delivered to the callback
// registered with SetOnError. Connection and health check errors are
// returned directly.
package influxdb
