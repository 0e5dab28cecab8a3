// Package api implements the HTTP REST API and WebSocket server of the
// Eltako bridge.
//
// This package provides:
//   - REST endpoints for the device directory, last known states and commands
//   - Read-only views of the EEP catalogue and discovered senders
//   - JSON statistics and a Prometheus scrape endpoint
//   - A WebSocket hub relaying bus events in real time
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Architecture
//
// The server reads from the same bus session and directory the MQTT bridge
// uses. Commands posted to the API go through Bridge.Execute, so they are
// translated, sent and acknowledged exactly like MQTT commands. Bus events
// are fanned out to WebSocket clients by channel:
//
//	device.state_changed   decoded telegram from a configured device
//	telegram.unresolved    telegram no device could decode
//	session.state          serial session lifecycle change
//
// # Graceful Degradation
//
// The discovery endpoints answer 503 when no database is configured; every
// other endpoint works from memory.
package api
