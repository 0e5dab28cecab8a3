// Package logging provides the bridge's structured logger, a thin layer
// over log/slog.
//
// Every entry carries service=eltako-bridge and the build version. Each
// subsystem logs through a Component child, so a JSON line from the serial
// session looks like:
//
//	{"level":"WARN","msg":"no response from gateway","service":"eltako-bridge","component":"bus","attempt":3}
//
// Configured in the logging section of the config file:
//
//	logging:
//	  level: info     # debug, info, warn, error
//	  format: json    # json or text
//	  output: stdout  # stdout or stderr
//
// Raw frames are only logged at debug. Never log MQTT or InfluxDB
// credentials.
package logging
