// Package config loads the bridge's YAML configuration.
//
// Values are layered: built-in defaults, then the file, then ELTAKO_*
// environment variables (ELTAKO_GATEWAY_PORT, ELTAKO_MQTT_PASSWORD, ...).
// Validate reports every problem at once, including device entries with
// unknown profiles or clashing addresses.
//
// Serial settings left empty are derived from the gateway kind:
//
//	gateway:
//	  kind: usb300        # protocol esp3 and 57600 baud follow from the kind
//	  port: /dev/ttyUSB0
//
// Keep broker and InfluxDB credentials out of the file; set them through
// the environment instead.
package config
