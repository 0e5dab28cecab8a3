package enocean

import (
	"fmt"
	"strings"
)

// GatewayKind identifies the hardware between the host and the bus.
type GatewayKind string

// Supported gateways.
const (
	// GatewayFAM14 is the Eltako FAM14 bus gateway on the RS485 bus.
	GatewayFAM14 GatewayKind = "fam14"
	// GatewayFGW14USB is the Eltako FGW14-USB bus gateway.
	GatewayFGW14USB GatewayKind = "fgw14-usb"
	// GatewayFAMUSB is the Eltako FAM-USB radio transceiver.
	GatewayFAMUSB GatewayKind = "fam-usb"
	// GatewayUSB300 is the EnOcean USB300 radio transceiver.
	GatewayUSB300 GatewayKind = "usb300"
	// GatewayESP3 is any other ESP3 transceiver.
	GatewayESP3 GatewayKind = "esp3-generic"
)

// Serial speeds used by the gateways.
const (
	BaudBus  = 57600
	BaudFAM  = 9600
	BaudESP3 = 57600
)

// GatewayKinds lists every supported gateway kind.
func GatewayKinds() []GatewayKind {
	return []GatewayKind{GatewayFAM14, GatewayFGW14USB, GatewayFAMUSB, GatewayUSB300, GatewayESP3}
}

// ParseGatewayKind parses a kind name case-insensitively.
func ParseGatewayKind(s string) (GatewayKind, error) {
	k := GatewayKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range GatewayKinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("enocean: unknown gateway kind %q", s)
}

// Generation returns the serial protocol the gateway speaks.
func (k GatewayKind) Generation() Generation {
	switch k {
	case GatewayUSB300, GatewayESP3:
		return ESP3
	default:
		return ESP2
	}
}

// DefaultBaud returns the serial speed the gateway ships with.
func (k GatewayKind) DefaultBaud() int {
	switch k {
	case GatewayFAMUSB:
		return BaudFAM
	case GatewayUSB300, GatewayESP3:
		return BaudESP3
	default:
		return BaudBus
	}
}

// IsBusGateway reports whether the gateway sits on the RS485 bus rather
// than on the radio side.
func (k GatewayKind) IsBusGateway() bool {
	return k == GatewayFAM14 || k == GatewayFGW14USB
}

// AcksSends reports whether the gateway confirms each transmitted telegram.
// The FGW14-USB forwards telegrams without a response.
func (k GatewayKind) AcksSends() bool {
	return k != GatewayFGW14USB
}
