package enocean

import "fmt"

// ORG is the ESP2 organisation byte identifying the telegram family.
type ORG byte

// ESP2 organisation values.
const (
	// OrgRPS is a repeated switch telegram (rocker, window handle, relay status).
	OrgRPS ORG = 0x05

	// Org1BS is a one-byte sensor telegram (contacts).
	Org1BS ORG = 0x06

	// Org4BS is a four-byte sensor telegram (analogue sensors, central commands).
	Org4BS ORG = 0x07

	// OrgGatewayOK is the ESP2 gateway "OK" response carried in an RMT telegram.
	OrgGatewayOK ORG = 0x58

	// OrgGatewayError is the ESP2 gateway "ERR" response carried in an RMT telegram.
	OrgGatewayError ORG = 0x19
)

// RORG is the ESP3 radio organisation byte.
type RORG byte

// ESP3 RORG values.
const (
	RORGRPS RORG = 0xF6
	RORG1BS RORG = 0xD5
	RORG4BS RORG = 0xA5
	RORGVLD RORG = 0xD2
)

// RORG returns the ESP3 radio organisation for an ESP2 radio ORG.
// The boolean is false for ORG values that are not radio telegrams.
func (o ORG) RORG() (RORG, bool) {
	switch o {
	case OrgRPS:
		return RORGRPS, true
	case Org1BS:
		return RORG1BS, true
	case Org4BS:
		return RORG4BS, true
	default:
		return 0, false
	}
}

// PayloadLen returns the number of meaningful data bytes for a radio ORG.
// RPS and 1BS carry one byte, 4BS carries four. Other values return 0.
func (o ORG) PayloadLen() int {
	switch o {
	case OrgRPS, Org1BS:
		return 1
	case Org4BS:
		return 4 //nolint:mnd // 4BS
	default:
		return 0
	}
}

// String returns a short name for the organisation.
func (o ORG) String() string {
	switch o {
	case OrgRPS:
		return "RPS"
	case Org1BS:
		return "1BS"
	case Org4BS:
		return "4BS"
	case OrgGatewayOK:
		return "OK"
	case OrgGatewayError:
		return "ERR"
	default:
		return fmt.Sprintf("ORG(0x%02X)", byte(o))
	}
}

// ORG returns the ESP2 organisation for an ESP3 radio organisation.
func (r RORG) ORG() (ORG, bool) {
	switch r {
	case RORGRPS:
		return OrgRPS, true
	case RORG1BS:
		return Org1BS, true
	case RORG4BS:
		return Org4BS, true
	default:
		return 0, false
	}
}

// String returns the conventional hex name of the RORG (e.g. "A5").
func (r RORG) String() string {
	return fmt.Sprintf("%02X", byte(r))
}

// Generation identifies the serial protocol generation of a gateway.
type Generation string

// Supported protocol generations.
const (
	ESP2 Generation = "esp2"
	ESP3 Generation = "esp3"
)

// Valid reports whether g is a known generation.
func (g Generation) Valid() bool {
	return g == ESP2 || g == ESP3
}
