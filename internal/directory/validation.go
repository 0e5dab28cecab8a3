package directory

import (
	"fmt"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// ValidateDeviceAddress checks that a device address is plausible for the
// gateway. Bus gateways see actuators as 00-00-xx-xx; radio transceivers see
// devices in the FF-xx-xx-xx range.
//
// A mismatch is usually a configuration mistake, but telegrams are still
// processed; callers log the error as a warning.
func ValidateDeviceAddress(kind enocean.GatewayKind, addr enocean.Address) error {
	if kind.IsBusGateway() {
		if addr[0] != 0x00 || addr[1] != 0x00 {
			return fmt.Errorf("%w: %s gateway expects 00-00-xx-xx, got %s", ErrAddressMismatch, kind, addr)
		}
		return nil
	}
	if addr[0] != 0xFF {
		return fmt.Errorf("%w: %s gateway expects FF-xx-xx-xx, got %s", ErrAddressMismatch, kind, addr)
	}
	return nil
}

// ValidateSenderAddress checks that a sender address lies in the gateway's
// base-ID range, which transceivers require to transmit. A zero base ID
// (bus gateways, or not yet read) accepts any sender.
func ValidateSenderAddress(baseID, addr enocean.Address) error {
	if baseID.IsZero() {
		return nil
	}
	if addr[0] != baseID[0] {
		return fmt.Errorf("%w: sender %s is outside base id %s", ErrAddressMismatch, addr, baseID)
	}
	return nil
}
