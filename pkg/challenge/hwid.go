package challenge

import (
	"fmt"
	"net"
)

// HardwareIDSize is the size of the accessory hardware identifier.
const HardwareIDSize = 6

// HardwareID is the accessory's 6-byte link-layer address, most significant byte first.
type HardwareID [HardwareIDSize]byte

// ParseHardwareID parses "AA:BB:CC:DD:EE:FF" (or '-' separated) text.
func ParseHardwareID(s string) (HardwareID, error) {
	var id HardwareID
	mac, err := net.ParseMAC(s)
	if err != nil {
		return id, fmt.Errorf("%w: %v", ErrInvalidHardwareID, err)
	}
	if len(mac) != HardwareIDSize {
		return id, fmt.Errorf("%w: %q is %d bytes", ErrInvalidHardwareID, s, len(mac))
	}
	copy(id[:], mac)
	return id, nil
}

// Reverse returns the identifier in the byte order used on the wire.
func (id HardwareID) Reverse() HardwareID {
	var r HardwareID
	for i := range id {
		r[i] = id[HardwareIDSize-1-i]
	}
	return r
}

// String formats the identifier as colon-separated upper-case hex.
func (id HardwareID) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", id[0], id[1], id[2], id[3], id[4], id[5])
}
