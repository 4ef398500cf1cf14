// Package link defines how the challenge flows reach the accessory: opaque
// byte buffers written to and read from characteristics of its certificate
// service.
package link

import (
	"context"
	"fmt"
)

// Characteristic addresses one value of the accessory's certificate service.
type Characteristic uint8

// Certificate service characteristics.
const (
	// CentralToAccessory carries host-to-accessory challenge records.
	CentralToAccessory Characteristic = iota + 1

	// AccessoryCommands carries accessory status notifications.
	AccessoryCommands

	// AccessoryToCentral carries accessory-to-host challenge records.
	AccessoryToCentral
)

// String returns the characteristic name.
func (c Characteristic) String() string {
	switch c {
	case CentralToAccessory:
		return "central-to-accessory"
	case AccessoryCommands:
		return "accessory-commands"
	case AccessoryToCentral:
		return "accessory-to-central"
	default:
		return fmt.Sprintf("Characteristic(%d)", uint8(c))
	}
}

// Valid reports whether c is a known characteristic.
func (c Characteristic) Valid() bool {
	return c >= CentralToAccessory && c <= AccessoryToCentral
}

// Link exchanges opaque buffers with a peer.
// Framing, addressing and retries are the implementation's concern.
type Link interface {
	// Write sends one value to the characteristic.
	Write(ctx context.Context, ch Characteristic, data []byte) error

	// Read blocks until a value for the characteristic arrives.
	Read(ctx context.Context, ch Characteristic) ([]byte, error)

	// Close releases the link. Pending reads return ErrClosed.
	Close() error
}
