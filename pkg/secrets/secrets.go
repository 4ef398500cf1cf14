// Package secrets supplies the long-term device key and the opaque blob that
// the pairing challenge carries to the accessory.
package secrets

import (
	"context"
	"fmt"
)

const (
	// DeviceKeySize is the device key size in bytes.
	DeviceKeySize = 16

	// BlobSize is the size of the opaque provisioning blob in bytes.
	BlobSize = 256
)

// Secrets holds the provisioned material for one accessory.
// Both fields are opaque to the protocol layer.
type Secrets struct {
	DeviceKey [DeviceKeySize]byte
	Blob      [BlobSize]byte
}

// New builds Secrets from slices, requiring exact sizes.
func New(deviceKey, blob []byte) (Secrets, error) {
	var s Secrets
	if len(deviceKey) != DeviceKeySize {
		return s, fmt.Errorf("%w: got %d bytes", ErrInvalidDeviceKey, len(deviceKey))
	}
	if len(blob) != BlobSize {
		return s, fmt.Errorf("%w: got %d bytes", ErrInvalidBlob, len(blob))
	}
	copy(s.DeviceKey[:], deviceKey)
	copy(s.Blob[:], blob)
	return s, nil
}

// Provider supplies secrets to the pairing flow.
type Provider interface {
	Secrets(ctx context.Context) (Secrets, error)
}

// staticProvider returns a fixed value.
type staticProvider struct {
	s Secrets
}

// Static returns a Provider that always yields s.
func Static(s Secrets) Provider {
	return staticProvider{s: s}
}

func (p staticProvider) Secrets(ctx context.Context) (Secrets, error) {
	if err := ctx.Err(); err != nil {
		return Secrets{}, err
	}
	return p.s, nil
}
