// Package accessory implements the accessory end of the pairing and
// reconnect flows. It backs the simulate command and the flow tests.
package accessory

import (
	"context"
	"fmt"
	"sync"

	"github.com/backkem/sfida/pkg/challenge"
	"github.com/backkem/sfida/pkg/crypto"
	"github.com/backkem/sfida/pkg/link"
	"github.com/backkem/sfida/pkg/pairing"
	"github.com/pion/logging"
)

// DeviceConfig configures a Device.
type DeviceConfig struct {
	// Link reaches the host.
	Link link.Link

	// HardwareID is the accessory's identifier, most significant byte first.
	HardwareID challenge.HardwareID

	// DeviceKey is the provisioned 16-byte device key.
	DeviceKey [crypto.KeySize]byte

	// Nonces supplies nonces for accessory-originated challenges.
	// If nil, 16 random bytes from crypto/rand are used per nonce.
	Nonces challenge.NonceSource

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Device is a simulated accessory.
type Device struct {
	link      link.Link
	hwID      challenge.HardwareID
	deviceKey [crypto.KeySize]byte
	nonces    challenge.NonceSource
	log       logging.LeveledLogger

	mu         sync.Mutex
	sessionKey []byte
}

// NewDevice creates a new Device.
func NewDevice(config DeviceConfig) (*Device, error) {
	if config.Link == nil {
		return nil, ErrNilLink
	}
	d := &Device{
		link:      config.Link,
		hwID:      config.HardwareID,
		deviceKey: config.DeviceKey,
		nonces:    config.Nonces,
	}
	if d.nonces == nil {
		d.nonces = challenge.NewRandomNonceSource(nil)
	}
	if config.LoggerFactory != nil {
		d.log = config.LoggerFactory.NewLogger("accessory")
	}
	return d, nil
}

// SessionKey returns the session key learned during pairing.
func (d *Device) SessionKey() ([crypto.KeySize]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var key [crypto.KeySize]byte
	if d.sessionKey == nil {
		return key, false
	}
	copy(key[:], d.sessionKey)
	return key, true
}

// AcceptPairing serves one pairing flow started by the host.
// On success the session key is kept for later reconnects.
func (d *Device) AcceptPairing(ctx context.Context) error {
	raw, err := d.link.Read(ctx, link.CentralToAccessory)
	if err != nil {
		return fmt.Errorf("accessory: read challenge data: %w", err)
	}
	var cd challenge.ChallengeData
	if err := cd.Decode(raw); err != nil {
		return err
	}
	if cd.HardwareID != d.hwID.Reverse() {
		d.warnf("challenge for %s ignored", cd.HardwareID.Reverse())
		return fmt.Errorf("%w: %s", ErrWrongAccessory, cd.HardwareID.Reverse())
	}

	mcd, err := challenge.OpenChallengeData(d.deviceKey[:], &cd)
	if err != nil {
		d.warnf("outer layer: %v", err)
		return err
	}
	payload, err := challenge.OpenMainChallenge(mcd)
	if err != nil {
		d.warnf("inner layer: %v", err)
		return err
	}
	d.debugf("opened challenge, blob %d bytes", len(cd.Blob))

	// Prove both layers were opened by echoing the payload under the session key.
	nonce, err := d.nonces.Nonce()
	if err != nil {
		return err
	}
	echo, err := challenge.GenerateNextChallenge(payload[:], mcd.Key[:], nonce)
	if err != nil {
		return err
	}
	if err := d.link.Write(ctx, link.AccessoryToCentral, echo.Encode()); err != nil {
		return fmt.Errorf("accessory: send challenge answer: %w", err)
	}

	raw, err = d.link.Read(ctx, link.CentralToAccessory)
	if err != nil {
		return fmt.Errorf("accessory: read round challenge: %w", err)
	}
	var round challenge.NextChallenge
	if err := round.Decode(raw); err != nil {
		return err
	}
	valid, _, err := challenge.DecryptNext(mcd.Key[:], &round)
	if err != nil {
		return err
	}
	if !valid {
		d.warnf("invalid round challenge")
		return fmt.Errorf("%w: round challenge", challenge.ErrAuthenticationFailed)
	}
	resp, err := challenge.GenerateReconnectResponse(mcd.Key[:], &round)
	if err != nil {
		return err
	}
	if err := d.link.Write(ctx, link.AccessoryToCentral, resp[:]); err != nil {
		return fmt.Errorf("accessory: send round response: %w", err)
	}

	d.mu.Lock()
	d.sessionKey = append([]byte(nil), mcd.Key[:]...)
	d.mu.Unlock()

	d.infof("paired as %s", d.hwID)
	return nil
}

// Reconnect challenges the host and reports the verdict on the commands
// characteristic.
func (d *Device) Reconnect(ctx context.Context) error {
	key, ok := d.SessionKey()
	if !ok {
		return ErrNotPaired
	}

	nonce, err := d.nonces.Nonce()
	if err != nil {
		return err
	}
	nc, err := challenge.GenerateNextChallenge(nil, key[:], nonce)
	if err != nil {
		return err
	}
	if err := d.link.Write(ctx, link.AccessoryToCentral, nc.Encode()); err != nil {
		return fmt.Errorf("accessory: send reconnect challenge: %w", err)
	}

	resp, err := d.link.Read(ctx, link.CentralToAccessory)
	if err != nil {
		return fmt.Errorf("accessory: read reconnect response: %w", err)
	}
	ok, err = challenge.VerifyReconnectResponse(key[:], nc, resp)
	if err != nil {
		return err
	}

	status := pairing.StatusAccepted
	if !ok {
		status = pairing.StatusRejected
	}
	if err := d.link.Write(ctx, link.AccessoryCommands, []byte{byte(status)}); err != nil {
		return fmt.Errorf("accessory: send status: %w", err)
	}
	if !ok {
		d.warnf("reconnect response rejected")
		return fmt.Errorf("%w: reconnect response", challenge.ErrAuthenticationFailed)
	}

	d.infof("reconnect accepted")
	return nil
}

func (d *Device) infof(format string, args ...interface{}) {
	if d.log != nil {
		d.log.Infof(format, args...)
	}
}

func (d *Device) debugf(format string, args ...interface{}) {
	if d.log != nil {
		d.log.Debugf(format, args...)
	}
}

func (d *Device) warnf(format string, args ...interface{}) {
	if d.log != nil {
		d.log.Warnf(format, args...)
	}
}
