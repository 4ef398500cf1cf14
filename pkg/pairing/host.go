// Package pairing runs the host side of the accessory pairing and reconnect
// flows over a link.
package pairing

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/backkem/sfida/pkg/challenge"
	"github.com/backkem/sfida/pkg/crypto"
	"github.com/backkem/sfida/pkg/link"
	"github.com/backkem/sfida/pkg/secrets"
	"github.com/pion/logging"
)

// DefaultTimeout bounds one flow when the context carries no deadline.
const DefaultTimeout = 10 * time.Second

// Session is the result of a successful pairing.
type Session struct {
	HardwareID challenge.HardwareID
	Key        [crypto.KeySize]byte
}

// HostConfig configures a Host.
type HostConfig struct {
	// Link reaches the accessory.
	Link link.Link

	// Secrets supplies the device key and blob.
	Secrets secrets.Provider

	// Nonces supplies challenge nonces.
	// If nil, 16 random bytes from crypto/rand are used per nonce.
	Nonces challenge.NonceSource

	// Rand supplies session key seeds and challenge payloads.
	// If nil, crypto/rand.Reader is used.
	Rand io.Reader

	// Timeout bounds Pair and Reconnect when ctx has no deadline.
	// Default: DefaultTimeout
	Timeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Host pairs with and re-authenticates an accessory.
//
// The pairing flow (host perspective):
//  1. Send ChallengeData on CentralToAccessory
//  2. Receive NextChallenge echoing the challenge payload on AccessoryToCentral
//  3. Send a round NextChallenge on CentralToAccessory
//  4. Receive and check the reconnect response on AccessoryToCentral
//
// The reconnect flow (host perspective):
//  1. Receive NextChallenge on AccessoryToCentral
//  2. Send the reconnect response on CentralToAccessory
//  3. Receive the accessory status on AccessoryCommands
type Host struct {
	link     link.Link
	provider secrets.Provider
	nonces   challenge.NonceSource
	rand     io.Reader
	timeout  time.Duration
	log      logging.LeveledLogger
}

// NewHost creates a new Host.
func NewHost(config HostConfig) (*Host, error) {
	if config.Link == nil {
		return nil, ErrNilLink
	}
	if config.Secrets == nil {
		return nil, ErrNilSecrets
	}

	h := &Host{
		link:     config.Link,
		provider: config.Secrets,
		nonces:   config.Nonces,
		rand:     config.Rand,
		timeout:  config.Timeout,
	}
	if h.rand == nil {
		h.rand = rand.Reader
	}
	if h.nonces == nil {
		h.nonces = challenge.NewRandomNonceSource(h.rand)
	}
	if h.timeout == 0 {
		h.timeout = DefaultTimeout
	}
	if config.LoggerFactory != nil {
		h.log = config.LoggerFactory.NewLogger("pairing")
	}
	return h, nil
}

// Pair runs the pairing flow with the accessory identified by hwID.
func (h *Host) Pair(ctx context.Context, hwID challenge.HardwareID) (*Session, error) {
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	h.infof("pairing with %s", hwID)

	s, err := h.provider.Secrets(ctx)
	if err != nil {
		return nil, fmt.Errorf("pairing: load secrets: %w", err)
	}

	sessionKey, err := crypto.NewSessionKey(h.rand, hwID[:])
	if err != nil {
		return nil, err
	}
	var payload [challenge.BlockSize]byte
	if _, err := io.ReadFull(h.rand, payload[:]); err != nil {
		return nil, fmt.Errorf("pairing: read challenge payload: %w", err)
	}
	sessionNonce, err := h.nonces.Nonce()
	if err != nil {
		return nil, err
	}
	outerNonce, err := h.nonces.Nonce()
	if err != nil {
		return nil, err
	}
	h.debugf("session nonce %x, outer nonce %x", sessionNonce, outerNonce)

	// Step 1: initial challenge
	cd, err := challenge.GenerateInitialChallenge(s, hwID, payload[:], sessionNonce, sessionKey[:], outerNonce)
	if err != nil {
		return nil, err
	}
	if err := h.link.Write(ctx, link.CentralToAccessory, cd.Encode()); err != nil {
		return nil, fmt.Errorf("pairing: send initial challenge: %w", err)
	}

	// Step 2: the accessory proves it opened both layers
	echo, err := h.readNext(ctx)
	if err != nil {
		return nil, err
	}
	valid, echoed, err := challenge.DecryptNext(sessionKey[:], echo)
	if err != nil {
		return nil, err
	}
	if !valid {
		h.warnf("accessory %s: invalid tag on challenge answer", hwID)
		return nil, fmt.Errorf("%w: challenge answer", challenge.ErrAuthenticationFailed)
	}
	if subtle.ConstantTimeCompare(echoed[:], payload[:]) != 1 {
		h.warnf("accessory %s: challenge payload mismatch", hwID)
		return nil, ErrPayloadMismatch
	}

	// Step 3: first round challenge under the session key
	roundNonce, err := h.nonces.Nonce()
	if err != nil {
		return nil, err
	}
	round, err := challenge.GenerateNextChallenge(nil, sessionKey[:], roundNonce)
	if err != nil {
		return nil, err
	}
	if err := h.link.Write(ctx, link.CentralToAccessory, round.Encode()); err != nil {
		return nil, fmt.Errorf("pairing: send round challenge: %w", err)
	}

	// Step 4: round response
	resp, err := h.read(ctx, link.AccessoryToCentral)
	if err != nil {
		return nil, err
	}
	ok, err := challenge.VerifyReconnectResponse(sessionKey[:], round, resp)
	if err != nil {
		return nil, err
	}
	if !ok {
		h.warnf("accessory %s: invalid round response", hwID)
		return nil, fmt.Errorf("%w: round response", challenge.ErrAuthenticationFailed)
	}

	h.infof("paired with %s", hwID)
	return &Session{HardwareID: hwID, Key: sessionKey}, nil
}

// Reconnect answers the accessory's reconnect challenge for a paired session.
func (h *Host) Reconnect(ctx context.Context, session *Session) error {
	if session == nil {
		return ErrNilSession
	}
	ctx, cancel := h.withTimeout(ctx)
	defer cancel()

	h.infof("reconnecting to %s", session.HardwareID)

	// Step 1: accessory challenge
	nc, err := h.readNext(ctx)
	if err != nil {
		return err
	}
	valid, _, err := challenge.DecryptNext(session.Key[:], nc)
	if err != nil {
		return err
	}
	if !valid {
		h.warnf("accessory %s: invalid reconnect challenge", session.HardwareID)
		return fmt.Errorf("%w: reconnect challenge", challenge.ErrAuthenticationFailed)
	}

	// Step 2: response
	resp, err := challenge.GenerateReconnectResponse(session.Key[:], nc)
	if err != nil {
		return err
	}
	if err := h.link.Write(ctx, link.CentralToAccessory, resp[:]); err != nil {
		return fmt.Errorf("pairing: send reconnect response: %w", err)
	}

	// Step 3: verdict
	raw, err := h.read(ctx, link.AccessoryCommands)
	if err != nil {
		return err
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	if status != StatusAccepted {
		h.warnf("accessory %s rejected reconnect response", session.HardwareID)
		return ErrRejected
	}

	h.infof("reconnected to %s", session.HardwareID)
	return nil
}

func (h *Host) readNext(ctx context.Context) (*challenge.NextChallenge, error) {
	raw, err := h.read(ctx, link.AccessoryToCentral)
	if err != nil {
		return nil, err
	}
	var nc challenge.NextChallenge
	if err := nc.Decode(raw); err != nil {
		return nil, err
	}
	return &nc, nil
}

func (h *Host) read(ctx context.Context, ch link.Characteristic) ([]byte, error) {
	data, err := h.link.Read(ctx, ch)
	if errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrTimeout, ch)
	}
	if err != nil {
		return nil, fmt.Errorf("pairing: read %s: %w", ch, err)
	}
	return data, nil
}

func (h *Host) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *Host) infof(format string, args ...interface{}) {
	if h.log != nil {
		h.log.Infof(format, args...)
	}
}

func (h *Host) debugf(format string, args ...interface{}) {
	if h.log != nil {
		h.log.Debugf(format, args...)
	}
}

func (h *Host) warnf(format string, args ...interface{}) {
	if h.log != nil {
		h.log.Warnf(format, args...)
	}
}
