package pairing

import "errors"

// Pairing errors
var (
	// ErrNilLink indicates a missing link in the configuration.
	ErrNilLink = errors.New("pairing: nil link")

	// ErrNilSecrets indicates a missing secrets provider in the configuration.
	ErrNilSecrets = errors.New("pairing: nil secrets provider")

	// ErrNilSession indicates a reconnect without a paired session.
	ErrNilSession = errors.New("pairing: nil session")

	// ErrTimeout indicates the accessory did not answer in time.
	ErrTimeout = errors.New("pairing: timeout waiting for accessory")

	// ErrPayloadMismatch indicates the accessory echoed a different challenge payload.
	ErrPayloadMismatch = errors.New("pairing: challenge payload mismatch")

	// ErrRejected indicates the accessory reported a failed verification.
	ErrRejected = errors.New("pairing: rejected by accessory")

	// ErrUnexpectedStatus indicates an unknown accessory status value.
	ErrUnexpectedStatus = errors.New("pairing: unexpected accessory status")
)
