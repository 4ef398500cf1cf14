package accessory

import "errors"

// Accessory errors
var (
	// ErrNilLink indicates a missing link in the configuration.
	ErrNilLink = errors.New("accessory: nil link")

	// ErrNotPaired indicates a reconnect before a successful pairing.
	ErrNotPaired = errors.New("accessory: not paired")

	// ErrWrongAccessory indicates a pairing challenge addressed to another hardware ID.
	ErrWrongAccessory = errors.New("accessory: challenge addressed to another accessory")
)
