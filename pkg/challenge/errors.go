package challenge

import "errors"

// Challenge errors
var (
	// ErrBufferLength indicates a wire buffer or payload of the wrong size.
	ErrBufferLength = errors.New("challenge: invalid buffer length")

	// ErrAuthenticationFailed indicates a tag that does not match its payload.
	ErrAuthenticationFailed = errors.New("challenge: authentication failed")

	// ErrHardwareIDMismatch indicates a challenge addressed to another accessory.
	ErrHardwareIDMismatch = errors.New("challenge: hardware identifier mismatch")

	// ErrInvalidHardwareID indicates unparseable hardware identifier text.
	ErrInvalidHardwareID = errors.New("challenge: invalid hardware identifier")

	// ErrNonceSource indicates the randomness source failed.
	ErrNonceSource = errors.New("challenge: nonce source failed")
)
