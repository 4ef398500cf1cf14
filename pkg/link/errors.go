package link

import "errors"

// Link errors
var (
	// ErrClosed indicates an operation on a closed link.
	ErrClosed = errors.New("link: closed")

	// ErrUnknownCharacteristic indicates an unsupported characteristic.
	ErrUnknownCharacteristic = errors.New("link: unknown characteristic")

	// ErrValueTooLarge indicates a value exceeding the link's maximum size.
	ErrValueTooLarge = errors.New("link: value too large")

	// ErrMalformedPacket indicates a packet without a characteristic header.
	ErrMalformedPacket = errors.New("link: malformed packet")
)
