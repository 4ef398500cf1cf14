package secrets

import "errors"

// Secrets errors
var (
	// ErrInvalidDeviceKey indicates a device key that is not 16 bytes.
	ErrInvalidDeviceKey = errors.New("secrets: invalid device key, must be 16 bytes")

	// ErrInvalidBlob indicates a blob that is not 256 bytes.
	ErrInvalidBlob = errors.New("secrets: invalid blob, must be 256 bytes")

	// ErrMissingField indicates a required file entry is absent.
	ErrMissingField = errors.New("secrets: missing field")

	// ErrAmbiguousField indicates both the inline and the file form of a field are set.
	ErrAmbiguousField = errors.New("secrets: field set both inline and as a file")
)
