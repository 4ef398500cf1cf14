package crypto

import "errors"

// Errors
var (
	// ErrInvalidKeySize indicates a key that is not 16 bytes.
	ErrInvalidKeySize = errors.New("crypto: invalid key size, must be 16 bytes")

	// ErrInvalidBlockSize indicates a single-block input that is not 16 bytes.
	ErrInvalidBlockSize = errors.New("crypto: invalid block size, must be 16 bytes")

	// ErrInvalidNonceSize indicates a nonce that is not 16 bytes.
	ErrInvalidNonceSize = errors.New("crypto: invalid nonce size, must be 16 bytes")

	// ErrBufferLength indicates keystream or hash input that is not a whole
	// number of blocks, or too long for the 16-bit length field.
	ErrBufferLength = errors.New("crypto: invalid buffer length")

	// ErrInvalidSalt indicates an empty salt for session key derivation.
	ErrInvalidSalt = errors.New("crypto: session key salt must not be empty")
)
