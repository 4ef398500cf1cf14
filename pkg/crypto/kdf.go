package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// sessionKeyInfo is the HKDF info string for pairing session keys.
var sessionKeyInfo = []byte("sfida session key")

// SessionSeedSize is the amount of input keying material drawn per session key.
const SessionSeedSize = 32

// DeriveSessionKey derives a 16-byte pairing session key using HKDF-SHA256.
//
// Parameters:
//   - seed: fresh input keying material, at least 16 bytes
//   - salt: binds the key to one accessory, normally its hardware identifier
func DeriveSessionKey(seed, salt []byte) ([KeySize]byte, error) {
	var key [KeySize]byte
	if len(seed) < KeySize {
		return key, fmt.Errorf("%w: session seed is %d bytes", ErrBufferLength, len(seed))
	}
	if len(salt) == 0 {
		return key, ErrInvalidSalt
	}

	reader := hkdf.New(sha256.New, seed, salt, sessionKeyInfo)
	if _, err := io.ReadFull(reader, key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// NewSessionKey draws SessionSeedSize bytes from rand and derives a session key.
func NewSessionKey(rand io.Reader, salt []byte) ([KeySize]byte, error) {
	seed := make([]byte, SessionSeedSize)
	if _, err := io.ReadFull(rand, seed); err != nil {
		return [KeySize]byte{}, fmt.Errorf("crypto: read session seed: %w", err)
	}
	return DeriveSessionKey(seed, salt)
}
