// Package crypto provides the AES-128 primitives used by the accessory
// challenge-response protocol: a single-block cipher, a counter-mode keystream,
// a length-bound chained MAC and a nonce-bound tag mask.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	// KeySize is the AES-128 key size in bytes.
	KeySize = 16

	// BlockSize is the AES block size in bytes.
	BlockSize = aes.BlockSize
)

// BlockCipher wraps a keyed AES-128 block cipher.
//
// The Go AES implementation holds only the expanded key, so every
// EncryptBlock call behaves as if issued against a freshly keyed cipher.
type BlockCipher struct {
	block cipher.Block
}

// NewBlockCipher keys a new AES-128 block cipher.
// The key must be exactly 16 bytes.
func NewBlockCipher(key []byte) (*BlockCipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return &BlockCipher{block: block}, nil
}

// EncryptBlock encrypts exactly one 16-byte block (ECB, no chaining).
func (c *BlockCipher) EncryptBlock(src []byte) ([BlockSize]byte, error) {
	var out [BlockSize]byte
	if len(src) != BlockSize {
		return out, fmt.Errorf("%w: got %d bytes", ErrInvalidBlockSize, len(src))
	}
	c.block.Encrypt(out[:], src)
	return out, nil
}

// encrypt is EncryptBlock for callers that already hold a full block.
func (c *BlockCipher) encrypt(src *[BlockSize]byte) [BlockSize]byte {
	var out [BlockSize]byte
	c.block.Encrypt(out[:], src[:])
	return out
}
