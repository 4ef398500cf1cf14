package crypto

import (
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

const (
	// NonceSize is the size of a challenge nonce in bytes.
	NonceSize = 16

	// nonceBodySize is the number of nonce bytes placed in counter and hash blocks.
	// The remaining block bytes carry the counter or the payload length.
	nonceBodySize = 13

	// ctrFlags is the first byte of every counter block.
	ctrFlags = 0x01

	// hashFlags is the first byte of the initial hash block.
	hashFlags = 0x39

	// MaxHashLength is the largest payload whose length fits the hash block.
	MaxHashLength = 0xFFFF
)

// Engine implements the keystream, MAC and tag mask over one key.
// An Engine holds no per-call state and is safe for concurrent use.
type Engine struct {
	cipher *BlockCipher
}

// NewEngine creates an Engine keyed with a 16-byte key.
func NewEngine(key []byte) (*Engine, error) {
	c, err := NewBlockCipher(key)
	if err != nil {
		return nil, err
	}
	return &Engine{cipher: c}, nil
}

// Cipher returns the underlying block cipher.
func (e *Engine) Cipher() *BlockCipher {
	return e.cipher
}

// CTRXOR XORs data with the counter-mode keystream derived from nonce.
// Encryption and decryption are the same operation.
//
// The counter block is 0x01 || nonce[0:13] || counter (2 bytes, big-endian).
// The counter is incremented before each block, so the first keystream
// block uses counter 1. len(data) must be a multiple of 16.
func (e *Engine) CTRXOR(nonce, data []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: ctr nonce is %d bytes", ErrInvalidNonceSize, len(nonce))
	}
	if len(data)%BlockSize != 0 {
		return nil, fmt.Errorf("%w: ctr input of %d bytes is not a multiple of %d",
			ErrBufferLength, len(data), BlockSize)
	}

	out := make([]byte, len(data))
	ctr := counterBlock(nonce)

	for i := 0; i < len(data); i += BlockSize {
		incrementCounter(&ctr)
		keystream := e.cipher.encrypt(&ctr)
		subtle.XORBytes(out[i:i+BlockSize], data[i:i+BlockSize], keystream[:])
	}

	return out, nil
}

// Hash computes the chained MAC of data under nonce.
//
// The initial block is 0x39 || nonce[0:13] || len(data) (2 bytes, big-endian).
// Each 16-byte chunk of data is XORed into the running state, which is then
// re-encrypted. len(data) must be a multiple of 16 and at most MaxHashLength.
func (e *Engine) Hash(nonce, data []byte) ([BlockSize]byte, error) {
	var state [BlockSize]byte
	if len(nonce) != NonceSize {
		return state, fmt.Errorf("%w: hash nonce is %d bytes", ErrInvalidNonceSize, len(nonce))
	}
	if len(data)%BlockSize != 0 {
		return state, fmt.Errorf("%w: hash input of %d bytes is not a multiple of %d",
			ErrBufferLength, len(data), BlockSize)
	}
	if len(data) > MaxHashLength {
		return state, fmt.Errorf("%w: hash input of %d bytes exceeds %d",
			ErrBufferLength, len(data), MaxHashLength)
	}

	var b0 [BlockSize]byte
	b0[0] = hashFlags
	copy(b0[1:1+nonceBodySize], nonce)
	binary.BigEndian.PutUint16(b0[BlockSize-2:], uint16(len(data)))

	state = e.cipher.encrypt(&b0)
	for i := 0; i < len(data); i += BlockSize {
		subtle.XORBytes(state[:], state[:], data[i:i+BlockSize])
		state = e.cipher.encrypt(&state)
	}

	return state, nil
}

// MaskTag XORs tag with the encryption of the counter block at position 0.
// Applying MaskTag twice with the same nonce returns the original tag.
func (e *Engine) MaskTag(tag, nonce []byte) ([BlockSize]byte, error) {
	var out [BlockSize]byte
	if len(nonce) != NonceSize {
		return out, fmt.Errorf("%w: mask nonce is %d bytes", ErrInvalidNonceSize, len(nonce))
	}
	if len(tag) != BlockSize {
		return out, fmt.Errorf("%w: tag is %d bytes", ErrBufferLength, len(tag))
	}

	ctr := counterBlock(nonce)
	s0 := e.cipher.encrypt(&ctr)
	subtle.XORBytes(out[:], s0[:], tag)
	return out, nil
}

// Seal encrypts a payload and produces its masked tag under nonce.
// This is the encrypt-then-tag step shared by every challenge layer.
func (e *Engine) Seal(nonce, payload []byte) (ciphertext []byte, tag [BlockSize]byte, err error) {
	ciphertext, err = e.CTRXOR(nonce, payload)
	if err != nil {
		return nil, tag, err
	}
	mac, err := e.Hash(nonce, payload)
	if err != nil {
		return nil, tag, err
	}
	tag, err = e.MaskTag(mac[:], nonce)
	if err != nil {
		return nil, tag, err
	}
	return ciphertext, tag, nil
}

// Open decrypts ciphertext and checks it against the masked tag.
// The plaintext is returned even when ok is false; callers must not use it then.
func (e *Engine) Open(nonce, ciphertext, maskedTag []byte) (plaintext []byte, ok bool, err error) {
	plaintext, err = e.CTRXOR(nonce, ciphertext)
	if err != nil {
		return nil, false, err
	}
	expected, err := e.MaskTag(maskedTag, nonce)
	if err != nil {
		return nil, false, err
	}
	mac, err := e.Hash(nonce, plaintext)
	if err != nil {
		return nil, false, err
	}
	return plaintext, subtle.ConstantTimeCompare(mac[:], expected[:]) == 1, nil
}

// counterBlock builds 0x01 || nonce[0:13] || 0x00 0x00.
func counterBlock(nonce []byte) [BlockSize]byte {
	var ctr [BlockSize]byte
	ctr[0] = ctrFlags
	copy(ctr[1:1+nonceBodySize], nonce)
	return ctr
}

// incrementCounter increments the last two bytes as a wrapping big-endian uint16.
func incrementCounter(ctr *[BlockSize]byte) {
	ctr[BlockSize-1]++
	if ctr[BlockSize-1] == 0 {
		ctr[BlockSize-2]++
	}
}
