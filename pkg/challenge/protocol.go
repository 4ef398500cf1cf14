package challenge

import (
	"crypto/subtle"
	"fmt"

	"github.com/backkem/sfida/pkg/crypto"
	"github.com/backkem/sfida/pkg/secrets"
)

// DefaultPayload is the round challenge payload used when none is given.
var DefaultPayload = [BlockSize]byte{0xAA}

// GenerateInitialChallenge builds the pairing challenge for one accessory.
//
// The payload is sealed under sessionKey and sessionNonce into a
// MainChallengeData record, which is in turn sealed under the device key
// and outerNonce. The provisioned blob is carried through unchanged.
//
// Parameters:
//   - s: provisioned device key and blob
//   - hwID: accessory hardware identifier (most significant byte first)
//   - payload: 16-byte challenge payload
//   - sessionNonce: nonce for the inner layer
//   - sessionKey: 16-byte session key for the inner layer
//   - outerNonce: nonce for the outer layer
func GenerateInitialChallenge(
	s secrets.Secrets,
	hwID HardwareID,
	payload []byte,
	sessionNonce Nonce,
	sessionKey []byte,
	outerNonce Nonce,
) (*ChallengeData, error) {
	if len(payload) != BlockSize {
		return nil, fmt.Errorf("%w: initial challenge payload is %d bytes, want %d",
			ErrBufferLength, len(payload), BlockSize)
	}

	revID := hwID.Reverse()

	inner, err := crypto.NewEngine(sessionKey)
	if err != nil {
		return nil, fmt.Errorf("challenge: initial challenge session key: %w", err)
	}
	encChallenge, innerTag, err := inner.Seal(sessionNonce[:], payload)
	if err != nil {
		return nil, fmt.Errorf("challenge: initial challenge inner layer: %w", err)
	}

	mcd := MainChallengeData{
		HardwareID:   revID,
		Nonce:        sessionNonce,
		EncryptedTag: innerTag,
	}
	copy(mcd.Key[:], sessionKey)
	copy(mcd.EncryptedChallenge[:], encChallenge)

	outer, err := crypto.NewEngine(s.DeviceKey[:])
	if err != nil {
		return nil, fmt.Errorf("challenge: initial challenge device key: %w", err)
	}
	encMain, outerTag, err := outer.Seal(outerNonce[:], mcd.Encode())
	if err != nil {
		return nil, fmt.Errorf("challenge: initial challenge outer layer: %w", err)
	}

	cd := &ChallengeData{
		Nonce:        outerNonce,
		EncryptedTag: outerTag,
		HardwareID:   revID,
		Blob:         s.Blob,
	}
	copy(cd.EncryptedMainChallenge[:], encMain)
	return cd, nil
}

// GenerateNextChallenge seals a 16-byte payload into a round challenge.
// A nil payload selects DefaultPayload.
func GenerateNextChallenge(payload []byte, key []byte, nonce Nonce) (*NextChallenge, error) {
	if payload == nil {
		payload = DefaultPayload[:]
	}
	if len(payload) != BlockSize {
		return nil, fmt.Errorf("%w: next challenge payload is %d bytes, want %d",
			ErrBufferLength, len(payload), BlockSize)
	}

	e, err := crypto.NewEngine(key)
	if err != nil {
		return nil, fmt.Errorf("challenge: next challenge key: %w", err)
	}
	encChallenge, tag, err := e.Seal(nonce[:], payload)
	if err != nil {
		return nil, fmt.Errorf("challenge: next challenge: %w", err)
	}

	nc := &NextChallenge{
		Nonce:        nonce,
		EncryptedTag: tag,
	}
	copy(nc.EncryptedChallenge[:], encChallenge)
	return nc, nil
}

// DecryptNext decrypts a round challenge and verifies its tag.
//
// valid reports whether the tag matches the decrypted payload. When valid is
// false the peer is unauthenticated and payload is all zero. err is only set
// for unusable keys.
func DecryptNext(key []byte, c *NextChallenge) (valid bool, payload [BlockSize]byte, err error) {
	e, err := crypto.NewEngine(key)
	if err != nil {
		return false, payload, fmt.Errorf("challenge: decrypt next key: %w", err)
	}

	plaintext, ok, err := e.Open(c.Nonce[:], c.EncryptedChallenge[:], c.EncryptedTag[:])
	if err != nil {
		return false, payload, fmt.Errorf("challenge: decrypt next: %w", err)
	}
	if !ok {
		return false, payload, nil
	}
	copy(payload[:], plaintext)
	return true, payload, nil
}

// GenerateReconnectResponse computes the 16-byte answer to a reconnect challenge.
//
// The first block of the 48-byte form is encrypted once with the key and
// XORed with the challenge nonce. Since the 48-byte form starts with the
// nonce, the response is E(key, nonce) XOR nonce.
func GenerateReconnectResponse(key []byte, c *NextChallenge) ([BlockSize]byte, error) {
	var resp [BlockSize]byte

	bc, err := crypto.NewBlockCipher(key)
	if err != nil {
		return resp, fmt.Errorf("challenge: reconnect response key: %w", err)
	}

	form := c.EncodeReconnect()
	out, err := bc.EncryptBlock(form[:BlockSize])
	if err != nil {
		return resp, fmt.Errorf("challenge: reconnect response: %w", err)
	}
	subtle.XORBytes(resp[:], out[:], c.Nonce[:])
	return resp, nil
}

// VerifyReconnectResponse checks a peer's reconnect response in constant time.
func VerifyReconnectResponse(key []byte, c *NextChallenge, response []byte) (bool, error) {
	if len(response) != BlockSize {
		return false, fmt.Errorf("%w: reconnect response is %d bytes, want %d",
			ErrBufferLength, len(response), BlockSize)
	}
	expected, err := GenerateReconnectResponse(key, c)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(expected[:], response) == 1, nil
}
