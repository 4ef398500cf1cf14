package challenge

import (
	"fmt"

	"github.com/backkem/sfida/pkg/crypto"
)

// OpenChallengeData removes the outer layer of a pairing challenge.
// This is the accessory's side of GenerateInitialChallenge.
func OpenChallengeData(deviceKey []byte, c *ChallengeData) (*MainChallengeData, error) {
	e, err := crypto.NewEngine(deviceKey)
	if err != nil {
		return nil, fmt.Errorf("challenge: open challenge data device key: %w", err)
	}

	plaintext, ok, err := e.Open(c.Nonce[:], c.EncryptedMainChallenge[:], c.EncryptedTag[:])
	if err != nil {
		return nil, fmt.Errorf("challenge: open challenge data: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: outer tag", ErrAuthenticationFailed)
	}

	var mcd MainChallengeData
	if err := mcd.Decode(plaintext); err != nil {
		return nil, err
	}
	if mcd.HardwareID != c.HardwareID {
		return nil, fmt.Errorf("%w: outer %s, inner %s",
			ErrHardwareIDMismatch, c.HardwareID.Reverse(), mcd.HardwareID.Reverse())
	}
	return &mcd, nil
}

// OpenMainChallenge removes the inner layer using the embedded session key.
func OpenMainChallenge(m *MainChallengeData) ([BlockSize]byte, error) {
	var payload [BlockSize]byte

	e, err := crypto.NewEngine(m.Key[:])
	if err != nil {
		return payload, fmt.Errorf("challenge: open main challenge key: %w", err)
	}

	plaintext, ok, err := e.Open(m.Nonce[:], m.EncryptedChallenge[:], m.EncryptedTag[:])
	if err != nil {
		return payload, fmt.Errorf("challenge: open main challenge: %w", err)
	}
	if !ok {
		return payload, fmt.Errorf("%w: inner tag", ErrAuthenticationFailed)
	}
	copy(payload[:], plaintext)
	return payload, nil
}
