// Package challenge implements the accessory pairing and reconnect
// challenges: the fixed-layout records exchanged with the accessory and the
// operations that create, answer and verify them.
//
// Wire layouts (offset:length):
//
//	MainChallengeData (80)  hwId 0:6, key 6:16, nonce 22:16, encChallenge 38:16, encTag 54:16, reserved 70:10
//	ChallengeData (378)     state 0:4, nonce 4:16, encMain 20:80, encTag 100:16, hwId 116:6, blob 122:256
//	NextChallenge (52)      state 0:4, nonce 4:16, encChallenge 20:16, encTag 36:16
//	NextChallenge (48)      nonce 0:16, encChallenge 16:16, encTag 32:16
package challenge

import (
	"fmt"

	"github.com/backkem/sfida/pkg/crypto"
	"github.com/backkem/sfida/pkg/secrets"
)

// Record sizes in bytes.
const (
	StateSize    = 4
	NonceSize    = crypto.NonceSize
	BlockSize    = crypto.BlockSize
	ReservedSize = 10

	MainChallengeDataSize = HardwareIDSize + crypto.KeySize + NonceSize + 2*BlockSize + ReservedSize
	ChallengeDataSize     = StateSize + NonceSize + MainChallengeDataSize + BlockSize + HardwareIDSize + secrets.BlobSize
	NextChallengeSize     = StateSize + NonceSize + 2*BlockSize
	ReconnectFormSize     = NonceSize + 2*BlockSize
)

// Nonce is a per-challenge nonce. Only bytes 0..12 enter the cipher blocks.
type Nonce [NonceSize]byte

// MainChallengeData is the inner pairing record, sealed under the device key.
type MainChallengeData struct {
	HardwareID         HardwareID // byte-reversed
	Key                [crypto.KeySize]byte
	Nonce              Nonce
	EncryptedChallenge [BlockSize]byte
	EncryptedTag       [BlockSize]byte
	Reserved           [ReservedSize]byte
}

// Encode packs the record into its 80-byte layout.
func (m *MainChallengeData) Encode() []byte {
	buf := make([]byte, 0, MainChallengeDataSize)
	buf = append(buf, m.HardwareID[:]...)
	buf = append(buf, m.Key[:]...)
	buf = append(buf, m.Nonce[:]...)
	buf = append(buf, m.EncryptedChallenge[:]...)
	buf = append(buf, m.EncryptedTag[:]...)
	buf = append(buf, m.Reserved[:]...)
	return buf
}

// Decode unpacks an 80-byte buffer.
func (m *MainChallengeData) Decode(data []byte) error {
	if err := checkSize("main challenge data", data, MainChallengeDataSize); err != nil {
		return err
	}
	r := reader{buf: data}
	r.read(m.HardwareID[:])
	r.read(m.Key[:])
	r.read(m.Nonce[:])
	r.read(m.EncryptedChallenge[:])
	r.read(m.EncryptedTag[:])
	r.read(m.Reserved[:])
	return nil
}

// ChallengeData is the outer pairing record sent to the accessory.
type ChallengeData struct {
	State                  [StateSize]byte
	Nonce                  Nonce
	EncryptedMainChallenge [MainChallengeDataSize]byte
	EncryptedTag           [BlockSize]byte
	HardwareID             HardwareID // byte-reversed
	Blob                   [secrets.BlobSize]byte
}

// Encode packs the record into its 378-byte layout.
func (c *ChallengeData) Encode() []byte {
	buf := make([]byte, 0, ChallengeDataSize)
	buf = append(buf, c.State[:]...)
	buf = append(buf, c.Nonce[:]...)
	buf = append(buf, c.EncryptedMainChallenge[:]...)
	buf = append(buf, c.EncryptedTag[:]...)
	buf = append(buf, c.HardwareID[:]...)
	buf = append(buf, c.Blob[:]...)
	return buf
}

// Decode unpacks a 378-byte buffer.
func (c *ChallengeData) Decode(data []byte) error {
	if err := checkSize("challenge data", data, ChallengeDataSize); err != nil {
		return err
	}
	r := reader{buf: data}
	r.read(c.State[:])
	r.read(c.Nonce[:])
	r.read(c.EncryptedMainChallenge[:])
	r.read(c.EncryptedTag[:])
	r.read(c.HardwareID[:])
	r.read(c.Blob[:])
	return nil
}

// NextChallenge is the per-round challenge used after pairing and on reconnect.
type NextChallenge struct {
	State              [StateSize]byte
	Nonce              Nonce
	EncryptedChallenge [BlockSize]byte
	EncryptedTag       [BlockSize]byte
}

// Encode packs the record into its 52-byte layout.
func (n *NextChallenge) Encode() []byte {
	buf := make([]byte, 0, NextChallengeSize)
	buf = append(buf, n.State[:]...)
	return n.appendBody(buf)
}

// Decode unpacks a 52-byte buffer.
func (n *NextChallenge) Decode(data []byte) error {
	if err := checkSize("next challenge", data, NextChallengeSize); err != nil {
		return err
	}
	r := reader{buf: data}
	r.read(n.State[:])
	n.readBody(&r)
	return nil
}

// EncodeReconnect packs the 48-byte form, which omits the state.
func (n *NextChallenge) EncodeReconnect() []byte {
	return n.appendBody(make([]byte, 0, ReconnectFormSize))
}

// DecodeReconnect unpacks the 48-byte form. The state is cleared.
func (n *NextChallenge) DecodeReconnect(data []byte) error {
	if err := checkSize("next challenge (reconnect form)", data, ReconnectFormSize); err != nil {
		return err
	}
	n.State = [StateSize]byte{}
	r := reader{buf: data}
	n.readBody(&r)
	return nil
}

func (n *NextChallenge) appendBody(buf []byte) []byte {
	buf = append(buf, n.Nonce[:]...)
	buf = append(buf, n.EncryptedChallenge[:]...)
	return append(buf, n.EncryptedTag[:]...)
}

func (n *NextChallenge) readBody(r *reader) {
	r.read(n.Nonce[:])
	r.read(n.EncryptedChallenge[:])
	r.read(n.EncryptedTag[:])
}

// reader slices consecutive fields off a buffer whose size was already checked.
type reader struct {
	buf []byte
	off int
}

func (r *reader) read(dst []byte) {
	r.off += copy(dst, r.buf[r.off:r.off+len(dst)])
}

func checkSize(record string, data []byte, want int) error {
	if len(data) != want {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrBufferLength, record, len(data), want)
	}
	return nil
}
