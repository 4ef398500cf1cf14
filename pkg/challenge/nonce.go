package challenge

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
)

// NonceSource produces fresh challenge nonces.
// A nonce must never be reused under the same key.
type NonceSource interface {
	Nonce() (Nonce, error)
}

// NonceMode selects how nonce bytes are drawn from the reader.
type NonceMode int

const (
	// NonceModeRandom fills all 16 bytes from the reader.
	NonceModeRandom NonceMode = iota

	// NonceModeRepeated draws one byte and repeats it 16 times.
	// This is what the accessory's reference host software does; it leaves
	// only 256 distinct nonces and is kept for interoperability testing.
	NonceModeRepeated
)

// String returns the mode name used in configuration.
func (m NonceMode) String() string {
	switch m {
	case NonceModeRandom:
		return "random"
	case NonceModeRepeated:
		return "repeated"
	default:
		return fmt.Sprintf("NonceMode(%d)", int(m))
	}
}

// ParseNonceMode parses "random" or "repeated".
func ParseNonceMode(s string) (NonceMode, error) {
	switch s {
	case "random", "":
		return NonceModeRandom, nil
	case "repeated":
		return NonceModeRepeated, nil
	default:
		return 0, fmt.Errorf("challenge: unknown nonce mode %q", s)
	}
}

// readerNonceSource draws nonces from an io.Reader, serializing access to it.
type readerNonceSource struct {
	mu   sync.Mutex
	r    io.Reader
	mode NonceMode
}

// NewNonceSource returns a NonceSource reading from r.
// A nil r uses crypto/rand.Reader.
func NewNonceSource(r io.Reader, mode NonceMode) NonceSource {
	if r == nil {
		r = rand.Reader
	}
	return &readerNonceSource{r: r, mode: mode}
}

// NewRandomNonceSource returns a source of 16 independent random bytes per nonce.
func NewRandomNonceSource(r io.Reader) NonceSource {
	return NewNonceSource(r, NonceModeRandom)
}

// NewRepeatedByteNonceSource returns a source that repeats one random byte.
func NewRepeatedByteNonceSource(r io.Reader) NonceSource {
	return NewNonceSource(r, NonceModeRepeated)
}

func (s *readerNonceSource) Nonce() (Nonce, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n Nonce
	switch s.mode {
	case NonceModeRepeated:
		var b [1]byte
		if _, err := io.ReadFull(s.r, b[:]); err != nil {
			return n, fmt.Errorf("%w: %v", ErrNonceSource, err)
		}
		for i := range n {
			n[i] = b[0]
		}
	default:
		if _, err := io.ReadFull(s.r, n[:]); err != nil {
			return n, fmt.Errorf("%w: %v", ErrNonceSource, err)
		}
	}
	return n, nil
}
