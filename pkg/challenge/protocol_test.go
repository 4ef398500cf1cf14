package challenge

import (
	"bytes"
	"encoding/hex"
	"errors"
	"sync"
	"testing"

	"github.com/backkem/sfida/pkg/crypto"
	"github.com/backkem/sfida/pkg/secrets"
)

func repeat(b byte) Nonce {
	var n Nonce
	for i := range n {
		n[i] = b
	}
	return n
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// Reference vector: key 0^16, nonce 0x01^16, default payload.
func TestGenerateNextChallengeVector(t *testing.T) {
	key := make([]byte, crypto.KeySize)

	nc, err := GenerateNextChallenge(nil, key, repeat(0x01))
	if err != nil {
		t.Fatalf("GenerateNextChallenge failed: %v", err)
	}

	if nc.State != [StateSize]byte{} {
		t.Errorf("state = %x, want zero", nc.State)
	}
	if nc.Nonce != repeat(0x01) {
		t.Errorf("nonce = %x", nc.Nonce)
	}
	if want := mustHex(t, "0fbdfb044ea72376aa5d4fbef6964832"); !bytes.Equal(nc.EncryptedChallenge[:], want) {
		t.Errorf("encrypted challenge\ngot:  %x\nwant: %x", nc.EncryptedChallenge, want)
	}
	if want := mustHex(t, "66b03c6e5ef7682c999ad18ed5fa0944"); !bytes.Equal(nc.EncryptedTag[:], want) {
		t.Errorf("encrypted tag\ngot:  %x\nwant: %x", nc.EncryptedTag, want)
	}

	valid, payload, err := DecryptNext(key, nc)
	if err != nil {
		t.Fatalf("DecryptNext failed: %v", err)
	}
	if !valid {
		t.Fatal("DecryptNext rejected its own challenge")
	}
	if payload != DefaultPayload {
		t.Errorf("payload = %x, want %x", payload, DefaultPayload)
	}
}

func TestGenerateNextChallengeExplicitDefault(t *testing.T) {
	key := make([]byte, crypto.KeySize)
	a, _ := GenerateNextChallenge(nil, key, repeat(0x01))
	b, _ := GenerateNextChallenge(DefaultPayload[:], key, repeat(0x01))
	if *a != *b {
		t.Error("nil payload must equal the explicit default payload")
	}
}

func TestGenerateNextChallengeErrors(t *testing.T) {
	if _, err := GenerateNextChallenge(make([]byte, 15), make([]byte, 16), Nonce{}); !errors.Is(err, ErrBufferLength) {
		t.Errorf("15-byte payload: got %v, want ErrBufferLength", err)
	}
	if _, err := GenerateNextChallenge([]byte{}, make([]byte, 16), Nonce{}); !errors.Is(err, ErrBufferLength) {
		t.Errorf("empty payload: got %v, want ErrBufferLength", err)
	}
	if _, err := GenerateNextChallenge(nil, make([]byte, 8), Nonce{}); !errors.Is(err, crypto.ErrInvalidKeySize) {
		t.Errorf("8-byte key: got %v, want ErrInvalidKeySize", err)
	}
}

func TestDecryptNextRoundTrip(t *testing.T) {
	key := []byte("round trip key!!")
	payloads := [][]byte{
		nil,
		make([]byte, BlockSize),
		[]byte("sixteen byte pay"),
	}

	for i, p := range payloads {
		nonce := repeat(byte(0x30 + i))
		nc, err := GenerateNextChallenge(p, key, nonce)
		if err != nil {
			t.Fatalf("GenerateNextChallenge failed: %v", err)
		}

		// Survive a trip through the wire form.
		var wire NextChallenge
		if err := wire.Decode(nc.Encode()); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}

		valid, payload, err := DecryptNext(key, &wire)
		if err != nil {
			t.Fatalf("DecryptNext failed: %v", err)
		}
		want := p
		if want == nil {
			want = DefaultPayload[:]
		}
		if !valid || !bytes.Equal(payload[:], want) {
			t.Errorf("DecryptNext = (%v, %x), want (true, %x)", valid, payload, want)
		}
	}
}

func TestDecryptNextDetectsTampering(t *testing.T) {
	key := []byte("tamper check key")
	nc, err := GenerateNextChallenge(nil, key, repeat(0x5c))
	if err != nil {
		t.Fatalf("GenerateNextChallenge failed: %v", err)
	}

	for i := 0; i < BlockSize; i++ {
		flipped := *nc
		flipped.EncryptedChallenge[i] ^= 0x01
		valid, payload, err := DecryptNext(key, &flipped)
		if err != nil {
			t.Fatalf("DecryptNext failed: %v", err)
		}
		if valid {
			t.Errorf("flipped challenge byte %d accepted", i)
		}
		if payload == DefaultPayload {
			t.Errorf("flipped challenge byte %d returned the original payload", i)
		}

		flipped = *nc
		flipped.EncryptedTag[i] ^= 0x80
		valid, payload, err = DecryptNext(key, &flipped)
		if err != nil {
			t.Fatalf("DecryptNext failed: %v", err)
		}
		if valid {
			t.Errorf("flipped tag byte %d accepted", i)
		}
		if payload == DefaultPayload {
			t.Errorf("flipped tag byte %d returned the original payload", i)
		}
	}
}

func TestDecryptNextWrongKey(t *testing.T) {
	nc, _ := GenerateNextChallenge(nil, []byte("the right key!!!"), repeat(0x02))
	valid, _, err := DecryptNext([]byte("the wrong key!!!"), nc)
	if err != nil {
		t.Fatalf("DecryptNext failed: %v", err)
	}
	if valid {
		t.Error("challenge accepted under the wrong key")
	}

	if _, _, err := DecryptNext(make([]byte, 17), nc); !errors.Is(err, crypto.ErrInvalidKeySize) {
		t.Errorf("17-byte key: got %v, want ErrInvalidKeySize", err)
	}
}

func TestGenerateReconnectResponseVector(t *testing.T) {
	key := make([]byte, crypto.KeySize)
	nc, _ := GenerateNextChallenge(nil, key, repeat(0x01))

	resp, err := GenerateReconnectResponse(key, nc)
	if err != nil {
		t.Fatalf("GenerateReconnectResponse failed: %v", err)
	}
	if want := mustHex(t, "e04c5c0fe37614de09b5142aa33ca9e1"); !bytes.Equal(resp[:], want) {
		t.Errorf("response\ngot:  %x\nwant: %x", resp, want)
	}

	ok, err := VerifyReconnectResponse(key, nc, resp[:])
	if err != nil || !ok {
		t.Errorf("VerifyReconnectResponse = (%v, %v), want (true, nil)", ok, err)
	}

	resp[0] ^= 0x01
	if ok, _ := VerifyReconnectResponse(key, nc, resp[:]); ok {
		t.Error("modified response accepted")
	}
	if _, err := VerifyReconnectResponse(key, nc, resp[:8]); !errors.Is(err, ErrBufferLength) {
		t.Errorf("short response: got %v, want ErrBufferLength", err)
	}
}

// The response only depends on the key and the nonce (the first 16 bytes of
// the 48-byte form).
func TestGenerateReconnectResponseUsesFirstBlock(t *testing.T) {
	key := []byte("reconnect key!!!")
	a, _ := GenerateNextChallenge(nil, key, repeat(0x44))
	b, _ := GenerateNextChallenge([]byte("another payload!"), key, repeat(0x44))

	ra, _ := GenerateReconnectResponse(key, a)
	rb, _ := GenerateReconnectResponse(key, b)
	if ra != rb {
		t.Error("response depends on bytes beyond the first block")
	}

	bc, _ := crypto.NewBlockCipher(key)
	n := repeat(0x44)
	e, _ := bc.EncryptBlock(n[:])
	for i := range e {
		e[i] ^= n[i]
	}
	if ra != e {
		t.Errorf("response = %x, want E(nonce)^nonce = %x", ra, e)
	}
}

func testSecrets(t *testing.T) secrets.Secrets {
	t.Helper()
	key := make([]byte, secrets.DeviceKeySize)
	fill(key, 0x00)
	blob := make([]byte, secrets.BlobSize)
	fill(blob, 0x80)
	s, err := secrets.New(key, blob)
	if err != nil {
		t.Fatalf("secrets.New failed: %v", err)
	}
	return s
}

func TestGenerateInitialChallengeVector(t *testing.T) {
	s := testSecrets(t)
	hwID := HardwareID{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	payload := make([]byte, BlockSize)
	fill(payload, 0x10)
	sessionKey := bytes.Repeat([]byte{0x42}, 16)

	cd, err := GenerateInitialChallenge(s, hwID, payload, repeat(0x07), sessionKey, repeat(0x09))
	if err != nil {
		t.Fatalf("GenerateInitialChallenge failed: %v", err)
	}

	if cd.State != [StateSize]byte{} {
		t.Errorf("state = %x, want zero", cd.State)
	}
	if cd.Nonce != repeat(0x09) {
		t.Errorf("outer nonce = %x", cd.Nonce)
	}
	if want := (HardwareID{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}); cd.HardwareID != want {
		t.Errorf("hardware id = %x, want %x", cd.HardwareID, want)
	}
	if cd.Blob != s.Blob {
		t.Error("blob not passed through unchanged")
	}

	wantOuter := mustHex(t, "7137a9ec3e402aa394d30ae235773a8c"+
		"0b7ca213d32522fa29eb78068194e8ad"+
		"11fa0a171bd4a91d08e74d5b639f52b1"+
		"45ed826a7ce965fbf98db85f56cfe6b8"+
		"9d96e013287a6cf3fe2104f204a6c556")
	if !bytes.Equal(cd.EncryptedMainChallenge[:], wantOuter) {
		t.Errorf("encrypted main challenge\ngot:  %x\nwant: %x", cd.EncryptedMainChallenge, wantOuter)
	}
	if want := mustHex(t, "6c7fcb0d6576de486b9fcc3c2674b017"); !bytes.Equal(cd.EncryptedTag[:], want) {
		t.Errorf("outer tag\ngot:  %x\nwant: %x", cd.EncryptedTag, want)
	}

	mcd, err := OpenChallengeData(s.DeviceKey[:], cd)
	if err != nil {
		t.Fatalf("OpenChallengeData failed: %v", err)
	}
	if mcd.HardwareID != hwID.Reverse() {
		t.Errorf("inner hardware id = %x", mcd.HardwareID)
	}
	if !bytes.Equal(mcd.Key[:], sessionKey) || mcd.Nonce != repeat(0x07) {
		t.Error("inner key or nonce mismatch")
	}
	if mcd.Reserved != [ReservedSize]byte{} {
		t.Errorf("reserved = %x, want zero", mcd.Reserved)
	}
	if want := mustHex(t, "e85f4aea8834d056d697be45f795222b"); !bytes.Equal(mcd.EncryptedChallenge[:], want) {
		t.Errorf("inner challenge\ngot:  %x\nwant: %x", mcd.EncryptedChallenge, want)
	}
	if want := mustHex(t, "c3e4bd6ff7f823efc7045c3c70491ffb"); !bytes.Equal(mcd.EncryptedTag[:], want) {
		t.Errorf("inner tag\ngot:  %x\nwant: %x", mcd.EncryptedTag, want)
	}

	got, err := OpenMainChallenge(mcd)
	if err != nil {
		t.Fatalf("OpenMainChallenge failed: %v", err)
	}
	if !bytes.Equal(got[:], payload) {
		t.Errorf("payload = %x, want %x", got, payload)
	}
}

func TestGenerateInitialChallengeErrors(t *testing.T) {
	s := testSecrets(t)
	hwID := HardwareID{1, 2, 3, 4, 5, 6}

	if _, err := GenerateInitialChallenge(s, hwID, make([]byte, 32), Nonce{}, make([]byte, 16), Nonce{}); !errors.Is(err, ErrBufferLength) {
		t.Errorf("32-byte payload: got %v, want ErrBufferLength", err)
	}
	if _, err := GenerateInitialChallenge(s, hwID, make([]byte, 16), Nonce{}, make([]byte, 10), Nonce{}); !errors.Is(err, crypto.ErrInvalidKeySize) {
		t.Errorf("10-byte session key: got %v, want ErrInvalidKeySize", err)
	}
}

func TestOpenChallengeDataRejectsTampering(t *testing.T) {
	s := testSecrets(t)
	cd, err := GenerateInitialChallenge(s, HardwareID{1, 2, 3, 4, 5, 6},
		make([]byte, 16), repeat(0x01), make([]byte, 16), repeat(0x02))
	if err != nil {
		t.Fatalf("GenerateInitialChallenge failed: %v", err)
	}

	tampered := *cd
	tampered.EncryptedMainChallenge[40] ^= 0x01
	if _, err := OpenChallengeData(s.DeviceKey[:], &tampered); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("tampered body: got %v, want ErrAuthenticationFailed", err)
	}

	tampered = *cd
	tampered.EncryptedTag[0] ^= 0x01
	if _, err := OpenChallengeData(s.DeviceKey[:], &tampered); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("tampered tag: got %v, want ErrAuthenticationFailed", err)
	}

	tampered = *cd
	tampered.HardwareID[0] ^= 0x01
	if _, err := OpenChallengeData(s.DeviceKey[:], &tampered); !errors.Is(err, ErrHardwareIDMismatch) {
		t.Errorf("tampered hardware id: got %v, want ErrHardwareIDMismatch", err)
	}

	wrongKey := bytes.Repeat([]byte{0xff}, 16)
	if _, err := OpenChallengeData(wrongKey, cd); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("wrong device key: got %v, want ErrAuthenticationFailed", err)
	}
}

func TestOpenMainChallengeRejectsTampering(t *testing.T) {
	s := testSecrets(t)
	cd, _ := GenerateInitialChallenge(s, HardwareID{1, 2, 3, 4, 5, 6},
		make([]byte, 16), repeat(0x01), make([]byte, 16), repeat(0x02))
	mcd, err := OpenChallengeData(s.DeviceKey[:], cd)
	if err != nil {
		t.Fatalf("OpenChallengeData failed: %v", err)
	}

	mcd.EncryptedTag[5] ^= 0x10
	if _, err := OpenMainChallenge(mcd); !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("tampered inner tag: got %v, want ErrAuthenticationFailed", err)
	}
}

// Operations share no state and may run concurrently.
func TestConcurrentChallenges(t *testing.T) {
	key := []byte("concurrency key!")
	var wg sync.WaitGroup
	errs := make(chan error, 32)

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := bytes.Repeat([]byte{byte(i)}, BlockSize)
			nc, err := GenerateNextChallenge(payload, key, repeat(byte(i)))
			if err != nil {
				errs <- err
				return
			}
			valid, got, err := DecryptNext(key, nc)
			if err != nil {
				errs <- err
				return
			}
			if !valid || !bytes.Equal(got[:], payload) {
				errs <- errors.New("round trip failed")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
