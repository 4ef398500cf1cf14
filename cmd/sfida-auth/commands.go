package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/backkem/sfida/pkg/accessory"
	"github.com/backkem/sfida/pkg/challenge"
	"github.com/backkem/sfida/pkg/crypto"
	"github.com/backkem/sfida/pkg/link"
	"github.com/backkem/sfida/pkg/pairing"
	"github.com/backkem/sfida/pkg/secrets"
)

func fail(stderr io.Writer, name string, err error) int {
	fmt.Fprintf(stderr, "sfida-auth %s: %v\n", name, err)
	return 1
}

func runInitial(args []string, stdout, stderr io.Writer) int {
	var (
		opts        options
		secretsPath string
		promptKey   bool
		hwID        hardwareIDFlag
		payload     = hexFlag{size: challenge.BlockSize}
		sessionKey  = hexFlag{size: crypto.KeySize}
	)
	fs := newFlagSet("initial", stderr)
	opts.register(fs)
	fs.StringVar(&secretsPath, "secrets", "", "Path to the secrets YAML file")
	fs.BoolVar(&promptKey, "prompt-key", false, "Read the device key from the terminal")
	fs.Var(&hwID, "hwid", "Accessory hardware ID (AA:BB:CC:DD:EE:FF)")
	fs.Var(&payload, "payload", "16-byte challenge payload in hex (default: random)")
	fs.Var(&sessionKey, "session-key", "16-byte session key in hex (default: derived)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !hwID.set {
		return fail(stderr, "initial", errors.New("-hwid is required"))
	}

	s, err := loadSecrets(secretsPath, promptKey, stderr)
	if err != nil {
		return fail(stderr, "initial", err)
	}
	nonces, err := opts.nonceSource()
	if err != nil {
		return fail(stderr, "initial", err)
	}

	if !payload.isSet() {
		payload.value = make([]byte, challenge.BlockSize)
		if _, err := io.ReadFull(rand.Reader, payload.value); err != nil {
			return fail(stderr, "initial", err)
		}
	}
	if !sessionKey.isSet() {
		key, err := crypto.NewSessionKey(rand.Reader, hwID.id[:])
		if err != nil {
			return fail(stderr, "initial", err)
		}
		sessionKey.value = key[:]
	}

	sessionNonce, err := nonces.Nonce()
	if err != nil {
		return fail(stderr, "initial", err)
	}
	outerNonce, err := nonces.Nonce()
	if err != nil {
		return fail(stderr, "initial", err)
	}

	cd, err := challenge.GenerateInitialChallenge(s, hwID.id, payload.value, sessionNonce, sessionKey.value, outerNonce)
	if err != nil {
		return fail(stderr, "initial", err)
	}

	fmt.Fprintf(stdout, "challenge=%x\n", cd.Encode())
	fmt.Fprintf(stdout, "session-key=%x\n", sessionKey.value)
	fmt.Fprintf(stdout, "payload=%x\n", payload.value)
	return 0
}

func runNext(args []string, stdout, stderr io.Writer) int {
	var (
		opts    options
		key     = hexFlag{size: crypto.KeySize}
		payload = hexFlag{size: challenge.BlockSize}
		nonce   = hexFlag{size: challenge.NonceSize}
	)
	fs := newFlagSet("next", stderr)
	opts.register(fs)
	fs.Var(&key, "key", "16-byte session key in hex")
	fs.Var(&payload, "payload", "16-byte payload in hex (default: AA 00...)")
	fs.Var(&nonce, "nonce", "16-byte nonce in hex (default: from -nonce-mode)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !key.isSet() {
		return fail(stderr, "next", errors.New("-key is required"))
	}

	var n challenge.Nonce
	if nonce.isSet() {
		copy(n[:], nonce.value)
	} else {
		nonces, err := opts.nonceSource()
		if err != nil {
			return fail(stderr, "next", err)
		}
		if n, err = nonces.Nonce(); err != nil {
			return fail(stderr, "next", err)
		}
	}

	nc, err := challenge.GenerateNextChallenge(payload.value, key.value, n)
	if err != nil {
		return fail(stderr, "next", err)
	}
	fmt.Fprintf(stdout, "%x\n", nc.Encode())
	return 0
}

// parseChallengeFlags parses the -key and -challenge flags shared by verify
// and reconnect.
func parseChallengeFlags(name string, args []string, stderr io.Writer) (key []byte, nc *challenge.NextChallenge, code int) {
	var (
		opts options
		k    = hexFlag{size: crypto.KeySize}
		raw  = hexFlag{size: challenge.NextChallengeSize}
	)
	fs := newFlagSet(name, stderr)
	opts.register(fs)
	fs.Var(&k, "key", "16-byte session key in hex")
	fs.Var(&raw, "challenge", "52-byte NextChallenge in hex")
	if err := fs.Parse(args); err != nil {
		return nil, nil, 2
	}
	if !k.isSet() || !raw.isSet() {
		return nil, nil, fail(stderr, name, errors.New("-key and -challenge are required"))
	}

	nc = &challenge.NextChallenge{}
	if err := nc.Decode(raw.value); err != nil {
		return nil, nil, fail(stderr, name, err)
	}
	return k.value, nc, 0
}

func runVerify(args []string, stdout, stderr io.Writer) int {
	key, nc, code := parseChallengeFlags("verify", args, stderr)
	if nc == nil {
		return code
	}

	valid, payload, err := challenge.DecryptNext(key, nc)
	if err != nil {
		return fail(stderr, "verify", err)
	}
	fmt.Fprintf(stdout, "valid=%t payload=%x\n", valid, payload)
	if !valid {
		return 1
	}
	return 0
}

func runReconnect(args []string, stdout, stderr io.Writer) int {
	key, nc, code := parseChallengeFlags("reconnect", args, stderr)
	if nc == nil {
		return code
	}

	resp, err := challenge.GenerateReconnectResponse(key, nc)
	if err != nil {
		return fail(stderr, "reconnect", err)
	}
	fmt.Fprintf(stdout, "%x\n", resp)
	return 0
}

func runSimulate(args []string, stdout, stderr io.Writer) int {
	var (
		opts        options
		secretsPath string
		promptKey   bool
		reconnects  int
		hwID        hardwareIDFlag
	)
	fs := newFlagSet("simulate", stderr)
	opts.register(fs)
	fs.StringVar(&secretsPath, "secrets", "", "Path to the secrets YAML file")
	fs.BoolVar(&promptKey, "prompt-key", false, "Read the device key from the terminal")
	fs.IntVar(&reconnects, "reconnects", 1, "Number of reconnects after pairing")
	fs.Var(&hwID, "hwid", "Accessory hardware ID (AA:BB:CC:DD:EE:FF)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if !hwID.set {
		return fail(stderr, "simulate", errors.New("-hwid is required"))
	}

	s, err := loadSecrets(secretsPath, promptKey, stderr)
	if err != nil {
		return fail(stderr, "simulate", err)
	}
	lf, err := opts.loggerFactory(stderr)
	if err != nil {
		return fail(stderr, "simulate", err)
	}
	nonces, err := opts.nonceSource()
	if err != nil {
		return fail(stderr, "simulate", err)
	}

	pipeConfig := link.DefaultPipeConfig()
	pipeConfig.LoggerFactory = lf
	pipe := link.NewPipeWithConfig(pipeConfig)
	defer pipe.Close()

	host, err := pairing.NewHost(pairing.HostConfig{
		Link:          pipe.Host(),
		Secrets:       secrets.Static(s),
		Nonces:        nonces,
		LoggerFactory: lf,
	})
	if err != nil {
		return fail(stderr, "simulate", err)
	}
	dev, err := accessory.NewDevice(accessory.DeviceConfig{
		Link:          pipe.Accessory(),
		HardwareID:    hwID.id,
		DeviceKey:     s.DeviceKey,
		Nonces:        nonces,
		LoggerFactory: lf,
	})
	if err != nil {
		return fail(stderr, "simulate", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pairing.DefaultTimeout)
	defer cancel()

	accErr := make(chan error, 1)
	go func() { accErr <- dev.AcceptPairing(ctx) }()
	session, err := host.Pair(ctx, hwID.id)
	if err != nil {
		return fail(stderr, "simulate", err)
	}
	if err := <-accErr; err != nil {
		return fail(stderr, "simulate", err)
	}
	fmt.Fprintf(stdout, "paired=%s session-key=%x\n", session.HardwareID, session.Key)

	for i := 0; i < reconnects; i++ {
		go func() { accErr <- dev.Reconnect(ctx) }()
		if err := host.Reconnect(ctx, session); err != nil {
			return fail(stderr, "simulate", err)
		}
		if err := <-accErr; err != nil {
			return fail(stderr, "simulate", err)
		}
	}
	fmt.Fprintf(stdout, "reconnects=%d\n", reconnects)
	return 0
}
