package main

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/backkem/sfida/pkg/challenge"
	"github.com/backkem/sfida/pkg/crypto"
	"github.com/backkem/sfida/pkg/secrets"
	"github.com/pion/logging"
	"golang.org/x/term"
)

var errNotTerminal = errors.New("stdin is not a terminal")

// options holds the flags shared by all commands.
type options struct {
	LogLevel  string
	NonceMode string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.LogLevel, "log-level", "warn", "Log level (disabled, error, warn, info, debug, trace)")
	fs.StringVar(&o.NonceMode, "nonce-mode", "random", "Nonce source (random, repeated)")
}

// loggerFactory builds a pion logger factory writing to w.
func (o *options) loggerFactory(w io.Writer) (logging.LoggerFactory, error) {
	level, err := parseLogLevel(o.LogLevel)
	if err != nil {
		return nil, err
	}
	lf := logging.NewDefaultLoggerFactory()
	lf.Writer = w
	lf.DefaultLogLevel = level
	return lf, nil
}

func (o *options) nonceSource() (challenge.NonceSource, error) {
	mode, err := challenge.ParseNonceMode(o.NonceMode)
	if err != nil {
		return nil, err
	}
	return challenge.NewNonceSource(nil, mode), nil
}

func parseLogLevel(s string) (logging.LogLevel, error) {
	switch strings.ToLower(s) {
	case "disabled":
		return logging.LogLevelDisabled, nil
	case "error":
		return logging.LogLevelError, nil
	case "warn", "":
		return logging.LogLevelWarn, nil
	case "info":
		return logging.LogLevelInfo, nil
	case "debug":
		return logging.LogLevelDebug, nil
	case "trace":
		return logging.LogLevelTrace, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// hexFlag is a flag.Value for a hex byte string of a fixed length.
// A zero size accepts any length.
type hexFlag struct {
	size  int
	value []byte
}

func (f *hexFlag) String() string {
	return hex.EncodeToString(f.value)
}

func (f *hexFlag) Set(s string) error {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return err
	}
	if f.size != 0 && len(b) != f.size {
		return fmt.Errorf("want %d bytes, got %d", f.size, len(b))
	}
	f.value = b
	return nil
}

func (f *hexFlag) isSet() bool {
	return f.value != nil
}

// hardwareIDFlag is a flag.Value for an accessory hardware ID.
type hardwareIDFlag struct {
	id  challenge.HardwareID
	set bool
}

func (f *hardwareIDFlag) String() string {
	if !f.set {
		return ""
	}
	return f.id.String()
}

func (f *hardwareIDFlag) Set(s string) error {
	id, err := challenge.ParseHardwareID(s)
	if err != nil {
		return err
	}
	f.id = id
	f.set = true
	return nil
}

// loadSecrets reads the secrets file and, when promptKey is set, replaces the
// device key with one typed on the terminal.
func loadSecrets(path string, promptKey bool, stderr io.Writer) (secrets.Secrets, error) {
	if path == "" {
		return secrets.Secrets{}, errors.New("-secrets is required")
	}
	s, err := secrets.Load(path)
	if err != nil {
		return s, err
	}
	if !promptKey {
		return s, nil
	}

	key, err := readKey(stderr)
	if err != nil {
		return s, err
	}
	return secrets.New(key, s.Blob[:])
}

// readKey reads a hex device key from the terminal without echo.
func readKey(stderr io.Writer) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, errNotTerminal
	}
	fmt.Fprint(stderr, "Device key (hex): ")
	line, err := term.ReadPassword(fd)
	fmt.Fprintln(stderr)
	if err != nil {
		return nil, err
	}
	key, err := hex.DecodeString(strings.TrimSpace(string(line)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", secrets.ErrInvalidDeviceKey, err)
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("%w: %d bytes", secrets.ErrInvalidDeviceKey, len(key))
	}
	return key, nil
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("sfida-auth "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}
