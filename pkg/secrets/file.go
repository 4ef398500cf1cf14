package secrets

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk secrets description.
//
// Each value is given either inline as hex or as a path. Relative paths are
// resolved against the directory holding the YAML file.
//
//	device_key: "00112233445566778899aabbccddeeff"
//	blob_file: blob.bin
type File struct {
	DeviceKey     string `yaml:"device_key"`
	DeviceKeyFile string `yaml:"device_key_file"` // hex text
	Blob          string `yaml:"blob"`            // hex
	BlobFile      string `yaml:"blob_file"`       // raw 256 bytes
}

// Load reads and decodes a secrets YAML file.
func Load(path string) (Secrets, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Secrets{}, fmt.Errorf("read secrets: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return Secrets{}, fmt.Errorf("parse secrets yaml: %w", err)
	}
	f.resolvePaths(path)
	return f.Secrets()
}

// Secrets decodes the described key and blob.
func (f *File) Secrets() (Secrets, error) {
	key, err := f.deviceKey()
	if err != nil {
		return Secrets{}, err
	}
	blob, err := f.blob()
	if err != nil {
		return Secrets{}, err
	}
	return New(key, blob)
}

func (f *File) deviceKey() ([]byte, error) {
	inline := strings.TrimSpace(f.DeviceKey)
	path := strings.TrimSpace(f.DeviceKeyFile)

	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("%w: device_key", ErrAmbiguousField)
	case inline != "":
		return decodeHex(inline, "device_key", ErrInvalidDeviceKey)
	case path != "":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("device_key_file: %w", err)
		}
		return decodeHex(string(content), "device_key_file", ErrInvalidDeviceKey)
	default:
		return nil, fmt.Errorf("%w: device_key or device_key_file is required", ErrMissingField)
	}
}

func (f *File) blob() ([]byte, error) {
	inline := strings.TrimSpace(f.Blob)
	path := strings.TrimSpace(f.BlobFile)

	switch {
	case inline != "" && path != "":
		return nil, fmt.Errorf("%w: blob", ErrAmbiguousField)
	case inline != "":
		return decodeHex(inline, "blob", ErrInvalidBlob)
	case path != "":
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("blob_file: %w", err)
		}
		return content, nil
	default:
		return nil, fmt.Errorf("%w: blob or blob_file is required", ErrMissingField)
	}
}

func (f *File) resolvePaths(configPath string) {
	dir := filepath.Dir(configPath)
	f.DeviceKeyFile = resolvePath(dir, f.DeviceKeyFile)
	f.BlobFile = resolvePath(dir, f.BlobFile)
}

func resolvePath(baseDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Clean(filepath.Join(baseDir, trimmed))
}

// decodeHex accepts hex with optional whitespace and ':' separators.
func decodeHex(s, field string, kind error) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', ':':
			return -1
		}
		return r
	}, s)
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", kind, field, err)
	}
	return b, nil
}

// fileProvider loads the YAML file on every call so rotated secrets are picked up.
type fileProvider struct {
	path string
}

// FileProvider returns a Provider backed by a secrets YAML file.
func FileProvider(path string) Provider {
	return fileProvider{path: path}
}

func (p fileProvider) Secrets(ctx context.Context) (Secrets, error) {
	if err := ctx.Err(); err != nil {
		return Secrets{}, err
	}
	return Load(p.path)
}
