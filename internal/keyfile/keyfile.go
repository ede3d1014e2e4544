// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package keyfile loads and writes signing keys for the offline signer.
//
// The plaintext format is the common Solana CLI keypair file: a JSON array of
// the 64 private key bytes (seed followed by public key). A file may instead
// hold that JSON encrypted with a passphrase, see internal/crypto.
package keyfile

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aplane-algo/apcold/internal/crypto"
	"github.com/aplane-algo/apcold/internal/fsutil"
)

const maxKeyFileSize = 16 * 1024

var (
	// ErrInvalidKeyFile is returned for content that is not a keypair file.
	ErrInvalidKeyFile = errors.New("invalid key file")

	// ErrPassphraseRequired is returned when an encrypted file is loaded
	// without a way to obtain the passphrase.
	ErrPassphraseRequired = errors.New("key file is encrypted; passphrase required")

	// ErrAlreadyEncrypted is returned when protecting an encrypted file.
	ErrAlreadyEncrypted = errors.New("key file is already encrypted")
)

// PassphraseFunc supplies a passphrase on demand. The caller zeroes the
// returned slice.
type PassphraseFunc func() ([]byte, error)

// Parse decodes a plaintext keypair file. The public half must match the
// key derived from the seed.
func Parse(data []byte) (ed25519.PrivateKey, error) {
	var ints []int
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&ints); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyFile, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrInvalidKeyFile)
	}
	defer func() {
		for i := range ints {
			ints[i] = 0
		}
	}()
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeyFile, ed25519.PrivateKeySize, len(ints))
	}

	key := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	for i, v := range ints {
		if v < 0 || v > 255 {
			crypto.ZeroBytes(key)
			return nil, fmt.Errorf("%w: byte %d out of range", ErrInvalidKeyFile, i)
		}
		key[i] = byte(v)
	}

	derived := ed25519.NewKeyFromSeed(key.Seed())
	defer crypto.ZeroBytes(derived)
	if !bytes.Equal(derived[32:], key[32:]) {
		crypto.ZeroBytes(key)
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeyFile)
	}
	return key, nil
}

// Marshal encodes key as a plaintext keypair file.
func Marshal(key ed25519.PrivateKey) ([]byte, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKeyFile, ed25519.PrivateKeySize, len(key))
	}
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	defer func() {
		for i := range ints {
			ints[i] = 0
		}
	}()
	return json.Marshal(ints)
}

// Decode parses data, decrypting it first when it is encrypted.
func Decode(data []byte, passphrase PassphraseFunc) (ed25519.PrivateKey, error) {
	if !crypto.IsEncrypted(data) {
		return Parse(data)
	}
	if passphrase == nil {
		return nil, ErrPassphraseRequired
	}
	pass, err := passphrase()
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(pass)

	plain, err := crypto.DecryptWithPassphrase(data, pass)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(plain)
	return Parse(plain)
}

// Load reads and decodes the key file at path.
func Load(path string, passphrase PassphraseFunc) (ed25519.PrivateKey, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(data)

	key, err := Decode(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}

// IsEncryptedFile reports whether the key file at path is encrypted.
func IsEncryptedFile(path string) (bool, error) {
	data, err := readKeyFile(path)
	if err != nil {
		return false, err
	}
	defer crypto.ZeroBytes(data)
	return crypto.IsEncrypted(data), nil
}

func readKeyFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxKeyFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrInvalidKeyFile, path, info.Size())
	}
	return os.ReadFile(path)
}

// Generate returns a new random key.
func Generate() (ed25519.PrivateKey, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// Write stores key at path, encrypted when passphrase is non-empty. An
// existing file is never overwritten.
func Write(path string, key ed25519.PrivateKey, passphrase []byte) error {
	data, err := encode(key, passphrase)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(data)
	return fsutil.WriteNew(path, data, fsutil.SecretPerm)
}

// Protect encrypts the plaintext key file at path in place.
func Protect(path string, passphrase []byte) error {
	if len(passphrase) == 0 {
		return errors.New("passphrase must not be empty")
	}
	data, err := readKeyFile(path)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(data)
	if crypto.IsEncrypted(data) {
		return ErrAlreadyEncrypted
	}

	key, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer crypto.ZeroBytes(key)

	out, err := encode(key, passphrase)
	if err != nil {
		return err
	}
	defer crypto.ZeroBytes(out)
	return fsutil.WriteFile(path, out, fsutil.SecretPerm)
}

func encode(key ed25519.PrivateKey, passphrase []byte) ([]byte, error) {
	plain, err := Marshal(key)
	if err != nil {
		return nil, err
	}
	if len(passphrase) == 0 {
		return plain, nil
	}
	defer crypto.ZeroBytes(plain)
	return crypto.EncryptWithPassphrase(plain, passphrase)
}
