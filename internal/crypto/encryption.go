// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package crypto protects key files at rest and wipes secrets from memory.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters (OWASP recommended)
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2KeyLen  = 32        // AES-256

	saltLen = 32

	envelopeVersion = 1
	kdfArgon2id     = "argon2id"
)

// additionalData binds ciphertexts to this envelope format.
var additionalData = []byte("apcold-keyfile-v1")

var (
	// ErrIncorrectPassphrase is returned when decryption fails authentication.
	ErrIncorrectPassphrase = errors.New("incorrect passphrase")

	// ErrUnsupportedEnvelope is returned for an unknown envelope version or KDF.
	ErrUnsupportedEnvelope = errors.New("unsupported encryption envelope")
)

// EncryptedData is the on-disk form of an encrypted key file. Each file
// carries its own salt, so the file and the passphrase are all that is needed
// to decrypt it.
type EncryptedData struct {
	EnvelopeVersion int    `json:"envelope_version"`
	KDF             string `json:"kdf"`
	Salt            string `json:"salt"`
	Nonce           string `json:"nonce"`
	Ciphertext      string `json:"ciphertext"`
}

// IsEncrypted checks if data appears to be in encrypted format
func IsEncrypted(data []byte) bool {
	var encrypted EncryptedData
	return json.Unmarshal(data, &encrypted) == nil && encrypted.EnvelopeVersion > 0
}

// DeriveKey derives an AES-256 key from passphrase and salt with Argon2id.
// Caller is responsible for zeroing the returned key when done.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// EncryptWithPassphrase encrypts plaintext under a key derived from passphrase
// and a fresh random salt.
func EncryptWithPassphrase(plaintext, passphrase []byte) ([]byte, error) {
	if len(passphrase) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := DeriveKey(passphrase, salt)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	encrypted := EncryptedData{
		EnvelopeVersion: envelopeVersion,
		KDF:             kdfArgon2id,
		Salt:            base64.StdEncoding.EncodeToString(salt),
		Nonce:           base64.StdEncoding.EncodeToString(nonce),
		Ciphertext:      base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, plaintext, additionalData)),
	}
	return json.MarshalIndent(encrypted, "", "  ")
}

// DecryptWithPassphrase reverses EncryptWithPassphrase. A wrong passphrase
// and a tampered file both yield ErrIncorrectPassphrase.
func DecryptWithPassphrase(encryptedJSON, passphrase []byte) ([]byte, error) {
	var encrypted EncryptedData
	if err := json.Unmarshal(encryptedJSON, &encrypted); err != nil {
		return nil, fmt.Errorf("failed to parse encrypted data: %w", err)
	}
	if encrypted.EnvelopeVersion != envelopeVersion {
		return nil, fmt.Errorf("%w: envelope_version %d", ErrUnsupportedEnvelope, encrypted.EnvelopeVersion)
	}
	if encrypted.KDF != kdfArgon2id {
		return nil, fmt.Errorf("%w: kdf %q", ErrUnsupportedEnvelope, encrypted.KDF)
	}

	salt, err := base64.StdEncoding.DecodeString(encrypted.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(encrypted.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to decode nonce: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	key := DeriveKey(passphrase, salt)
	defer ZeroBytes(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("invalid nonce length %d", len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, ErrIncorrectPassphrase
	}
	return plaintext, nil
}
