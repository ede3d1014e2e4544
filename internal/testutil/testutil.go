// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package testutil provides reusable test infrastructure and utilities.
package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aplane-algo/apcold/internal/crypto"
	"github.com/aplane-algo/apcold/internal/solana"
)

// TestKey represents a generated test key pair
type TestKey struct {
	Address    string
	PublicKey  solana.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateTestEd25519Key generates a deterministic Ed25519 key pair for testing.
// The seed parameter allows generating different keys in a reproducible way.
func GenerateTestEd25519Key(t *testing.T, seed int) *TestKey {
	t.Helper()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(seed))
	digest := sha256.Sum256(append([]byte("apcold-test-key"), buf[:]...))

	priv := ed25519.NewKeyFromSeed(digest[:])
	var pk solana.PublicKey
	copy(pk[:], priv[32:])

	return &TestKey{
		Address:    pk.String(),
		PublicKey:  pk,
		PrivateKey: priv,
	}
}

// TestHash returns a hash with every byte set to b.
func TestHash(b byte) solana.Hash {
	var h solana.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

// TestAddress returns a deterministic address for index. The address is
// not guaranteed to be on the curve.
func TestAddress(index int) solana.PublicKey {
	var pk solana.PublicKey
	pk[0] = byte(index)
	pk[1] = byte(index >> 8)
	pk[31] = 0xA5
	return pk
}

// WriteTestKeyFile writes key as a 64-byte JSON array keypair file in dir.
// If passphrase is non-empty the file is encrypted. Returns the file path.
func WriteTestKeyFile(t *testing.T, dir string, key *TestKey, passphrase string) string {
	t.Helper()

	ints := make([]int, len(key.PrivateKey))
	for i, b := range key.PrivateKey {
		ints[i] = int(b)
	}
	keyJSON, err := json.Marshal(ints)
	if err != nil {
		t.Fatalf("Failed to marshal key: %v", err)
	}
	defer crypto.ZeroBytes(keyJSON)

	var dataToWrite []byte
	if passphrase != "" {
		encrypted, err := crypto.EncryptWithPassphrase(keyJSON, []byte(passphrase))
		if err != nil {
			t.Fatalf("Failed to encrypt key: %v", err)
		}
		dataToWrite = encrypted
	} else {
		dataToWrite = make([]byte, len(keyJSON))
		copy(dataToWrite, keyJSON)
	}

	filePath := filepath.Join(dir, key.Address[:8]+".json")
	if err := os.WriteFile(filePath, dataToWrite, 0600); err != nil {
		t.Fatalf("Failed to write test key file: %v", err)
	}
	return filePath
}

// TempFile creates a temporary file with the given content, returning the path.
// The file is automatically cleaned up when the test completes.
func TempFile(t *testing.T, content []byte) string {
	t.Helper()

	tmpFile, err := os.CreateTemp(t.TempDir(), "testfile-*")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := tmpFile.Write(content); err != nil {
		_ = tmpFile.Close()
		t.Fatalf("Failed to write temp file: %v", err)
	}

	_ = tmpFile.Close()
	return tmpFile.Name()
}

// AssertError checks that an error matches expected criteria.
func AssertError(t *testing.T, err error, shouldError bool, msgContains string) {
	t.Helper()

	if !shouldError {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		return
	}
	if err == nil {
		t.Error("Expected an error but got nil")
		return
	}
	if msgContains != "" && !strings.Contains(err.Error(), msgContains) {
		t.Errorf("Error message %q should contain %q", err.Error(), msgContains)
	}
}
