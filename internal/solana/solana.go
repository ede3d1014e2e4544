// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package solana defines the fixed-size value types shared by every layer of
// the offline signing pipeline: account public keys, replay-protection hashes
// and ed25519 signatures. Text forms use base58, the ledger's native encoding.
package solana

import (
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/btcsuite/btcd/btcutil/base58"
)

const (
	// PublicKeySize is the size of an account address in bytes.
	PublicKeySize = 32

	// HashSize is the size of a blockhash or durable nonce value in bytes.
	HashSize = 32

	// SignatureSize is the size of an ed25519 signature in bytes.
	SignatureSize = 64
)

var (
	// ErrInvalidPublicKey is returned when a public key has the wrong length or encoding.
	ErrInvalidPublicKey = errors.New("invalid public key")

	// ErrInvalidHash is returned when a hash has the wrong length or encoding.
	ErrInvalidHash = errors.New("invalid hash")

	// ErrInvalidSignature is returned when a signature has the wrong length or encoding.
	ErrInvalidSignature = errors.New("invalid signature")
)

// PublicKey is a 32-byte account address.
type PublicKey [PublicKeySize]byte

// PublicKeyFromBytes copies b into a PublicKey. b must be exactly 32 bytes.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var pk PublicKey
	if len(b) != PublicKeySize {
		return pk, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPublicKey, PublicKeySize, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// ParsePublicKey decodes a base58 address.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := decodeBase58(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return PublicKeyFromBytes(raw)
}

// MustParsePublicKey is ParsePublicKey for compile-time constants. It panics on error.
func MustParsePublicKey(s string) PublicKey {
	pk, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// String returns the base58 form of the key.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the key bytes.
func (p PublicKey) Bytes() []byte {
	out := make([]byte, PublicKeySize)
	copy(out, p[:])
	return out
}

// IsZero reports whether every byte of the key is zero.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// IsOnCurve reports whether the key decodes to a valid edwards25519 point,
// i.e. whether a private key could exist for it. Program-derived addresses
// are never on the curve.
func (p PublicKey) IsOnCurve() bool {
	_, err := new(edwards25519.Point).SetBytes(p[:])
	return err == nil
}

// MarshalText implements encoding.TextMarshaler.
func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(text []byte) error {
	pk, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// Hash is a 32-byte replay-protection value: either a recent blockhash or the
// value stored in a durable nonce account.
type Hash [HashSize]byte

// HashFromBytes copies b into a Hash. b must be exactly 32 bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidHash, HashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// ParseHash decodes a base58 hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := decodeBase58(s)
	if err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return HashFromBytes(raw)
}

// String returns the base58 form of the hash.
func (h Hash) String() string {
	return base58.Encode(h[:])
}

// IsZero reports whether every byte of the hash is zero.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Signature is a 64-byte ed25519 signature. The first signature of a
// transaction doubles as its transaction id.
type Signature [SignatureSize]byte

// SignatureFromBytes copies b into a Signature. b must be exactly 64 bytes.
func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	if len(b) != SignatureSize {
		return s, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSignature, SignatureSize, len(b))
	}
	copy(s[:], b)
	return s, nil
}

// ParseSignature decodes a base58 signature (the ledger's transaction id form).
func ParseSignature(s string) (Signature, error) {
	var sig Signature
	raw, err := decodeBase58(s)
	if err != nil {
		return sig, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return SignatureFromBytes(raw)
}

// String returns the base58 form of the signature.
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// IsZero reports whether the signature is an unpopulated slot.
func (s Signature) IsZero() bool {
	return s == Signature{}
}

// decodeBase58 wraps base58.Decode, which signals invalid input with an empty result.
func decodeBase58(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty string")
	}
	raw := base58.Decode(s)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%q is not valid base58", s)
	}
	return raw, nil
}
