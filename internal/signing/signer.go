// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package signing resolves signer slots and produces detached signatures.
//
// Everything here is pure: no network, no disk, no state carried between
// calls. A signature always covers exactly the bytes passed in, never a
// message rebuilt from decoded fields.
package signing

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/aplane-algo/apcold/internal/crypto"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

// ErrInvalidKey is returned for private keys of the wrong size or whose
// public half does not match the seed.
var ErrInvalidKey = errors.New("invalid ed25519 private key")

// Signer produces detached signatures for a single identity.
type Signer interface {
	// PublicKey returns the identity whose slot the signatures fill.
	PublicKey() solana.PublicKey

	// Sign signs data exactly as given.
	Sign(data []byte) (solana.Signature, error)
}

// PublicKeyOf validates key and returns its public identity.
func PublicKeyOf(key ed25519.PrivateKey) (solana.PublicKey, error) {
	if len(key) != ed25519.PrivateKeySize {
		return solana.PublicKey{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(key))
	}
	derived := ed25519.NewKeyFromSeed(key.Seed())
	defer crypto.ZeroBytes(derived)
	if subtle.ConstantTimeCompare(derived[32:], key[32:]) != 1 {
		return solana.PublicKey{}, fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	var pk solana.PublicKey
	copy(pk[:], key[32:])
	return pk, nil
}

// Sign returns the ed25519 signature of data under key.
func Sign(data []byte, key ed25519.PrivateKey) (solana.Signature, error) {
	if _, err := PublicKeyOf(key); err != nil {
		return solana.Signature{}, err
	}
	var sig solana.Signature
	copy(sig[:], ed25519.Sign(key, data))
	return sig, nil
}

// Verify reports whether sig is a valid signature of data by pub.
func Verify(pub solana.PublicKey, data []byte, sig solana.Signature) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), data, sig[:])
}

// KeySigner is a Signer backed by an in-memory ed25519 private key.
type KeySigner struct {
	key ed25519.PrivateKey
	pub solana.PublicKey
}

// NewKeySigner copies key into a new KeySigner. The caller may zero its own
// copy afterwards.
func NewKeySigner(key ed25519.PrivateKey) (*KeySigner, error) {
	pub, err := PublicKeyOf(key)
	if err != nil {
		return nil, err
	}
	own := make(ed25519.PrivateKey, len(key))
	copy(own, key)
	return &KeySigner{key: own, pub: pub}, nil
}

func (s *KeySigner) PublicKey() solana.PublicKey {
	return s.pub
}

func (s *KeySigner) Sign(data []byte) (solana.Signature, error) {
	if s.key == nil {
		return solana.Signature{}, fmt.Errorf("%w: key has been zeroed", ErrInvalidKey)
	}
	return Sign(data, s.key)
}

// Zero wipes the private key. The signer is unusable afterwards.
func (s *KeySigner) Zero() {
	crypto.ZeroBytes(s.key)
	s.key = nil
}

var _ Signer = (*KeySigner)(nil)

// Detached is a signature produced away from the message it belongs to,
// together with the slot it fills.
type Detached struct {
	Signature solana.Signature
	PublicKey solana.PublicKey
	Index     int
}

// SignMessage checks that raw is a well-formed message requiring s's
// signature and signs raw. The decoded form is used only for the check.
func SignMessage(raw []byte, s Signer) (Detached, error) {
	m, err := message.Decode(raw)
	if err != nil {
		return Detached{}, err
	}
	pub := s.PublicKey()
	index, err := ResolveIndex(m, pub)
	if err != nil {
		return Detached{}, err
	}
	sig, err := s.Sign(raw)
	if err != nil {
		return Detached{}, fmt.Errorf("failed to sign message: %w", err)
	}
	return Detached{Signature: sig, PublicKey: pub, Index: index}, nil
}
