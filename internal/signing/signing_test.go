// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/nonce"
	"github.com/aplane-algo/apcold/internal/solana"
	"github.com/aplane-algo/apcold/internal/testutil"
)

// twoSignerMessage returns a durable-nonce message with payer x and nonce
// authority y, together with its encoded bytes.
func twoSignerMessage(t *testing.T, x, y *testutil.TestKey) (*message.Message, []byte) {
	t.Helper()

	d := nonce.Durable{Account: testutil.TestAddress(1), Authority: y.PublicKey, Value: testutil.TestHash(7)}
	m, err := nonce.Compile(x.PublicKey, d, []message.Instruction{
		instructions.Transfer(x.PublicKey, testutil.TestAddress(2), 1000),
	}, message.VersionLegacy)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	raw, err := message.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return m, raw
}

func TestResolveIndex(t *testing.T) {
	x := testutil.GenerateTestEd25519Key(t, 1)
	y := testutil.GenerateTestEd25519Key(t, 2)
	m, _ := twoSignerMessage(t, x, y)

	tests := []struct {
		name string
		key  *testutil.TestKey
		want int
	}{
		{"payer", x, 0},
		{"nonce authority", y, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				got, err := ResolveIndex(m, tt.key.PublicKey)
				if err != nil {
					t.Fatalf("ResolveIndex: %v", err)
				}
				if got != tt.want {
					t.Fatalf("ResolveIndex = %d, want %d", got, tt.want)
				}
				if m.AccountKeys[got] != tt.key.PublicKey {
					t.Fatal("index does not point at the signer's account key")
				}
			}
		})
	}
}

func TestResolveIndexNotFound(t *testing.T) {
	x := testutil.GenerateTestEd25519Key(t, 1)
	y := testutil.GenerateTestEd25519Key(t, 2)
	m, _ := twoSignerMessage(t, x, y)

	stranger := testutil.GenerateTestEd25519Key(t, 3)
	// The transfer recipient is in the account table but is not a signer.
	recipient := testutil.TestAddress(2)

	for _, key := range []solana.PublicKey{stranger.PublicKey, recipient} {
		idx, err := ResolveIndex(m, key)
		if !errors.Is(err, ErrSignerNotFound) {
			t.Errorf("ResolveIndex error = %v, want ErrSignerNotFound", err)
		}
		if idx != -1 {
			t.Errorf("ResolveIndex index = %d, want -1", idx)
		}
	}
}

func TestSignVerify(t *testing.T) {
	key := testutil.GenerateTestEd25519Key(t, 5)

	inputs := [][]byte{
		nil,
		{0},
		[]byte("arbitrary bytes"),
		make([]byte, 1232),
	}
	for _, data := range inputs {
		sig, err := Sign(data, key.PrivateKey)
		if err != nil {
			t.Fatalf("Sign: %v", err)
		}
		if !Verify(key.PublicKey, data, sig) {
			t.Errorf("signature over %d bytes did not verify", len(data))
		}

		altered := append([]byte{1}, data...)
		if Verify(key.PublicKey, altered, sig) {
			t.Errorf("signature over %d bytes verified for different bytes", len(data))
		}

		again, _ := Sign(data, key.PrivateKey)
		if again != sig {
			t.Error("ed25519 signatures should be deterministic")
		}
	}
}

func TestSignRejectsBadKeys(t *testing.T) {
	key := testutil.GenerateTestEd25519Key(t, 5)
	other := testutil.GenerateTestEd25519Key(t, 6)

	mismatched := make(ed25519.PrivateKey, ed25519.PrivateKeySize)
	copy(mismatched, key.PrivateKey[:32])
	copy(mismatched[32:], other.PrivateKey[32:])

	tests := []struct {
		name string
		key  ed25519.PrivateKey
	}{
		{"nil", nil},
		{"seed only", key.PrivateKey[:32]},
		{"mismatched public half", mismatched},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Sign([]byte("m"), tt.key); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Sign error = %v, want ErrInvalidKey", err)
			}
		})
	}
}

func TestSignMessage(t *testing.T) {
	x := testutil.GenerateTestEd25519Key(t, 1)
	y := testutil.GenerateTestEd25519Key(t, 2)
	_, raw := twoSignerMessage(t, x, y)

	signer, err := NewKeySigner(y.PrivateKey)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}

	detached, err := SignMessage(raw, signer)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	if detached.Index != 1 || detached.PublicKey != y.PublicKey {
		t.Errorf("detached = index %d key %s, want index 1 key %s", detached.Index, detached.PublicKey, y.PublicKey)
	}
	if !Verify(y.PublicKey, raw, detached.Signature) {
		t.Error("detached signature does not verify over the raw message bytes")
	}
}

func TestSignMessageErrors(t *testing.T) {
	x := testutil.GenerateTestEd25519Key(t, 1)
	y := testutil.GenerateTestEd25519Key(t, 2)
	_, raw := twoSignerMessage(t, x, y)

	stranger, err := NewKeySigner(testutil.GenerateTestEd25519Key(t, 9).PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := SignMessage(raw, stranger); !errors.Is(err, ErrSignerNotFound) {
		t.Errorf("stranger error = %v, want ErrSignerNotFound", err)
	}

	payer, err := NewKeySigner(x.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := SignMessage(raw[:len(raw)-3], payer); !errors.Is(err, message.ErrMalformedMessage) {
		t.Errorf("truncated error = %v, want ErrMalformedMessage", err)
	}
}

func TestKeySignerZero(t *testing.T) {
	key := testutil.GenerateTestEd25519Key(t, 4)
	s, err := NewKeySigner(key.PrivateKey)
	if err != nil {
		t.Fatal(err)
	}
	if s.PublicKey() != key.PublicKey {
		t.Error("PublicKey mismatch")
	}

	s.Zero()
	if _, err := s.Sign([]byte("x")); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Sign after Zero error = %v, want ErrInvalidKey", err)
	}
	// The caller's key is untouched.
	if _, err := Sign([]byte("x"), key.PrivateKey); err != nil {
		t.Errorf("caller key was modified: %v", err)
	}
}
