// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package assembler reattaches detached signatures to the message they were
// produced for.
//
// A Transaction is a value: Attach returns a new Transaction and never
// changes the receiver, so a failed attach leaves the previous assembly
// intact. Partial assemblies are normal and can be inspected or serialized;
// only Finalize insists that every slot is filled.
package assembler

import (
	"fmt"

	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/signing"
	"github.com/aplane-algo/apcold/internal/solana"
)

// Transaction is an unsigned message plus one signature slot per required
// signer. Empty slots are all zero.
type Transaction struct {
	msg   *message.Message
	raw   []byte
	slots []solana.Signature
}

// New decodes rawMessage and returns a Transaction with every slot empty.
func New(rawMessage []byte) (*Transaction, error) {
	return newTransaction(rawMessage, nil)
}

func newTransaction(rawMessage []byte, existing []solana.Signature) (*Transaction, error) {
	m, err := message.Decode(rawMessage)
	if err != nil {
		return nil, err
	}

	n := m.NumSigners()
	slots := make([]solana.Signature, n)
	if existing != nil {
		if len(existing) != n {
			return nil, fmt.Errorf("%w: message requires %d signatures, got %d slots", ErrSlotCountMismatch, n, len(existing))
		}
		copy(slots, existing)
	}

	raw := make([]byte, len(rawMessage))
	copy(raw, rawMessage)
	return &Transaction{msg: m, raw: raw, slots: slots}, nil
}

// Attach places sig in signer's slot of a transaction built from rawMessage
// and existing. A nil existing starts from empty slots. existing is copied,
// never modified.
func Attach(rawMessage []byte, signer solana.PublicKey, sig []byte, existing []solana.Signature) (*Transaction, error) {
	tx, err := newTransaction(rawMessage, existing)
	if err != nil {
		return nil, err
	}
	return tx.Attach(signer, sig)
}

// Attach returns a copy of t with sig placed in signer's slot. Every other
// slot is carried over unchanged. The signature must verify over the message
// bytes.
func (t *Transaction) Attach(signer solana.PublicKey, sig []byte) (*Transaction, error) {
	index, err := signing.ResolveIndex(t.msg, signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnknownSigner, err)
	}
	if len(sig) != solana.SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrSignatureLengthMismatch, solana.SignatureSize, len(sig))
	}

	var s solana.Signature
	copy(s[:], sig)
	if !signing.Verify(signer, t.raw, s) {
		return nil, fmt.Errorf("%w: signer %s (slot %d)", ErrInvalidSignature, signer, index)
	}

	slots := make([]solana.Signature, len(t.slots))
	copy(slots, t.slots)
	slots[index] = s
	return &Transaction{msg: t.msg, raw: t.raw, slots: slots}, nil
}

// Message returns a decoded copy of the message.
func (t *Transaction) Message() *message.Message {
	m, err := message.Decode(t.raw)
	if err != nil {
		// t.raw decoded successfully when t was built.
		panic(fmt.Sprintf("assembler: stored message no longer decodes: %v", err))
	}
	return m
}

// MessageBytes returns a copy of the exact bytes every signer signs.
func (t *Transaction) MessageBytes() []byte {
	out := make([]byte, len(t.raw))
	copy(out, t.raw)
	return out
}

// Slots returns a copy of the signature slots in signer order.
func (t *Transaction) Slots() []solana.Signature {
	out := make([]solana.Signature, len(t.slots))
	copy(out, t.slots)
	return out
}

// Signers returns the required signers in slot order.
func (t *Transaction) Signers() []solana.PublicKey {
	return t.msg.Signers()
}

// Missing returns the signers whose slots are still empty.
func (t *Transaction) Missing() []solana.PublicKey {
	var missing []solana.PublicKey
	for i, s := range t.slots {
		if s.IsZero() {
			missing = append(missing, t.msg.AccountKeys[i])
		}
	}
	return missing
}

// Complete reports whether every slot holds a signature.
func (t *Transaction) Complete() bool {
	return len(t.Missing()) == 0
}

// Verify checks every filled slot against its signer.
func (t *Transaction) Verify() error {
	for i, s := range t.slots {
		if s.IsZero() {
			continue
		}
		if !signing.Verify(t.msg.AccountKeys[i], t.raw, s) {
			return fmt.Errorf("%w: signer %s (slot %d)", ErrInvalidSignature, t.msg.AccountKeys[i], i)
		}
	}
	return nil
}

// ID returns the transaction id, which is the fee payer's signature.
// ok is false until that slot is filled.
func (t *Transaction) ID() (id solana.Signature, ok bool) {
	if len(t.slots) == 0 || t.slots[0].IsZero() {
		return solana.Signature{}, false
	}
	return t.slots[0], true
}

// Serialize returns the wire form, empty slots included.
func (t *Transaction) Serialize() []byte {
	buf := make([]byte, 0, 3+len(t.slots)*solana.SignatureSize+len(t.raw))
	buf = message.AppendCompactU16(buf, len(t.slots))
	for _, s := range t.slots {
		buf = append(buf, s[:]...)
	}
	return append(buf, t.raw...)
}

// Finalize returns the wire form of a fully signed transaction. It fails with
// ErrIncomplete while any slot is empty.
func (t *Transaction) Finalize() ([]byte, error) {
	if missing := t.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %d of %d signatures missing (first: %s)", ErrIncomplete, len(missing), len(t.slots), missing[0])
	}
	if err := t.Verify(); err != nil {
		return nil, err
	}
	return t.Serialize(), nil
}

// Parse decodes the wire form of a transaction. Empty slots are allowed;
// filled slots are not verified here.
func Parse(wire []byte) (*Transaction, error) {
	count, off, err := message.ReadCompactU16(wire, 0)
	if err != nil {
		return nil, fmt.Errorf("signature count: %w", err)
	}
	end := off + count*solana.SignatureSize
	if end > len(wire) {
		return nil, fmt.Errorf("%w: %d signatures exceed transaction length", message.ErrMalformedMessage, count)
	}

	slots := make([]solana.Signature, count)
	for i := range slots {
		copy(slots[i][:], wire[off+i*solana.SignatureSize:])
	}
	return newTransaction(wire[end:], slots)
}
