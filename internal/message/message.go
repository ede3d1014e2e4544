// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package message implements the unsigned transaction message format: the
// exact byte sequence that every signer signs.
//
// Encode and Decode are exact inverses. The codec validates structure only
// (counts, indexes, lengths); instruction data is treated as opaque bytes.
// Both the legacy layout and the v0 versioned layout are supported.
package message

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/apcold/internal/solana"
)

// ErrMalformedMessage is returned when message bytes violate the wire layout.
// It is fatal and never worth retrying.
var ErrMalformedMessage = errors.New("malformed message")

// Version identifies the message layout.
type Version int

const (
	// VersionLegacy is the original unversioned layout.
	VersionLegacy Version = -1

	// Version0 is the first versioned layout, which adds address table lookups.
	Version0 Version = 0
)

// versionPrefix marks a versioned message; the low seven bits carry the version.
const versionPrefix = 0x80

// String returns "legacy" or "v<N>".
func (v Version) String() string {
	if v == VersionLegacy {
		return "legacy"
	}
	return fmt.Sprintf("v%d", int(v))
}

// ParseVersion parses the config and flag form of a Version.
func ParseVersion(s string) (Version, error) {
	switch s {
	case "", "legacy":
		return VersionLegacy, nil
	case "v0", "0":
		return Version0, nil
	default:
		return VersionLegacy, fmt.Errorf("unsupported message version %q (must be legacy or v0)", s)
	}
}

// Header describes how the account key table splits into signer and writable groups.
type Header struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// CompiledInstruction references its program and accounts by index into the
// message's account key table.
type CompiledInstruction struct {
	ProgramIDIndex uint8
	Accounts       []uint8
	Data           []byte
}

// AddressTableLookup loads additional accounts from an on-chain lookup table (v0 only).
type AddressTableLookup struct {
	AccountKey      solana.PublicKey
	WritableIndexes []uint8
	ReadonlyIndexes []uint8
}

// Message is an unsigned transaction message.
//
// The first Header.NumRequiredSignatures entries of AccountKeys are the
// signers, in the order fixed at construction; signature slots follow the
// same order.
//
// Empty lists (Instructions, AddressTableLookups, and the index and data
// slices inside them) are nil. Decode and Compile both produce that form, and
// Decode(Encode(m)) is deeply equal to m for any message in it. An empty
// non-nil slice encodes the same bytes as nil but decodes back as nil.
type Message struct {
	Version             Version
	Header              Header
	AccountKeys         []solana.PublicKey
	RecentBlockhash     solana.Hash
	Instructions        []CompiledInstruction
	AddressTableLookups []AddressTableLookup
}

// AccountRef is a view of one account key with its signer and writable tags.
type AccountRef struct {
	PublicKey solana.PublicKey
	Signer    bool
	Writable  bool
}

// NumSigners returns the number of required signatures.
func (m *Message) NumSigners() int {
	return int(m.Header.NumRequiredSignatures)
}

// Signers returns the signer keys in slot order.
func (m *Message) Signers() []solana.PublicKey {
	n := m.NumSigners()
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	out := make([]solana.PublicKey, n)
	copy(out, m.AccountKeys[:n])
	return out
}

// FeePayer returns the first signer, which pays the transaction fee.
func (m *Message) FeePayer() (solana.PublicKey, error) {
	if m.NumSigners() == 0 || len(m.AccountKeys) == 0 {
		return solana.PublicKey{}, fmt.Errorf("%w: message has no fee payer", ErrMalformedMessage)
	}
	return m.AccountKeys[0], nil
}

// IsSigner reports whether the static account at index i must sign.
func (m *Message) IsSigner(i int) bool {
	return i >= 0 && i < m.NumSigners()
}

// IsWritable reports whether the static account at index i is writable.
func (m *Message) IsWritable(i int) bool {
	if i < 0 || i >= len(m.AccountKeys) {
		return false
	}
	if m.IsSigner(i) {
		return i < m.NumSigners()-int(m.Header.NumReadonlySignedAccounts)
	}
	return i < len(m.AccountKeys)-int(m.Header.NumReadonlyUnsignedAccounts)
}

// Accounts returns the static account table with signer and writable tags.
func (m *Message) Accounts() []AccountRef {
	refs := make([]AccountRef, len(m.AccountKeys))
	for i, key := range m.AccountKeys {
		refs[i] = AccountRef{
			PublicKey: key,
			Signer:    m.IsSigner(i),
			Writable:  m.IsWritable(i),
		}
	}
	return refs
}

// ProgramID resolves the program key of a compiled instruction.
func (m *Message) ProgramID(ix CompiledInstruction) (solana.PublicKey, error) {
	if int(ix.ProgramIDIndex) >= len(m.AccountKeys) {
		return solana.PublicKey{}, fmt.Errorf("%w: program index %d out of range", ErrMalformedMessage, ix.ProgramIDIndex)
	}
	return m.AccountKeys[ix.ProgramIDIndex], nil
}

// AccountKey resolves an instruction account index to a static key. Indexes
// that refer to lookup-table accounts return ok=false.
func (m *Message) AccountKey(index uint8) (solana.PublicKey, bool) {
	if int(index) >= len(m.AccountKeys) {
		return solana.PublicKey{}, false
	}
	return m.AccountKeys[index], true
}

// numLookupAccounts counts the accounts loaded through address table lookups.
func (m *Message) numLookupAccounts() int {
	n := 0
	for _, l := range m.AddressTableLookups {
		n += len(l.WritableIndexes) + len(l.ReadonlyIndexes)
	}
	return n
}

// Validate checks the structural invariants that Decode enforces, so that
// Encode never produces bytes Decode would reject.
func (m *Message) Validate() error {
	if m.Version != VersionLegacy && m.Version != Version0 {
		return fmt.Errorf("%w: unsupported version %d", ErrMalformedMessage, int(m.Version))
	}
	if m.Version == VersionLegacy && len(m.AddressTableLookups) > 0 {
		return fmt.Errorf("%w: legacy message cannot carry address table lookups", ErrMalformedMessage)
	}

	numKeys := len(m.AccountKeys)
	h := m.Header
	if numKeys > 256 {
		return fmt.Errorf("%w: %d account keys exceed the 256 index limit", ErrMalformedMessage, numKeys)
	}
	if h.NumRequiredSignatures == 0 {
		return fmt.Errorf("%w: message requires at least one signer", ErrMalformedMessage)
	}
	if int(h.NumRequiredSignatures)+int(h.NumReadonlyUnsignedAccounts) > numKeys {
		return fmt.Errorf("%w: header declares %d signers and %d readonly unsigned accounts but table has %d keys",
			ErrMalformedMessage, h.NumRequiredSignatures, h.NumReadonlyUnsignedAccounts, numKeys)
	}
	if h.NumReadonlySignedAccounts >= h.NumRequiredSignatures {
		return fmt.Errorf("%w: fee payer must be a writable signer", ErrMalformedMessage)
	}

	seen := make(map[solana.PublicKey]struct{}, numKeys)
	for i, key := range m.AccountKeys {
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: duplicate account key %s at index %d", ErrMalformedMessage, key, i)
		}
		seen[key] = struct{}{}
	}

	total := numKeys + m.numLookupAccounts()
	if total > 256 {
		return fmt.Errorf("%w: %d total accounts exceed the 256 index limit", ErrMalformedMessage, total)
	}
	for i, ix := range m.Instructions {
		if int(ix.ProgramIDIndex) >= numKeys {
			return fmt.Errorf("%w: instruction %d program index %d out of range (%d static keys)",
				ErrMalformedMessage, i, ix.ProgramIDIndex, numKeys)
		}
		for _, idx := range ix.Accounts {
			if int(idx) >= total {
				return fmt.Errorf("%w: instruction %d account index %d out of range (%d accounts)",
					ErrMalformedMessage, i, idx, total)
			}
		}
		if len(ix.Accounts) > maxCompactU16 || len(ix.Data) > maxCompactU16 {
			return fmt.Errorf("%w: instruction %d exceeds compact-u16 length", ErrMalformedMessage, i)
		}
	}
	return nil
}
