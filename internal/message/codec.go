// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package message

import (
	"fmt"

	"github.com/aplane-algo/apcold/internal/solana"
)

// Encode serializes m into the exact byte sequence that signers sign.
func Encode(m *Message) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil message", ErrMalformedMessage)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	size := 4 + len(m.AccountKeys)*solana.PublicKeySize + solana.HashSize + 3
	buf := make([]byte, 0, size)

	if m.Version != VersionLegacy {
		buf = append(buf, versionPrefix|byte(m.Version))
	}
	buf = append(buf,
		m.Header.NumRequiredSignatures,
		m.Header.NumReadonlySignedAccounts,
		m.Header.NumReadonlyUnsignedAccounts,
	)

	buf = AppendCompactU16(buf, len(m.AccountKeys))
	for _, key := range m.AccountKeys {
		buf = append(buf, key[:]...)
	}

	buf = append(buf, m.RecentBlockhash[:]...)

	buf = AppendCompactU16(buf, len(m.Instructions))
	for _, ix := range m.Instructions {
		buf = append(buf, ix.ProgramIDIndex)
		buf = AppendCompactU16(buf, len(ix.Accounts))
		buf = append(buf, ix.Accounts...)
		buf = AppendCompactU16(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	if m.Version != VersionLegacy {
		buf = AppendCompactU16(buf, len(m.AddressTableLookups))
		for _, l := range m.AddressTableLookups {
			buf = append(buf, l.AccountKey[:]...)
			buf = AppendCompactU16(buf, len(l.WritableIndexes))
			buf = append(buf, l.WritableIndexes...)
			buf = AppendCompactU16(buf, len(l.ReadonlyIndexes))
			buf = append(buf, l.ReadonlyIndexes...)
		}
	}

	return buf, nil
}

// Decode parses message bytes. It fails with ErrMalformedMessage when a
// declared count exceeds the remaining bytes, when an index is out of range,
// or when bytes remain after the last field.
func Decode(data []byte) (*Message, error) {
	r := &reader{buf: data}
	m := &Message{Version: VersionLegacy}

	first, err := r.readByte("header")
	if err != nil {
		return nil, err
	}
	if first&versionPrefix != 0 {
		version := first &^ versionPrefix
		if version != 0 {
			return nil, fmt.Errorf("%w: unsupported message version %d", ErrMalformedMessage, version)
		}
		m.Version = Version0
		if first, err = r.readByte("header"); err != nil {
			return nil, err
		}
	}
	m.Header.NumRequiredSignatures = first
	if m.Header.NumReadonlySignedAccounts, err = r.readByte("header"); err != nil {
		return nil, err
	}
	if m.Header.NumReadonlyUnsignedAccounts, err = r.readByte("header"); err != nil {
		return nil, err
	}

	numKeys, err := r.count("account keys", solana.PublicKeySize)
	if err != nil {
		return nil, err
	}
	if numKeys > 0 {
		m.AccountKeys = make([]solana.PublicKey, numKeys)
		for i := range m.AccountKeys {
			raw, _ := r.readBytes("account key", solana.PublicKeySize)
			copy(m.AccountKeys[i][:], raw)
		}
	}

	raw, err := r.readBytes("recent blockhash", solana.HashSize)
	if err != nil {
		return nil, err
	}
	copy(m.RecentBlockhash[:], raw)

	// Each instruction occupies at least three bytes.
	numIxs, err := r.count("instructions", 3)
	if err != nil {
		return nil, err
	}
	if numIxs > 0 {
		m.Instructions = make([]CompiledInstruction, numIxs)
		for i := range m.Instructions {
			if m.Instructions[i], err = r.instruction(i); err != nil {
				return nil, err
			}
		}
	}

	if m.Version == Version0 {
		// Each lookup occupies at least 34 bytes.
		numLookups, err := r.count("address table lookups", solana.PublicKeySize+2)
		if err != nil {
			return nil, err
		}
		if numLookups > 0 {
			m.AddressTableLookups = make([]AddressTableLookup, numLookups)
			for i := range m.AddressTableLookups {
				if m.AddressTableLookups[i], err = r.lookup(i); err != nil {
					return nil, err
				}
			}
		}
	}

	if r.remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after message", ErrMalformedMessage, r.remaining())
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// reader walks a message buffer, reporting every overrun as ErrMalformedMessage.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

func (r *reader) readByte(field string) (byte, error) {
	if r.remaining() < 1 {
		return 0, fmt.Errorf("%w: truncated %s at offset %d", ErrMalformedMessage, field, r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) readBytes(field string, n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, fmt.Errorf("%w: %s needs %d bytes, %d remain", ErrMalformedMessage, field, n, r.remaining())
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

// count reads a compact-u16 length and checks that at least n*minSize bytes remain.
func (r *reader) count(field string, minSize int) (int, error) {
	n, next, err := ReadCompactU16(r.buf, r.off)
	if err != nil {
		return 0, fmt.Errorf("%s length: %w", field, err)
	}
	r.off = next
	if n*minSize > r.remaining() {
		return 0, fmt.Errorf("%w: %s count %d exceeds remaining %d bytes", ErrMalformedMessage, field, n, r.remaining())
	}
	return n, nil
}

// lengthPrefixed reads a compact-u16 length followed by that many bytes. A
// non-nil slice is returned only for a non-zero length.
func (r *reader) lengthPrefixed(field string) ([]byte, error) {
	n, err := r.count(field, 1)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	raw, err := r.readBytes(field, n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, raw)
	return out, nil
}

func (r *reader) instruction(i int) (CompiledInstruction, error) {
	var ix CompiledInstruction
	var err error
	if ix.ProgramIDIndex, err = r.readByte(fmt.Sprintf("instruction %d program index", i)); err != nil {
		return ix, err
	}
	if ix.Accounts, err = r.lengthPrefixed(fmt.Sprintf("instruction %d accounts", i)); err != nil {
		return ix, err
	}
	if ix.Data, err = r.lengthPrefixed(fmt.Sprintf("instruction %d data", i)); err != nil {
		return ix, err
	}
	return ix, nil
}

func (r *reader) lookup(i int) (AddressTableLookup, error) {
	var l AddressTableLookup
	raw, err := r.readBytes(fmt.Sprintf("lookup %d table key", i), solana.PublicKeySize)
	if err != nil {
		return l, err
	}
	copy(l.AccountKey[:], raw)
	if l.WritableIndexes, err = r.lengthPrefixed(fmt.Sprintf("lookup %d writable indexes", i)); err != nil {
		return l, err
	}
	if l.ReadonlyIndexes, err = r.lengthPrefixed(fmt.Sprintf("lookup %d readonly indexes", i)); err != nil {
		return l, err
	}
	return l, nil
}
