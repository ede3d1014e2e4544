// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package message

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/apcold/internal/solana"
)

// ErrTooManyAccounts is returned when an instruction set references more
// accounts than a single-byte index can address.
var ErrTooManyAccounts = errors.New("too many accounts for one message")

// AccountMeta is an account reference as supplied by an instruction builder.
type AccountMeta struct {
	PublicKey  solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Instruction is an uncompiled instruction: a program, the accounts it
// touches and opaque data bytes.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []AccountMeta
	Data      []byte
}

// Compile lays out instructions into a Message.
//
// Account keys are ordered payer first, then writable signers, readonly
// signers, writable non-signers and readonly non-signers, each group in order
// of first appearance. A key referenced several times gets the union of its
// flags. Program ids are readonly non-signers unless an instruction says
// otherwise. The resulting order is fixed for the life of the message.
func Compile(payer solana.PublicKey, replay solana.Hash, instructions []Instruction, version Version) (*Message, error) {
	if version != VersionLegacy && version != Version0 {
		return nil, fmt.Errorf("unsupported message version %d", int(version))
	}
	if payer.IsZero() {
		return nil, errors.New("fee payer is required")
	}

	type flags struct {
		signer   bool
		writable bool
	}
	var order []solana.PublicKey
	seen := make(map[solana.PublicKey]*flags)
	add := func(key solana.PublicKey, signer, writable bool) {
		f, ok := seen[key]
		if !ok {
			f = &flags{}
			seen[key] = f
			order = append(order, key)
		}
		f.signer = f.signer || signer
		f.writable = f.writable || writable
	}

	add(payer, true, true)
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			add(meta.PublicKey, meta.IsSigner, meta.IsWritable)
		}
		add(ix.ProgramID, false, false)
	}

	var writableSigners, readonlySigners, writableOthers, readonlyOthers []solana.PublicKey
	for _, key := range order {
		f := seen[key]
		switch {
		case f.signer && f.writable:
			writableSigners = append(writableSigners, key)
		case f.signer:
			readonlySigners = append(readonlySigners, key)
		case f.writable:
			writableOthers = append(writableOthers, key)
		default:
			readonlyOthers = append(readonlyOthers, key)
		}
	}

	keys := make([]solana.PublicKey, 0, len(order))
	keys = append(keys, writableSigners...)
	keys = append(keys, readonlySigners...)
	keys = append(keys, writableOthers...)
	keys = append(keys, readonlyOthers...)
	if len(keys) > 256 {
		return nil, fmt.Errorf("%w: %d accounts", ErrTooManyAccounts, len(keys))
	}

	index := make(map[solana.PublicKey]uint8, len(keys))
	for i, key := range keys {
		index[key] = uint8(i)
	}

	m := &Message{
		Version: version,
		Header: Header{
			NumRequiredSignatures:       uint8(len(writableSigners) + len(readonlySigners)),
			NumReadonlySignedAccounts:   uint8(len(readonlySigners)),
			NumReadonlyUnsignedAccounts: uint8(len(readonlyOthers)),
		},
		AccountKeys:     keys,
		RecentBlockhash: replay,
	}

	for _, ix := range instructions {
		compiled := CompiledInstruction{ProgramIDIndex: index[ix.ProgramID]}
		for _, meta := range ix.Accounts {
			compiled.Accounts = append(compiled.Accounts, index[meta.PublicKey])
		}
		if len(ix.Data) > 0 {
			compiled.Data = make([]byte, len(ix.Data))
			copy(compiled.Data, ix.Data)
		}
		m.Instructions = append(m.Instructions, compiled)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}
