// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package nonce

import (
	"encoding/binary"
	"fmt"

	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/solana"
)

// Account versions and states as stored on-chain.
const (
	VersionLegacy  uint32 = 0
	VersionCurrent uint32 = 1

	StateUninitialized uint32 = 0
	StateInitialized   uint32 = 1
)

// Account is the decoded data of a durable nonce account.
type Account struct {
	Version              uint32
	State                uint32
	Authority            solana.PublicKey
	Value                solana.Hash
	LamportsPerSignature uint64
}

// ParseAccount decodes nonce account data. Only initialized accounts are
// accepted since an uninitialized account holds no usable value.
func ParseAccount(data []byte) (*Account, error) {
	if len(data) != instructions.NonceAccountSize {
		return nil, fmt.Errorf("%w: data is %d bytes, want %d", ErrInvalidNonceAccount, len(data), instructions.NonceAccountSize)
	}

	a := &Account{
		Version:              binary.LittleEndian.Uint32(data[0:4]),
		State:                binary.LittleEndian.Uint32(data[4:8]),
		LamportsPerSignature: binary.LittleEndian.Uint64(data[72:80]),
	}
	copy(a.Authority[:], data[8:40])
	copy(a.Value[:], data[40:72])

	if a.Version != VersionLegacy && a.Version != VersionCurrent {
		return nil, fmt.Errorf("%w: unknown version %d", ErrInvalidNonceAccount, a.Version)
	}
	if a.State != StateInitialized {
		return nil, fmt.Errorf("%w: account is not initialized", ErrInvalidNonceAccount)
	}
	return a, nil
}

// Encode returns the on-chain data layout of a.
func (a *Account) Encode() []byte {
	data := make([]byte, 0, instructions.NonceAccountSize)
	data = binary.LittleEndian.AppendUint32(data, a.Version)
	data = binary.LittleEndian.AppendUint32(data, a.State)
	data = append(data, a.Authority[:]...)
	data = append(data, a.Value[:]...)
	data = binary.LittleEndian.AppendUint64(data, a.LamportsPerSignature)
	return data
}
