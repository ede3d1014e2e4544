// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package instructions builds the instructions that the online tool places
// into unsigned messages.
//
// The encoders in this package know the data layout of a handful of system,
// token and associated-token-account instructions. Everything else is carried
// as an opaque Raw instruction. Builders select between them so that the
// message codec never needs to know which kind of transaction it is laying out.
package instructions

import (
	"encoding/binary"

	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

// System program instruction indexes (u32 little endian).
const (
	systemCreateAccount   uint32 = 0
	systemTransfer        uint32 = 2
	systemAdvanceNonce    uint32 = 4
	systemInitializeNonce uint32 = 6
)

// NonceAccountSize is the data length of a durable nonce account.
const NonceAccountSize = 80

func systemData(index uint32, extra int) []byte {
	data := make([]byte, 4, 4+extra)
	binary.LittleEndian.PutUint32(data, index)
	return data
}

// Transfer moves lamports from one system account to another.
func Transfer(from, to solana.PublicKey, lamports uint64) message.Instruction {
	data := systemData(systemTransfer, 8)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	return message.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []message.AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: to, IsWritable: true},
		},
		Data: data,
	}
}

// CreateAccount allocates a new account funded by from and assigns it to owner.
// Both from and the new account must sign.
func CreateAccount(from, newAccount solana.PublicKey, lamports, space uint64, owner solana.PublicKey) message.Instruction {
	data := systemData(systemCreateAccount, 8+8+solana.PublicKeySize)
	data = binary.LittleEndian.AppendUint64(data, lamports)
	data = binary.LittleEndian.AppendUint64(data, space)
	data = append(data, owner[:]...)
	return message.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []message.AccountMeta{
			{PublicKey: from, IsSigner: true, IsWritable: true},
			{PublicKey: newAccount, IsSigner: true, IsWritable: true},
		},
		Data: data,
	}
}

// AdvanceNonce consumes the stored value of a durable nonce account and
// replaces it with a fresh one. The authority is the instruction's only signer.
func AdvanceNonce(nonceAccount, authority solana.PublicKey) message.Instruction {
	return message.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []message.AccountMeta{
			{PublicKey: nonceAccount, IsWritable: true},
			{PublicKey: solana.SysvarRecentBlockhashesID},
			{PublicKey: authority, IsSigner: true},
		},
		Data: systemData(systemAdvanceNonce, 0),
	}
}

// InitializeNonce turns a freshly created, system-owned account into a
// durable nonce account controlled by authority.
func InitializeNonce(nonceAccount, authority solana.PublicKey) message.Instruction {
	data := systemData(systemInitializeNonce, solana.PublicKeySize)
	data = append(data, authority[:]...)
	return message.Instruction{
		ProgramID: solana.SystemProgramID,
		Accounts: []message.AccountMeta{
			{PublicKey: nonceAccount, IsWritable: true},
			{PublicKey: solana.SysvarRecentBlockhashesID},
			{PublicKey: solana.SysvarRentID},
		},
		Data: data,
	}
}
