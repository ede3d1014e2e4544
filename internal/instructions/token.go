// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package instructions

import (
	"encoding/binary"

	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

// Token program instruction tags.
const (
	tokenTransfer        byte = 3
	tokenTransferChecked byte = 12
)

// ataCreateIdempotent tags the idempotent create; the plain create has empty data.
const ataCreateIdempotent byte = 1

// MintDecimalsOffset is the position of the decimals byte in mint account data.
const MintDecimalsOffset = 44

// SPLTransfer moves raw token units between two token accounts.
func SPLTransfer(source, destination, owner solana.PublicKey, amount uint64) message.Instruction {
	data := make([]byte, 1, 9)
	data[0] = tokenTransfer
	data = binary.LittleEndian.AppendUint64(data, amount)
	return message.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts: []message.AccountMeta{
			{PublicKey: source, IsWritable: true},
			{PublicKey: destination, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// SPLTransferChecked moves token units and has the token program assert the
// mint and its decimals.
func SPLTransferChecked(source, mint, destination, owner solana.PublicKey, amount uint64, decimals uint8) message.Instruction {
	data := make([]byte, 1, 10)
	data[0] = tokenTransferChecked
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = append(data, decimals)
	return message.Instruction{
		ProgramID: solana.TokenProgramID,
		Accounts: []message.AccountMeta{
			{PublicKey: source, IsWritable: true},
			{PublicKey: mint},
			{PublicKey: destination, IsWritable: true},
			{PublicKey: owner, IsSigner: true},
		},
		Data: data,
	}
}

// CreateAssociatedTokenAccount creates owner's associated token account for
// mint, paid for by payer. The idempotent form succeeds when the account
// already exists.
func CreateAssociatedTokenAccount(payer, owner, mint solana.PublicKey, idempotent bool) (message.Instruction, error) {
	ata, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return message.Instruction{}, err
	}

	var data []byte
	if idempotent {
		data = []byte{ataCreateIdempotent}
	}
	return message.Instruction{
		ProgramID: solana.AssociatedTokenProgramID,
		Accounts: []message.AccountMeta{
			{PublicKey: payer, IsSigner: true, IsWritable: true},
			{PublicKey: ata, IsWritable: true},
			{PublicKey: owner},
			{PublicKey: mint},
			{PublicKey: solana.SystemProgramID},
			{PublicKey: solana.TokenProgramID},
		},
		Data: data,
	}, nil
}
