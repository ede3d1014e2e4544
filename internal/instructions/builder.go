// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package instructions

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

// ErrInvalidBuilder is returned when a builder is missing a required field.
var ErrInvalidBuilder = errors.New("invalid instruction builder")

// Builder produces the instructions for one kind of operation.
type Builder interface {
	// Kind names the operation for logs and summaries.
	Kind() string
	// Build returns the instructions in execution order.
	Build() ([]message.Instruction, error)
}

// BuildAll concatenates the instructions of several builders in order.
func BuildAll(builders ...Builder) ([]message.Instruction, error) {
	var out []message.Instruction
	for _, b := range builders {
		ixs, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Kind(), err)
		}
		out = append(out, ixs...)
	}
	return out, nil
}

// SOLTransfer sends lamports between system accounts.
type SOLTransfer struct {
	From     solana.PublicKey
	To       solana.PublicKey
	Lamports uint64
}

func (b SOLTransfer) Kind() string { return "sol-transfer" }

func (b SOLTransfer) Build() ([]message.Instruction, error) {
	if b.From.IsZero() || b.To.IsZero() {
		return nil, fmt.Errorf("%w: sender and recipient are required", ErrInvalidBuilder)
	}
	if b.Lamports == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidBuilder)
	}
	return []message.Instruction{Transfer(b.From, b.To, b.Lamports)}, nil
}

// TokenTransfer moves tokens of Mint from Owner's associated token account to
// Recipient's associated token account.
//
// When Decimals is set the transfer is checked against the mint. When
// CreateRecipientAccount is set, the recipient's associated token account is
// created first, paid for by Payer (or Owner if Payer is zero).
type TokenTransfer struct {
	Owner                  solana.PublicKey
	Recipient              solana.PublicKey
	Mint                   solana.PublicKey
	Amount                 uint64
	Decimals               *uint8
	CreateRecipientAccount bool
	Payer                  solana.PublicKey
}

func (b TokenTransfer) Kind() string { return "token-transfer" }

func (b TokenTransfer) Build() ([]message.Instruction, error) {
	if b.Owner.IsZero() || b.Recipient.IsZero() || b.Mint.IsZero() {
		return nil, fmt.Errorf("%w: owner, recipient and mint are required", ErrInvalidBuilder)
	}
	if b.Amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidBuilder)
	}

	source, err := solana.FindAssociatedTokenAddress(b.Owner, b.Mint)
	if err != nil {
		return nil, fmt.Errorf("derive source token account: %w", err)
	}
	destination, err := solana.FindAssociatedTokenAddress(b.Recipient, b.Mint)
	if err != nil {
		return nil, fmt.Errorf("derive destination token account: %w", err)
	}

	var out []message.Instruction
	if b.CreateRecipientAccount {
		payer := b.Payer
		if payer.IsZero() {
			payer = b.Owner
		}
		create, err := CreateAssociatedTokenAccount(payer, b.Recipient, b.Mint, false)
		if err != nil {
			return nil, err
		}
		out = append(out, create)
	}

	if b.Decimals != nil {
		out = append(out, SPLTransferChecked(source, b.Mint, destination, b.Owner, b.Amount, *b.Decimals))
	} else {
		out = append(out, SPLTransfer(source, destination, b.Owner, b.Amount))
	}
	return out, nil
}

// NonceAdvance consumes a durable nonce. Nonce substitution places it first
// in the message; it is exposed as a builder for messages that only advance.
type NonceAdvance struct {
	NonceAccount solana.PublicKey
	Authority    solana.PublicKey
}

func (b NonceAdvance) Kind() string { return "nonce-advance" }

func (b NonceAdvance) Build() ([]message.Instruction, error) {
	if b.NonceAccount.IsZero() || b.Authority.IsZero() {
		return nil, fmt.Errorf("%w: nonce account and authority are required", ErrInvalidBuilder)
	}
	return []message.Instruction{AdvanceNonce(b.NonceAccount, b.Authority)}, nil
}

// NonceAccountCreation allocates and initializes a durable nonce account.
// Lamports must cover rent exemption for NonceAccountSize bytes.
type NonceAccountCreation struct {
	Payer        solana.PublicKey
	NonceAccount solana.PublicKey
	Authority    solana.PublicKey
	Lamports     uint64
}

func (b NonceAccountCreation) Kind() string { return "create-nonce" }

func (b NonceAccountCreation) Build() ([]message.Instruction, error) {
	if b.Payer.IsZero() || b.NonceAccount.IsZero() || b.Authority.IsZero() {
		return nil, fmt.Errorf("%w: payer, nonce account and authority are required", ErrInvalidBuilder)
	}
	if b.Payer == b.NonceAccount {
		return nil, fmt.Errorf("%w: nonce account must be a new key", ErrInvalidBuilder)
	}
	return []message.Instruction{
		CreateAccount(b.Payer, b.NonceAccount, b.Lamports, NonceAccountSize, solana.SystemProgramID),
		InitializeNonce(b.NonceAccount, b.Authority),
	}, nil
}

// Raw carries caller-supplied instructions whose data is opaque.
type Raw struct {
	Instructions []message.Instruction
}

func (b Raw) Kind() string { return "raw" }

func (b Raw) Build() ([]message.Instruction, error) {
	if len(b.Instructions) == 0 {
		return nil, fmt.Errorf("%w: no instructions", ErrInvalidBuilder)
	}
	out := make([]message.Instruction, len(b.Instructions))
	copy(out, b.Instructions)
	return out, nil
}

var (
	_ Builder = SOLTransfer{}
	_ Builder = TokenTransfer{}
	_ Builder = NonceAdvance{}
	_ Builder = NonceAccountCreation{}
	_ Builder = Raw{}
)
