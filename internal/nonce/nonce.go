// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package nonce substitutes a durable nonce for the short-lived recent
// blockhash in an unsigned message.
//
// A durable nonce stays valid until its advance instruction executes, so a
// message built here can wait indefinitely on the offline signer. The package
// cannot tell whether the value it was given is still current: a nonce that
// moved after it was read only shows up when the ledger rejects the broadcast.
package nonce

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

var (
	// ErrInvalidNonceAccount is returned when account data is not an
	// initialized nonce account.
	ErrInvalidNonceAccount = errors.New("invalid nonce account")

	// ErrAuthorityMismatch is returned when the expected authority differs
	// from the one stored in the nonce account.
	ErrAuthorityMismatch = errors.New("nonce authority mismatch")
)

// Durable identifies a nonce account and the value read from it.
type Durable struct {
	Account   solana.PublicKey
	Authority solana.PublicKey
	Value     solana.Hash
}

// FromAccount builds a Durable from freshly read nonce account data.
func FromAccount(address solana.PublicKey, data []byte) (Durable, error) {
	acct, err := ParseAccount(data)
	if err != nil {
		return Durable{}, err
	}
	return Durable{Account: address, Authority: acct.Authority, Value: acct.Value}, nil
}

// CheckAuthority returns ErrAuthorityMismatch if authority cannot advance d.
func (d Durable) CheckAuthority(authority solana.PublicKey) error {
	if d.Authority != authority {
		return fmt.Errorf("%w: account %s is controlled by %s, not %s", ErrAuthorityMismatch, d.Account, d.Authority, authority)
	}
	return nil
}

func (d Durable) validate() error {
	if d.Account.IsZero() || d.Authority.IsZero() {
		return fmt.Errorf("%w: account and authority are required", ErrInvalidNonceAccount)
	}
	if d.Value.IsZero() {
		return fmt.Errorf("%w: nonce value is empty", ErrInvalidNonceAccount)
	}
	return nil
}

// Apply prepends the advance instruction for d to ixs and returns the
// instruction list together with the replay value to embed in the message.
// ixs is not modified.
func Apply(d Durable, ixs []message.Instruction) ([]message.Instruction, solana.Hash, error) {
	if err := d.validate(); err != nil {
		return nil, solana.Hash{}, err
	}
	out := make([]message.Instruction, 0, len(ixs)+1)
	out = append(out, instructions.AdvanceNonce(d.Account, d.Authority))
	out = append(out, ixs...)
	return out, d.Value, nil
}

// Compile builds a durable-nonce message paid for by payer.
func Compile(payer solana.PublicKey, d Durable, ixs []message.Instruction, version message.Version) (*message.Message, error) {
	withAdvance, replay, err := Apply(d, ixs)
	if err != nil {
		return nil, err
	}
	return message.Compile(payer, replay, withAdvance, version)
}

// FromMessage reports whether m is a durable-nonce message, that is, whether
// its first instruction advances a nonce account. The returned Durable carries
// the nonce value the message was built against.
func FromMessage(m *message.Message) (Durable, bool) {
	if len(m.Instructions) == 0 {
		return Durable{}, false
	}
	first := m.Instructions[0]
	program, err := m.ProgramID(first)
	if err != nil || program != solana.SystemProgramID {
		return Durable{}, false
	}
	if len(first.Data) != 4 || first.Data[0] != 4 || first.Data[1] != 0 || first.Data[2] != 0 || first.Data[3] != 0 {
		return Durable{}, false
	}
	if len(first.Accounts) != 3 {
		return Durable{}, false
	}
	account, ok := m.AccountKey(first.Accounts[0])
	if !ok {
		return Durable{}, false
	}
	sysvar, ok := m.AccountKey(first.Accounts[1])
	if !ok || sysvar != solana.SysvarRecentBlockhashesID {
		return Durable{}, false
	}
	authority, ok := m.AccountKey(first.Accounts[2])
	if !ok {
		return Durable{}, false
	}
	return Durable{Account: account, Authority: authority, Value: m.RecentBlockhash}, true
}
