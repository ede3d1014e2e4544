// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/nonce"
	"github.com/aplane-algo/apcold/internal/solana"
)

// System program instruction indexes the stub executes.
const (
	sysCreateAccount   = 0
	sysAdvanceNonce    = 4
	sysInitializeNonce = 6
)

// StubLedger implements ledger.Client and ledger.RentOracle in memory.
//
// Submit checks what a validator would reject before execution: empty
// slots, bad signatures and a stale replay value. Accepted transactions
// have their system program nonce instructions applied, so a nonce advanced
// by a landed transaction is stale for the next one built against it.
type StubLedger struct {
	mu         sync.Mutex
	accounts   map[solana.PublicKey]*ledger.AccountInfo
	checkpoint solana.Hash
	slot       uint64
	landed     map[solana.Signature]*ledger.Confirmation
	submitted  [][]byte

	// SubmitErr, when set, is returned by Submit before any checks.
	SubmitErr error

	// DropConfirmations makes Confirm time out even for landed transactions.
	DropConfirmations bool
}

// New returns an empty ledger with a fixed recent blockhash.
func New() *StubLedger {
	return &StubLedger{
		accounts:   make(map[solana.PublicKey]*ledger.AccountInfo),
		checkpoint: solana.Hash(sha256.Sum256([]byte("ledgertest checkpoint"))),
		slot:       1000,
		landed:     make(map[solana.Signature]*ledger.Confirmation),
	}
}

// SetAccount stores a copy of info.
func (s *StubLedger) SetAccount(info ledger.AccountInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info.Data = append([]byte(nil), info.Data...)
	s.accounts[info.Address] = &info
}

// SetNonce stores an initialized nonce account holding value.
func (s *StubLedger) SetNonce(address, authority solana.PublicKey, value solana.Hash) {
	acct := nonce.Account{
		Version:              nonce.VersionCurrent,
		State:                nonce.StateInitialized,
		Authority:            authority,
		Value:                value,
		LamportsPerSignature: 5000,
	}
	s.SetAccount(ledger.AccountInfo{
		Address:  address,
		Owner:    solana.SystemProgramID,
		Lamports: rentFor(instructions.NonceAccountSize),
		Data:     acct.Encode(),
	})
}

// AdvanceNonce moves the nonce at address to a new value, as a competing
// transaction would, and returns the new value.
func (s *StubLedger) AdvanceNonce(address solana.PublicKey) (solana.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advanceLocked(address)
}

// SetCheckpoint replaces the recent blockhash.
func (s *StubLedger) SetCheckpoint(h solana.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = h
}

// Submitted returns copies of every transaction accepted so far.
func (s *StubLedger) Submitted() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.submitted))
	for i, w := range s.submitted {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// Submit implements ledger.Client.
func (s *StubLedger) Submit(_ context.Context, wire []byte) (solana.Signature, error) {
	if s.SubmitErr != nil {
		return solana.Signature{}, s.SubmitErr
	}

	tx, err := assembler.Parse(wire)
	if err != nil {
		return solana.Signature{}, err
	}
	if missing := tx.Missing(); len(missing) > 0 {
		return solana.Signature{}, fmt.Errorf("%w: %d unsigned", ledger.ErrIncompleteSignatures, len(missing))
	}
	if err := tx.Verify(); err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", ledger.ErrSignatureVerification, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m := tx.Message()
	if err := s.checkReplayLocked(m); err != nil {
		return solana.Signature{}, err
	}
	if err := s.executeLocked(m); err != nil {
		return solana.Signature{}, err
	}

	id, _ := tx.ID()
	s.slot++
	s.landed[id] = &ledger.Confirmation{Success: true, Slot: s.slot, Status: ledger.CommitmentFinalized}
	s.submitted = append(s.submitted, append([]byte(nil), wire...))
	return id, nil
}

func (s *StubLedger) checkReplayLocked(m *message.Message) error {
	d, ok := nonce.FromMessage(m)
	if !ok {
		if m.RecentBlockhash != s.checkpoint {
			return fmt.Errorf("%w: Blockhash not found", ledger.ErrStaleNonce)
		}
		return nil
	}

	info, ok := s.accounts[d.Account]
	if !ok {
		return fmt.Errorf("%w: nonce account %s", ledger.ErrAccountNotFound, d.Account)
	}
	current, err := nonce.ParseAccount(info.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ledger.ErrTransactionFailed, err)
	}
	if current.Value != d.Value {
		return fmt.Errorf("%w: Blockhash not found", ledger.ErrStaleNonce)
	}
	if current.Authority != d.Authority {
		return fmt.Errorf("%w: nonce authority %s did not sign", ledger.ErrTransactionFailed, d.Authority)
	}
	return nil
}

// executeLocked applies the system program instructions that change nonce
// state. Everything else is accepted without effect.
func (s *StubLedger) executeLocked(m *message.Message) error {
	for _, ix := range m.Instructions {
		program, err := m.ProgramID(ix)
		if err != nil {
			return err
		}
		if program != solana.SystemProgramID || len(ix.Data) < 4 {
			continue
		}
		key := func(i int) solana.PublicKey {
			pk, _ := m.AccountKey(ix.Accounts[i])
			return pk
		}

		switch binary.LittleEndian.Uint32(ix.Data) {
		case sysCreateAccount:
			if len(ix.Accounts) < 2 || len(ix.Data) != 52 {
				return fmt.Errorf("%w: malformed create account", ledger.ErrTransactionFailed)
			}
			addr := key(1)
			if _, exists := s.accounts[addr]; exists {
				return fmt.Errorf("%w: account %s already in use", ledger.ErrTransactionFailed, addr)
			}
			var owner solana.PublicKey
			copy(owner[:], ix.Data[20:52])
			s.accounts[addr] = &ledger.AccountInfo{
				Address:  addr,
				Owner:    owner,
				Lamports: binary.LittleEndian.Uint64(ix.Data[4:12]),
				Data:     make([]byte, binary.LittleEndian.Uint64(ix.Data[12:20])),
			}
		case sysAdvanceNonce:
			if len(ix.Accounts) < 1 {
				return fmt.Errorf("%w: malformed advance nonce", ledger.ErrTransactionFailed)
			}
			if _, err := s.advanceLocked(key(0)); err != nil {
				return err
			}
		case sysInitializeNonce:
			if len(ix.Accounts) < 1 || len(ix.Data) != 36 {
				return fmt.Errorf("%w: malformed initialize nonce", ledger.ErrTransactionFailed)
			}
			addr := key(0)
			info, ok := s.accounts[addr]
			if !ok || len(info.Data) != instructions.NonceAccountSize {
				return fmt.Errorf("%w: %s is not sized for a nonce", ledger.ErrTransactionFailed, addr)
			}
			acct := nonce.Account{
				Version:              nonce.VersionCurrent,
				State:                nonce.StateInitialized,
				Value:                nextValue(s.checkpoint, addr),
				LamportsPerSignature: 5000,
			}
			copy(acct.Authority[:], ix.Data[4:36])
			info.Data = acct.Encode()
		}
	}
	return nil
}

func (s *StubLedger) advanceLocked(address solana.PublicKey) (solana.Hash, error) {
	info, ok := s.accounts[address]
	if !ok {
		return solana.Hash{}, fmt.Errorf("%w: nonce account %s", ledger.ErrAccountNotFound, address)
	}
	acct, err := nonce.ParseAccount(info.Data)
	if err != nil {
		return solana.Hash{}, err
	}
	acct.Value = nextValue(acct.Value, address)
	info.Data = acct.Encode()
	return acct.Value, nil
}

func nextValue(prev solana.Hash, address solana.PublicKey) solana.Hash {
	h := sha256.New()
	h.Write(prev[:])
	h.Write(address[:])
	var out solana.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Confirm implements ledger.Client.
func (s *StubLedger) Confirm(ctx context.Context, id solana.Signature) (*ledger.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.landed[id]
	if !ok || s.DropConfirmations {
		return nil, fmt.Errorf("%w: %s", ledger.ErrConfirmTimeout, id)
	}
	out := *c
	return &out, nil
}

// GetAccount implements ledger.Client.
func (s *StubLedger) GetAccount(_ context.Context, address solana.PublicKey) (*ledger.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, ok := s.accounts[address]
	if !ok {
		return nil, nil
	}
	out := *info
	out.Data = append([]byte(nil), info.Data...)
	return &out, nil
}

// GetRecentCheckpoint implements ledger.Client.
func (s *StubLedger) GetRecentCheckpoint(context.Context) (solana.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoint, nil
}

// MinimumBalanceForRentExemption implements ledger.RentOracle using the
// default rent parameters.
func (s *StubLedger) MinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	return rentFor(size), nil
}

func rentFor(size uint64) uint64 {
	const accountStorageOverhead = 128
	const lamportsPerByteYear = 3480
	const exemptionYears = 2
	return (accountStorageOverhead + size) * lamportsPerByteYear * exemptionYears
}

var (
	_ ledger.Client     = (*StubLedger)(nil)
	_ ledger.RentOracle = (*StubLedger)(nil)
)
