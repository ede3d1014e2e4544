// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package ledger talks to the network on behalf of the online tool.
//
// Client is the narrow surface the rest of the program depends on: submit a
// signed transaction, wait for its outcome, read an account and fetch a
// recent blockhash. RPCClient implements it over JSON-RPC. Failures that the
// caller must handle differently are reported as the sentinel errors in
// errors.go.
package ledger

import (
	"context"
	"fmt"

	"github.com/aplane-algo/apcold/internal/solana"
)

// Commitment is how settled a transaction or read must be.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// ParseCommitment validates a commitment level from config or flags.
func ParseCommitment(s string) (Commitment, error) {
	switch c := Commitment(s); c {
	case CommitmentProcessed, CommitmentConfirmed, CommitmentFinalized:
		return c, nil
	case "":
		return CommitmentConfirmed, nil
	default:
		return "", fmt.Errorf("unknown commitment %q (must be processed, confirmed or finalized)", s)
	}
}

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Reached reports whether status is at least as settled as c.
func (c Commitment) Reached(status Commitment) bool {
	return status.rank() >= c.rank() && status.rank() > 0
}

// AccountInfo is an account as read from the ledger.
type AccountInfo struct {
	Address    solana.PublicKey
	Owner      solana.PublicKey
	Lamports   uint64
	Data       []byte
	Executable bool
}

// Confirmation is the outcome of a landed transaction.
type Confirmation struct {
	Success     bool
	ErrorDetail string
	Slot        uint64
	Status      Commitment
}

// Client is the ledger collaborator used to broadcast and to read state.
type Client interface {
	// Submit sends a fully signed transaction in wire form and returns its id.
	Submit(ctx context.Context, wire []byte) (solana.Signature, error)

	// Confirm waits until the transaction reaches the client's commitment
	// level or fails on-chain.
	Confirm(ctx context.Context, id solana.Signature) (*Confirmation, error)

	// GetAccount returns nil with no error when the account does not exist.
	GetAccount(ctx context.Context, address solana.PublicKey) (*AccountInfo, error)

	// GetRecentCheckpoint returns a recent blockhash.
	GetRecentCheckpoint(ctx context.Context) (solana.Hash, error)
}

// RentOracle quotes the balance an account of a given size needs to be rent
// exempt.
type RentOracle interface {
	MinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}
