// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/nonce"
	"github.com/aplane-algo/apcold/internal/solana"
)

// PreparedMessage is an unsigned message ready to cross the air gap
type PreparedMessage struct {
	Message *message.Message
	Raw     []byte           // exact bytes every signer signs
	Replay  solana.Hash      // nonce value or recent blockhash
	Durable *nonce.Durable   // nil in blockhash mode
	Signers []solana.PublicKey
	Kinds   []string // builder kinds, nonce advance first when present
}

// Expires reports whether the message relies on a recent blockhash and
// must be signed and broadcast within about a minute.
func (p *PreparedMessage) Expires() bool {
	return p.Durable == nil
}

// BroadcastResult holds the outcome of a broadcast
type BroadcastResult struct {
	TxID         solana.Signature
	Confirmation *ledger.Confirmation // nil if confirmation timed out
	Partial      bool                 // submitted with empty slots

	// NonceAdvanced is set after a confirmation timeout when the durable
	// nonce has moved past the message's value. The signed bytes can no
	// longer land, whether or not they already did.
	NonceAdvanced bool
}

// NonceAccountResult holds the outcome of nonce account creation
type NonceAccountResult struct {
	Address   solana.PublicKey
	Authority solana.PublicKey
	Lamports  uint64
	Value     solana.Hash // initial nonce value, zero if it could not be read back
	Broadcast *BroadcastResult
}
