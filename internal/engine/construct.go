// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

// Message construction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/nonce"
	"github.com/aplane-algo/apcold/internal/solana"
)

// ConstructParams describes one unsigned message.
type ConstructParams struct {
	FeePayer solana.PublicKey

	// NonceAccount selects durable-nonce mode. When zero, a recent blockhash
	// is used instead and the message expires quickly.
	NonceAccount solana.PublicKey

	// NonceAuthority is the signer expected to advance the nonce. Defaults
	// to FeePayer; it must match the authority stored in the account.
	NonceAuthority solana.PublicKey

	Builders []instructions.Builder
}

// Construct reads the replay value, builds the instructions and compiles the
// message. In durable-nonce mode the nonce is read here, so the result is only
// valid until that nonce is next advanced.
func (e *Engine) Construct(ctx context.Context, p ConstructParams) (*PreparedMessage, error) {
	if p.FeePayer.IsZero() {
		return nil, errors.New("fee payer is required")
	}

	ixs, err := instructions.BuildAll(p.Builders...)
	if err != nil {
		return nil, err
	}
	kinds := make([]string, 0, len(p.Builders)+1)

	var (
		m       *message.Message
		durable *nonce.Durable
	)
	if p.NonceAccount.IsZero() {
		checkpoint, err := e.Client.GetRecentCheckpoint(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
		}
		m, err = message.Compile(p.FeePayer, checkpoint, ixs, e.Version)
		if err != nil {
			return nil, err
		}
	} else {
		d, err := e.ReadNonce(ctx, p.NonceAccount)
		if err != nil {
			return nil, err
		}
		authority := p.NonceAuthority
		if authority.IsZero() {
			authority = p.FeePayer
		}
		if err := d.CheckAuthority(authority); err != nil {
			return nil, err
		}
		m, err = nonce.Compile(p.FeePayer, d, ixs, e.Version)
		if err != nil {
			return nil, err
		}
		durable = &d
		kinds = append(kinds, instructions.NonceAdvance{}.Kind())
	}
	for _, b := range p.Builders {
		kinds = append(kinds, b.Kind())
	}

	raw, err := message.Encode(m)
	if err != nil {
		return nil, err
	}

	prepared := &PreparedMessage{
		Message: m,
		Raw:     raw,
		Replay:  m.RecentBlockhash,
		Durable: durable,
		Signers: m.Signers(),
		Kinds:   kinds,
	}
	e.Logger.Info("constructed message",
		zap.String("fee_payer", p.FeePayer.String()),
		zap.Bool("durable_nonce", durable != nil),
		zap.String("replay", prepared.Replay.String()),
		zap.Int("signers", len(prepared.Signers)),
		zap.Int("instructions", len(m.Instructions)))
	return prepared, nil
}
