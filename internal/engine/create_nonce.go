// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/signing"
	"github.com/aplane-algo/apcold/internal/solana"
)

// CreateNonceParams contains parameters for creating a durable nonce account.
type CreateNonceParams struct {
	// Payer funds rent and fees. It signs online.
	Payer signing.Signer

	// Authority may advance the nonce. Defaults to the payer's key; a cold
	// wallet address is the usual choice.
	Authority solana.PublicKey

	// NonceKey is the new account's keypair. When nil a fresh key is
	// generated and discarded after signing: the account needs no key once
	// initialized.
	NonceKey signing.Signer
}

// CreateNonceAccount allocates and initializes a nonce account funded for
// rent exemption, signing with the payer and the new account key, then
// broadcasts and confirms it.
func (e *Engine) CreateNonceAccount(ctx context.Context, p CreateNonceParams) (*NonceAccountResult, error) {
	if p.Payer == nil {
		return nil, errors.New("payer is required")
	}
	if e.Rent == nil {
		return nil, ErrNoRentOracle
	}

	nonceKey := p.NonceKey
	if nonceKey == nil {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("failed to generate nonce account key: %w", err)
		}
		ks, err := signing.NewKeySigner(priv)
		if err != nil {
			return nil, err
		}
		defer ks.Zero()
		nonceKey = ks
	}

	payer := p.Payer.PublicKey()
	address := nonceKey.PublicKey()
	authority := p.Authority
	if authority.IsZero() {
		authority = payer
	}

	existing, err := e.Client.GetAccount(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to check nonce account: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("nonce account %s already exists", address)
	}

	lamports, err := e.Rent.MinimumBalanceForRentExemption(ctx, instructions.NonceAccountSize)
	if err != nil {
		return nil, fmt.Errorf("failed to quote rent: %w", err)
	}

	ixs, err := instructions.NonceAccountCreation{
		Payer:        payer,
		NonceAccount: address,
		Authority:    authority,
		Lamports:     lamports,
	}.Build()
	if err != nil {
		return nil, err
	}
	checkpoint, err := e.Client.GetRecentCheckpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent blockhash: %w", err)
	}
	m, err := message.Compile(payer, checkpoint, ixs, e.Version)
	if err != nil {
		return nil, err
	}
	raw, err := message.Encode(m)
	if err != nil {
		return nil, err
	}

	tx, err := assembler.New(raw)
	if err != nil {
		return nil, err
	}
	for _, s := range []signing.Signer{p.Payer, nonceKey} {
		d, err := signing.SignMessage(raw, s)
		if err != nil {
			return nil, err
		}
		if tx, err = tx.Attach(d.PublicKey, d.Signature[:]); err != nil {
			return nil, err
		}
	}

	e.Logger.Info("creating nonce account",
		zap.String("nonce_account", address.String()),
		zap.String("authority", authority.String()),
		zap.Uint64("lamports", lamports))

	result := &NonceAccountResult{Address: address, Authority: authority, Lamports: lamports}
	result.Broadcast, err = e.Broadcast(ctx, tx, BroadcastOptions{})
	if err != nil {
		return result, err
	}

	if d, err := e.ReadNonce(ctx, address); err == nil {
		result.Value = d.Value
	} else {
		e.Logger.Debug("could not read back nonce", zap.Error(err))
	}
	return result, nil
}
