// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/nonce"
	"github.com/aplane-algo/apcold/internal/solana"
)

// ReadNonce reads the current value and authority of a durable nonce
// account. Call it immediately before construction.
func (e *Engine) ReadNonce(ctx context.Context, address solana.PublicKey) (nonce.Durable, error) {
	info, err := e.Client.GetAccount(ctx, address)
	if err != nil {
		return nonce.Durable{}, fmt.Errorf("failed to read nonce account %s: %w", address, err)
	}
	if info == nil {
		return nonce.Durable{}, fmt.Errorf("%w: nonce account %s", ledger.ErrAccountNotFound, address)
	}
	if info.Owner != solana.SystemProgramID {
		return nonce.Durable{}, fmt.Errorf("%w: %s is owned by %s", ErrNotNonceAccount, address, info.Owner)
	}

	d, err := nonce.FromAccount(address, info.Data)
	if err != nil {
		return nonce.Durable{}, fmt.Errorf("%w: %w", ErrNotNonceAccount, err)
	}
	e.Logger.Debug("read nonce",
		zap.String("nonce_account", address.String()),
		zap.String("authority", d.Authority.String()),
		zap.String("value", d.Value.String()))
	return d, nil
}
