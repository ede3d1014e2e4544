// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

// Signature reattachment and submission

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/envelope"
	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/nonce"
)

// Assemble attaches detached signatures to raw in order. A later signature
// for the same signer replaces an earlier one. Any failure discards the
// whole assembly.
func (e *Engine) Assemble(raw []byte, sigs ...envelope.Detached) (*assembler.Transaction, error) {
	if len(sigs) == 0 {
		return nil, ErrNoSignatures
	}

	tx, err := assembler.New(raw)
	if err != nil {
		return nil, err
	}
	for i, s := range sigs {
		next, err := tx.Attach(s.PublicKey, s.Signature)
		if err != nil {
			return nil, fmt.Errorf("signature %d: %w", i+1, err)
		}
		tx = next
		e.Logger.Debug("attached signature", zap.String("signer", s.PublicKey.String()))
	}
	return tx, nil
}

// BroadcastOptions controls Broadcast.
type BroadcastOptions struct {
	// AllowPartial submits even with empty slots. The ledger rejects such
	// transactions; this exists to observe that rejection.
	AllowPartial bool
}

// Broadcast submits tx and waits for confirmation.
//
// For durable-nonce messages the nonce is re-read first, and a value that has
// already moved is reported as ledger.ErrStaleNonce without submitting. The
// same error from the ledger is passed through unchanged. Either way the
// signed bytes are dead and the message must be rebuilt and signed again.
//
// A non-nil result is returned once the ledger accepted the transaction,
// including when confirmation then times out or the transaction fails.
func (e *Engine) Broadcast(ctx context.Context, tx *assembler.Transaction, opts BroadcastOptions) (*BroadcastResult, error) {
	missing := tx.Missing()
	partial := len(missing) > 0
	if partial && !opts.AllowPartial {
		return nil, fmt.Errorf("%w: %d of %d signatures missing (first: %s)",
			ledger.ErrIncompleteSignatures, len(missing), len(tx.Signers()), missing[0])
	}

	d, durable := nonce.FromMessage(tx.Message())
	if durable && !e.SkipPreflight {
		if err := e.checkNonceCurrent(ctx, d); err != nil {
			return nil, err
		}
	}

	wire := tx.Serialize()
	if !partial {
		var err error
		if wire, err = tx.Finalize(); err != nil {
			return nil, err
		}
	}

	id, err := e.Client.Submit(ctx, wire)
	if err != nil {
		e.Logger.Warn("submit failed", zap.Bool("retryable", ledger.IsRetryable(err)), zap.Error(err))
		return nil, err
	}
	e.Logger.Info("transaction submitted", zap.String("txid", id.String()))

	result := &BroadcastResult{TxID: id, Partial: partial}
	conf, err := e.Client.Confirm(ctx, id)
	if err != nil {
		if errors.Is(err, ledger.ErrConfirmTimeout) && durable {
			current, rerr := e.ReadNonce(ctx, d.Account)
			if rerr == nil && current.Value != d.Value {
				result.NonceAdvanced = true
			}
			e.Logger.Warn("confirmation timed out",
				zap.String("txid", id.String()),
				zap.String("nonce_account", d.Account.String()),
				zap.Bool("nonce_advanced", result.NonceAdvanced))
		}
		return result, err
	}

	result.Confirmation = conf
	if !conf.Success {
		e.Logger.Warn("transaction failed",
			zap.String("txid", id.String()),
			zap.Uint64("slot", conf.Slot),
			zap.String("detail", conf.ErrorDetail))
		return result, fmt.Errorf("%w: %s", ledger.ErrTransactionFailed, conf.ErrorDetail)
	}
	e.Logger.Info("transaction confirmed",
		zap.String("txid", id.String()),
		zap.Uint64("slot", conf.Slot),
		zap.String("status", string(conf.Status)))
	return result, nil
}

func (e *Engine) checkNonceCurrent(ctx context.Context, d nonce.Durable) error {
	current, err := e.ReadNonce(ctx, d.Account)
	if err != nil {
		return err
	}
	if current.Value != d.Value {
		e.Logger.Warn("nonce advanced since construction",
			zap.String("nonce_account", d.Account.String()),
			zap.String("signed_value", d.Value.String()),
			zap.String("current_value", current.Value.String()))
		return fmt.Errorf("%w: nonce account %s now holds %s, message was built against %s",
			ledger.ErrStaleNonce, d.Account, current.Value, d.Value)
	}
	return nil
}
