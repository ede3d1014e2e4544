// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

// SOL and SPL token transfer preparation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/solana"
	"github.com/aplane-algo/apcold/internal/util"
)

// SOLDecimals is the number of decimal places of one SOL in lamports.
const SOLDecimals = 9

// mintSize is the data length of an SPL token mint account.
const mintSize = 82

// PrepareSOLTransfer converts a decimal SOL amount to lamports and returns
// the transfer builder.
func (e *Engine) PrepareSOLTransfer(from, to solana.PublicKey, amountSOL string) (instructions.SOLTransfer, error) {
	lamports, err := util.ParseAmount(amountSOL, SOLDecimals)
	if err != nil {
		return instructions.SOLTransfer{}, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	if lamports == 0 {
		return instructions.SOLTransfer{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}
	return instructions.SOLTransfer{From: from, To: to, Lamports: lamports}, nil
}

// TokenTransferParams contains parameters for an SPL token transfer.
type TokenTransferParams struct {
	Owner     solana.PublicKey // holder of the source token account
	Recipient solana.PublicKey // wallet address, not a token account
	Mint      solana.PublicKey
	Amount    string           // UI amount, or base units when RawUnits is set
	FeePayer  solana.PublicKey // pays for recipient account creation; defaults to Owner

	// RawUnits skips the mint decimals lookup and sends an unchecked
	// transfer of Amount base units.
	RawUnits bool
}

// PrepareTokenTransfer checks the mint and both associated token accounts
// and returns the transfer builder. A missing source account is an error; a
// missing destination account is created in the same message.
func (e *Engine) PrepareTokenTransfer(ctx context.Context, p TokenTransferParams) (instructions.TokenTransfer, error) {
	b := instructions.TokenTransfer{
		Owner:     p.Owner,
		Recipient: p.Recipient,
		Mint:      p.Mint,
		Payer:     p.FeePayer,
	}

	if p.RawUnits {
		amount, err := util.ParseAmount(p.Amount, 0)
		if err != nil {
			return b, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}
		b.Amount = amount
	} else {
		decimals, err := e.mintDecimals(ctx, p.Mint)
		if err != nil {
			return b, err
		}
		amount, err := util.ParseAmount(p.Amount, decimals)
		if err != nil {
			return b, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
		}
		b.Amount = amount
		b.Decimals = &decimals
	}
	if b.Amount == 0 {
		return b, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	source, err := solana.FindAssociatedTokenAddress(p.Owner, p.Mint)
	if err != nil {
		return b, err
	}
	info, err := e.Client.GetAccount(ctx, source)
	if err != nil {
		return b, fmt.Errorf("failed to read source token account: %w", err)
	}
	if info == nil {
		return b, fmt.Errorf("%w: %s (owner %s, mint %s)", ErrSourceTokenAccountMissing, source, p.Owner, p.Mint)
	}

	destination, err := solana.FindAssociatedTokenAddress(p.Recipient, p.Mint)
	if err != nil {
		return b, err
	}
	info, err = e.Client.GetAccount(ctx, destination)
	if err != nil {
		return b, fmt.Errorf("failed to read destination token account: %w", err)
	}
	b.CreateRecipientAccount = info == nil

	e.Logger.Debug("prepared token transfer",
		zap.String("source", source.String()),
		zap.String("destination", destination.String()),
		zap.Uint64("amount", b.Amount),
		zap.Bool("create_destination", b.CreateRecipientAccount))
	return b, nil
}

func (e *Engine) mintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	info, err := e.Client.GetAccount(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to read mint: %w", err)
	}
	if info == nil {
		return 0, fmt.Errorf("%w: %s", ErrMintNotFound, mint)
	}
	if info.Owner != solana.TokenProgramID || len(info.Data) < mintSize {
		return 0, fmt.Errorf("%w: %s", ErrInvalidMint, mint)
	}
	// is_initialized follows decimals
	if info.Data[instructions.MintDecimalsOffset+1] != 1 {
		return 0, fmt.Errorf("%w: %s is not initialized", ErrInvalidMint, mint)
	}
	return info.Data[instructions.MintDecimalsOffset], nil
}
