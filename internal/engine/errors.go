// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"errors"
)

var (
	// ErrNoLedgerClient indicates the engine was built without a ledger client
	ErrNoLedgerClient = errors.New("ledger client not configured")

	// ErrNoRentOracle indicates no rent oracle is available for account creation
	ErrNoRentOracle = errors.New("rent oracle not configured")

	// ErrUnsupportedVersion indicates an unknown message version
	ErrUnsupportedVersion = errors.New("unsupported message version")

	// ErrInvalidAmount indicates an invalid or zero amount
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotNonceAccount indicates the account exists but is not a system-owned nonce account
	ErrNotNonceAccount = errors.New("not a nonce account")

	// ErrMintNotFound indicates the token mint account does not exist
	ErrMintNotFound = errors.New("mint not found")

	// ErrInvalidMint indicates the mint account is not owned by the token program
	ErrInvalidMint = errors.New("invalid mint account")

	// ErrSourceTokenAccountMissing indicates the sender has no associated token account for the mint
	ErrSourceTokenAccountMissing = errors.New("source token account does not exist")

	// ErrNoSignatures indicates assembly was requested with nothing to attach
	ErrNoSignatures = errors.New("no signatures supplied")
)
