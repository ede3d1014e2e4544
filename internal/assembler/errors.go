// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package assembler

import "errors"

var (
	// ErrUnknownSigner is returned when a signature is offered for an identity
	// that is not one of the message's required signers. It always wraps
	// signing.ErrSignerNotFound.
	ErrUnknownSigner = errors.New("unknown signer")

	// ErrSignatureLengthMismatch is returned when a signature is not exactly
	// 64 bytes, which usually means the transport file was corrupted.
	ErrSignatureLengthMismatch = errors.New("signature length mismatch")

	// ErrInvalidSignature is returned when a signature does not verify over
	// the message bytes for its signer.
	ErrInvalidSignature = errors.New("signature does not verify")

	// ErrSlotCountMismatch is returned when an existing slot array does not
	// match the message's required signature count.
	ErrSlotCountMismatch = errors.New("signature slot count mismatch")

	// ErrIncomplete is returned by Finalize while any slot is still empty.
	ErrIncomplete = errors.New("transaction is missing signatures")
)
