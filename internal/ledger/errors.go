// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package ledger

import "errors"

var (
	// ErrStaleNonce is returned when the replay value in a transaction is no
	// longer accepted: the durable nonce has advanced or the blockhash has
	// expired. The signed bytes are dead; the message must be rebuilt with a
	// fresh nonce read and signed again.
	ErrStaleNonce = errors.New("stale nonce")

	// ErrIncompleteSignatures is returned when a transaction with empty
	// signature slots is submitted.
	ErrIncompleteSignatures = errors.New("transaction has unsigned slots")

	// ErrSignatureVerification is returned when the ledger rejects a signature.
	ErrSignatureVerification = errors.New("signature verification failed")

	// ErrAccountNotFound is returned when a required account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransactionFailed is returned when a transaction fails simulation or
	// execution for a reason not covered above.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrConfirmTimeout is returned when a transaction was not seen at the
	// requested commitment before the confirmation deadline.
	ErrConfirmTimeout = errors.New("timed out waiting for confirmation")
)

// IsRetryable reports whether err can be recovered from by rebuilding the
// message with a freshly read nonce and repeating the offline signing cycle.
// Resubmitting the same signed bytes never helps.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStaleNonce)
}
