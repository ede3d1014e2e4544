// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package signing

import (
	"errors"
	"fmt"

	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

// ErrSignerNotFound is returned when an identity is not one of a message's
// required signers. Pairing the wrong key with the wrong message ends here.
var ErrSignerNotFound = errors.New("signer not found in message")

// ResolveIndex returns the signature slot of signer in m. Only the first
// NumRequiredSignatures account keys are considered.
func ResolveIndex(m *message.Message, signer solana.PublicKey) (int, error) {
	n := m.NumSigners()
	if n > len(m.AccountKeys) {
		n = len(m.AccountKeys)
	}
	for i := 0; i < n; i++ {
		if m.AccountKeys[i] == signer {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrSignerNotFound, signer)
}
