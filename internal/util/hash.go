// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a short digest of message bytes for operators to
// compare by eye across the air gap: the first 16 hex characters of the
// SHA-256, grouped in fours.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	h := hex.EncodeToString(sum[:8])
	var b strings.Builder
	for i := 0; i < len(h); i += 4 {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(h[i : i+4])
	}
	return b.String()
}
