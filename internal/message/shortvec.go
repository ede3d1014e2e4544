// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package message

import "fmt"

// maxCompactU16 is the largest length representable by the compact-u16 prefix.
const maxCompactU16 = 0xffff

// AppendCompactU16 appends n using the ledger's compact-u16 encoding: seven
// bits per byte, least significant group first, high bit set on every byte
// except the last.
func AppendCompactU16(b []byte, n int) []byte {
	for {
		elem := byte(n & 0x7f)
		n >>= 7
		if n == 0 {
			return append(b, elem)
		}
		b = append(b, elem|0x80)
	}
}

// ReadCompactU16 decodes a canonical compact-u16 value starting at off.
// Alias encodings (a redundant trailing zero group) and values above 0xffff
// are rejected so that every length has exactly one byte representation.
func ReadCompactU16(buf []byte, off int) (int, int, error) {
	val := 0
	for i := 0; i < 3; i++ {
		if off+i >= len(buf) {
			return 0, 0, fmt.Errorf("%w: truncated compact-u16 at offset %d", ErrMalformedMessage, off)
		}
		elem := buf[off+i]
		if i > 0 && elem == 0 {
			return 0, 0, fmt.Errorf("%w: non-canonical compact-u16 at offset %d", ErrMalformedMessage, off)
		}
		if i == 2 && elem > 0x03 {
			return 0, 0, fmt.Errorf("%w: compact-u16 overflow at offset %d", ErrMalformedMessage, off)
		}
		val |= int(elem&0x7f) << (7 * i)
		if elem&0x80 == 0 {
			return val, off + i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: compact-u16 longer than 3 bytes at offset %d", ErrMalformedMessage, off)
}
