// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package message

import (
	"bytes"
	"errors"
	"testing"
)

func TestCompactU16(t *testing.T) {
	tests := []struct {
		value   int
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{0x7f, []byte{0x7f}},
		{0x80, []byte{0x80, 0x01}},
		{0xff, []byte{0xff, 0x01}},
		{0x100, []byte{0x80, 0x02}},
		{0x3fff, []byte{0xff, 0x7f}},
		{0x4000, []byte{0x80, 0x80, 0x01}},
		{0xffff, []byte{0xff, 0xff, 0x03}},
	}

	for _, tt := range tests {
		got := AppendCompactU16(nil, tt.value)
		if !bytes.Equal(got, tt.encoded) {
			t.Errorf("AppendCompactU16(%d) = %x, want %x", tt.value, got, tt.encoded)
		}

		val, next, err := ReadCompactU16(tt.encoded, 0)
		if err != nil {
			t.Errorf("ReadCompactU16(%x) error: %v", tt.encoded, err)
			continue
		}
		if val != tt.value || next != len(tt.encoded) {
			t.Errorf("ReadCompactU16(%x) = (%d, %d), want (%d, %d)", tt.encoded, val, next, tt.value, len(tt.encoded))
		}
	}
}

func TestCompactU16Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"truncated continuation", []byte{0x80}},
		{"alias of zero", []byte{0x80, 0x00}},
		{"alias of one", []byte{0x81, 0x80, 0x00}},
		{"overflow", []byte{0xff, 0xff, 0x04}},
		{"four bytes", []byte{0x80, 0x80, 0x80, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadCompactU16(tt.input, 0)
			if !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("ReadCompactU16(%x) error = %v, want ErrMalformedMessage", tt.input, err)
			}
		})
	}
}
