// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"errors"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{name: "whole SOL", input: "1", decimals: 9, want: 1_000_000_000},
		{name: "fractional SOL", input: "0.5", decimals: 9, want: 500_000_000},
		{name: "one lamport", input: "0.000000001", decimals: 9, want: 1},
		{name: "trailing zeros beyond decimals", input: "1.500000000000", decimals: 6, want: 1_500_000},
		{name: "surrounding space", input: " 2.25 ", decimals: 2, want: 225},
		{name: "zero decimals", input: "42", decimals: 0, want: 42},
		{name: "zero", input: "0", decimals: 6, want: 0},
		{name: "max uint64", input: "18446744073709551615", decimals: 0, want: math.MaxUint64},
		{name: "too precise", input: "0.0000000001", decimals: 9, wantErr: true},
		{name: "fraction with zero decimals", input: "1.5", decimals: 0, wantErr: true},
		{name: "negative", input: "-1", decimals: 9, wantErr: true},
		{name: "empty", input: "", decimals: 9, wantErr: true},
		{name: "garbage", input: "abc", decimals: 9, wantErr: true},
		{name: "exponent", input: "1e3", decimals: 0, wantErr: true},
		{name: "overflow", input: "18446744073709551616", decimals: 0, wantErr: true},
		{name: "overflow after shift", input: "18446744073.709551616", decimals: 9, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.decimals)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		units    uint64
		decimals uint8
		want     string
	}{
		{100, 0, "100"},
		{0, 6, "0"},
		{1_500_000, 6, "1.5"},
		{1, 9, "0.000000001"},
		{1_000_000_000, 9, "1"},
		{math.MaxUint64, 0, "18446744073709551615"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.units, tt.decimals); got != tt.want {
			t.Errorf("FormatAmount(%d, %d) = %q, want %q", tt.units, tt.decimals, got, tt.want)
		}
	}
}

func TestParseFormatAgree(t *testing.T) {
	for _, s := range []string{"1", "0.5", "123.456789", "0.000001"} {
		units, err := ParseAmount(s, 6)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", s, err)
		}
		if got := FormatAmount(units, 6); got != s {
			t.Errorf("FormatAmount(ParseAmount(%q)) = %q", s, got)
		}
	}
}
