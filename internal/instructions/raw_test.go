// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package instructions

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aplane-algo/apcold/internal/solana"
)

const memoProgram = "MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr"

func TestParseRaw(t *testing.T) {
	input := `[
  {
    "program": "` + memoProgram + `",
    "accounts": [
      {"pubkey": "Dv8EZLYymKDdXnnTuw2M1MD31TjVru5kpnhrk8Ki6wth", "signer": true, "writable": false}
    ],
    "data": "aGVsbG8="
  },
  {"program": "11111111111111111111111111111111", "accounts": [], "data": ""}
]`

	raw, err := ParseRaw([]byte(input))
	if err != nil {
		t.Fatalf("ParseRaw: %v", err)
	}
	if len(raw.Instructions) != 2 {
		t.Fatalf("got %d instructions, want 2", len(raw.Instructions))
	}

	first := raw.Instructions[0]
	if first.ProgramID != solana.MustParsePublicKey(memoProgram) {
		t.Errorf("program = %s", first.ProgramID)
	}
	if !bytes.Equal(first.Data, []byte("hello")) {
		t.Errorf("data = %q", first.Data)
	}
	if len(first.Accounts) != 1 || first.Accounts[0].PublicKey != sender || !first.Accounts[0].IsSigner || first.Accounts[0].IsWritable {
		t.Errorf("accounts = %+v", first.Accounts)
	}

	second := raw.Instructions[1]
	if second.ProgramID != solana.SystemProgramID || second.Data != nil || second.Accounts != nil {
		t.Errorf("second instruction = %+v", second)
	}
}

func TestParseRawErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "nope"},
		{"empty list", "[]"},
		{"missing program", `[{"accounts": [], "data": ""}]`},
		{"bad program", `[{"program": "xyz0", "data": ""}]`},
		{"unknown field", `[{"program": "` + memoProgram + `", "data": "", "extra": 1}]`},
		{"bad base64", `[{"program": "` + memoProgram + `", "data": "aGVsbG8"}]`},
		{"trailing document", `[{"program": "` + memoProgram + `", "data": ""}] []`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRaw([]byte(tt.input))
			if !errors.Is(err, ErrInvalidRawInstruction) {
				t.Errorf("ParseRaw error = %v, want ErrInvalidRawInstruction", err)
			}
		})
	}
}

func TestLoadRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ixs.json")
	content := `[{"program": "` + memoProgram + `", "data": "AQID"}]`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	raw, err := LoadRaw(path)
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
	if !bytes.Equal(raw.Instructions[0].Data, []byte{1, 2, 3}) {
		t.Errorf("data = %x", raw.Instructions[0].Data)
	}

	if _, err := LoadRaw(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
