// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package instructions

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/solana"
)

// ErrInvalidRawInstruction is returned for a malformed raw instruction file.
var ErrInvalidRawInstruction = errors.New("invalid raw instruction")

// RawAccount is the JSON form of an account reference.
type RawAccount struct {
	PublicKey solana.PublicKey `json:"pubkey"`
	Signer    bool             `json:"signer"`
	Writable  bool             `json:"writable"`
}

// RawInstruction is the JSON form of an opaque instruction. Data is standard
// base64.
type RawInstruction struct {
	Program  *solana.PublicKey `json:"program"`
	Accounts []RawAccount      `json:"accounts"`
	Data     string            `json:"data"`
}

// ParseRaw decodes a JSON array of raw instructions.
func ParseRaw(data []byte) (Raw, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var entries []RawInstruction
	if err := dec.Decode(&entries); err != nil {
		return Raw{}, fmt.Errorf("%w: %v", ErrInvalidRawInstruction, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Raw{}, fmt.Errorf("%w: trailing data after instruction list", ErrInvalidRawInstruction)
	}
	if len(entries) == 0 {
		return Raw{}, fmt.Errorf("%w: empty instruction list", ErrInvalidRawInstruction)
	}

	raw := Raw{Instructions: make([]message.Instruction, 0, len(entries))}
	for i, e := range entries {
		if e.Program == nil {
			return Raw{}, fmt.Errorf("%w: instruction %d has no program", ErrInvalidRawInstruction, i)
		}
		payload, err := base64.StdEncoding.Strict().DecodeString(e.Data)
		if err != nil {
			return Raw{}, fmt.Errorf("%w: instruction %d data: %v", ErrInvalidRawInstruction, i, err)
		}
		ix := message.Instruction{ProgramID: *e.Program}
		if len(payload) > 0 {
			ix.Data = payload
		}
		for _, a := range e.Accounts {
			ix.Accounts = append(ix.Accounts, message.AccountMeta{
				PublicKey:  a.PublicKey,
				IsSigner:   a.Signer,
				IsWritable: a.Writable,
			})
		}
		raw.Instructions = append(raw.Instructions, ix)
	}
	return raw, nil
}

// LoadRaw reads a raw instruction file.
func LoadRaw(path string) (Raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Raw{}, fmt.Errorf("failed to read instruction file: %w", err)
	}
	return ParseRaw(data)
}
