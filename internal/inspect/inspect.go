// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package inspect renders human-readable descriptions of messages and
// transactions. Descriptions are derived only from the bytes being signed or
// submitted, never from side information supplied alongside them, so that an
// offline signer can show exactly what it is about to authorize.
package inspect

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/nonce"
	"github.com/aplane-algo/apcold/internal/solana"
	"github.com/aplane-algo/apcold/internal/util"
)

// InstructionDescriber describes one compiled instruction of a known program.
// The returned text starts with a one-line title; detail lines follow, each
// prefixed by a newline and indented two spaces.
type InstructionDescriber func(m *message.Message, ix message.CompiledInstruction) string

// programDescribers maps program ids to their describers
var programDescribers = map[solana.PublicKey]InstructionDescriber{
	solana.SystemProgramID:          describeSystem,
	solana.TokenProgramID:           describeToken,
	solana.AssociatedTokenProgramID: describeAssociatedToken,
}

// Message describes an unsigned message: header, account table, replay
// value and instructions.
func Message(m *message.Message) string {
	var desc strings.Builder
	writeMessage(&desc, m)
	return desc.String()
}

// MessageBytes decodes raw message bytes and describes them.
func MessageBytes(raw []byte) string {
	m, err := message.Decode(raw)
	if err != nil {
		return fmt.Sprintf("[Error decoding message: %v]", err)
	}
	return Message(m)
}

// Transaction describes a (possibly partially) signed transaction: the
// message followed by the status of every signature slot.
func Transaction(tx *assembler.Transaction) string {
	var desc strings.Builder
	writeMessage(&desc, tx.Message())

	signers := tx.Signers()
	slots := tx.Slots()
	filled := 0
	desc.WriteString("\nSignatures:")
	for i, s := range slots {
		status := "missing"
		if !s.IsZero() {
			status = s.String()
			filled++
		}
		fmt.Fprintf(&desc, "\n  [%d] %s: %s", i, signers[i], status)
	}
	fmt.Fprintf(&desc, "\n  %d of %d slots filled", filled, len(slots))
	if id, ok := tx.ID(); ok {
		fmt.Fprintf(&desc, "\n  Transaction ID: %s", id)
	}
	return desc.String()
}

// TransactionBytes parses a wire-form transaction and describes it.
func TransactionBytes(wire []byte) string {
	tx, err := assembler.Parse(wire)
	if err != nil {
		return fmt.Sprintf("[Error decoding transaction: %v]", err)
	}
	return Transaction(tx)
}

func writeMessage(desc *strings.Builder, m *message.Message) {
	fmt.Fprintf(desc, "Message (%s)", m.Version)
	fmt.Fprintf(desc, "\n  Required signatures: %d (%d read-only)", m.Header.NumRequiredSignatures, m.Header.NumReadonlySignedAccounts)
	fmt.Fprintf(desc, "\n  Read-only unsigned accounts: %d", m.Header.NumReadonlyUnsignedAccounts)

	if d, ok := nonce.FromMessage(m); ok {
		fmt.Fprintf(desc, "\n  Replay: durable nonce %s", d.Value)
		fmt.Fprintf(desc, "\n    Nonce account: %s", d.Account)
		fmt.Fprintf(desc, "\n    Nonce authority: %s", d.Authority)
	} else {
		fmt.Fprintf(desc, "\n  Replay: recent checkpoint %s", m.RecentBlockhash)
		desc.WriteString("\n  ⚠️  Not a durable-nonce message: expires shortly after construction")
	}

	desc.WriteString("\nAccounts:")
	for i, ref := range m.Accounts() {
		fmt.Fprintf(desc, "\n  [%d] %s%s", i, ref.PublicKey, accountTags(ref, i == 0))
	}
	if n := len(m.AddressTableLookups); n > 0 {
		fmt.Fprintf(desc, "\n  + %d address table lookup(s)", n)
		for _, l := range m.AddressTableLookups {
			fmt.Fprintf(desc, "\n    %s: %d writable, %d read-only", l.AccountKey, len(l.WritableIndexes), len(l.ReadonlyIndexes))
		}
	}

	desc.WriteString("\nInstructions:")
	for i, ix := range m.Instructions {
		text := describeInstruction(m, ix)
		fmt.Fprintf(desc, "\n  %d. %s", i+1, strings.ReplaceAll(text, "\n", "\n   "))
	}
}

func accountTags(ref message.AccountRef, feePayer bool) string {
	var tags []string
	if ref.Signer {
		tags = append(tags, "signer")
	}
	if ref.Writable {
		tags = append(tags, "writable")
	}
	if feePayer {
		tags = append(tags, "fee payer")
	}
	if len(tags) == 0 {
		return ""
	}
	return " (" + strings.Join(tags, ", ") + ")"
}

func describeInstruction(m *message.Message, ix message.CompiledInstruction) string {
	program, err := m.ProgramID(ix)
	if err != nil {
		return fmt.Sprintf("[Error: %v]", err)
	}
	if describer, ok := programDescribers[program]; ok {
		return describer(m, ix)
	}
	return describeUnknown(m, ix)
}

// account resolves the n-th account of an instruction for display.
func account(m *message.Message, ix message.CompiledInstruction, n int) string {
	if n >= len(ix.Accounts) {
		return "<missing>"
	}
	key, ok := m.AccountKey(ix.Accounts[n])
	if !ok {
		return fmt.Sprintf("<lookup #%d>", ix.Accounts[n])
	}
	return key.String()
}

func describeSystem(m *message.Message, ix message.CompiledInstruction) string {
	var desc strings.Builder
	if len(ix.Data) < 4 {
		return describeUnknown(m, ix)
	}
	data := ix.Data[4:]

	switch binary.LittleEndian.Uint32(ix.Data) {
	case 0:
		if len(data) != 48 {
			return describeUnknown(m, ix)
		}
		owner, _ := solana.PublicKeyFromBytes(data[16:48])
		desc.WriteString("System: Create Account")
		fmt.Fprintf(&desc, "\n  Funded by: %s", account(m, ix, 0))
		fmt.Fprintf(&desc, "\n  New account: %s", account(m, ix, 1))
		fmt.Fprintf(&desc, "\n  Balance: %s SOL", util.FormatAmount(binary.LittleEndian.Uint64(data[0:8]), 9))
		fmt.Fprintf(&desc, "\n  Space: %d bytes", binary.LittleEndian.Uint64(data[8:16]))
		fmt.Fprintf(&desc, "\n  Owner program: %s", owner)
	case 2:
		if len(data) != 8 {
			return describeUnknown(m, ix)
		}
		desc.WriteString("System: Transfer")
		fmt.Fprintf(&desc, "\n  From: %s", account(m, ix, 0))
		fmt.Fprintf(&desc, "\n  To: %s", account(m, ix, 1))
		fmt.Fprintf(&desc, "\n  Amount: %s SOL", util.FormatAmount(binary.LittleEndian.Uint64(data), 9))
	case 4:
		desc.WriteString("System: Advance Nonce")
		fmt.Fprintf(&desc, "\n  Nonce account: %s", account(m, ix, 0))
		fmt.Fprintf(&desc, "\n  Authority: %s", account(m, ix, 2))
	case 6:
		if len(data) != solana.PublicKeySize {
			return describeUnknown(m, ix)
		}
		authority, _ := solana.PublicKeyFromBytes(data)
		desc.WriteString("System: Initialize Nonce")
		fmt.Fprintf(&desc, "\n  Nonce account: %s", account(m, ix, 0))
		fmt.Fprintf(&desc, "\n  Authority: %s", authority)
	default:
		return describeUnknown(m, ix)
	}
	return desc.String()
}

func describeToken(m *message.Message, ix message.CompiledInstruction) string {
	var desc strings.Builder
	if len(ix.Data) == 0 {
		return describeUnknown(m, ix)
	}

	switch ix.Data[0] {
	case 3:
		if len(ix.Data) != 9 {
			return describeUnknown(m, ix)
		}
		desc.WriteString("Token: Transfer")
		fmt.Fprintf(&desc, "\n  From token account: %s", account(m, ix, 0))
		fmt.Fprintf(&desc, "\n  To token account: %s", account(m, ix, 1))
		fmt.Fprintf(&desc, "\n  Owner: %s", account(m, ix, 2))
		fmt.Fprintf(&desc, "\n  Amount: %d (raw units)", binary.LittleEndian.Uint64(ix.Data[1:9]))
	case 12:
		if len(ix.Data) != 10 {
			return describeUnknown(m, ix)
		}
		decimals := ix.Data[9]
		desc.WriteString("Token: Transfer (checked)")
		fmt.Fprintf(&desc, "\n  From token account: %s", account(m, ix, 0))
		fmt.Fprintf(&desc, "\n  Mint: %s", account(m, ix, 1))
		fmt.Fprintf(&desc, "\n  To token account: %s", account(m, ix, 2))
		fmt.Fprintf(&desc, "\n  Owner: %s", account(m, ix, 3))
		fmt.Fprintf(&desc, "\n  Amount: %s (%d decimals)", util.FormatAmount(binary.LittleEndian.Uint64(ix.Data[1:9]), decimals), decimals)
	default:
		return describeUnknown(m, ix)
	}
	return desc.String()
}

func describeAssociatedToken(m *message.Message, ix message.CompiledInstruction) string {
	var desc strings.Builder
	switch {
	case len(ix.Data) == 0 || (len(ix.Data) == 1 && ix.Data[0] == 0):
		desc.WriteString("Associated Token: Create Account")
	case len(ix.Data) == 1 && ix.Data[0] == 1:
		desc.WriteString("Associated Token: Create Account (idempotent)")
	default:
		return describeUnknown(m, ix)
	}
	fmt.Fprintf(&desc, "\n  Payer: %s", account(m, ix, 0))
	fmt.Fprintf(&desc, "\n  Token account: %s", account(m, ix, 1))
	fmt.Fprintf(&desc, "\n  Owner: %s", account(m, ix, 2))
	fmt.Fprintf(&desc, "\n  Mint: %s", account(m, ix, 3))
	return desc.String()
}

func describeUnknown(m *message.Message, ix message.CompiledInstruction) string {
	var desc strings.Builder
	program, _ := m.ProgramID(ix)
	fmt.Fprintf(&desc, "Program: %s", program)
	for n := range ix.Accounts {
		fmt.Fprintf(&desc, "\n  Account %d: %s", n, account(m, ix, n))
	}
	if len(ix.Data) > 0 {
		const maxShown = 64
		shown := ix.Data
		if len(shown) > maxShown {
			shown = shown[:maxShown]
		}
		fmt.Fprintf(&desc, "\n  Data (%d bytes): %s", len(ix.Data), hex.EncodeToString(shown))
		if len(ix.Data) > maxShown {
			desc.WriteString("...")
		}
	}
	return desc.String()
}
