// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/envelope"
	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/ledger/ledgertest"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/nonce"
	"github.com/aplane-algo/apcold/internal/signing"
	"github.com/aplane-algo/apcold/internal/solana"
	"github.com/aplane-algo/apcold/internal/testutil"
)

type fixture struct {
	ledger    *ledgertest.StubLedger
	engine    *Engine
	x, y      *testutil.TestKey
	nonceAddr solana.PublicKey
	recipient solana.PublicKey
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()

	f := &fixture{
		ledger:    ledgertest.New(),
		x:         testutil.GenerateTestEd25519Key(t, 1),
		y:         testutil.GenerateTestEd25519Key(t, 2),
		nonceAddr: testutil.TestAddress(40),
		recipient: testutil.TestAddress(41),
	}
	f.ledger.SetNonce(f.nonceAddr, f.x.PublicKey, testutil.TestHash(0x10))

	eng, err := NewEngine(f.ledger, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	f.engine = eng
	return f
}

// twoSigner builds a durable-nonce message paid by X in which Y also signs.
func (f *fixture) twoSigner(t *testing.T) *PreparedMessage {
	t.Helper()
	p, err := f.engine.Construct(context.Background(), ConstructParams{
		FeePayer:     f.x.PublicKey,
		NonceAccount: f.nonceAddr,
		Builders: []instructions.Builder{
			instructions.SOLTransfer{From: f.y.PublicKey, To: f.recipient, Lamports: 5000},
		},
	})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	return p
}

func detached(t *testing.T, raw []byte, key *testutil.TestKey) envelope.Detached {
	t.Helper()
	s, err := signing.NewKeySigner(key.PrivateKey)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}
	d, err := signing.SignMessage(raw, s)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	return envelope.Detached{Signature: d.Signature[:], PublicKey: d.PublicKey}
}

func TestNewEngine(t *testing.T) {
	if _, err := NewEngine(nil); !errors.Is(err, ErrNoLedgerClient) {
		t.Errorf("NewEngine(nil) error = %v, want ErrNoLedgerClient", err)
	}

	stub := ledgertest.New()
	tests := []struct {
		name        string
		opts        []EngineOption
		wantErr     bool
		wantVersion message.Version
	}{
		{name: "defaults", wantVersion: message.VersionLegacy},
		{name: "v0", opts: []EngineOption{WithMessageVersion(message.Version0)}, wantVersion: message.Version0},
		{name: "unknown version", opts: []EngineOption{WithMessageVersion(message.Version(3))}, wantErr: true},
		{name: "nil logger kept", opts: []EngineOption{WithLogger(nil)}, wantVersion: message.VersionLegacy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng, err := NewEngine(stub, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEngine() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if eng.Version != tt.wantVersion {
				t.Errorf("Version = %v, want %v", eng.Version, tt.wantVersion)
			}
			if eng.Rent == nil {
				t.Error("stub ledger should be picked up as rent oracle")
			}
			if eng.Logger == nil {
				t.Error("Logger should never be nil")
			}
		})
	}
}

func TestConstructDurableNonce(t *testing.T) {
	f := newFixture(t)
	p := f.twoSigner(t)

	if p.Expires() {
		t.Error("durable-nonce message should not expire")
	}
	if p.Replay != testutil.TestHash(0x10) {
		t.Errorf("replay = %s, want nonce value", p.Replay)
	}
	if len(p.Signers) != 2 || p.Signers[0] != f.x.PublicKey || p.Signers[1] != f.y.PublicKey {
		t.Errorf("signers = %v", p.Signers)
	}
	if len(p.Kinds) != 2 || p.Kinds[0] != "nonce-advance" || p.Kinds[1] != "sol-transfer" {
		t.Errorf("kinds = %v", p.Kinds)
	}

	decoded, err := message.Decode(p.Raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	d, ok := nonce.FromMessage(decoded)
	if !ok || d.Account != f.nonceAddr || d.Authority != f.x.PublicKey {
		t.Errorf("FromMessage = %+v, %v", d, ok)
	}
}

func TestConstructBlockhashMode(t *testing.T) {
	f := newFixture(t)
	b, err := f.engine.PrepareSOLTransfer(f.x.PublicKey, f.recipient, "0.5")
	if err != nil {
		t.Fatalf("PrepareSOLTransfer: %v", err)
	}
	if b.Lamports != 500_000_000 {
		t.Errorf("lamports = %d, want 500000000", b.Lamports)
	}

	p, err := f.engine.Construct(context.Background(), ConstructParams{
		FeePayer: f.x.PublicKey,
		Builders: []instructions.Builder{b},
	})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	checkpoint, _ := f.ledger.GetRecentCheckpoint(context.Background())
	if !p.Expires() || p.Replay != checkpoint {
		t.Errorf("expected blockhash mode with replay %s, got %s", checkpoint, p.Replay)
	}

	tx, err := f.engine.Assemble(p.Raw, detached(t, p.Raw, f.x))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if _, err := f.engine.Broadcast(context.Background(), tx, BroadcastOptions{}); err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
}

func TestConstructErrors(t *testing.T) {
	f := newFixture(t)
	other := testutil.GenerateTestEd25519Key(t, 3)
	f.ledger.SetAccount(ledger.AccountInfo{
		Address: testutil.TestAddress(60),
		Owner:   solana.TokenProgramID,
		Data:    make([]byte, instructions.NonceAccountSize),
	})

	tests := []struct {
		name    string
		params  ConstructParams
		wantErr error
	}{
		{
			name:    "missing nonce account",
			params:  ConstructParams{FeePayer: f.x.PublicKey, NonceAccount: testutil.TestAddress(99)},
			wantErr: ledger.ErrAccountNotFound,
		},
		{
			name:    "not a nonce account",
			params:  ConstructParams{FeePayer: f.x.PublicKey, NonceAccount: testutil.TestAddress(60)},
			wantErr: ErrNotNonceAccount,
		},
		{
			name:    "authority mismatch",
			params:  ConstructParams{FeePayer: other.PublicKey, NonceAccount: f.nonceAddr},
			wantErr: nonce.ErrAuthorityMismatch,
		},
		{
			name: "invalid builder",
			params: ConstructParams{
				FeePayer: f.x.PublicKey,
				Builders: []instructions.Builder{instructions.SOLTransfer{From: f.x.PublicKey}},
			},
			wantErr: instructions.ErrInvalidBuilder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Construct(context.Background(), tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := f.engine.Construct(context.Background(), ConstructParams{}); err == nil {
		t.Error("expected error without fee payer")
	}
}

// A two-signer message signed only by X keeps Y's slot empty and is refused.
func TestBroadcastPartialSignatures(t *testing.T) {
	f := newFixture(t)
	p := f.twoSigner(t)

	tx, err := f.engine.Assemble(p.Raw, detached(t, p.Raw, f.x))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	slots := tx.Slots()
	if slots[0].IsZero() || !slots[1].IsZero() {
		t.Fatalf("slots = %v, want X filled and Y empty", slots)
	}

	_, err = f.engine.Broadcast(context.Background(), tx, BroadcastOptions{})
	if !errors.Is(err, ledger.ErrIncompleteSignatures) {
		t.Fatalf("err = %v, want ErrIncompleteSignatures", err)
	}

	_, err = f.engine.Broadcast(context.Background(), tx, BroadcastOptions{AllowPartial: true})
	if !errors.Is(err, ledger.ErrIncompleteSignatures) {
		t.Fatalf("partial broadcast err = %v, want ErrIncompleteSignatures from ledger", err)
	}
	if len(f.ledger.Submitted()) != 0 {
		t.Error("ledger accepted an incomplete transaction")
	}

	// Y signs later; the slots accumulate.
	tx, err = tx.Attach(f.y.PublicKey, detached(t, p.Raw, f.y).Signature)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	res, err := f.engine.Broadcast(context.Background(), tx, BroadcastOptions{})
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if res.Confirmation == nil || !res.Confirmation.Success {
		t.Errorf("confirmation = %+v", res.Confirmation)
	}
	if id, _ := tx.ID(); res.TxID != id {
		t.Errorf("txid = %s, want fee payer signature %s", res.TxID, id)
	}
}

// Reading N0, then seeing N0 advanced before broadcast, yields a stale nonce.
// Rebuilding against N1 gives a different message that lands.
func TestBroadcastStaleNonce(t *testing.T) {
	for _, preflight := range []bool{true, false} {
		name := "preflight"
		var opts []EngineOption
		if !preflight {
			name = "ledger"
			opts = append(opts, WithoutPreflight())
		}

		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, opts...)

			m0 := f.twoSigner(t)
			tx0, err := f.engine.Assemble(m0.Raw, detached(t, m0.Raw, f.x), detached(t, m0.Raw, f.y))
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}

			n1, err := f.ledger.AdvanceNonce(f.nonceAddr)
			if err != nil {
				t.Fatalf("AdvanceNonce: %v", err)
			}

			_, err = f.engine.Broadcast(ctx, tx0, BroadcastOptions{})
			if !errors.Is(err, ledger.ErrStaleNonce) {
				t.Fatalf("err = %v, want ErrStaleNonce", err)
			}
			if !ledger.IsRetryable(err) {
				t.Error("stale nonce should be retryable")
			}

			m1 := f.twoSigner(t)
			if m1.Replay != n1 {
				t.Errorf("rebuilt replay = %s, want %s", m1.Replay, n1)
			}
			if bytes.Equal(m0.Raw, m1.Raw) {
				t.Fatal("rebuilt message is identical to the stale one")
			}

			tx1, err := f.engine.Assemble(m1.Raw, detached(t, m1.Raw, f.x), detached(t, m1.Raw, f.y))
			if err != nil {
				t.Fatalf("Assemble: %v", err)
			}
			if _, err := f.engine.Broadcast(ctx, tx1, BroadcastOptions{}); err != nil {
				t.Fatalf("Broadcast: %v", err)
			}

			// The landed transaction advanced the nonce again.
			if _, err := f.engine.Broadcast(ctx, tx1, BroadcastOptions{}); !errors.Is(err, ledger.ErrStaleNonce) {
				t.Errorf("second broadcast err = %v, want ErrStaleNonce", err)
			}
		})
	}
}

func TestBroadcastConfirmTimeout(t *testing.T) {
	f := newFixture(t)
	f.ledger.DropConfirmations = true
	p := f.twoSigner(t)

	tx, err := f.engine.Assemble(p.Raw, detached(t, p.Raw, f.x), detached(t, p.Raw, f.y))
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	res, err := f.engine.Broadcast(context.Background(), tx, BroadcastOptions{})
	if !errors.Is(err, ledger.ErrConfirmTimeout) {
		t.Fatalf("err = %v, want ErrConfirmTimeout", err)
	}
	if res == nil || !res.NonceAdvanced {
		t.Errorf("result = %+v, want NonceAdvanced", res)
	}
}

func TestAssembleErrors(t *testing.T) {
	f := newFixture(t)
	p := f.twoSigner(t)
	stranger := testutil.GenerateTestEd25519Key(t, 9)

	if _, err := f.engine.Assemble(p.Raw); !errors.Is(err, ErrNoSignatures) {
		t.Errorf("err = %v, want ErrNoSignatures", err)
	}

	// Signed over the right bytes, but not a signer of this message.
	sig, err := signing.Sign(p.Raw, stranger.PrivateKey)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	_, err = f.engine.Assemble(p.Raw, envelope.Detached{Signature: sig[:], PublicKey: stranger.PublicKey})
	if !errors.Is(err, assembler.ErrUnknownSigner) || !errors.Is(err, signing.ErrSignerNotFound) {
		t.Errorf("err = %v, want ErrUnknownSigner", err)
	}

	_, err = f.engine.Assemble(p.Raw, envelope.Detached{Signature: sig[:10], PublicKey: f.x.PublicKey})
	if !errors.Is(err, assembler.ErrSignatureLengthMismatch) {
		t.Errorf("err = %v, want ErrSignatureLengthMismatch", err)
	}
}

func mintData(decimals uint8) []byte {
	data := make([]byte, mintSize)
	data[instructions.MintDecimalsOffset] = decimals
	data[instructions.MintDecimalsOffset+1] = 1
	return data
}

func TestPrepareTokenTransfer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mint := solana.MustParsePublicKey("7u96GpRmguMVh5dGtZfQsi2HwP4Mn3625g7avtFmKnec")
	f.ledger.SetAccount(ledger.AccountInfo{Address: mint, Owner: solana.TokenProgramID, Data: mintData(6)})

	params := TokenTransferParams{
		Owner:     f.x.PublicKey,
		Recipient: f.y.PublicKey,
		Mint:      mint,
		Amount:    "1.5",
	}

	_, err := f.engine.PrepareTokenTransfer(ctx, params)
	if !errors.Is(err, ErrSourceTokenAccountMissing) {
		t.Fatalf("err = %v, want ErrSourceTokenAccountMissing", err)
	}

	source, _ := solana.FindAssociatedTokenAddress(f.x.PublicKey, mint)
	f.ledger.SetAccount(ledger.AccountInfo{Address: source, Owner: solana.TokenProgramID, Data: make([]byte, 165)})

	b, err := f.engine.PrepareTokenTransfer(ctx, params)
	if err != nil {
		t.Fatalf("PrepareTokenTransfer: %v", err)
	}
	if b.Amount != 1_500_000 || b.Decimals == nil || *b.Decimals != 6 {
		t.Errorf("amount = %d decimals = %v", b.Amount, b.Decimals)
	}
	if !b.CreateRecipientAccount {
		t.Error("missing destination should be created")
	}
	ixs, err := b.Build()
	if err != nil || len(ixs) != 2 || ixs[0].ProgramID != solana.AssociatedTokenProgramID {
		t.Fatalf("Build = %v, %v", ixs, err)
	}

	destination, _ := solana.FindAssociatedTokenAddress(f.y.PublicKey, mint)
	f.ledger.SetAccount(ledger.AccountInfo{Address: destination, Owner: solana.TokenProgramID, Data: make([]byte, 165)})
	b, err = f.engine.PrepareTokenTransfer(ctx, params)
	if err != nil {
		t.Fatalf("PrepareTokenTransfer: %v", err)
	}
	if b.CreateRecipientAccount {
		t.Error("existing destination should not be created")
	}

	params.RawUnits = true
	params.Amount = "42"
	b, err = f.engine.PrepareTokenTransfer(ctx, params)
	if err != nil {
		t.Fatalf("PrepareTokenTransfer(raw): %v", err)
	}
	if b.Amount != 42 || b.Decimals != nil {
		t.Errorf("raw amount = %d decimals = %v", b.Amount, b.Decimals)
	}
}

func TestPrepareTokenTransferErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	badMint := testutil.TestAddress(70)
	f.ledger.SetAccount(ledger.AccountInfo{Address: badMint, Owner: solana.SystemProgramID, Data: mintData(6)})
	uninit := testutil.TestAddress(71)
	data := mintData(6)
	data[instructions.MintDecimalsOffset+1] = 0
	f.ledger.SetAccount(ledger.AccountInfo{Address: uninit, Owner: solana.TokenProgramID, Data: data})

	tests := []struct {
		name    string
		mint    solana.PublicKey
		amount  string
		wantErr error
	}{
		{"missing mint", testutil.TestAddress(72), "1", ErrMintNotFound},
		{"wrong owner", badMint, "1", ErrInvalidMint},
		{"uninitialized", uninit, "1", ErrInvalidMint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.PrepareTokenTransfer(ctx, TokenTransferParams{
				Owner: f.x.PublicKey, Recipient: f.y.PublicKey, Mint: tt.mint, Amount: tt.amount,
			})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrepareSOLTransferInvalid(t *testing.T) {
	f := newFixture(t)
	for _, amount := range []string{"", "0", "-1", "abc", "0.0000000001"} {
		if _, err := f.engine.PrepareSOLTransfer(f.x.PublicKey, f.recipient, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("PrepareSOLTransfer(%q) err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestCreateNonceAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payer, err := signing.NewKeySigner(f.x.PrivateKey)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}

	res, err := f.engine.CreateNonceAccount(ctx, CreateNonceParams{Payer: payer, Authority: f.y.PublicKey})
	if err != nil {
		t.Fatalf("CreateNonceAccount: %v", err)
	}
	if res.Authority != f.y.PublicKey {
		t.Errorf("authority = %s, want %s", res.Authority, f.y.PublicKey)
	}
	if res.Lamports != 1447680 {
		t.Errorf("lamports = %d, want 1447680", res.Lamports)
	}
	if res.Value.IsZero() {
		t.Error("initial nonce value should be read back")
	}

	d, err := f.engine.ReadNonce(ctx, res.Address)
	if err != nil {
		t.Fatalf("ReadNonce: %v", err)
	}
	if d.Authority != f.y.PublicKey || d.Value != res.Value {
		t.Errorf("durable = %+v", d)
	}

	// The new account is immediately usable with the cold authority.
	p, err := f.engine.Construct(ctx, ConstructParams{
		FeePayer:       f.x.PublicKey,
		NonceAccount:   res.Address,
		NonceAuthority: f.y.PublicKey,
		Builders:       []instructions.Builder{instructions.SOLTransfer{From: f.x.PublicKey, To: f.recipient, Lamports: 1}},
	})
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}
	if p.Replay != res.Value {
		t.Errorf("replay = %s, want %s", p.Replay, res.Value)
	}
}

func TestCreateNonceAccountErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	payer, _ := signing.NewKeySigner(f.x.PrivateKey)

	if _, err := f.engine.CreateNonceAccount(ctx, CreateNonceParams{}); err == nil {
		t.Error("expected error without payer")
	}

	existing, _ := signing.NewKeySigner(f.y.PrivateKey)
	f.ledger.SetAccount(ledger.AccountInfo{Address: f.y.PublicKey, Owner: solana.SystemProgramID})
	if _, err := f.engine.CreateNonceAccount(ctx, CreateNonceParams{Payer: payer, NonceKey: existing}); err == nil {
		t.Error("expected error for existing account")
	}

	noRent := &Engine{Client: f.ledger, Logger: f.engine.Logger}
	if _, err := noRent.CreateNonceAccount(ctx, CreateNonceParams{Payer: payer}); !errors.Is(err, ErrNoRentOracle) {
		t.Errorf("err = %v, want ErrNoRentOracle", err)
	}
}
