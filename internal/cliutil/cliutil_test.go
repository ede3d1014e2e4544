// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package cliutil

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/envelope"
	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/signing"
	"github.com/aplane-algo/apcold/internal/testutil"
)

func newTestApp(out *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:      "test",
		Flags:     GlobalFlags(),
		Before:    Setup,
		Writer:    out,
		ErrWriter: out,
		Commands:  []*cli.Command{InspectCommand(), QRCommand()},
	}
}

// writeFixture writes an unsigned message paid by x and a signature file
// from x into dir.
func writeFixture(t *testing.T, dir string) (unsigned, sig string, x *testutil.TestKey) {
	t.Helper()

	x = testutil.GenerateTestEd25519Key(t, 1)
	m, err := message.Compile(x.PublicKey, testutil.TestHash(4),
		[]message.Instruction{instructions.Transfer(x.PublicKey, testutil.TestAddress(2), 2_000_000_000)},
		message.VersionLegacy)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	raw, err := message.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	unsigned = filepath.Join(dir, envelope.UnsignedFileName)
	if err := envelope.WriteUnsignedFile(unsigned, raw); err != nil {
		t.Fatalf("WriteUnsignedFile: %v", err)
	}

	signer, err := signing.NewKeySigner(x.PrivateKey)
	if err != nil {
		t.Fatalf("NewKeySigner: %v", err)
	}
	det, err := signing.SignMessage(raw, signer)
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	sig = filepath.Join(dir, envelope.SignatureFileName)
	if err := envelope.WriteSignatureFile(sig, envelope.Detached{Signature: det.Signature[:], PublicKey: det.PublicKey}); err != nil {
		t.Fatalf("WriteSignatureFile: %v", err)
	}
	return unsigned, sig, x
}

func TestSetupLoadsConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cluster: testnet\n"), 0600); err != nil {
		t.Fatal(err)
	}

	var got *Runtime
	app := &cli.App{
		Flags:  GlobalFlags(),
		Before: Setup,
		Action: func(c *cli.Context) error {
			got = FromContext(c)
			return nil
		},
	}
	if err := app.Run([]string{"test", "-d", dir}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.DataDir != dir {
		t.Errorf("DataDir = %q, want %q", got.DataDir, dir)
	}
	if got.Config.Cluster != "testnet" {
		t.Errorf("Cluster = %q, want testnet", got.Config.Cluster)
	}
	if got.Path("a.json", "") != filepath.Join(dir, "a.json") {
		t.Errorf("Path did not resolve against data dir: %q", got.Path("a.json", ""))
	}
	if got.Path("", "default") != "default" {
		t.Error("Path should return the default for an empty value")
	}
}

func TestSetupRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cluster: moon\n"), 0600); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"test", "-d", dir, "inspect", "x"})
	testutil.AssertError(t, err, true, "invalid cluster")
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	unsigned, sig, x := writeFixture(t, dir)

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "unsigned message",
			args: []string{"inspect", unsigned},
			want: []string{"System: Transfer", "Amount: 2 SOL", "Not a durable-nonce message"},
		},
		{
			name: "with signature",
			args: []string{"inspect", "--signature", sig, unsigned},
			want: []string{"1 of 1 slots filled", "Transaction ID:"},
		},
		{
			name: "signature file",
			args: []string{"inspect", sig},
			want: []string{"Detached signature", "Signer: " + x.Address},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			args := append([]string{"test", "-d", dir}, tt.args...)
			if err := newTestApp(&out).Run(args); err != nil {
				t.Fatalf("Run: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestInspectCommandErrors(t *testing.T) {
	dir := t.TempDir()
	unsigned, sig, _ := writeFixture(t, dir)
	garbage := filepath.Join(dir, "garbage.json")
	if err := os.WriteFile(garbage, []byte(`{"message":"not base64!"}`), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no file", []string{"inspect"}, "exactly one file"},
		{"bad envelope", []string{"inspect", garbage}, "transport decode error"},
		{"signature without message", []string{"inspect", "--signature", sig, sig}, "needs an unsigned message"},
		{"signature as message", []string{"inspect", "--signature", unsigned, unsigned}, "missing signature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := newTestApp(&out).Run(append([]string{"test", "-d", dir}, tt.args...))
			testutil.AssertError(t, err, true, tt.want)
		})
	}
}

func TestQRCommand(t *testing.T) {
	dir := t.TempDir()
	unsigned, _, _ := writeFixture(t, dir)

	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"test", "-d", dir, "qr", unsigned}); err != nil {
		t.Fatalf("qr: %v", err)
	}
	if out.Len() == 0 {
		t.Error("qr printed nothing")
	}

	out.Reset()
	if err := newTestApp(&out).Run([]string{"test", "-d", dir, "qr", "--png", "msg.png", unsigned}); err != nil {
		t.Fatalf("qr --png: %v", err)
	}
	png, err := os.ReadFile(filepath.Join(dir, "msg.png"))
	if err != nil {
		t.Fatalf("PNG not written: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("output is not a PNG")
	}

	garbage := testutil.TempFile(t, []byte("hello"))
	err = newTestApp(&out).Run([]string{"test", "-d", dir, "qr", garbage})
	testutil.AssertError(t, err, true, "transport decode error")
}
