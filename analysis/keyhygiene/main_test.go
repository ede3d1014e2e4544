// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func lines(src string) []string { return strings.Split(src, "\n") }

func TestCheckZero(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{
			name: "wiped",
			src: `func load() {
	key := readPrivateKey()
	defer crypto.ZeroBytes(key)
}`,
		},
		{
			name: "not wiped",
			src: `func load() {
	key := readPrivateKey()
	use(key)
}`,
			want: 1,
		},
		{
			name: "signer zeroed",
			src: `func sign() {
	s, _ := signing.NewKeySigner(loadPrivateKey())
	defer s.Zero()
}`,
		},
		{
			name: "ownership passed to caller",
			src: `func Generate() (ed25519.PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	return priv, err
}`,
		},
		{
			name: "second function checked independently",
			src: `func a() {
	crypto.ZeroBytes(x)
}

func b(k ed25519.PrivateKey) {
	_ = k
}`,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkZero("x.go", lines(tt.src)); len(got) != tt.want {
				t.Errorf("findings = %+v, want %d", got, tt.want)
			}
		})
	}
}

func TestCheckRand(t *testing.T) {
	if got := checkRand("x.go", lines(`import "math/rand"`)); len(got) != 1 {
		t.Errorf("math/rand import: %d findings, want 1", len(got))
	}
	if got := checkRand("x.go", lines("import \"crypto/rand\"\nn, _ := rand.Read(b)")); len(got) != 0 {
		t.Errorf("crypto/rand: %+v", got)
	}
	if got := checkRand("x.go", lines("r := rand.Intn(10)")); len(got) != 1 {
		t.Errorf("math/rand call: %d findings, want 1", len(got))
	}
}

func TestCheckLeaks(t *testing.T) {
	tests := map[string]bool{
		`fmt.Printf("key: %x\n", privateKey)`:                 true,
		`logger.Debug("loaded", zap.Binary("k", key))`:         true,
		`logger.Debug("loaded", zap.String("passphrase", pass))`: true,
		`fmt.Println(seed)`:                                    true,
		`fmt.Fprintf(w, "Address: %s\n", pub)`:                 false,
		`logger.Debug("signed", zap.String("signer", pk.String()))`: false,
		`// fmt.Printf("%x", privateKey)`:                      false,
	}
	for line, want := range tests {
		got := len(checkLeaks("x.go", []string{line})) > 0
		if got != want {
			t.Errorf("%s: flagged = %v, want %v", line, got, want)
		}
	}
}

func TestScanAndReport(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "internal", "keyfile")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	bad := "package keyfile\n\nimport \"math/rand\"\n\nfunc leak() {\n\tkey := loadPrivateKey()\n\t_ = key\n}\n"
	if err := os.WriteFile(filepath.Join(dir, "bad.go"), []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}
	// Tests are skipped.
	if err := os.WriteFile(filepath.Join(dir, "bad_test.go"), []byte(bad), 0600); err != nil {
		t.Fatal(err)
	}

	findings, checked, err := scan(root)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if checked != 1 {
		t.Errorf("checked = %d, want 1", checked)
	}
	if len(findings) != 2 {
		t.Fatalf("findings = %+v, want rand and zero", findings)
	}
	if findings[0].kind != "rand" || findings[1].kind != "zero" {
		t.Errorf("kinds = %s, %s", findings[0].kind, findings[1].kind)
	}

	var out bytes.Buffer
	report(&out, findings, checked)
	if !strings.Contains(out.String(), "Potential issues: 2") {
		t.Errorf("report:\n%s", out.String())
	}
}
