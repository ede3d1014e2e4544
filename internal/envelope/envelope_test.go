// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package envelope

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aplane-algo/apcold/internal/solana"
)

var testKey = solana.MustParsePublicKey("Dv8EZLYymKDdXnnTuw2M1MD31TjVru5kpnhrk8Ki6wth")

func TestEncodeUnsignedFormat(t *testing.T) {
	got, err := EncodeUnsigned([]byte{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"message":"AQID"}` + "\n"
	if string(got) != want {
		t.Errorf("EncodeUnsigned = %q, want %q", got, want)
	}
}

func TestEncodeSignatureFormat(t *testing.T) {
	sig := bytes.Repeat([]byte{0xFF}, 64)
	got, err := EncodeSignature(Detached{Signature: sig, PublicKey: testKey})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(got), `{"signature":"/////`) {
		t.Errorf("signature should come first: %s", got)
	}
	if !strings.HasSuffix(string(got), `"publicKey":"`+testKey.String()+"\"}\n") {
		t.Errorf("publicKey should come last: %s", got)
	}
}

func TestRoundTrip(t *testing.T) {
	msg := []byte("\x01\x00\x01 arbitrary message bytes")
	data, err := EncodeUnsigned(msg)
	if err != nil {
		t.Fatal(err)
	}
	back, err := DecodeUnsigned(data)
	if err != nil {
		t.Fatalf("DecodeUnsigned: %v", err)
	}
	if !bytes.Equal(back, msg) {
		t.Error("unsigned round trip changed the bytes")
	}

	d := Detached{Signature: bytes.Repeat([]byte{7}, 64), PublicKey: testKey}
	data, err = EncodeSignature(d)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSignature(data)
	if err != nil {
		t.Fatalf("DecodeSignature: %v", err)
	}
	if !bytes.Equal(got.Signature, d.Signature) || got.PublicKey != d.PublicKey {
		t.Error("signature round trip changed the values")
	}
}

func TestDecodeWhitespaceInsensitive(t *testing.T) {
	input := "\n  {\n\t\"message\" :   \"AQID\"\n}\n\n"
	msg, err := DecodeUnsigned([]byte(input))
	if err != nil {
		t.Fatalf("DecodeUnsigned: %v", err)
	}
	if !bytes.Equal(msg, []byte{1, 2, 3}) {
		t.Errorf("msg = %x", msg)
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "message=AQID"},
		{"empty object", "{}"},
		{"unknown field", `{"message":"AQID","extra":1}`},
		{"trailing data", `{"message":"AQID"} {}`},
		{"non-canonical padding", `{"message":"AQJ="}`},
		{"missing padding", `{"message":"AQIDBA"}`},
		{"url alphabet", `{"message":"-_-_"}`},
		{"embedded newline", `{"message":"AQ\nID"}`},
		{"embedded carriage return", `{"message":"AQ\rID"}`},
		{"empty message", `{"message":""}`},
		{"wrong type", `{"message":123}`},
		{"bad public key", `{"signature":"AQID","publicKey":"0OIl"}`},
		{"upper-case field", `{"MESSAGE":"AQID"}`},
		{"capitalized field", `{"Message":"AQID"}`},
		{"differently-cased public key", `{"signature":"AQID","publickey":"11111111111111111111111111111111"}`},
		{"duplicate field", `{"message":"AQID","message":"BAUG"}`},
		{"duplicate after other field", `{"signature":"AQID","message":"AQID","signature":"BAUG"}`},
		{"null field", `{"message":null}`},
		{"array", `["AQID"]`},
		{"unterminated object", `{"message":"AQID"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			if !errors.Is(err, ErrTransportDecode) {
				t.Errorf("Decode error = %v, want ErrTransportDecode", err)
			}
		})
	}
}

func TestDecodeKindPresence(t *testing.T) {
	sigOnly := `{"signature":"AQID"}`
	keyOnly := `{"publicKey":"` + testKey.String() + `"}`
	signed := `{"signature":"AQID","publicKey":"` + testKey.String() + `"}`
	mixed := `{"message":"AQID","signature":"AQID","publicKey":"` + testKey.String() + `"}`

	if _, err := DecodeUnsigned([]byte(signed)); !errors.Is(err, ErrTransportDecode) {
		t.Errorf("DecodeUnsigned(signature file) error = %v", err)
	}
	if _, err := DecodeUnsigned([]byte(mixed)); !errors.Is(err, ErrTransportDecode) {
		t.Errorf("DecodeUnsigned(mixed) error = %v", err)
	}
	for _, input := range []string{sigOnly, keyOnly, `{"message":"AQID"}`, mixed} {
		if _, err := DecodeSignature([]byte(input)); !errors.Is(err, ErrTransportDecode) {
			t.Errorf("DecodeSignature(%s) error = %v, want ErrTransportDecode", input, err)
		}
	}

	e, err := Decode([]byte(mixed))
	if err != nil {
		t.Fatalf("Decode(mixed): %v", err)
	}
	if e.Message == nil || e.Signature == nil || e.PublicKey == nil {
		t.Error("generic Decode should keep every field")
	}
}

func TestDecodeSignatureKeepsLength(t *testing.T) {
	d, err := DecodeSignature([]byte(`{"signature":"AQID","publicKey":"` + testKey.String() + `"}`))
	if err != nil {
		t.Fatalf("DecodeSignature: %v", err)
	}
	if len(d.Signature) != 3 {
		t.Errorf("signature length = %d, want 3", len(d.Signature))
	}
}

func TestEncodeRejectsEmpty(t *testing.T) {
	if _, err := Encode(Envelope{}); err == nil {
		t.Error("expected error for empty envelope")
	}
	if _, err := EncodeUnsigned(nil); err == nil {
		t.Error("expected error for empty message")
	}
	if _, err := EncodeSignature(Detached{PublicKey: testKey}); err == nil {
		t.Error("expected error for empty signature")
	}
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()

	unsignedPath := filepath.Join(dir, UnsignedFileName)
	if err := WriteUnsignedFile(unsignedPath, []byte{9, 8, 7}); err != nil {
		t.Fatalf("WriteUnsignedFile: %v", err)
	}
	msg, err := ReadUnsignedFile(unsignedPath)
	if err != nil {
		t.Fatalf("ReadUnsignedFile: %v", err)
	}
	if !bytes.Equal(msg, []byte{9, 8, 7}) {
		t.Errorf("msg = %x", msg)
	}

	sigPath := filepath.Join(dir, SignatureFileName)
	if err := WriteSignatureFile(sigPath, Detached{Signature: make([]byte, 64), PublicKey: testKey}); err != nil {
		t.Fatalf("WriteSignatureFile: %v", err)
	}
	d, err := ReadSignatureFile(sigPath)
	if err != nil {
		t.Fatalf("ReadSignatureFile: %v", err)
	}
	if d.PublicKey != testKey {
		t.Error("public key changed")
	}

	if _, err := ReadSignatureFile(unsignedPath); !errors.Is(err, ErrTransportDecode) {
		t.Errorf("reading an unsigned file as a signature: %v", err)
	}
	if _, err := ReadUnsignedFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestQR(t *testing.T) {
	data, err := EncodeUnsigned(bytes.Repeat([]byte{0x42}, 600))
	if err != nil {
		t.Fatal(err)
	}

	png, err := QRPNG(data, QRSize)
	if err != nil {
		t.Fatalf("QRPNG: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("QRPNG did not produce a PNG")
	}

	art, err := QRTerminal(data)
	if err != nil {
		t.Fatalf("QRTerminal: %v", err)
	}
	if len(art) == 0 {
		t.Error("QRTerminal returned nothing")
	}

	path := filepath.Join(t.TempDir(), "tx.png")
	if err := WriteQRFile(path, data, QRSize); err != nil {
		t.Fatalf("WriteQRFile: %v", err)
	}

	if _, err := QRPNG(bytes.Repeat([]byte("x"), 8000), QRSize); err == nil {
		t.Error("expected error for data beyond QR capacity")
	}
}
