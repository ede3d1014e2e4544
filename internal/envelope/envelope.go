// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package envelope frames messages and detached signatures for the trip
// across the air gap, as files or QR codes.
//
// The JSON form is {"message": base64, "signature": base64, "publicKey":
// base58}, each field optional but at least one present. Binary fields use
// standard padded base64 and decoding is strict: non-canonical padding,
// embedded line breaks, unknown or differently-cased field names and repeated
// fields are all rejected. The package knows
// nothing about what the bytes mean.
package envelope

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aplane-algo/apcold/internal/solana"
)

// ErrTransportDecode is returned for malformed JSON, base64 or base58, and
// for envelopes missing a field their kind requires.
var ErrTransportDecode = errors.New("transport decode error")

var strictBase64 = base64.StdEncoding.Strict()

// Envelope is the decoded form of any transport file. Absent fields are nil.
type Envelope struct {
	Message   []byte
	Signature []byte
	PublicKey *solana.PublicKey
}

// Detached is a signature together with the identity that produced it.
type Detached struct {
	Signature []byte
	PublicKey solana.PublicKey
}

// wireEnvelope fixes the JSON field order.
type wireEnvelope struct {
	Message   *string `json:"message,omitempty"`
	Signature *string `json:"signature,omitempty"`
	PublicKey *string `json:"publicKey,omitempty"`
}

// Encode returns the compact JSON form of e followed by a newline.
func Encode(e Envelope) ([]byte, error) {
	var w wireEnvelope
	if e.Message != nil {
		s := strictBase64.EncodeToString(e.Message)
		w.Message = &s
	}
	if e.Signature != nil {
		s := strictBase64.EncodeToString(e.Signature)
		w.Signature = &s
	}
	if e.PublicKey != nil {
		s := e.PublicKey.String()
		w.PublicKey = &s
	}
	if w.Message == nil && w.Signature == nil && w.PublicKey == nil {
		return nil, errors.New("envelope has no fields")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses any transport file.
func Decode(data []byte) (Envelope, error) {
	w, err := readFields(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrTransportDecode, err)
	}
	if w.Message == nil && w.Signature == nil && w.PublicKey == nil {
		return Envelope{}, fmt.Errorf("%w: envelope has no fields", ErrTransportDecode)
	}

	var e Envelope
	if w.Message != nil {
		if e.Message, err = decodeBase64("message", *w.Message); err != nil {
			return Envelope{}, err
		}
	}
	if w.Signature != nil {
		if e.Signature, err = decodeBase64("signature", *w.Signature); err != nil {
			return Envelope{}, err
		}
	}
	if w.PublicKey != nil {
		pk, err := solana.ParsePublicKey(*w.PublicKey)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: publicKey: %v", ErrTransportDecode, err)
		}
		e.PublicKey = &pk
	}
	return e, nil
}

// readFields walks the top-level object token by token. encoding/json alone
// matches names case-insensitively and lets a repeated key win, so field
// names must match exactly and appear at most once.
func readFields(data []byte) (wireEnvelope, error) {
	var w wireEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return w, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return w, errors.New("envelope must be a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return w, err
		}
		name, _ := tok.(string)
		var dst **string
		switch name {
		case "message":
			dst = &w.Message
		case "signature":
			dst = &w.Signature
		case "publicKey":
			dst = &w.PublicKey
		default:
			return w, fmt.Errorf("unknown field %q", name)
		}
		if *dst != nil {
			return w, fmt.Errorf("duplicate field %q", name)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return w, err
		}
		if len(raw) == 0 || raw[0] != '"' {
			return w, fmt.Errorf("field %q must be a string", name)
		}
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return w, err
		}
		*dst = &v
	}
	if _, err := dec.Token(); err != nil {
		return w, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return w, errors.New("trailing data after envelope")
	}
	return w, nil
}

// decodeBase64 rejects empty payloads, line breaks and non-canonical padding.
func decodeBase64(field, s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrTransportDecode, field)
	}
	// Strict mode still skips CR and LF, so they are checked separately.
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("%w: %s contains a line break", ErrTransportDecode, field)
	}
	out, err := strictBase64.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransportDecode, field, err)
	}
	return out, nil
}

// EncodeUnsigned frames an unsigned message: {"message": ...}.
func EncodeUnsigned(msg []byte) ([]byte, error) {
	if len(msg) == 0 {
		return nil, errors.New("message is empty")
	}
	return Encode(Envelope{Message: msg})
}

// DecodeUnsigned parses an unsigned message file. It must carry a message and
// nothing else.
func DecodeUnsigned(data []byte) ([]byte, error) {
	e, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if e.Message == nil {
		return nil, fmt.Errorf("%w: missing message", ErrTransportDecode)
	}
	if e.Signature != nil || e.PublicKey != nil {
		return nil, fmt.Errorf("%w: unsigned message file carries a signature", ErrTransportDecode)
	}
	return e.Message, nil
}

// EncodeSignature frames a detached signature: {"signature": ..., "publicKey": ...}.
func EncodeSignature(d Detached) ([]byte, error) {
	if len(d.Signature) == 0 {
		return nil, errors.New("signature is empty")
	}
	pk := d.PublicKey
	return Encode(Envelope{Signature: d.Signature, PublicKey: &pk})
}

// DecodeSignature parses a signature file. Both signature and publicKey are
// required. The signature length is not checked here.
func DecodeSignature(data []byte) (Detached, error) {
	e, err := Decode(data)
	if err != nil {
		return Detached{}, err
	}
	if e.Signature == nil {
		return Detached{}, fmt.Errorf("%w: missing signature", ErrTransportDecode)
	}
	if e.PublicKey == nil {
		return Detached{}, fmt.Errorf("%w: missing publicKey", ErrTransportDecode)
	}
	if e.Message != nil {
		return Detached{}, fmt.Errorf("%w: signature file carries a message", ErrTransportDecode)
	}
	return Detached{Signature: e.Signature, PublicKey: *e.PublicKey}, nil
}
