// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package envelope

import (
	"fmt"
	"io"
	"os"

	"github.com/aplane-algo/apcold/internal/fsutil"
)

// Default transport file names.
const (
	UnsignedFileName  = "unsigned-tx.json"
	SignatureFileName = "signature.json"
)

// maxFileSize bounds transport files. A message is at most 1232 bytes, so
// anything far larger is not a transport file.
const maxFileSize = 64 * 1024

// ReadFile reads a transport file, refusing oversized input.
func ReadFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTransportDecode, path, maxFileSize)
	}
	return data, nil
}

// WriteUnsignedFile writes an unsigned message file.
func WriteUnsignedFile(path string, msg []byte) error {
	data, err := EncodeUnsigned(msg)
	if err != nil {
		return err
	}
	return fsutil.WriteFile(path, data, fsutil.ArtifactPerm)
}

// ReadUnsignedFile reads an unsigned message file.
func ReadUnsignedFile(path string) ([]byte, error) {
	data, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	msg, err := DecodeUnsigned(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return msg, nil
}

// WriteSignatureFile writes a signature file.
func WriteSignatureFile(path string, d Detached) error {
	data, err := EncodeSignature(d)
	if err != nil {
		return err
	}
	return fsutil.WriteFile(path, data, fsutil.ArtifactPerm)
}

// ReadSignatureFile reads a signature file.
func ReadSignatureFile(path string) (Detached, error) {
	data, err := ReadFile(path)
	if err != nil {
		return Detached{}, err
	}
	d, err := DecodeSignature(data)
	if err != nil {
		return Detached{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
