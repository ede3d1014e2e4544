// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package envelope

import (
	"fmt"

	"github.com/skip2/go-qrcode"

	"github.com/aplane-algo/apcold/internal/fsutil"
)

// QRSize is the default PNG edge length in pixels.
const QRSize = 256

// QRPNG renders a transport file as a PNG QR code at low error correction.
func QRPNG(data []byte, size int) ([]byte, error) {
	q, err := qrcode.New(string(data), qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("failed to build QR code: %w", err)
	}
	return q.PNG(size)
}

// WriteQRFile writes the PNG QR code of data to path.
func WriteQRFile(path string, data []byte, size int) error {
	png, err := QRPNG(data, size)
	if err != nil {
		return err
	}
	return fsutil.WriteFile(path, png, fsutil.ArtifactPerm)
}

// QRTerminal renders data as a QR code of half-block characters for display
// on a terminal.
func QRTerminal(data []byte) (string, error) {
	q, err := qrcode.New(string(data), qrcode.Low)
	if err != nil {
		return "", fmt.Errorf("failed to build QR code: %w", err)
	}
	return q.ToSmallString(false), nil
}
