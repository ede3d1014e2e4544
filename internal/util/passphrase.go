// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"bufio"
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"
)

const (
	passphraseCommandTimeout = 5 * time.Second
	maxPassphraseOutputBytes = 8 * 1024
)

// ErrNotTerminal is returned when an interactive prompt is needed but stdin
// is not a terminal.
var ErrNotTerminal = errors.New("stdin is not a terminal")

// PassphraseCommand runs a helper program that prints a key file passphrase.
type PassphraseCommand struct {
	Argv []string          // argv[0] must be an absolute path
	Env  map[string]string // the only environment the helper sees
}

// Run executes the helper and returns its output.
//
// Output contract: one trailing newline is stripped, NUL bytes are rejected,
// and a "base64:" or "hex:" prefix is decoded. The caller should zero the
// result.
func (c *PassphraseCommand) Run(ctx context.Context) ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, passphraseCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...) //nolint:gosec // validated above
	cmd.Env = make([]string, 0, len(c.Env))
	for k, v := range c.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	// Kill the whole process group so children of a shell helper die too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second
	cmd.Stderr = io.Discard

	var stdout bytes.Buffer
	defer func() {
		zeroBytes(stdout.Bytes())
		stdout.Reset()
	}()
	cmd.Stdout = &limitedWriter{w: &stdout, remaining: maxPassphraseOutputBytes}

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("passphrase command timed out after %s", passphraseCommandTimeout)
		}
		return nil, fmt.Errorf("passphrase command failed: %w", err)
	}
	if lw := cmd.Stdout.(*limitedWriter); lw.truncated {
		return nil, fmt.Errorf("passphrase command output exceeded %d bytes", maxPassphraseOutputBytes)
	}

	out := stdout.Bytes()
	if n := len(out); n > 0 && out[n-1] == '\n' {
		out = out[:n-1]
		if n := len(out); n > 0 && out[n-1] == '\r' {
			out = out[:n-1]
		}
	}
	if len(out) == 0 {
		return nil, errors.New("passphrase command produced empty output")
	}
	if bytes.IndexByte(out, 0) >= 0 {
		return nil, errors.New("passphrase command output contains NUL bytes")
	}
	return decodePassphraseOutput(out)
}

// Validate checks that argv[0] is an absolute path to an executable that is
// not group or world writable.
func (c *PassphraseCommand) Validate() error {
	if len(c.Argv) == 0 {
		return errors.New("passphrase command: argv must be non-empty")
	}
	path := c.Argv[0]
	if !filepath.IsAbs(path) {
		return fmt.Errorf("passphrase command: %q is not an absolute path", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("passphrase command: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("passphrase command: %s is a directory", path)
	}
	perm := info.Mode().Perm()
	if perm&0111 == 0 {
		return fmt.Errorf("passphrase command: %s is not executable (mode %04o)", path, perm)
	}
	if perm&0022 != 0 {
		return fmt.Errorf("passphrase command: %s is group or world writable (mode %04o)", path, perm)
	}
	return nil
}

func decodePassphraseOutput(out []byte) ([]byte, error) {
	switch {
	case bytes.HasPrefix(out, []byte("base64:")):
		enc := out[len("base64:"):]
		dec := make([]byte, base64.StdEncoding.DecodedLen(len(enc)))
		n, err := base64.StdEncoding.Decode(dec, enc)
		if err != nil {
			zeroBytes(dec)
			return nil, fmt.Errorf("passphrase command: invalid base64 output: %w", err)
		}
		return dec[:n], nil
	case bytes.HasPrefix(out, []byte("hex:")):
		enc := out[len("hex:"):]
		dec := make([]byte, hex.DecodedLen(len(enc)))
		n, err := hex.Decode(dec, enc)
		if err != nil {
			zeroBytes(dec)
			return nil, fmt.Errorf("passphrase command: invalid hex output: %w", err)
		}
		return dec[:n], nil
	default:
		return append([]byte(nil), out...), nil
	}
}

func zeroBytes(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.ConstantTimeCopy(1, b, make([]byte, len(b)))
}

// limitedWriter keeps at most remaining bytes and reports full writes so
// the helper never sees a short write.
type limitedWriter struct {
	w         io.Writer
	remaining int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if n > lw.remaining {
		p = p[:lw.remaining]
		lw.truncated = true
	}
	if len(p) > 0 {
		if _, err := lw.w.Write(p); err != nil {
			return 0, err
		}
		lw.remaining -= len(p)
	}
	return n, nil
}

// PromptPassphrase reads a passphrase from the terminal without echo.
func PromptPassphrase(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	_, _ = fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	return pass, nil
}

// PromptNewPassphrase asks twice and fails if the entries differ.
func PromptNewPassphrase() ([]byte, error) {
	first, err := PromptPassphrase("New passphrase: ")
	if err != nil {
		return nil, err
	}
	second, err := PromptPassphrase("Repeat passphrase: ")
	if err != nil {
		zeroBytes(first)
		return nil, err
	}
	defer zeroBytes(second)
	if subtle.ConstantTimeCompare(first, second) != 1 {
		zeroBytes(first)
		return nil, errors.New("passphrases do not match")
	}
	return first, nil
}

// Confirm asks a yes/no question on in. Anything but y or yes is a no.
func Confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
