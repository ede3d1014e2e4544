// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/crypto"
	"github.com/aplane-algo/apcold/internal/envelope"
	"github.com/aplane-algo/apcold/internal/inspect"
	"github.com/aplane-algo/apcold/internal/keyfile"
	"github.com/aplane-algo/apcold/internal/message"
	"github.com/aplane-algo/apcold/internal/signing"
	"github.com/aplane-algo/apcold/internal/util"
)

// errDeclined is returned when the operator does not confirm signing.
var errDeclined = errors.New("signing declined")

func signCommand() *cli.Command {
	return &cli.Command{
		Name:  "sign",
		Usage: "Sign an unsigned message file and write a detached signature",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "unsigned",
				Aliases: []string{"u"},
				Usage:   "Unsigned message file (defaults to unsigned_file in config)",
			},
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "Keypair file (defaults to key_file in config)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Signature file (defaults to signature_file in config)",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Sign without asking for confirmation",
			},
			&cli.BoolFlag{
				Name:  "qr",
				Usage: "Also print the signature file as a QR code",
			},
		},
		Action: signAction,
	}
}

func signAction(c *cli.Context) error {
	rt := cliutil.FromContext(c)
	cfg := rt.Config
	w := c.App.Writer

	raw, err := envelope.ReadUnsignedFile(rt.Path(c.String("unsigned"), cfg.UnsignedFile))
	if err != nil {
		return err
	}
	m, err := message.Decode(raw)
	if err != nil {
		return err
	}

	keyPath := rt.Path(c.String("key"), cfg.KeyFile)
	key, err := keyfile.Load(keyPath, rt.KeyPassphrase(c.Context, keyPath))
	if err != nil {
		return err
	}
	signer, err := signing.NewKeySigner(key)
	crypto.ZeroBytes(key)
	if err != nil {
		return err
	}
	defer signer.Zero()

	// Refuse early, before asking the operator anything.
	index, err := signing.ResolveIndex(m, signer.PublicKey())
	if err != nil {
		return fmt.Errorf("key %s cannot sign this message: %w", signer.PublicKey(), err)
	}

	_, _ = fmt.Fprintln(w, inspect.Message(m))
	_, _ = fmt.Fprintf(w, "\nMessage fingerprint: %s\n", util.Fingerprint(raw))
	_, _ = fmt.Fprintf(w, "Signing as %s (slot %d of %d)\n", signer.PublicKey(), index, m.NumSigners())

	if !c.Bool("yes") {
		ok, err := util.Confirm(c.App.Reader, w, "Sign this message?")
		if err != nil {
			return err
		}
		if !ok {
			return errDeclined
		}
	}

	d, err := signing.SignMessage(raw, signer)
	if err != nil {
		return err
	}
	out := rt.Path(c.String("out"), cfg.SignatureFile)
	if err := envelope.WriteSignatureFile(out, envelope.Detached{Signature: d.Signature[:], PublicKey: d.PublicKey}); err != nil {
		return err
	}
	rt.Logger.Debug("message signed", zap.String("signer", d.PublicKey.String()), zap.Int("slot", d.Index))
	_, _ = fmt.Fprintf(w, "✓ Signature written to %s\n", out)

	if c.Bool("qr") {
		data, err := envelope.ReadFile(out)
		if err != nil {
			return err
		}
		art, err := envelope.QRTerminal(data)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprint(w, art)
	}
	return nil
}
