// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package cliutil

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/envelope"
	"github.com/aplane-algo/apcold/internal/inspect"
	"github.com/aplane-algo/apcold/internal/solana"
)

// InspectCommand decodes a transport file and prints what it contains.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode and describe an unsigned message or signature file",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "signature",
				Aliases: []string{"s"},
				Usage:   "Signature file to attach before describing (repeatable)",
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("inspect requires exactly one file argument")
	}
	rt := FromContext(c)
	path := rt.Path(c.Args().First(), "")

	data, err := envelope.ReadFile(path)
	if err != nil {
		return err
	}
	env, err := envelope.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	out := c.App.Writer
	if env.Message == nil {
		if len(c.StringSlice("signature")) > 0 {
			return errors.New("--signature needs an unsigned message file")
		}
		_, _ = fmt.Fprintln(out, describeDetached(env))
		return nil
	}

	sigFiles := c.StringSlice("signature")
	if len(sigFiles) == 0 {
		_, _ = fmt.Fprintln(out, inspect.MessageBytes(env.Message))
		return nil
	}

	tx, err := assembler.New(env.Message)
	if err != nil {
		return err
	}
	for _, f := range sigFiles {
		d, err := envelope.ReadSignatureFile(rt.Path(f, ""))
		if err != nil {
			return err
		}
		if tx, err = tx.Attach(d.PublicKey, d.Signature); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	_, _ = fmt.Fprintln(out, inspect.Transaction(tx))
	return nil
}

func describeDetached(env envelope.Envelope) string {
	signer := "<missing>"
	if env.PublicKey != nil {
		signer = env.PublicKey.String()
	}
	sig := fmt.Sprintf("<%d bytes, expected %d>", len(env.Signature), solana.SignatureSize)
	if s, err := solana.SignatureFromBytes(env.Signature); err == nil {
		sig = s.String()
	}
	return fmt.Sprintf("Detached signature\n  Signer: %s\n  Signature: %s", signer, sig)
}

// QRCommand renders a transport file as a QR code on the terminal or as a PNG.
func QRCommand() *cli.Command {
	return &cli.Command{
		Name:      "qr",
		Usage:     "Show a transport file as a QR code",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "png",
				Usage: "Write a PNG image to this path instead of printing",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "PNG edge length in pixels",
				Value: envelope.QRSize,
			},
		},
		Action: qrAction,
	}
}

func qrAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("qr requires exactly one file argument")
	}
	rt := FromContext(c)
	path := rt.Path(c.Args().First(), "")

	data, err := envelope.ReadFile(path)
	if err != nil {
		return err
	}
	// Only well-formed envelopes go on the air gap.
	if _, err := envelope.Decode(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if png := c.String("png"); png != "" {
		if c.Int("size") <= 0 {
			return errors.New("--size must be positive")
		}
		if err := envelope.WriteQRFile(rt.Path(png, ""), data, c.Int("size")); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(c.App.Writer, "✓ QR code written to %s\n", png)
		return nil
	}

	art, err := envelope.QRTerminal(data)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprint(c.App.Writer, art)
	return nil
}
