// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/engine"
	"github.com/aplane-algo/apcold/internal/envelope"
	"github.com/aplane-algo/apcold/internal/inspect"
	"github.com/aplane-algo/apcold/internal/instructions"
	"github.com/aplane-algo/apcold/internal/solana"
	"github.com/aplane-algo/apcold/internal/util"
)

// messageFlags are shared by every command that writes an unsigned message.
func messageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "fee-payer",
			Usage: "Fee payer address (defaults to the sending account)",
		},
		&cli.StringFlag{
			Name:  "nonce-account",
			Usage: "Durable nonce account (defaults to nonce_account in config)",
		},
		&cli.StringFlag{
			Name:  "nonce-authority",
			Usage: "Nonce authority (defaults to the sending account)",
		},
		&cli.BoolFlag{
			Name:  "no-nonce",
			Usage: "Use a recent blockhash instead of a durable nonce (expires in about a minute)",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Unsigned message file (defaults to unsigned_file in config)",
		},
		&cli.BoolFlag{
			Name:  "qr",
			Usage: "Also print the unsigned message file as a QR code",
		},
	}
}

func solTransferCommand() *cli.Command {
	return &cli.Command{
		Name:  "sol-transfer",
		Usage: "Build an unsigned SOL transfer",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "from", Usage: "Sending (cold) address", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Recipient address", Required: true},
			&cli.StringFlag{Name: "amount", Usage: "Amount in SOL, e.g. 1.5", Required: true},
		}, messageFlags()...),
		Action: func(c *cli.Context) error {
			from, err := requiredPublicKey(c, "from")
			if err != nil {
				return err
			}
			to, err := requiredPublicKey(c, "to")
			if err != nil {
				return err
			}

			o, err := connect(c)
			if err != nil {
				return err
			}
			defer o.Close()

			b, err := o.engine.PrepareSOLTransfer(from, to, c.String("amount"))
			if err != nil {
				return err
			}
			return o.writeMessage(c, from, b)
		},
	}
}

func tokenTransferCommand() *cli.Command {
	return &cli.Command{
		Name:  "token-transfer",
		Usage: "Build an unsigned SPL token transfer",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "owner", Usage: "Owner of the source token account", Required: true},
			&cli.StringFlag{Name: "to", Usage: "Recipient wallet address", Required: true},
			&cli.StringFlag{Name: "mint", Usage: "Token mint address", Required: true},
			&cli.StringFlag{Name: "amount", Usage: "Amount in tokens (base units with --raw)", Required: true},
			&cli.BoolFlag{Name: "raw", Usage: "Treat --amount as base units and send an unchecked transfer"},
		}, messageFlags()...),
		Action: func(c *cli.Context) error {
			owner, err := requiredPublicKey(c, "owner")
			if err != nil {
				return err
			}
			to, err := requiredPublicKey(c, "to")
			if err != nil {
				return err
			}
			mint, err := requiredPublicKey(c, "mint")
			if err != nil {
				return err
			}
			feePayer, err := publicKeyFlag(c, "fee-payer", owner)
			if err != nil {
				return err
			}

			o, err := connect(c)
			if err != nil {
				return err
			}
			defer o.Close()

			b, err := o.engine.PrepareTokenTransfer(c.Context, engine.TokenTransferParams{
				Owner:     owner,
				Recipient: to,
				Mint:      mint,
				Amount:    c.String("amount"),
				FeePayer:  feePayer,
				RawUnits:  c.Bool("raw"),
			})
			if err != nil {
				return err
			}
			if b.CreateRecipientAccount {
				cliutil.Warnf(c, "Recipient has no token account for this mint; the message creates it at the fee payer's expense")
			}
			return o.writeMessage(c, owner, b)
		},
	}
}

func constructCommand() *cli.Command {
	return &cli.Command{
		Name:  "construct",
		Usage: "Build an unsigned message from raw instruction files",
		Description: `Each --raw-file holds one JSON instruction:
  {"program": "<address>", "accounts": [{"pubkey": "<address>", "signer": true, "writable": true}], "data": "<base64>"}
Instructions are placed in the order given, after the nonce advance.`,
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{Name: "raw-file", Usage: "Raw instruction JSON file (repeatable)", Required: true},
		}, messageFlags()...),
		Action: func(c *cli.Context) error {
			feePayer, err := requiredPublicKey(c, "fee-payer")
			if err != nil {
				return err
			}

			rt := cliutil.FromContext(c)
			var builders []instructions.Builder
			for _, path := range c.StringSlice("raw-file") {
				raw, err := instructions.LoadRaw(rt.Path(path, ""))
				if err != nil {
					return err
				}
				builders = append(builders, raw)
			}

			o, err := connect(c)
			if err != nil {
				return err
			}
			defer o.Close()
			return o.writeMessage(c, feePayer, builders...)
		},
	}
}

// writeMessage constructs the message, writes the unsigned envelope and
// prints what was built. sender is the default fee payer and nonce authority.
func (o *online) writeMessage(c *cli.Context, sender solana.PublicKey, builders ...instructions.Builder) error {
	cfg := o.rt.Config

	feePayer, err := publicKeyFlag(c, "fee-payer", sender)
	if err != nil {
		return err
	}
	authority, err := publicKeyFlag(c, "nonce-authority", sender)
	if err != nil {
		return err
	}

	var nonceAccount solana.PublicKey
	if !c.Bool("no-nonce") {
		configured := solana.PublicKey{}
		if cfg.NonceAccount != "" {
			if configured, err = solana.ParsePublicKey(cfg.NonceAccount); err != nil {
				return fmt.Errorf("nonce_account in config: %w", err)
			}
		}
		if nonceAccount, err = publicKeyFlag(c, "nonce-account", configured); err != nil {
			return err
		}
	}

	p, err := o.engine.Construct(c.Context, engine.ConstructParams{
		FeePayer:       feePayer,
		NonceAccount:   nonceAccount,
		NonceAuthority: authority,
		Builders:       builders,
	})
	if err != nil {
		return err
	}

	out := o.rt.Path(c.String("out"), cfg.UnsignedFile)
	if err := envelope.WriteUnsignedFile(out, p.Raw); err != nil {
		return err
	}

	w := c.App.Writer
	_, _ = fmt.Fprintln(w, inspect.Message(p.Message))
	_, _ = fmt.Fprintf(w, "\n✓ Unsigned message written to %s\n", out)
	_, _ = fmt.Fprintf(w, "Message fingerprint: %s\n", util.Fingerprint(p.Raw))
	_, _ = fmt.Fprintln(w, "Signatures required (slot order):")
	for i, s := range p.Signers {
		_, _ = fmt.Fprintf(w, "  [%d] %s\n", i, s)
	}
	if p.Expires() {
		cliutil.Warnf(c, "No nonce account: this message expires 60-90 seconds after construction")
	}

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
