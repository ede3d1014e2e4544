// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/engine"
	"github.com/aplane-algo/apcold/internal/envelope"
	"github.com/aplane-algo/apcold/internal/ledger"
)

func broadcastCommand() *cli.Command {
	return &cli.Command{
		Name:  "broadcast",
		Usage: "Attach signatures to the unsigned message and submit it",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "unsigned",
				Aliases: []string{"u"},
				Usage:   "Unsigned message file (defaults to unsigned_file in config)",
			},
			&cli.StringSliceFlag{
				Name:    "signature",
				Aliases: []string{"s"},
				Usage:   "Signature file (repeatable; defaults to signature_file in config)",
			},
			&cli.BoolFlag{
				Name:  "allow-partial",
				Usage: "Submit even when signatures are missing (the ledger will reject it)",
			},
		},
		Action: func(c *cli.Context) error {
			rt := cliutil.FromContext(c)

			raw, err := envelope.ReadUnsignedFile(rt.Path(c.String("unsigned"), rt.Config.UnsignedFile))
			if err != nil {
				return err
			}
			sigFiles := c.StringSlice("signature")
			if len(sigFiles) == 0 {
				sigFiles = []string{rt.Config.SignatureFile}
			}
			sigs, err := readSignatures(rt, sigFiles)
			if err != nil {
				return err
			}

			o, err := connect(c)
			if err != nil {
				return err
			}
			defer o.Close()

			tx, err := o.engine.Assemble(raw, sigs...)
			if err != nil {
				return err
			}
			return o.broadcast(c, tx, c.Bool("allow-partial"))
		},
	}
}

func readSignatures(rt *cliutil.Runtime, files []string) ([]envelope.Detached, error) {
	sigs := make([]envelope.Detached, 0, len(files))
	for _, f := range files {
		d, err := envelope.ReadSignatureFile(rt.Path(f, ""))
		if err != nil {
			return nil, err
		}
		sigs = append(sigs, d)
	}
	return sigs, nil
}

// broadcast submits tx and reports the outcome.
func (o *online) broadcast(c *cli.Context, tx *assembler.Transaction, allowPartial bool) error {
	w := c.App.Writer
	if missing := tx.Missing(); len(missing) > 0 {
		_, _ = fmt.Fprintf(w, "Signatures: %d of %d present\n", len(tx.Signers())-len(missing), len(tx.Signers()))
		for _, m := range missing {
			_, _ = fmt.Fprintf(w, "  missing: %s\n", m)
		}
	}

	res, err := o.engine.Broadcast(c.Context, tx, engine.BroadcastOptions{AllowPartial: allowPartial})
	if res != nil {
		_, _ = fmt.Fprintf(w, "Transaction ID: %s\n", res.TxID)
		_, _ = fmt.Fprintf(w, "Explorer: %s\n", ledger.ExplorerTxURL(o.cluster, o.rpcURL, res.TxID))
	}
	if err != nil {
		if res != nil && errors.Is(err, ledger.ErrConfirmTimeout) {
			if res.NonceAdvanced {
				cliutil.Warnf(c, "The nonce has advanced: this transaction either landed or can never land. Check the explorer before rebuilding.")
			} else {
				cliutil.Warnf(c, "Not confirmed yet. The signed bytes stay valid until the nonce advances; broadcasting again is safe.")
			}
		}
		return err
	}

	conf := res.Confirmation
	_, _ = fmt.Fprintf(w, "✓ Confirmed (%s) in slot %d\n", conf.Status, conf.Slot)
	return nil
}
