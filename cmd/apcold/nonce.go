// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/engine"
	"github.com/aplane-algo/apcold/internal/fsutil"
	"github.com/aplane-algo/apcold/internal/keyfile"
	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/signing"
	"github.com/aplane-algo/apcold/internal/solana"
	"github.com/aplane-algo/apcold/internal/util"
)

const nonceRecordFile = "nonce-account.json"

// nonceRecord is written after a nonce account is created. The account's
// own key is not kept: it is never needed after initialization.
type nonceRecord struct {
	Address   solana.PublicKey `json:"address"`
	Authority solana.PublicKey `json:"authority"`
	Network   string           `json:"network"`
}

func createNonceCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-nonce",
		Usage: "Create and fund a durable nonce account",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "payer",
				Usage:    "Keypair file of the online account paying rent and fees",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "authority",
				Usage: "Address allowed to advance the nonce (usually the cold wallet; defaults to the payer)",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Where to record the new account (default: nonce-account.json in the data dir)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing record file",
			},
		},
		Action: createNonceAction,
	}
}

func createNonceAction(c *cli.Context) error {
	rt := cliutil.FromContext(c)
	out := rt.Path(c.String("out"), filepath.Join(rt.DataDir, nonceRecordFile))
	if _, err := os.Stat(out); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", out)
	}

	authority, err := publicKeyFlag(c, "authority", solana.PublicKey{})
	if err != nil {
		return err
	}

	payerPath := rt.Path(c.String("payer"), "")
	key, err := keyfile.Load(payerPath, rt.KeyPassphrase(c.Context, payerPath))
	if err != nil {
		return err
	}
	payer, err := signing.NewKeySigner(key)
	if err != nil {
		return err
	}
	defer payer.Zero()

	o, err := connect(c)
	if err != nil {
		return err
	}
	defer o.Close()

	res, err := o.engine.CreateNonceAccount(c.Context, engine.CreateNonceParams{
		Payer:     payer,
		Authority: authority,
	})
	if res != nil && res.Broadcast != nil {
		_, _ = fmt.Fprintf(c.App.Writer, "Transaction ID: %s\n", res.Broadcast.TxID)
		_, _ = fmt.Fprintf(c.App.Writer, "Explorer: %s\n", ledger.ExplorerTxURL(o.cluster, o.rpcURL, res.Broadcast.TxID))
	}
	if err != nil {
		return err
	}

	record, err := json.MarshalIndent(nonceRecord{
		Address:   res.Address,
		Authority: res.Authority,
		Network:   o.cluster,
	}, "", "  ")
	if err != nil {
		return err
	}
	if err := fsutil.WriteFile(out, append(record, '\n'), fsutil.ArtifactPerm); err != nil {
		return err
	}

	w := c.App.Writer
	_, _ = fmt.Fprintf(w, "✓ Nonce account created: %s\n", res.Address)
	_, _ = fmt.Fprintf(w, "  Authority: %s\n", res.Authority)
	_, _ = fmt.Fprintf(w, "  Balance: %s SOL (rent exempt)\n", util.FormatAmount(res.Lamports, engine.SOLDecimals))
	if !res.Value.IsZero() {
		_, _ = fmt.Fprintf(w, "  Nonce: %s\n", res.Value)
	}
	_, _ = fmt.Fprintf(w, "  Recorded in %s\n", out)
	_, _ = fmt.Fprintf(w, "Set nonce_account: %s in config.yaml to use it by default.\n", res.Address)
	return nil
}

func nonceCommand() *cli.Command {
	return &cli.Command{
		Name:      "nonce",
		Usage:     "Show the current value and authority of a nonce account",
		ArgsUsage: "[address]",
		Action: func(c *cli.Context) error {
			rt := cliutil.FromContext(c)
			addrText := c.Args().First()
			if addrText == "" {
				addrText = rt.Config.NonceAccount
			}
			if addrText == "" {
				return errors.New("no nonce account given and nonce_account is not set in config")
			}
			addr, err := solana.ParsePublicKey(addrText)
			if err != nil {
				return err
			}

			o, err := connect(c)
			if err != nil {
				return err
			}
			defer o.Close()

			d, err := o.engine.ReadNonce(c.Context, addr)
			if err != nil {
				return err
			}
			info, err := o.client.GetAccount(c.Context, addr)
			if err != nil {
				return err
			}

			w := c.App.Writer
			_, _ = fmt.Fprintf(w, "Nonce account: %s\n", d.Account)
			_, _ = fmt.Fprintf(w, "  Authority: %s\n", d.Authority)
			_, _ = fmt.Fprintf(w, "  Nonce: %s\n", d.Value)
			if info != nil {
				_, _ = fmt.Fprintf(w, "  Balance: %s SOL\n", util.FormatAmount(info.Lamports, engine.SOLDecimals))
			}
			_, _ = fmt.Fprintf(w, "  Explorer: %s\n", ledger.ExplorerAddressURL(o.cluster, o.rpcURL, d.Account))
			return nil
		},
	}
}
