// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// apcold is the online half of the air-gapped signing workflow. It reads
// nonce accounts, constructs unsigned messages, and assembles and broadcasts
// the signatures returned from the offline signer.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/ledger"
	"github.com/aplane-algo/apcold/internal/util"
	"github.com/aplane-algo/apcold/internal/version"
)

// Process exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitStaleNonce = 2
	exitIncomplete = 3
)

func main() {
	app := newApp()
	err := app.Run(os.Args)
	util.SyncLogger()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := exitHint(err); hint != "" {
			_, _ = fmt.Fprintln(os.Stderr, hint)
		}
	}
	os.Exit(exitCode(err))
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "apcold",
		Usage: "Online tool for air-gapped transaction signing",
		Description: `apcold builds unsigned messages against a durable nonce so they can be
carried to an offline machine, signed there with apcoldsign, and brought back
for broadcast at any later time.

Typical flow:
  apcold create-nonce --payer hot.json --authority <cold address>
  apcold sol-transfer --from <cold> --to <addr> --amount 1.5
  (offline) apcoldsign sign
  apcold broadcast --signature signature.json`,
		Version:              version.String(),
		Flags:                append(cliutil.GlobalFlags(), clusterFlags()...),
		Before:               cliutil.Setup,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			createNonceCommand(),
			nonceCommand(),
			solTransferCommand(),
			tokenTransferCommand(),
			constructCommand(),
			broadcastCommand(),
			watchCommand(),
			cliutil.InspectCommand(),
			cliutil.QRCommand(),
			{
				Name:  "config",
				Usage: "Show the effective configuration",
				Action: func(c *cli.Context) error {
					util.DisplayConfig(c.App.Writer, cliutil.FromContext(c).DataDir)
					return nil
				},
			},
		},
	}
}

func clusterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "cluster",
			Usage: "Cluster to use (overrides config): mainnet-beta, testnet, devnet, localnet",
		},
		&cli.StringFlag{
			Name:  "rpc-url",
			Usage: "JSON-RPC endpoint (overrides the cluster's configured URL)",
		},
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ledger.ErrStaleNonce):
		return exitStaleNonce
	case errors.Is(err, ledger.ErrIncompleteSignatures), errors.Is(err, assembler.ErrIncomplete):
		return exitIncomplete
	default:
		return exitFailure
	}
}

func exitHint(err error) string {
	switch exitCode(err) {
	case exitStaleNonce:
		return "The nonce has advanced since this message was built. Run the construct step again and re-sign."
	case exitIncomplete:
		return "Collect the missing signatures with apcoldsign and pass each file with --signature."
	default:
		return ""
	}
}
