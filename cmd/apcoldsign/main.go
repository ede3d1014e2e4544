// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// apcoldsign is the offline half of the air-gapped signing workflow. It
// reads an unsigned message file, shows what it authorizes, and writes a
// detached signature file. It has no network code.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/security"
	"github.com/aplane-algo/apcold/internal/util"
	"github.com/aplane-algo/apcold/internal/version"
)

func main() {
	err := newApp().Run(os.Args)
	util.SyncLogger()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "apcoldsign",
		Usage: "Offline signer for air-gapped transactions",
		Description: `apcoldsign never touches the network. Carry the unsigned message file
written by apcold to this machine, run "apcoldsign sign", and carry the
signature file back.`,
		Version:              version.String(),
		Flags:                cliutil.GlobalFlags(),
		Before:               cliutil.Setup,
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			withHardening(signCommand()),
			withHardening(keygenCommand()),
			withHardening(protectCommand()),
			withHardening(pubkeyCommand()),
			cliutil.InspectCommand(),
			cliutil.QRCommand(),
		},
	}
}

// withHardening locks memory and disables core dumps before a command that
// touches key material runs.
func withHardening(cmd *cli.Command) *cli.Command {
	cmd.Before = func(c *cli.Context) error {
		rt := cliutil.FromContext(c)
		s := security.Harden()
		rt.Logger.Debug("process hardening",
			zap.Bool("core_dumps_disabled", s.CoreDumpsDisabled),
			zap.Bool("memory_locked", s.MemoryLocked))
		for _, err := range s.Errors {
			cliutil.Warnf(c, "%v", err)
		}
		return nil
	}
	return cmd
}
