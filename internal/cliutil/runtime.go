// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package cliutil holds the pieces shared by the online and offline command
// line tools: global flags, config loading, key unlocking and the inspect and
// qr commands. It must not depend on the ledger or engine packages, since the
// offline tool links it.
package cliutil

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/keyfile"
	"github.com/aplane-algo/apcold/internal/util"
)

// GlobalFlags are accepted by both binaries before the subcommand.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Data directory holding config.yaml and transport files",
			EnvVars: []string{util.DataDirEnvVar},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "Enable debug logging on stderr",
			EnvVars: []string{util.DebugEnvVar},
		},
	}
}

// Runtime is the per-invocation state built from global flags and config.
type Runtime struct {
	DataDir string
	Config  util.Config
	Logger  *zap.Logger
}

type runtimeKey struct{}

// Setup is the app's Before hook: it initialises logging and loads config,
// storing the Runtime for subcommands.
func Setup(c *cli.Context) error {
	logger := util.InitLogger(c.Bool("debug"))

	dataDir := util.GetDataDir(c.String("data-dir"))
	if dataDir == "" {
		return fmt.Errorf("cannot determine data directory; pass -d or set %s", util.DataDirEnvVar)
	}
	cfg, err := util.LoadConfig(dataDir)
	if err != nil {
		return err
	}
	logger.Debug("config loaded", zap.String("data_dir", dataDir), zap.String("cluster", cfg.Cluster))

	c.Context = context.WithValue(c.Context, runtimeKey{}, &Runtime{
		DataDir: dataDir,
		Config:  cfg,
		Logger:  logger,
	})
	return nil
}

// FromContext returns the Runtime stored by Setup.
func FromContext(c *cli.Context) *Runtime {
	if rt, ok := c.Context.Value(runtimeKey{}).(*Runtime); ok {
		return rt
	}
	// Commands run without the Before hook (tests) fall back to defaults.
	return &Runtime{Config: util.DefaultConfig(), Logger: zap.NewNop()}
}

// Path resolves a user-supplied path against the data directory, or returns
// def when p is empty.
func (rt *Runtime) Path(p, def string) string {
	if p == "" {
		return def
	}
	return util.ResolvePath(p, rt.DataDir)
}

// KeyPassphrase returns the passphrase source for encrypted key files: the
// configured helper command when one is set, otherwise a terminal prompt.
func (rt *Runtime) KeyPassphrase(ctx context.Context, path string) keyfile.PassphraseFunc {
	if len(rt.Config.PassphraseCommand) > 0 {
		cmd := &util.PassphraseCommand{
			Argv: rt.Config.PassphraseCommand,
			Env:  rt.Config.PassphraseEnv,
		}
		return func() ([]byte, error) {
			rt.Logger.Debug("running passphrase command", zap.String("argv0", cmd.Argv[0]))
			return cmd.Run(ctx)
		}
	}
	return func() ([]byte, error) {
		return util.PromptPassphrase(fmt.Sprintf("Passphrase for %s: ", path))
	}
}

// Warnf prints a warning line on the app's error writer.
func Warnf(c *cli.Context, format string, args ...any) {
	w := c.App.ErrWriter
	if w == nil {
		w = os.Stderr
	}
	_, _ = fmt.Fprintf(w, "⚠️  "+format+"\n", args...)
}
