// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/crypto"
	"github.com/aplane-algo/apcold/internal/keyfile"
	"github.com/aplane-algo/apcold/internal/signing"
	"github.com/aplane-algo/apcold/internal/util"
)

// newPassphrase returns the passphrase for encrypting a key file: the
// configured helper's output, else a twice-entered terminal prompt. The
// caller destroys the result.
func newPassphrase(c *cli.Context, rt *cliutil.Runtime) (*crypto.SecureString, error) {
	var (
		pass []byte
		err  error
	)
	if len(rt.Config.PassphraseCommand) > 0 {
		cmd := &util.PassphraseCommand{Argv: rt.Config.PassphraseCommand, Env: rt.Config.PassphraseEnv}
		pass, err = cmd.Run(c.Context)
	} else {
		pass, err = util.PromptNewPassphrase()
	}
	if err != nil {
		return nil, err
	}
	defer crypto.ZeroBytes(pass)
	if len(pass) == 0 {
		return nil, errors.New("passphrase must not be empty")
	}
	return crypto.NewSecureStringFromBytes(pass), nil
}

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "Generate a new keypair file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Keypair file to create (defaults to key_file in config)",
			},
			&cli.BoolFlag{
				Name:  "encrypt",
				Usage: "Encrypt the file with a passphrase",
			},
		},
		Action: func(c *cli.Context) error {
			rt := cliutil.FromContext(c)
			path := rt.Path(c.String("out"), rt.Config.KeyFile)

			pass := crypto.NewSecureStringFromBytes(nil)
			if c.Bool("encrypt") {
				var err error
				if pass, err = newPassphrase(c, rt); err != nil {
					return err
				}
			}
			defer pass.Destroy()

			key, err := keyfile.Generate()
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(key)
			pub, err := signing.PublicKeyOf(key)
			if err != nil {
				return err
			}
			err = pass.WithBytes(func(p []byte) error {
				return keyfile.Write(path, key, p)
			})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(c.App.Writer, "✓ Keypair written to %s\n", path)
			_, _ = fmt.Fprintf(c.App.Writer, "Address: %s\n", pub)
			if pass.IsEmpty() {
				cliutil.Warnf(c, "The key file is not encrypted. Run apcoldsign protect to add a passphrase.")
			}
			return nil
		},
	}
}

func protectCommand() *cli.Command {
	return &cli.Command{
		Name:  "protect",
		Usage: "Encrypt an existing plaintext keypair file in place",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "Keypair file (defaults to key_file in config)",
			},
		},
		Action: func(c *cli.Context) error {
			rt := cliutil.FromContext(c)
			path := rt.Path(c.String("key"), rt.Config.KeyFile)

			encrypted, err := keyfile.IsEncryptedFile(path)
			if err != nil {
				return err
			}
			if encrypted {
				return fmt.Errorf("%s: %w", path, keyfile.ErrAlreadyEncrypted)
			}

			pass, err := newPassphrase(c, rt)
			if err != nil {
				return err
			}
			defer pass.Destroy()
			err = pass.WithBytes(func(p []byte) error {
				return keyfile.Protect(path, p)
			})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.App.Writer, "✓ %s is now encrypted\n", path)
			return nil
		},
	}
}

func pubkeyCommand() *cli.Command {
	return &cli.Command{
		Name:  "pubkey",
		Usage: "Print the address of a keypair file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "Keypair file (defaults to key_file in config)",
			},
		},
		Action: func(c *cli.Context) error {
			rt := cliutil.FromContext(c)
			path := rt.Path(c.String("key"), rt.Config.KeyFile)

			key, err := keyfile.Load(path, rt.KeyPassphrase(c.Context, path))
			if err != nil {
				return err
			}
			defer crypto.ZeroBytes(key)
			pub, err := signing.PublicKeyOf(key)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(c.App.Writer, pub)
			return nil
		},
	}
}
